// Package blob stores document content, in MinIO when an endpoint is
// configured, otherwise in a Postgres bytea table.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no content exists for the document.
var ErrNotFound = errors.New("blob not found")

// Store reads and writes document content keyed by document id.
type Store interface {
	Save(ctx context.Context, documentID string, data []byte, contentType string) error
	Get(ctx context.Context, documentID string) ([]byte, error)
	Delete(ctx context.Context, documentID string) error
}
