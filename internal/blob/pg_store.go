package blob

import (
	"context"
	"database/sql"
	"errors"
)

// ByteaStore is the storage interface satisfied by the Postgres store.
type ByteaStore interface {
	SaveDocumentBlob(ctx context.Context, documentID string, data []byte) error
	GetDocumentBlob(ctx context.Context, documentID string) ([]byte, error)
	DeleteDocumentBlob(ctx context.Context, documentID string) error
}

// PGStore is the fallback backend keeping content in a bytea column.
type PGStore struct {
	store ByteaStore
}

func NewPGStore(store ByteaStore) *PGStore {
	return &PGStore{store: store}
}

func (s *PGStore) Save(ctx context.Context, documentID string, data []byte, contentType string) error {
	return s.store.SaveDocumentBlob(ctx, documentID, data)
}

func (s *PGStore) Get(ctx context.Context, documentID string) ([]byte, error) {
	data, err := s.store.GetDocumentBlob(ctx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *PGStore) Delete(ctx context.Context, documentID string) error {
	return s.store.DeleteDocumentBlob(ctx, documentID)
}
