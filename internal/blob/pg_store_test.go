package blob

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeByteaStore struct {
	blobs map[string][]byte
}

func (f *fakeByteaStore) SaveDocumentBlob(ctx context.Context, documentID string, data []byte) error {
	f.blobs[documentID] = data
	return nil
}

func (f *fakeByteaStore) GetDocumentBlob(ctx context.Context, documentID string) ([]byte, error) {
	data, ok := f.blobs[documentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return data, nil
}

func (f *fakeByteaStore) DeleteDocumentBlob(ctx context.Context, documentID string) error {
	delete(f.blobs, documentID)
	return nil
}

func TestPGStoreRoundTrip(t *testing.T) {
	st := NewPGStore(&fakeByteaStore{blobs: map[string][]byte{}})
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, "doc_1", []byte("hello"), "text/plain"))

	data, err := st.Get(ctx, "doc_1")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)

	require.NoError(t, st.Delete(ctx, "doc_1"))

	_, err = st.Get(ctx, "doc_1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPGStoreMissingBlob(t *testing.T) {
	st := NewPGStore(&fakeByteaStore{blobs: map[string][]byte{}})

	_, err := st.Get(context.Background(), "doc_absent")
	require.ErrorIs(t, err, ErrNotFound)
}
