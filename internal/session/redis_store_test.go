package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	st, err := NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRefreshSession(ctx, "hash-1", "usr_a1", time.Now().Add(time.Hour)))

	user, err := st.LookupRefreshSession(ctx, "hash-1")
	require.NoError(t, err)
	require.Equal(t, "usr_a1", user.ID)
}

func TestSaveRejectsPastExpiry(t *testing.T) {
	st, _ := newTestStore(t)

	err := st.SaveRefreshSession(context.Background(), "hash-old", "usr_z", time.Now().Add(-time.Minute))
	require.Error(t, err)
	require.Contains(t, err.Error(), "already expired")
}

func TestLookupUnknownToken(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.LookupRefreshSession(context.Background(), "never-saved")
	require.Error(t, err)
}

func TestSessionExpiresWithTTL(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRefreshSession(ctx, "hash-ttl", "usr_b2", time.Now().Add(time.Minute)))

	mr.FastForward(2 * time.Minute)

	_, err := st.LookupRefreshSession(ctx, "hash-ttl")
	require.Error(t, err)
}

func TestRevokeRefreshSession(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveRefreshSession(ctx, "hash-rev", "usr_c3", time.Now().Add(time.Hour)))
	require.NoError(t, st.RevokeRefreshSession(ctx, "hash-rev"))

	_, err := st.LookupRefreshSession(ctx, "hash-rev")
	require.Error(t, err)

	// Revoking again is a no-op, not an error.
	require.NoError(t, st.RevokeRefreshSession(ctx, "hash-rev"))
}

func TestSessionsAreIndependent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, st.SaveRefreshSession(ctx, "hash-x", "usr_x", exp))
	require.NoError(t, st.SaveRefreshSession(ctx, "hash-y", "usr_y", exp))

	require.NoError(t, st.RevokeRefreshSession(ctx, "hash-x"))

	_, err := st.LookupRefreshSession(ctx, "hash-x")
	require.Error(t, err)

	user, err := st.LookupRefreshSession(ctx, "hash-y")
	require.NoError(t, err)
	require.Equal(t, "usr_y", user.ID)
}
