package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreauth "github.com/NordCoder/Stocker/internal/auth"
	"github.com/NordCoder/Stocker/internal/domain"
	"github.com/NordCoder/Stocker/internal/repository/memory"
)

func newTestStore() (*RefreshStore, *fakeClock, *memory.RefreshTokenRepo) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := memory.NewRefreshTokenRepo()
	return NewRefreshStore(repo, clock.Now), clock, repo
}

func TestRefreshStore_StoresOnlyDigest(t *testing.T) {
	s, clock, repo := newTestStore()
	ctx := context.Background()

	rec, err := s.Create(ctx, 7, "raw-token", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, coreauth.HashToken("raw-token"), rec.TokenHash)
	assert.NotContains(t, rec.TokenHash, "raw-token")

	_, err = repo.FindByHash(ctx, "raw-token")
	require.ErrorIs(t, err, domain.ErrNotFound)

	got, err := s.FindByRaw(ctx, "raw-token")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, clock.Now(), got.IssuedAt)

	_, err = s.FindByRaw(ctx, "other")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshStore_IsValid(t *testing.T) {
	s, clock, _ := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, 1, "t1", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	ok, err := s.IsValid(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsValid(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Advance(time.Hour)
	ok, err = s.IsValid(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok, "expired at exactly expires_at")
}

func TestRefreshStore_RevokeIsCompareAndSwap(t *testing.T) {
	s, clock, _ := newTestStore()
	ctx := context.Background()
	_, err := s.Create(ctx, 1, "old", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	ok, err := s.Revoke(ctx, "old", "new")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Revoke(ctx, "old", "newer")
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := s.FindByRaw(ctx, "old")
	require.NoError(t, err)
	assert.True(t, rec.Revoked)
	require.NotNil(t, rec.RevokedAt)
	assert.Equal(t, clock.Now(), *rec.RevokedAt)
	require.NotNil(t, rec.ReplacedBy)
	assert.Equal(t, coreauth.HashToken("new"), *rec.ReplacedBy)

	ok, err = s.Revoke(ctx, "missing", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshStore_RevokeAllForUser(t *testing.T) {
	s, clock, _ := newTestStore()
	ctx := context.Background()
	exp := clock.Now().Add(time.Hour)
	for _, raw := range []string{"a", "b", "c"} {
		_, err := s.Create(ctx, 1, raw, exp)
		require.NoError(t, err)
	}
	_, err := s.Create(ctx, 2, "d", exp)
	require.NoError(t, err)
	_, err = s.Revoke(ctx, "a", "")
	require.NoError(t, err)

	n, err := s.RevokeAllForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := s.IsValid(ctx, "d")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRefreshStore_CleanupExpired(t *testing.T) {
	s, clock, repo := newTestStore()
	ctx := context.Background()

	_, err := s.Create(ctx, 1, "short", clock.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = s.Create(ctx, 1, "revoked", clock.Now().Add(24*time.Hour))
	require.NoError(t, err)
	_, err = s.Create(ctx, 1, "live", clock.Now().Add(24*time.Hour))
	require.NoError(t, err)
	_, err = s.Revoke(ctx, "revoked", "")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	n, err := s.CleanupExpired(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, repo.Len())

	clock.Advance(time.Hour)
	n, err = s.CleanupExpired(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, repo.Len())

	ok, err := s.IsValid(ctx, "live")
	require.NoError(t, err)
	assert.True(t, ok)
}
