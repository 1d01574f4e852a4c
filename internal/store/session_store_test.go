package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/kioskinstall/internal/db"
	"github.com/vbonduro/kioskinstall/internal/domain"
)

func openSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return NewSessionStore(d)
}

func TestSessionSetAndGet(t *testing.T) {
	s := openSessionStore(t)
	ctx := context.Background()
	expires := time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC)
	user := domain.User{ID: "admin_001", Name: "Sarah Admin", Email: "admin@kioskinstall.test", Role: domain.RoleAdmin}

	require.NoError(t, s.Set(ctx, "tok", user, expires))

	got, gotExpires, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user, *got)
	assert.True(t, expires.Equal(gotExpires))
}

func TestSessionSetReplaces(t *testing.T) {
	s := openSessionStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	require.NoError(t, s.Set(ctx, "tok", domain.User{ID: "a", Role: domain.RoleAdmin}, expires))
	require.NoError(t, s.Set(ctx, "tok", domain.User{ID: "b", Role: domain.RoleFieldUser}, expires))

	got, _, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.ID)
}

func TestSessionGetMissing(t *testing.T) {
	s := openSessionStore(t)

	got, _, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionDelete(t *testing.T) {
	s := openSessionStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "tok", domain.User{ID: "a"}, time.Now().Add(time.Hour)))

	require.NoError(t, s.Delete(ctx, "tok"))
	got, _, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionPurgeExpired(t *testing.T) {
	s := openSessionStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Set(ctx, "old", domain.User{ID: "a"}, now.Add(-time.Minute)))
	require.NoError(t, s.Set(ctx, "fresh", domain.User{ID: "b"}, now.Add(time.Hour)))

	require.NoError(t, s.Set(ctx, "edge", domain.User{ID: "c"}, now))

	tokens, err := s.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old", "edge"}, tokens)

	gone, _, err := s.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, gone)

	got, _, err := s.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
