package signon_test

import (
	"context"
	"testing"
	"time"

	"github.com/skaife/go-signon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore_IssueAndGet(t *testing.T) {
	store := signon.NewMemorySessionStore(newTestConfig(), nil)
	defer store.Stop()

	user := testUser()

	session, err := store.Issue(context.Background(), user)
	require.NoError(t, err)
	require.NotEmpty(t, session.SessionID)
	assert.Equal(t, user.ID.String(), session.UserID)
	assert.Equal(t, user.Username, session.Username)
	require.NotNil(t, session.IssuedAt)

	found, err := store.Get(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, found.SessionID)
	assert.Equal(t, session.UserID, found.UserID)
}

func TestMemorySessionStore_UniqueIDs(t *testing.T) {
	store := signon.NewMemorySessionStore(newTestConfig(), nil)
	defer store.Stop()

	user := testUser()

	first, err := store.Issue(context.Background(), user)
	require.NoError(t, err)
	second, err := store.Issue(context.Background(), user)
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestMemorySessionStore_UnknownSession(t *testing.T) {
	store := signon.NewMemorySessionStore(newTestConfig(), nil)
	defer store.Stop()

	_, err := store.Get(context.Background(), "no-such-session")
	require.Error(t, err)
	assert.ErrorIs(t, err, signon.ErrSessionNotFound)
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	cfg := newTestConfig()
	cfg.sessionTTL = 10 * time.Millisecond

	store := signon.NewMemorySessionStore(cfg, nil)
	defer store.Stop()

	session, err := store.Issue(context.Background(), testUser())
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = store.Get(context.Background(), session.SessionID)
	assert.ErrorIs(t, err, signon.ErrSessionNotFound)
}

func TestMemorySessionStore_Delete(t *testing.T) {
	store := signon.NewMemorySessionStore(newTestConfig(), nil)
	defer store.Stop()

	session, err := store.Issue(context.Background(), testUser())
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), session.SessionID))

	_, err = store.Get(context.Background(), session.SessionID)
	assert.ErrorIs(t, err, signon.ErrSessionNotFound)
}

func TestMemorySessionStore_DeleteUnknownIsNoop(t *testing.T) {
	store := signon.NewMemorySessionStore(newTestConfig(), nil)
	defer store.Stop()

	assert.NoError(t, store.Delete(context.Background(), "no-such-session"))
}

func TestMemorySessionStore_CancelledContext(t *testing.T) {
	store := signon.NewMemorySessionStore(newTestConfig(), nil)
	defer store.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Issue(ctx, testUser())
	assert.ErrorIs(t, err, context.Canceled)
}
