package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
	"github.com/aretw0/notesync/pkg/session"
)

func signed(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("whatever"))
	require.NoError(t, err)
	return tok
}

func TestManager_LoginLogout(t *testing.T) {
	m := session.NewManager()
	assert.False(t, m.Current().Authenticated())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := m.Watch(ctx)

	s, err := m.Login(signed(t, "alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", s.UserID)
	assert.True(t, m.Current().Authenticated())
	assert.NotEmpty(t, m.Token())

	got := <-changes
	assert.Equal(t, "alice", got.UserID)

	require.NoError(t, m.Logout())
	got = <-changes
	assert.False(t, got.Authenticated())
	assert.Empty(t, m.Token())
}

func TestManager_RejectsBadTokens(t *testing.T) {
	m := session.NewManager()

	_, err := m.Login("")
	assert.ErrorIs(t, err, core.ErrAuth)

	_, err = m.Login("garbage")
	assert.ErrorIs(t, err, core.ErrAuth)

	_, err = m.Login(signed(t, ""))
	assert.ErrorIs(t, err, core.ErrAuth)
	assert.False(t, m.Current().Authenticated())
}

func TestManager_PersistsAndRestores(t *testing.T) {
	store := kv.NewMemoryStore()
	first := session.NewManager(session.WithStore(store))
	_, err := first.Login(signed(t, "alice"))
	require.NoError(t, err)

	second := session.NewManager(session.WithStore(store))
	assert.Equal(t, "alice", second.Current().UserID)

	require.NoError(t, second.Logout())
	third := session.NewManager(session.WithStore(store))
	assert.False(t, third.Current().Authenticated())
}

func TestManager_WatchKeepsEveryTransition(t *testing.T) {
	store := kv.NewMemoryStore()
	_, err := session.NewManager(session.WithStore(store)).Login(signed(t, "alice"))
	require.NoError(t, err)

	m := session.NewManager(session.WithStore(store))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := m.Watch(ctx)

	// sign out and back in before the watcher reads anything
	require.NoError(t, m.Logout())
	_, err = m.Login(signed(t, "alice"))
	require.NoError(t, err)

	assert.False(t, (<-changes).Authenticated())
	assert.True(t, (<-changes).Authenticated())
}
