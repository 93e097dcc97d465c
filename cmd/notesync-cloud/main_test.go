package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/internal/server"
)

func TestTokenCommand(t *testing.T) {
	const secret = "a-secret-of-enough-length"
	t.Setenv("NOTESYNC_SERVER_SECRET", secret)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "alice", "--ttl", "1m"})
	require.NoError(t, rootCmd.Execute())

	user, err := server.ParseToken([]byte(secret), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
}

func TestShortSecretRejected(t *testing.T) {
	t.Setenv("NOTESYNC_SERVER_SECRET", "short")
	rootCmd.SetArgs([]string{"token", "alice"})
	assert.Error(t, rootCmd.Execute())
}
