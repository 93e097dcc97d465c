package kv_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/kv"
)

func exerciseStore(t *testing.T, s kv.Store) {
	t.Helper()

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("notes", `[{"id":"n1"}]`))
	v, ok, err := s.Get("notes")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"n1"}]`, v)

	require.NoError(t, s.Set("notes", `[]`))
	v, _, _ = s.Get("notes")
	assert.Equal(t, `[]`, v, "set replaces the whole value")

	require.NoError(t, s.Delete("notes"))
	_, ok, _ = s.Get("notes")
	assert.False(t, ok)

	assert.ErrorIs(t, s.Set("../escape", "x"), kv.ErrInvalidKey)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, kv.NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := kv.NewFileStore(filepath.Join(t.TempDir(), "data"), nil)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	first, err := kv.NewFileStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, first.Set("settings", `{"theme":"dark"}`))

	second, err := kv.NewFileStore(dir, nil)
	require.NoError(t, err)
	v, ok, err := second.Get("settings")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"theme":"dark"}`, v)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), kv.TempFilePrefix, "temp files must not linger")
	}
}

func TestFileStore_WatchReportsForeignWrites(t *testing.T) {
	dir := t.TempDir()
	ours, err := kv.NewFileStore(dir, nil)
	require.NoError(t, err)
	theirs, err := kv.NewFileStore(dir, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := ours.Watch(ctx, "notes")
	require.NoError(t, err)

	// our own write and a non-matching key stay silent
	require.NoError(t, ours.Set("notes", `[]`))
	require.NoError(t, theirs.Set("folders", `[]`))
	// a write by another process is reported
	require.NoError(t, theirs.Set("notes", `[{"id":"x"}]`))

	select {
	case c := <-changes:
		assert.Equal(t, "notes", c.Key)
		assert.Equal(t, kv.OpSet, c.Op)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-changes
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileStore_WatchRejectsBadPattern(t *testing.T) {
	s, err := kv.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = s.Watch(context.Background(), "[")
	assert.Error(t, err)
}

func TestWriteFile_ReplacesAndCreatesParents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	path := filepath.Join(dir, "record")

	require.NoError(t, kv.WriteFile(path, []byte("one"), 0o600))
	require.NoError(t, kv.WriteFile(path, []byte("two"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
