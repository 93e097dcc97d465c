package local_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/adapters/local"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
)

func ptr[T any](v T) *T { return &v }

func newRepo(t *testing.T) (*local.Repository, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	return local.NewRepository(local.Config{Store: store}), store
}

func TestRepository_IDPassthrough(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	created, err := repo.CreateNote(ctx, core.NoteInput{ID: "n1", Title: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "n1", created.ID)

	notes, err := repo.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0].ID)
	assert.Equal(t, "Hi", notes[0].Title)
	assert.Nil(t, notes[0].FolderID)
}

func TestRepository_CreateWithSameIDOverwrites(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateNote(ctx, core.NoteInput{ID: "n1", Title: "first"})
	require.NoError(t, err)
	_, err = repo.CreateNote(ctx, core.NoteInput{ID: "n1", Title: "second"})
	require.NoError(t, err)

	notes, err := repo.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "second", notes[0].Title)
}

func TestRepository_UpdateMissingNote(t *testing.T) {
	repo, _ := newRepo(t)
	_, err := repo.UpdateNote(context.Background(), "ghost", core.NotePatch{Title: ptr("x")})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = repo.UpdateFolder(context.Background(), "ghost", core.FolderPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepository_TogglePin(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	_, err := repo.CreateNote(ctx, core.NoteInput{ID: "n1"})
	require.NoError(t, err)

	n, err := repo.TogglePin(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, n.IsPinned)
	assert.NotNil(t, n.PinnedAt)

	n, err = repo.TogglePin(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, n.IsPinned)
	assert.Nil(t, n.PinnedAt)
}

func TestRepository_DeleteFolderUnfilesNotes(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateFolder(ctx, core.FolderInput{ID: "f", Name: "F"})
	require.NoError(t, err)
	for _, id := range []string{"a", "b"} {
		_, err := repo.CreateNote(ctx, core.NoteInput{ID: id, FolderID: ptr("f")})
		require.NoError(t, err)
	}

	require.NoError(t, repo.DeleteFolder(ctx, "f"))

	folders, err := repo.ListFolders(ctx)
	require.NoError(t, err)
	assert.Empty(t, folders)

	notes, err := repo.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.Nil(t, n.FolderID, "note %s still filed", n.ID)
	}
}

func TestRepository_PersistedLayout(t *testing.T) {
	repo, store := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateNote(ctx, core.NoteInput{ID: "n1"})
	require.NoError(t, err)
	_, err = repo.CreateFolder(ctx, core.FolderInput{ID: "f1", Name: "F"})
	require.NoError(t, err)
	_, err = repo.UpdateSettings(ctx, core.SettingsPatch{Theme: ptr("dark")})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{local.KeyNotes, local.KeyFolders, local.KeySettings}, store.Keys())

	raw, _, _ := store.Get(local.KeyNotes)
	var notes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0]["id"])
	assert.Contains(t, notes[0], "folderId")

	settings, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", settings.Theme)
	assert.Equal(t, 16, settings.FontSize, "unset fields keep defaults")
}

func TestRepository_CorruptRecord(t *testing.T) {
	repo, store := newRepo(t)
	require.NoError(t, store.Set(local.KeyNotes, "{not json"))

	_, err := repo.ListNotes(context.Background())
	assert.ErrorIs(t, err, core.ErrStorage)
}

func TestRepository_Search(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	_, _ = repo.CreateNote(ctx, core.NoteInput{ID: "a", Title: "Groceries"})
	_, _ = repo.CreateNote(ctx, core.NoteInput{ID: "b", Content: "buy more GROCERIES"})
	_, _ = repo.CreateNote(ctx, core.NoteInput{ID: "c", Title: "Other"})

	found, err := repo.SearchNotes(ctx, "groceries")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}
