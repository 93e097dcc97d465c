package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/adapters/local"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
	"github.com/aretw0/notesync/pkg/router"
)

func ptr[T any](v T) *T { return &v }

// plain hides optional capabilities of the wrapped backend.
type plain struct{ core.Backend }

// failing fails every call it overrides with a network error.
type failing struct {
	core.Backend
	calls int
}

func (f *failing) ListNotes(ctx context.Context) ([]core.Note, error) {
	f.calls++
	return nil, core.Wrap(core.ErrNetwork, "list notes", errors.New("offline"))
}

func (f *failing) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	f.calls++
	return core.Note{}, core.Wrap(core.ErrAuth, "create note", errors.New("expired"))
}

func (f *failing) UpdateSettings(ctx context.Context, p core.SettingsPatch) (core.Settings, error) {
	f.calls++
	return core.Settings{}, core.Wrap(core.ErrNetwork, "update settings", errors.New("offline"))
}

type state struct{ auth, online bool }

func newLocal() *local.Repository {
	return local.NewRepository(local.Config{Store: kv.NewMemoryStore()})
}

func TestDecide(t *testing.T) {
	tests := []struct {
		mode         router.Mode
		auth, online bool
		want         router.Target
	}{
		{router.ModeWeb, false, false, router.TargetLocal},
		{router.ModeWeb, false, true, router.TargetLocal},
		{router.ModeWeb, true, false, router.TargetLocal},
		{router.ModeWeb, true, true, router.TargetCloud},
		{router.ModeEmbedded, false, false, router.TargetEmbedded},
		{router.ModeEmbedded, false, true, router.TargetEmbedded},
		{router.ModeEmbedded, true, false, router.TargetEmbedded},
		{router.ModeEmbedded, true, true, router.TargetEmbedded},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, router.Decide(tt.mode, tt.auth, tt.online),
			"mode=%s auth=%v online=%v", tt.mode, tt.auth, tt.online)
	}
}

func TestParseMode(t *testing.T) {
	m, err := router.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, router.ModeWeb, m)
	m, err = router.ParseMode("embedded")
	require.NoError(t, err)
	assert.Equal(t, router.ModeEmbedded, m)
	_, err = router.ParseMode("desktop")
	assert.Error(t, err)
}

func TestNew_Validates(t *testing.T) {
	_, err := router.New(router.Config{})
	assert.Error(t, err)
	_, err = router.New(router.Config{Mode: router.ModeEmbedded, Local: newLocal()})
	assert.Error(t, err)
}

func TestRouter_DecidesOnEveryCall(t *testing.T) {
	st := &state{}
	dev, remote := newLocal(), newLocal()
	r, err := router.New(router.Config{
		Local:         dev,
		Cloud:         remote,
		Authenticated: func() bool { return st.auth },
		Online:        func() bool { return st.online },
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.CreateNote(ctx, core.NoteInput{ID: "offline"})
	require.NoError(t, err)

	st.auth, st.online = true, true
	assert.Equal(t, router.TargetCloud, r.Target())
	_, err = r.CreateNote(ctx, core.NoteInput{ID: "online"})
	require.NoError(t, err)

	st.online = false
	_, err = r.CreateNote(ctx, core.NoteInput{ID: "offline-again"})
	require.NoError(t, err)

	devNotes, _ := dev.ListNotes(ctx)
	remoteNotes, _ := remote.ListNotes(ctx)
	assert.ElementsMatch(t, []string{"offline", "offline-again"}, ids(devNotes))
	assert.ElementsMatch(t, []string{"online"}, ids(remoteNotes))
}

func TestRouter_CloudFailureFallsBackToLocal(t *testing.T) {
	dev := newLocal()
	_, err := dev.CreateNote(context.Background(), core.NoteInput{ID: "n1"})
	require.NoError(t, err)

	remote := &failing{}
	r, err := router.New(router.Config{
		Local:         dev,
		Cloud:         remote,
		Authenticated: func() bool { return true },
		Online:        func() bool { return true },
	})
	require.NoError(t, err)
	ctx := context.Background()

	notes, err := r.ListNotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, ids(notes))

	// auth failures fall back too
	_, err = r.CreateNote(ctx, core.NoteInput{ID: "n2"})
	require.NoError(t, err)

	assert.Equal(t, 2, remote.calls)
	s := r.State().(router.State)
	assert.Equal(t, int64(2), s.Fallbacks)
	assert.Equal(t, "cloud", s.LastTarget)
}

func TestRouter_EmbeddedNeverTouchesCloud(t *testing.T) {
	remote := &failing{}
	embedded := newLocal()
	r, err := router.New(router.Config{
		Mode:          router.ModeEmbedded,
		Local:         newLocal(),
		Cloud:         remote,
		Embedded:      embedded,
		Authenticated: func() bool { return true },
		Online:        func() bool { return true },
	})
	require.NoError(t, err)

	_, err = r.CreateNote(context.Background(), core.NoteInput{ID: "n1"})
	require.NoError(t, err)
	_, err = r.ListNotes(context.Background())
	require.NoError(t, err)

	assert.Zero(t, remote.calls)
	notes, _ := embedded.ListNotes(context.Background())
	assert.Len(t, notes, 1)
}

func TestRouter_NoCloudConfiguredStaysLocal(t *testing.T) {
	r, err := router.New(router.Config{
		Local:         newLocal(),
		Authenticated: func() bool { return true },
		Online:        func() bool { return true },
	})
	require.NoError(t, err)
	assert.Equal(t, router.TargetLocal, r.Target())
}

func TestRouter_SettingsMirroredLocally(t *testing.T) {
	devKV, remoteKV := kv.NewMemoryStore(), kv.NewMemoryStore()
	dev := local.NewRepository(local.Config{Store: devKV})
	remote := local.NewRepository(local.Config{Store: remoteKV})
	r, err := router.New(router.Config{
		Local:         dev,
		Cloud:         remote,
		Authenticated: func() bool { return true },
		Online:        func() bool { return true },
	})
	require.NoError(t, err)
	ctx := context.Background()

	s, err := r.UpdateSettings(ctx, core.SettingsPatch{Theme: ptr("dark")})
	require.NoError(t, err)
	assert.Equal(t, "dark", s.Theme)

	mirrored, err := dev.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", mirrored.Theme)
	primary, err := remote.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", primary.Theme)
}

func TestRouter_SettingsFallbackWritesOnce(t *testing.T) {
	dev := newLocal()
	r, err := router.New(router.Config{
		Local:         dev,
		Cloud:         &failing{},
		Authenticated: func() bool { return true },
		Online:        func() bool { return true },
	})
	require.NoError(t, err)

	s, err := r.UpdateSettings(context.Background(), core.SettingsPatch{FontSize: ptr(18)})
	require.NoError(t, err)
	assert.Equal(t, 18, s.FontSize)
}

func TestRouter_DeleteFolderClearsStore(t *testing.T) {
	dev := newLocal()
	ctx := context.Background()
	_, err := dev.CreateFolder(ctx, core.FolderInput{ID: "f", Name: "F"})
	require.NoError(t, err)
	n, err := dev.CreateNote(ctx, core.NoteInput{ID: "n1", FolderID: ptr("f")})
	require.NoError(t, err)

	store := core.NewStore()
	store.PutNote(n)

	r, err := router.New(router.Config{Local: dev}, router.WithStore(store))
	require.NoError(t, err)
	require.NoError(t, r.DeleteFolder(ctx, "f"))

	got, ok := store.Note("n1")
	require.True(t, ok)
	assert.Nil(t, got.FolderID)
}

func TestRouter_SearchWithoutSearcher(t *testing.T) {
	remote := newLocal()
	ctx := context.Background()
	_, _ = remote.CreateNote(ctx, core.NoteInput{ID: "a", Title: "Trip plan"})
	_, _ = remote.CreateNote(ctx, core.NoteInput{ID: "b", Title: "Groceries"})

	r, err := router.New(router.Config{
		Local:         newLocal(),
		Cloud:         plain{remote},
		Authenticated: func() bool { return true },
		Online:        func() bool { return true },
	})
	require.NoError(t, err)

	found, err := r.SearchNotes(ctx, "trip")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(found))
}

func ids(notes []core.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID)
	}
	return out
}
