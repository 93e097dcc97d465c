package platform_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/internal/platform"
	"github.com/aretw0/notesync/internal/server"
	"github.com/aretw0/notesync/pkg/adapters/cloud"
	"github.com/aretw0/notesync/pkg/adapters/local"
	"github.com/aretw0/notesync/pkg/connectivity"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
	"github.com/aretw0/notesync/pkg/migrate"
	"github.com/aretw0/notesync/pkg/queue"
	"github.com/aretw0/notesync/pkg/router"
	"github.com/aretw0/notesync/pkg/session"
)

var secret = []byte("engine-test-secret")

func ptr[T any](v T) *T { return &v }

type fixture struct {
	url      string
	kv       *kv.MemoryStore
	sessions *session.Manager
	online   *connectivity.Manual
	engine   *platform.Engine
}

func startCloud(t *testing.T) string {
	t.Helper()
	srv, err := server.New(server.Config{Secret: secret})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// countingCloud serves the reference cloud and counts every request it gets.
func countingCloud(t *testing.T) (string, *atomic.Int64) {
	t.Helper()
	srv, err := server.New(server.Config{Secret: secret})
	require.NoError(t, err)
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts.URL, &hits
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := server.IssueToken(secret, user, time.Hour)
	require.NoError(t, err)
	return tok
}

func cloudAs(t *testing.T, url, user string) *cloud.Repository {
	t.Helper()
	return cloud.NewRepository(cloud.Config{BaseURL: url, Tokens: cloud.StaticToken(token(t, user))})
}

// newFixture builds an engine over memory storage. prepare runs against the
// key-value store before the engine sees it.
func newFixture(t *testing.T, online bool, prepare func(store *kv.MemoryStore), opts ...platform.Option) *fixture {
	t.Helper()
	f := &fixture{
		url:    startCloud(t),
		kv:     kv.NewMemoryStore(),
		online: connectivity.NewManual(online),
	}
	if prepare != nil {
		prepare(f.kv)
	}
	f.sessions = session.NewManager(session.WithStore(f.kv))

	base := []platform.Option{
		platform.WithKV(f.kv),
		platform.WithCloudURL(f.url),
		platform.WithSession(f.sessions),
		platform.WithConnectivity(f.online),
		platform.WithRetryBase(10 * time.Millisecond),
	}
	e, err := platform.New(append(base, opts...)...)
	require.NoError(t, err)
	f.engine = e

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		e.Stop()
	})
	require.NoError(t, e.Start(ctx))
	return f
}

func syncStatus(e *platform.Engine) core.SyncStatus {
	return e.Store().Settings().SyncStatus
}

func TestEngine_OfflineStartServesLocal(t *testing.T) {
	f := newFixture(t, false, nil)
	e := f.engine
	ctx := context.Background()

	assert.Equal(t, router.TargetLocal, e.Router().Target())
	assert.Equal(t, core.SyncStatusSynced, syncStatus(e), "anonymous local use is in sync")

	_, err := e.Service().CreateNote(ctx, core.NoteInput{ID: "n1", Title: "offline"})
	require.NoError(t, err)

	notes, err := local.NewRepository(local.Config{Store: f.kv}).ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0].ID)
}

func TestEngine_SignInMigratesOnce(t *testing.T) {
	f := newFixture(t, true, nil)
	e := f.engine
	ctx := context.Background()

	_, err := e.Service().CreateNote(ctx, core.NoteInput{ID: "n1", Title: "before sign in"})
	require.NoError(t, err)
	_, err = e.Service().CreateFolder(ctx, core.FolderInput{ID: "f1", Name: "Work"})
	require.NoError(t, err)

	_, err = f.sessions.Login(token(t, "alice"))
	require.NoError(t, err)

	remote := cloudAs(t, f.url, "alice")
	require.Eventually(t, func() bool {
		return e.State().(platform.EngineState).Migrated
	}, 3*time.Second, 10*time.Millisecond)

	notes, err := remote.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0].ID)
	assert.Equal(t, "before sign in", notes[0].Title)

	folders, err := remote.ListFolders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1)

	assert.Eventually(t, func() bool {
		return e.Router().Target() == router.TargetCloud && syncStatus(e) == core.SyncStatusSynced
	}, 3*time.Second, 10*time.Millisecond)

	// a second sign-in does not copy again
	require.NoError(t, f.sessions.Logout())
	_, err = e.Service().CreateNote(ctx, core.NoteInput{ID: "n2"})
	require.NoError(t, err)
	_, err = f.sessions.Login(token(t, "alice"))
	require.NoError(t, err)

	res, err := e.Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	notes, err = remote.ListNotes(ctx)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestEngine_RestoredSessionDoesNotMigrate(t *testing.T) {
	f := newFixture(t, true, func(store *kv.MemoryStore) {
		repo := local.NewRepository(local.Config{Store: store})
		_, err := repo.CreateNote(context.Background(), core.NoteInput{ID: "old"})
		require.NoError(t, err)
		require.NoError(t, store.Set(session.KeyToken, token(t, "bob")))
	})
	e := f.engine

	assert.True(t, f.sessions.Current().Authenticated())
	assert.Equal(t, router.TargetCloud, e.Router().Target())
	assert.Empty(t, e.Service().ListNotes(), "store reflects the cloud")

	st := e.State().(platform.EngineState)
	assert.False(t, st.Migrated)

	_, ok, err := f.kv.Get(migrate.KeyCompleted)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_AuthenticatedOfflineIsUnsynced(t *testing.T) {
	f := newFixture(t, false, func(store *kv.MemoryStore) {
		require.NoError(t, store.Set(session.KeyToken, token(t, "carol")))
	})
	e := f.engine

	assert.Equal(t, router.TargetLocal, e.Router().Target())
	assert.Equal(t, core.SyncStatusUnsynced, syncStatus(e))
}

func TestEngine_GoingOnlineReloadsFromCloud(t *testing.T) {
	f := newFixture(t, false, func(store *kv.MemoryStore) {
		require.NoError(t, store.Set(session.KeyToken, token(t, "dave")))
	})
	e := f.engine
	ctx := context.Background()

	_, err := cloudAs(t, f.url, "dave").CreateNote(ctx, core.NoteInput{ID: "remote", Title: "from another device"})
	require.NoError(t, err)
	assert.Empty(t, e.Service().ListNotes())

	f.online.Set(true)

	require.Eventually(t, func() bool {
		_, ok := e.Store().Note("remote")
		return ok && syncStatus(e) == core.SyncStatusSynced
	}, 3*time.Second, 10*time.Millisecond)
}

func TestEngine_QueuedWritesReachCloud(t *testing.T) {
	f := newFixture(t, true, func(store *kv.MemoryStore) {
		require.NoError(t, store.Set(session.KeyToken, token(t, "erin")))
	})
	e := f.engine
	ctx := context.Background()
	remote := cloudAs(t, f.url, "erin")

	_, err := e.Service().CreateNote(ctx, core.NoteInput{ID: "n1", Title: "draft"})
	require.NoError(t, err)

	_, err = e.Service().EditNote("n1", core.NotePatch{Content: ptr("typed quickly")})
	require.NoError(t, err)
	require.NoError(t, e.SaveDraft(ctx, "n1"))
	require.NoError(t, e.Snapshot("n1"))
	require.NoError(t, e.Enqueue(queue.CreateFolder(core.FolderInput{ID: "f1", Name: "Queued"})))

	require.NoError(t, e.Flush(ctx))
	require.Eventually(t, func() bool { return e.Queue().Depth() == 0 }, 3*time.Second, 10*time.Millisecond)

	notes, err := remote.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "typed quickly", notes[0].Content)

	versions, err := remote.ListVersions(ctx, "n1")
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	folders, err := remote.ListFolders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "Queued", folders[0].Name)

	assert.ErrorIs(t, e.SaveDraft(ctx, "ghost"), core.ErrNotFound)
}

func TestEngine_TogglePinRoundTrip(t *testing.T) {
	f := newFixture(t, true, func(store *kv.MemoryStore) {
		require.NoError(t, store.Set(session.KeyToken, token(t, "frank")))
	})
	e := f.engine
	ctx := context.Background()

	_, err := e.Service().CreateNote(ctx, core.NoteInput{ID: "a", Title: "a"})
	require.NoError(t, err)
	_, err = e.Service().CreateNote(ctx, core.NoteInput{ID: "b", Title: "b"})
	require.NoError(t, err)

	pinned, err := e.Service().TogglePin(ctx, "a")
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
	assert.Equal(t, "a", e.Service().ListNotes()[0].ID, "pinned notes come first")

	require.NoError(t, e.Sync(ctx))
	n, ok := e.Store().Note("a")
	require.True(t, ok)
	assert.True(t, n.IsPinned, "cloud agrees after reload")
}

func TestEngine_WithoutCloud(t *testing.T) {
	e, err := platform.New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))
	defer e.Stop()

	assert.ErrorIs(t, e.Enqueue(queue.DeleteNote("x")), platform.ErrNoCloud)
	assert.ErrorIs(t, e.Snapshot("x"), platform.ErrNoCloud)
	_, err = e.Migrate(ctx)
	assert.ErrorIs(t, err, platform.ErrNoCloud)
	assert.NoError(t, e.Flush(ctx))

	_, ok := e.Versions()
	assert.False(t, ok)
	assert.Error(t, e.Start(ctx), "second start is rejected")
}

func TestEngine_EmbeddedMode(t *testing.T) {
	e, err := platform.New(platform.WithMode(router.ModeEmbedded), platform.WithDataDir(t.TempDir()))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))
	defer e.Stop()

	assert.Equal(t, router.TargetEmbedded, e.Router().Target())

	_, err = e.Service().CreateFolder(ctx, core.FolderInput{ID: "f", Name: "F"})
	require.NoError(t, err)
	_, err = e.Service().CreateNote(ctx, core.NoteInput{ID: "n", Title: "embedded", FolderID: ptr("f")})
	require.NoError(t, err)
	require.NoError(t, e.Service().DeleteFolder(ctx, "f"))

	require.NoError(t, e.Sync(ctx))
	n, ok := e.Store().Note("n")
	require.True(t, ok)
	assert.Nil(t, n.FolderID)

	found, err := e.Search(ctx, "EMBED")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	st := e.State().(platform.EngineState)
	assert.Equal(t, "embedded", st.Router.Target)
	assert.Equal(t, 1, st.Service.Notes)
	assert.Nil(t, st.Queue)
	assert.NotEmpty(t, e.Diagram())
}

func TestEngine_ReloadsOnForeignDeviceWrites(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ours, err := platform.New(platform.WithDataDir(dir))
	require.NoError(t, err)
	require.NoError(t, ours.Start(ctx))
	defer ours.Stop()

	theirs, err := platform.New(platform.WithDataDir(dir))
	require.NoError(t, err)
	require.NoError(t, theirs.Start(ctx))
	defer theirs.Stop()

	_, err = theirs.Service().CreateNote(ctx, core.NoteInput{ID: "elsewhere"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, ok := ours.Store().Note("elsewhere")
		return ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestEngine_RejectsUnknownMode(t *testing.T) {
	_, err := platform.New(platform.WithMode("desktop"))
	assert.Error(t, err)
}

func TestEngine_DraftWhileSignedOutIsKept(t *testing.T) {
	f := newFixture(t, true, nil)
	e := f.engine
	ctx := context.Background()
	require.Equal(t, router.TargetLocal, e.Router().Target())

	_, err := e.Service().CreateNote(ctx, core.NoteInput{ID: "d1", Title: "v1"})
	require.NoError(t, err)
	_, err = e.Service().EditNote("d1", core.NotePatch{Title: ptr("v2 typed")})
	require.NoError(t, err)
	require.NoError(t, e.SaveDraft(ctx, "d1"))

	require.NoError(t, e.Flush(ctx))
	require.NoError(t, e.Sync(ctx))

	n, ok := e.Store().Note("d1")
	require.True(t, ok)
	assert.Equal(t, "v2 typed", n.Title, "draft survives a reload")

	st := e.Queue().State().(queue.State)
	assert.Zero(t, st.Depth)
	assert.Zero(t, st.Dropped, "nothing was sent to the cloud")

	stored, err := local.NewRepository(local.Config{Store: f.kv}).ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "v2 typed", stored[0].Title)
}

func TestEngine_EmbeddedModeNeverCallsCloud(t *testing.T) {
	url, hits := countingCloud(t)
	store := kv.NewMemoryStore()
	sessions := session.NewManager(session.WithStore(store))
	_, err := sessions.Login(token(t, "gina"))
	require.NoError(t, err)

	e, err := platform.New(
		platform.WithMode(router.ModeEmbedded),
		platform.WithKV(store),
		platform.WithCloudURL(url),
		platform.WithSession(sessions),
		platform.WithConnectivity(connectivity.NewManual(true)),
		platform.WithRetryBase(10*time.Millisecond),
	)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))
	defer e.Stop()

	assert.Equal(t, router.TargetEmbedded, e.Router().Target())
	assert.Nil(t, e.Queue())

	_, err = e.Service().CreateNote(ctx, core.NoteInput{ID: "n1", Title: "draft"})
	require.NoError(t, err)
	_, err = e.Service().EditNote("n1", core.NotePatch{Content: ptr("typed")})
	require.NoError(t, err)
	require.NoError(t, e.SaveDraft(ctx, "n1"))
	assert.ErrorIs(t, e.Snapshot("n1"), platform.ErrNoCloud)
	assert.ErrorIs(t, e.Enqueue(queue.DeleteNote("n1")), platform.ErrNoCloud)
	_, err = e.Migrate(ctx)
	assert.ErrorIs(t, err, platform.ErrNoCloud)
	require.NoError(t, e.Flush(ctx))

	require.NoError(t, e.Sync(ctx))
	n, ok := e.Store().Note("n1")
	require.True(t, ok)
	assert.Equal(t, "typed", n.Content, "draft persisted in the embedded database")

	assert.Zero(t, hits.Load(), "cloud must not be contacted in embedded mode")
}

func TestEngine_QuickSignOutSignInMigrates(t *testing.T) {
	f := newFixture(t, true, func(store *kv.MemoryStore) {
		repo := local.NewRepository(local.Config{Store: store})
		_, err := repo.CreateNote(context.Background(), core.NoteInput{ID: "kept", Title: "on device"})
		require.NoError(t, err)
		require.NoError(t, store.Set(session.KeyToken, token(t, "hank")))
	})
	e := f.engine
	require.False(t, e.State().(platform.EngineState).Migrated)

	// back to back, before the engine reacts to either
	require.NoError(t, f.sessions.Logout())
	_, err := f.sessions.Login(token(t, "hank"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return e.State().(platform.EngineState).Migrated
	}, 3*time.Second, 10*time.Millisecond)

	notes, err := cloudAs(t, f.url, "hank").ListNotes(context.Background())
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "kept", notes[0].ID)
}

func TestEngine_StopWaitsForWorkers(t *testing.T) {
	var logs syncBuffer
	online := connectivity.NewManual(false)
	e, err := platform.New(
		platform.WithMode(router.ModeEmbedded),
		platform.WithDataDir(t.TempDir()),
		platform.WithConnectivity(online),
		platform.WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))

	for i := range 40 {
		online.Set(i%2 == 0)
	}
	e.Stop()

	assert.NotContains(t, logs.String(), "database is closed")
	assert.False(t, e.State().(platform.EngineState).Running)
}
