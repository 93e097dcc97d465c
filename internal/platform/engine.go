// Package platform assembles the storage engine: device storage, the cloud
// and embedded adapters, the router, the optimistic service, the pending
// queue and the migration coordinator.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notesync/pkg/adapters/cloud"
	"github.com/aretw0/notesync/pkg/adapters/embedded"
	"github.com/aretw0/notesync/pkg/adapters/local"
	"github.com/aretw0/notesync/pkg/connectivity"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
	"github.com/aretw0/notesync/pkg/migrate"
	"github.com/aretw0/notesync/pkg/queue"
	"github.com/aretw0/notesync/pkg/router"
	"github.com/aretw0/notesync/pkg/session"
)

// File names used under the data directory.
const (
	DatabaseFile = "notesync.db"
	QueueFile    = "queue.pending"
)

// ErrNoCloud is returned by operations that need a configured cloud service.
var ErrNoCloud = errors.New("no cloud service configured")

// Engine wires the components together and reacts to session and
// connectivity changes.
type Engine struct {
	opts *options

	kv       kv.Store
	store    *core.Store
	local    *local.Repository
	cloud    *cloud.Repository
	embedded *embedded.Repository
	router   *router.Router
	service  *core.Service
	queue    *queue.Queue
	migrator *migrate.Migrator
	session  session.Provider
	signal   connectivity.Signal
	probe    *connectivity.Probe
	logger   *slog.Logger

	kick chan struct{}

	mu        sync.Mutex
	cancel    context.CancelFunc
	workers   sync.WaitGroup
	closeOnce sync.Once
}

// sessionTokens reads the bearer token of the current session on demand.
type sessionTokens struct {
	p session.Provider
}

func (s sessionTokens) Token() string {
	return s.p.Current().Token
}

// New creates an Engine. Nothing runs until Start.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if _, err := router.ParseMode(string(o.mode)); err != nil {
		return nil, err
	}

	e := &Engine{
		opts:   o,
		logger: o.logger,
		kick:   make(chan struct{}, 1),
		store:  core.NewStore(),
	}

	// 1. Device storage
	switch {
	case o.kv != nil:
		e.kv = o.kv
	case o.dataDir != "":
		fs, err := kv.NewFileStore(o.dataDir, o.logger)
		if err != nil {
			return nil, fmt.Errorf("open device storage: %w", err)
		}
		e.kv = fs
	default:
		e.kv = kv.NewMemoryStore()
	}

	// 2. Session and connectivity
	e.session = o.session
	if e.session == nil {
		e.session = session.NewManager(session.WithStore(e.kv), session.WithLogger(o.logger))
	}
	tokens := sessionTokens{p: e.session}

	// 3. Backends. Embedded mode never talks to the cloud.
	e.local = local.NewRepository(local.Config{Store: e.kv, Logger: o.logger})
	if o.cloudURL != "" && o.mode == router.ModeWeb {
		e.cloud = cloud.NewRepository(cloud.Config{
			BaseURL:    o.cloudURL,
			Tokens:     tokens,
			HTTPClient: o.httpClient,
			KV:         e.kv,
			Logger:     o.logger,
		})
	}
	if o.mode == router.ModeEmbedded {
		repo, err := e.openEmbedded()
		if err != nil {
			return nil, err
		}
		e.embedded = repo
	}

	e.signal = o.connectivity
	if e.signal == nil {
		if e.cloud != nil {
			e.probe = connectivity.NewProbe(o.cloudURL, tokens,
				connectivity.WithProbeLogger(o.logger),
				connectivity.OnRemoteChange(e.requestSync),
			)
			e.signal = e.probe
		} else {
			e.signal = connectivity.NewManual(false)
		}
	}

	// 4. Router and service
	cfg := router.Config{
		Mode:          o.mode,
		Local:         e.local,
		Authenticated: func() bool { return e.session.Current().Authenticated() },
		Online:        e.signal.Online,
		Logger:        o.logger,
		Registerer:    o.registerer,
	}
	if e.cloud != nil {
		cfg.Cloud = e.cloud
	}
	if e.embedded != nil {
		cfg.Embedded = e.embedded
	}
	r, err := router.New(cfg, router.WithStore(e.store))
	if err != nil {
		e.close()
		return nil, err
	}
	e.router = r
	e.service = core.NewService(r, e.store, core.WithServiceLogger(o.logger))

	// 5. Remote writes and migration
	if e.cloud != nil {
		if err := e.buildRemote(); err != nil {
			e.close()
			return nil, err
		}
	}

	return e, nil
}

func (e *Engine) openEmbedded() (*embedded.Repository, error) {
	o := e.opts
	if o.bridge != nil {
		return embedded.NewRepository(embedded.Config{Bridge: o.bridge, KV: e.kv, Logger: o.logger}), nil
	}
	path := o.dbPath
	if path == "" {
		path = ":memory:"
		if o.dataDir != "" {
			path = filepath.Join(o.dataDir, DatabaseFile)
		}
	}
	return embedded.OpenSQLite(path, e.kv, o.logger)
}

func (e *Engine) buildRemote() error {
	o := e.opts
	qopts := []queue.Option{
		queue.WithLogger(o.logger),
		queue.WithRegisterer(o.registerer),
	}
	path := o.queuePath
	if path == "" && o.dataDir != "" {
		path = filepath.Join(o.dataDir, QueueFile)
	}
	if path != "" {
		qopts = append(qopts, queue.WithPersistence(path))
	}
	if o.retryBase > 0 {
		qopts = append(qopts, queue.WithRetry(o.retryBase, queue.DefaultCap, queue.DefaultMaxAttempts))
	}
	q, err := queue.New(e.cloud, qopts...)
	if err != nil {
		return err
	}
	e.queue = q

	m, err := migrate.New(e.local, e.cloud, e.kv,
		migrate.WithLogger(o.logger),
		migrate.WithRegisterer(o.registerer),
	)
	if err != nil {
		return err
	}
	e.migrator = m
	return nil
}

// Start initializes the backends, loads the store and starts the
// background workers. It returns once the store is loaded.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	if err := e.router.Initialize(ctx); err != nil {
		e.Stop()
		return fmt.Errorf("initialize backends: %w", err)
	}

	// subscribe before the first observation so no change is missed
	sessions := e.session.Watch(ctx)
	online := e.signal.Watch(ctx)
	if e.migrator != nil {
		e.migrator.Observe(e.session.Current().Authenticated())
	}

	if err := e.Sync(ctx); err != nil {
		e.logger.Warn("initial sync failed", "error", err)
	}

	if e.queue != nil {
		e.queue.Start(ctx)
	}
	if e.probe != nil {
		e.spawn(ctx, "probe", e.probe.Run)
	}
	e.spawn(ctx, "session", func(ctx context.Context) error {
		e.watchSession(ctx, sessions)
		return nil
	})
	e.spawn(ctx, "connectivity", func(ctx context.Context) error {
		e.watchConnectivity(online)
		return nil
	})
	e.spawn(ctx, "sync", e.syncLoop)
	if events, err := e.local.Watch(ctx); err == nil {
		e.spawn(ctx, "device", func(ctx context.Context) error {
			e.watchDevice(events)
			return nil
		})
	}

	e.logger.Info("engine started", "mode", e.opts.mode, "target", e.router.Target())
	return nil
}

// Stop cancels the background workers, waits for them to return and
// releases the embedded database.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.workers.Wait()
	e.close()
}

func (e *Engine) close() {
	if e.embedded == nil {
		return
	}
	e.closeOnce.Do(func() {
		if err := e.embedded.Close(); err != nil {
			e.logger.Warn("failed to close embedded database", "error", err)
		}
	})
}

// spawn runs fn under lifecycle.Go and tracks it so Stop can wait for it.
func (e *Engine) spawn(ctx context.Context, name string, fn func(context.Context) error) {
	e.workers.Add(1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer e.workers.Done()
		return fn(ctx)
	}, lifecycle.WithErrorHandler(e.workerStopped(name)))
}

func (e *Engine) watchSession(ctx context.Context, changes <-chan session.Session) {
	for s := range changes {
		if e.migrator != nil && e.migrator.Observe(s.Authenticated()) {
			if res, err := e.migrator.Run(ctx); err != nil {
				e.logger.Error("migration failed", "user", s.UserID, "error", err)
			} else if !res.Skipped {
				e.logger.Info("local data migrated", "user", s.UserID, "notes", res.Notes, "folders", res.Folders)
			}
		}
		e.requestSync()
	}
}

func (e *Engine) workerStopped(name string) func(error) {
	return func(err error) {
		e.logger.Error("engine worker stopped", "worker", name, "error", err)
	}
}

func (e *Engine) watchConnectivity(changes <-chan bool) {
	for online := range changes {
		e.logger.Debug("connectivity changed", "online", online)
		if online {
			e.requestSync()
		}
	}
}

// watchDevice reloads when another process writes notes or folders to
// device storage while it is the routed backend. Settings are skipped since
// every sync writes them.
func (e *Engine) watchDevice(events <-chan core.Event) {
	for ev := range events {
		if ev.ID == local.KeySettings || e.router.Target() != router.TargetLocal {
			continue
		}
		e.logger.Debug("device storage changed elsewhere", "event", ev.String())
		e.requestSync()
	}
}

func (e *Engine) syncLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.kick:
			if err := e.Sync(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn("sync failed", "error", err)
			}
		}
	}
}

// requestSync schedules a Sync on the background worker. Requests made while
// one is pending collapse into it.
func (e *Engine) requestSync() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Sync reloads the store from the backend currently routed to and records
// the outcome in the settings' sync status.
func (e *Engine) Sync(ctx context.Context) error {
	e.setSyncStatus(ctx, core.SyncStatusSyncing)
	fallbacks := e.router.Fallbacks()
	if err := e.service.Load(ctx); err != nil {
		e.setSyncStatus(ctx, core.SyncStatusUnsynced)
		return fmt.Errorf("sync: %w", err)
	}
	status := core.SyncStatusSynced
	if e.opts.mode == router.ModeWeb && e.session.Current().Authenticated() &&
		(e.router.Target() == router.TargetLocal || e.router.Fallbacks() != fallbacks) {
		status = core.SyncStatusUnsynced
	}
	e.setSyncStatus(ctx, status)
	return nil
}

func (e *Engine) setSyncStatus(ctx context.Context, status core.SyncStatus) {
	if _, err := e.service.UpdateSettings(ctx, core.SettingsPatch{SyncStatus: &status}); err != nil {
		e.logger.Warn("failed to record sync status", "status", status, "error", err)
	}
}

// Enqueue hands a remote write to the pending queue.
func (e *Engine) Enqueue(op queue.Op) error {
	if e.queue == nil {
		return ErrNoCloud
	}
	e.queue.Enqueue(op)
	return nil
}

// SaveDraft persists the in-store title, content and folder of a note edited
// through the service's EditNote. While routed to the cloud the update joins
// the pending queue; on any other backend it is written through the router
// before returning.
func (e *Engine) SaveDraft(ctx context.Context, id string) error {
	if e.queue == nil || e.router.Target() != router.TargetCloud {
		return e.service.FlushNote(ctx, id)
	}
	patch, ok := e.service.DraftPatch(id)
	if !ok {
		return core.NotFound("save draft", id)
	}
	e.queue.Enqueue(queue.UpdateNote(id, patch))
	return nil
}

// Snapshot queues a version snapshot of a note.
func (e *Engine) Snapshot(id string) error {
	if e.queue == nil {
		return ErrNoCloud
	}
	e.queue.Enqueue(queue.Snapshot(id))
	return nil
}

// Migrate runs the local to cloud copy now.
func (e *Engine) Migrate(ctx context.Context) (migrate.Result, error) {
	if e.migrator == nil {
		return migrate.Result{}, ErrNoCloud
	}
	return e.migrator.Run(ctx)
}

// ResetMigration clears the completion flag so the next Migrate copies
// again.
func (e *Engine) ResetMigration() error {
	if e.migrator == nil {
		return ErrNoCloud
	}
	return e.migrator.Reset()
}

// Flush executes the pending remote writes until none remain.
func (e *Engine) Flush(ctx context.Context) error {
	if e.queue == nil {
		return nil
	}
	return e.queue.Flush(ctx)
}

// Versions returns the version history API when the routed backend keeps
// one.
func (e *Engine) Versions() (core.Versioned, bool) {
	return e.router.Versioned()
}

// Search returns the notes matching query on the routed backend.
func (e *Engine) Search(ctx context.Context, query string) ([]core.Note, error) {
	return e.router.SearchNotes(ctx, query)
}

// Service returns the optimistic mutation controller.
func (e *Engine) Service() *core.Service { return e.service }

// Store returns the entity store.
func (e *Engine) Store() *core.Store { return e.store }

// Router returns the storage router.
func (e *Engine) Router() *router.Router { return e.router }

// Queue returns the pending queue, nil without a cloud service or in
// embedded mode.
func (e *Engine) Queue() *queue.Queue { return e.queue }

// Session returns the session provider.
func (e *Engine) Session() session.Provider { return e.session }

// Connectivity returns the online signal.
func (e *Engine) Connectivity() connectivity.Signal { return e.signal }

// KV returns the device key-value store.
func (e *Engine) KV() kv.Store { return e.kv }
