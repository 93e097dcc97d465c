// Package migrate copies device-local notes and folders to the cloud the
// first time a principal signs in.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/aretw0/notesync/internal/metrics"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
)

// KeyCompleted marks a finished migration in the key-value store.
const KeyCompleted = "migration.completed"

// Source is where entities are copied from.
type Source interface {
	ListNotes(ctx context.Context) ([]core.Note, error)
	ListFolders(ctx context.Context) ([]core.Folder, error)
}

// Destination is where entities are copied to. Creates must preserve ids.
type Destination interface {
	CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error)
	CreateFolder(ctx context.Context, in core.FolderInput) (core.Folder, error)
}

// Result summarizes a migration run.
type Result struct {
	Skipped bool
	Notes   int
	Folders int
}

// Migrator runs the one-shot local to cloud copy.
type Migrator struct {
	source  Source
	dest    Destination
	flags   kv.Store
	logger  *slog.Logger
	metrics *metrics.Migration
	group   singleflight.Group

	mu       sync.Mutex
	observed bool
	lastAuth bool
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRegisterer registers the migration metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Migrator) {
		m.metrics = metrics.NewMigration(reg)
	}
}

// New creates a Migrator. flags holds the completion flag.
func New(source Source, dest Destination, flags kv.Store, opts ...Option) (*Migrator, error) {
	if source == nil || dest == nil || flags == nil {
		return nil, errors.New("migrate: source, destination and flag store are required")
	}
	m := &Migrator{
		source: source,
		dest:   dest,
		flags:  flags,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.NewMigration(nil)
	}
	return m, nil
}

// Completed reports whether a migration already finished.
func (m *Migrator) Completed() (bool, error) {
	v, ok, err := m.flags.Get(KeyCompleted)
	if err != nil {
		return false, core.Wrap(core.ErrStorage, "read migration flag", err)
	}
	return ok && v == "true", nil
}

// Run copies folders, then notes, preserving ids, and sets the completion
// flag. It is a no-op once the flag is set. Concurrent calls share one run.
// A failure leaves the flag unset so a later run starts over; creates are
// upserts remotely, so repeating them does not duplicate.
func (m *Migrator) Run(ctx context.Context) (Result, error) {
	v, err, _ := m.group.Do("migrate", func() (any, error) {
		return m.run(ctx)
	})
	if err != nil {
		m.metrics.Runs.WithLabelValues("error").Inc()
		return Result{}, err
	}
	res := v.(Result)
	if res.Skipped {
		m.metrics.Runs.WithLabelValues("skipped").Inc()
	} else {
		m.metrics.Runs.WithLabelValues("ok").Inc()
	}
	return res, nil
}

func (m *Migrator) run(ctx context.Context) (Result, error) {
	done, err := m.Completed()
	if err != nil {
		return Result{}, err
	}
	if done {
		return Result{Skipped: true}, nil
	}

	folders, err := m.source.ListFolders(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("migrate: list local folders: %w", err)
	}
	notes, err := m.source.ListNotes(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("migrate: list local notes: %w", err)
	}

	var res Result
	for _, f := range folders {
		if _, err := m.dest.CreateFolder(ctx, core.FolderInput{ID: f.ID, Name: f.Name}); err != nil {
			return res, fmt.Errorf("migrate: folder %s: %w", f.ID, err)
		}
		res.Folders++
		m.metrics.Migrated.WithLabelValues("folder").Inc()
	}
	for _, n := range notes {
		if _, err := m.dest.CreateNote(ctx, core.InputOf(n)); err != nil {
			return res, fmt.Errorf("migrate: note %s: %w", n.ID, err)
		}
		res.Notes++
		m.metrics.Migrated.WithLabelValues("note").Inc()
	}

	if err := m.flags.Set(KeyCompleted, "true"); err != nil {
		return res, core.Wrap(core.ErrStorage, "write migration flag", err)
	}
	m.logger.Info("migration complete", "notes", res.Notes, "folders", res.Folders)
	return res, nil
}

// Observe feeds the current authentication state. It reports whether this
// observation is a sign-in, a false to true change seen after the first
// observation. A session that is already present at the first observation
// does not count.
func (m *Migrator) Observe(authenticated bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	transition := m.observed && !m.lastAuth && authenticated
	m.observed = true
	m.lastAuth = authenticated
	return transition
}

// Reset clears the completion flag so the next run copies again.
func (m *Migrator) Reset() error {
	if err := m.flags.Delete(KeyCompleted); err != nil {
		return core.Wrap(core.ErrStorage, "clear migration flag", err)
	}
	return nil
}
