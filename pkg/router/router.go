// Package router implements core.Backend by choosing, on every call, which
// concrete backend serves it.
//
// The choice is recomputed from the session and connectivity state at call
// time; nothing is cached. A failed cloud call is served by device storage
// instead, trading consistency for availability.
package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/notesync/internal/metrics"
	"github.com/aretw0/notesync/pkg/adapters/local"
	"github.com/aretw0/notesync/pkg/core"
)

// Config holds the backends and the state sources the router decides on.
type Config struct {
	Mode     Mode
	Local    core.Backend
	Cloud    core.Backend
	Embedded core.Backend
	// Authenticated and Online are sampled on every call. Nil means false.
	Authenticated func() bool
	Online        func() bool
	Logger        *slog.Logger
	Registerer    prometheus.Registerer
}

// Router implements core.Backend.
type Router struct {
	mode          Mode
	local         core.Backend
	cloud         core.Backend
	embedded      core.Backend
	authenticated func() bool
	online        func() bool
	store         *core.Store
	logger        *slog.Logger
	metrics       *metrics.Router

	last      atomic.Int32
	fallbacks atomic.Int64
}

// Option configures a Router.
type Option func(*Router)

// WithStore attaches the entity store so folder deletion also unfiles the
// notes it holds.
func WithStore(store *core.Store) Option {
	return func(r *Router) {
		r.store = store
	}
}

// New creates a router.
func New(config Config, opts ...Option) (*Router, error) {
	if config.Mode == "" {
		config.Mode = ModeWeb
	}
	if config.Local == nil {
		return nil, errors.New("router: local backend is required")
	}
	if config.Mode == ModeEmbedded && config.Embedded == nil {
		return nil, errors.New("router: embedded mode needs an embedded backend")
	}
	never := func() bool { return false }
	if config.Authenticated == nil {
		config.Authenticated = never
	}
	if config.Online == nil {
		config.Online = never
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Router{
		mode:          config.Mode,
		local:         config.Local,
		cloud:         config.Cloud,
		embedded:      config.Embedded,
		authenticated: config.Authenticated,
		online:        config.Online,
		logger:        config.Logger,
		metrics:       metrics.NewRouter(config.Registerer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Target returns where a call made now would be routed.
func (r *Router) Target() Target {
	t := Decide(r.mode, r.authenticated(), r.online())
	if t == TargetCloud && r.cloud == nil {
		return TargetLocal
	}
	return t
}

// Mode returns the configured mode.
func (r *Router) Mode() Mode {
	return r.mode
}

// Fallbacks returns how many cloud calls were served locally after failing.
func (r *Router) Fallbacks() int64 {
	return r.fallbacks.Load()
}

// Backend returns the concrete backend behind t.
func (r *Router) Backend(t Target) core.Backend {
	switch t {
	case TargetCloud:
		return r.cloud
	case TargetEmbedded:
		return r.embedded
	default:
		return r.local
	}
}

// route runs fn against the current target, retrying once against local
// storage when the cloud call fails.
func route[T any](r *Router, op string, fn func(core.Backend) (T, error)) (T, error) {
	t := r.Target()
	r.last.Store(int32(t))
	r.metrics.Calls.WithLabelValues(t.String()).Inc()

	v, err := fn(r.Backend(t))
	if err == nil || t != TargetCloud {
		return v, err
	}

	r.fallbacks.Add(1)
	r.metrics.Fallbacks.Inc()
	r.logger.Warn("cloud call failed, serving locally", "op", op, "error", err)
	return fn(r.local)
}

func routeErr(r *Router, op string, fn func(core.Backend) error) error {
	_, err := route(r, op, func(b core.Backend) (struct{}, error) {
		return struct{}{}, fn(b)
	})
	return err
}

// Initialize initializes every configured backend.
func (r *Router) Initialize(ctx context.Context) error {
	for _, b := range []core.Backend{r.local, r.cloud, r.embedded} {
		if b == nil {
			continue
		}
		if err := b.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) ListNotes(ctx context.Context) ([]core.Note, error) {
	return route(r, "list notes", func(b core.Backend) ([]core.Note, error) {
		return b.ListNotes(ctx)
	})
}

func (r *Router) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	return route(r, "create note", func(b core.Backend) (core.Note, error) {
		return b.CreateNote(ctx, in)
	})
}

func (r *Router) UpdateNote(ctx context.Context, id string, patch core.NotePatch) (core.Note, error) {
	return route(r, "update note", func(b core.Backend) (core.Note, error) {
		return b.UpdateNote(ctx, id, patch)
	})
}

func (r *Router) DeleteNote(ctx context.Context, id string) error {
	return routeErr(r, "delete note", func(b core.Backend) error {
		return b.DeleteNote(ctx, id)
	})
}

func (r *Router) TogglePin(ctx context.Context, id string) (core.Note, error) {
	return route(r, "toggle pin", func(b core.Backend) (core.Note, error) {
		return b.TogglePin(ctx, id)
	})
}

func (r *Router) ListFolders(ctx context.Context) ([]core.Folder, error) {
	return route(r, "list folders", func(b core.Backend) ([]core.Folder, error) {
		return b.ListFolders(ctx)
	})
}

func (r *Router) CreateFolder(ctx context.Context, in core.FolderInput) (core.Folder, error) {
	return route(r, "create folder", func(b core.Backend) (core.Folder, error) {
		return b.CreateFolder(ctx, in)
	})
}

func (r *Router) UpdateFolder(ctx context.Context, id string, patch core.FolderPatch) (core.Folder, error) {
	return route(r, "update folder", func(b core.Backend) (core.Folder, error) {
		return b.UpdateFolder(ctx, id, patch)
	})
}

// DeleteFolder deletes the folder and unfiles its notes in the attached
// store.
func (r *Router) DeleteFolder(ctx context.Context, id string) error {
	err := routeErr(r, "delete folder", func(b core.Backend) error {
		return b.DeleteFolder(ctx, id)
	})
	if err != nil {
		return err
	}
	if r.store != nil {
		r.store.ClearFolder(id)
	}
	return nil
}

func (r *Router) GetSettings(ctx context.Context) (core.Settings, error) {
	return route(r, "get settings", func(b core.Backend) (core.Settings, error) {
		return b.GetSettings(ctx)
	})
}

// UpdateSettings writes to the target and mirrors the change to local
// storage. A failed mirror write is logged, not returned.
func (r *Router) UpdateSettings(ctx context.Context, patch core.SettingsPatch) (core.Settings, error) {
	var served core.Backend
	settings, err := route(r, "update settings", func(b core.Backend) (core.Settings, error) {
		served = b
		return b.UpdateSettings(ctx, patch)
	})
	if err != nil {
		return core.Settings{}, err
	}
	if served != r.local {
		if _, mirrorErr := r.local.UpdateSettings(ctx, patch); mirrorErr != nil {
			r.logger.Warn("failed to mirror settings locally", "error", mirrorErr)
		}
	}
	return settings, nil
}

// SearchNotes searches the target when it can, otherwise filters its notes.
func (r *Router) SearchNotes(ctx context.Context, query string) ([]core.Note, error) {
	return route(r, "search notes", func(b core.Backend) ([]core.Note, error) {
		if s, ok := b.(core.Searcher); ok {
			return s.SearchNotes(ctx, query)
		}
		notes, err := b.ListNotes(ctx)
		if err != nil {
			return nil, err
		}
		return local.FilterNotes(notes, query), nil
	})
}

// Versioned returns the version capability of the current target, if any.
func (r *Router) Versioned() (core.Versioned, bool) {
	v, ok := r.Backend(r.Target()).(core.Versioned)
	return v, ok
}

var _ core.Backend = (*Router)(nil)
var _ core.Searcher = (*Router)(nil)
