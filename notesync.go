package notesync

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/notesync/internal/platform"
	"github.com/aretw0/notesync/pkg/adapters/embedded"
	"github.com/aretw0/notesync/pkg/connectivity"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
	"github.com/aretw0/notesync/pkg/router"
	"github.com/aretw0/notesync/pkg/session"
)

// --- Types ---

// Engine is the assembled storage engine.
type Engine = platform.Engine

// EngineState is the engine's introspection snapshot.
type EngineState = platform.EngineState

type (
	Note          = core.Note
	Folder        = core.Folder
	Settings      = core.Settings
	NoteInput     = core.NoteInput
	NotePatch     = core.NotePatch
	FolderInput   = core.FolderInput
	FolderPatch   = core.FolderPatch
	SettingsPatch = core.SettingsPatch
	NoteVersion   = core.Version
)

// Mode is the host environment the engine runs in.
type Mode = router.Mode

const (
	ModeWeb      = router.ModeWeb
	ModeEmbedded = router.ModeEmbedded
)

// ErrNoCloud is returned by operations that need a cloud service.
var ErrNoCloud = platform.ErrNoCloud

// --- Configuration ---

// Option defines a functional option for configuring the engine.
type Option = platform.Option

// WithMode selects the storage family.
func WithMode(mode Mode) Option {
	return platform.WithMode(mode)
}

// WithDataDir keeps device storage under dir.
func WithDataDir(dir string) Option {
	return platform.WithDataDir(dir)
}

// WithKV injects the device key-value store.
func WithKV(store kv.Store) Option {
	return platform.WithKV(store)
}

// WithCloudURL enables the cloud backend.
func WithCloudURL(url string) Option {
	return platform.WithCloudURL(url)
}

// WithHTTPClient sets the client used for remote procedure calls.
func WithHTTPClient(client *http.Client) Option {
	return platform.WithHTTPClient(client)
}

// WithSession injects the session provider.
func WithSession(p session.Provider) Option {
	return platform.WithSession(p)
}

// WithConnectivity injects the online signal.
func WithConnectivity(s connectivity.Signal) Option {
	return platform.WithConnectivity(s)
}

// WithBridge injects the embedded bridge.
func WithBridge(b embedded.Bridge) Option {
	return platform.WithBridge(b)
}

// WithDBPath overrides the embedded database location.
func WithDBPath(path string) Option {
	return platform.WithDBPath(path)
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithMetrics registers the engine's collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return platform.WithMetrics(reg)
}

// WithQueuePath persists pending remote writes to path.
func WithQueuePath(path string) Option {
	return platform.WithQueuePath(path)
}

// WithRetryBase sets the first retry delay of pending remote writes.
func WithRetryBase(d time.Duration) Option {
	return platform.WithRetryBase(d)
}

// --- Factory ---

// New creates an engine. Call Start to load it.
func New(opts ...Option) (*Engine, error) {
	return platform.New(opts...)
}

// FindWorkspace looks upwards from startDir for a workspace data directory.
func FindWorkspace(startDir string) (string, error) {
	return platform.FindWorkspace(startDir)
}
