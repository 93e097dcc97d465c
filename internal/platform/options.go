package platform

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/notesync/pkg/adapters/embedded"
	"github.com/aretw0/notesync/pkg/connectivity"
	"github.com/aretw0/notesync/pkg/kv"
	"github.com/aretw0/notesync/pkg/router"
	"github.com/aretw0/notesync/pkg/session"
)

// options holds the internal configuration for an Engine.
type options struct {
	mode         router.Mode
	dataDir      string
	kv           kv.Store
	cloudURL     string
	httpClient   *http.Client
	session      session.Provider
	connectivity connectivity.Signal
	bridge       embedded.Bridge
	dbPath       string
	logger       *slog.Logger
	registerer   prometheus.Registerer
	queuePath    string
	retryBase    time.Duration
}

// Option defines a functional option for configuring an Engine.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		mode: router.ModeWeb,
	}
}

// WithMode selects the storage family: web (local and cloud) or embedded.
func WithMode(mode router.Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithDataDir keeps device storage (key-value records, the embedded
// database and the pending queue) under dir. Without it everything is held
// in memory.
func WithDataDir(dir string) Option {
	return func(o *options) {
		o.dataDir = dir
	}
}

// WithKV injects the device key-value store. It takes precedence over
// WithDataDir for the key-value records.
func WithKV(store kv.Store) Option {
	return func(o *options) {
		o.kv = store
	}
}

// WithCloudURL enables the cloud backend served at url.
func WithCloudURL(url string) Option {
	return func(o *options) {
		o.cloudURL = url
	}
}

// WithHTTPClient sets the client used for remote procedure calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithSession injects the session provider. By default the engine owns a
// session.Manager persisted in the key-value store.
func WithSession(p session.Provider) Option {
	return func(o *options) {
		o.session = p
	}
}

// WithConnectivity injects the online signal. By default the engine probes
// the cloud service when one is configured and is offline otherwise.
func WithConnectivity(s connectivity.Signal) Option {
	return func(o *options) {
		o.connectivity = s
	}
}

// WithBridge injects the embedded bridge instead of opening the SQLite
// database.
func WithBridge(b embedded.Bridge) Option {
	return func(o *options) {
		o.bridge = b
	}
}

// WithDBPath overrides the embedded database location.
func WithDBPath(path string) Option {
	return func(o *options) {
		o.dbPath = path
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics registers the engine's collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithQueuePath persists pending remote operations to path.
func WithQueuePath(path string) Option {
	return func(o *options) {
		o.queuePath = path
	}
}

// WithRetryBase sets the first retry delay of the pending queue.
func WithRetryBase(d time.Duration) Option {
	return func(o *options) {
		o.retryBase = d
	}
}
