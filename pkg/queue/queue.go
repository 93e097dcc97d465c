// Package queue holds remote writes that must eventually reach the cloud.
//
// Operations run one at a time in enqueue order. Each gets up to five
// attempts with capped exponential backoff; failures that cannot succeed on
// a retry (auth, not found, validation) end it immediately. An operation
// that fails for good is logged and dropped so the queue keeps moving.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-retry"

	"github.com/aretw0/notesync/internal/metrics"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
)

const (
	DefaultBase        = time.Second
	DefaultCap         = 30 * time.Second
	DefaultMaxAttempts = 5
)

// Queue is an unbounded FIFO of remote writes with a single worker.
type Queue struct {
	remote Remote
	logger *slog.Logger

	mu    sync.Mutex
	items []Op
	path  string

	// run serializes execution between the worker and Flush
	run        sync.Mutex
	wake       chan struct{}
	processing atomic.Bool
	dropped    atomic.Int64

	backoff     func() retry.Backoff
	maxAttempts uint64
	onDrop      func(Op, error)
	registerer  prometheus.Registerer
	metrics     *metrics.Queue
	now         func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithRegisterer registers the queue metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(q *Queue) {
		q.registerer = reg
	}
}

// WithPersistence keeps pending operations in a JSON file at path so they
// survive restarts.
func WithPersistence(path string) Option {
	return func(q *Queue) {
		q.path = strings.TrimSpace(path)
	}
}

// WithRetry sets the backoff base, its cap and the total attempts per op.
func WithRetry(base, limit time.Duration, attempts uint64) Option {
	return func(q *Queue) {
		if attempts == 0 {
			attempts = 1
		}
		q.maxAttempts = attempts
		q.backoff = func() retry.Backoff {
			return retry.WithCappedDuration(limit, retry.NewExponential(base))
		}
	}
}

// WithBackoff replaces the delay policy. The attempt limit still applies.
func WithBackoff(fn func() retry.Backoff) Option {
	return func(q *Queue) {
		if fn != nil {
			q.backoff = fn
		}
	}
}

// OnDrop registers a hook called for every operation given up on.
func OnDrop(fn func(Op, error)) Option {
	return func(q *Queue) {
		q.onDrop = fn
	}
}

// New creates a queue executing against remote. With persistence, pending
// operations from an earlier run are loaded.
func New(remote Remote, opts ...Option) (*Queue, error) {
	if remote == nil {
		return nil, errors.New("queue: remote is required")
	}
	q := &Queue{
		remote:      remote,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		wake:        make(chan struct{}, 1),
		maxAttempts: DefaultMaxAttempts,
		onDrop:      func(Op, error) {},
		now:         time.Now,
	}
	WithRetry(DefaultBase, DefaultCap, DefaultMaxAttempts)(q)
	for _, opt := range opts {
		opt(q)
	}
	q.metrics = metrics.NewQueue(q.registerer)
	if err := q.load(); err != nil {
		return nil, core.Wrap(core.ErrStorage, "load queue", err)
	}
	q.metrics.Depth.Set(float64(len(q.items)))
	return q, nil
}

// Enqueue appends op. It never fails; a persistence error is logged and the
// operation is kept in memory.
func (q *Queue) Enqueue(op Op) {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = q.now()
	}

	q.mu.Lock()
	q.items = append(q.items, op)
	depth := len(q.items)
	q.saveLocked()
	q.mu.Unlock()

	q.metrics.Enqueued.Inc()
	q.metrics.Depth.Set(float64(depth))
	q.logger.Debug("operation enqueued", "kind", op.Kind, "id", op.ID, "depth", depth)

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Depth returns the number of pending operations, including one in flight.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a copy of the pending operations in order.
func (q *Queue) Pending() []Op {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Op(nil), q.items...)
}

// Processing reports whether an operation is being executed.
func (q *Queue) Processing() bool {
	return q.processing.Load()
}

// Start runs the worker until ctx is done.
func (q *Queue) Start(ctx context.Context) {
	lifecycle.Go(ctx, q.work, lifecycle.WithErrorHandler(func(err error) {
		q.logger.Error("queue worker stopped", "error", err)
	}))
}

func (q *Queue) work(ctx context.Context) error {
	for {
		ran, err := q.processNext(ctx)
		if err != nil {
			return nil
		}
		if ran {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-q.wake:
		}
	}
}

// Flush executes pending operations until the queue is empty or ctx is
// done.
func (q *Queue) Flush(ctx context.Context) error {
	for {
		ran, err := q.processNext(ctx)
		if err != nil {
			return err
		}
		if !ran {
			return nil
		}
	}
}

// processNext executes the head of the queue. It reports whether there was
// one; an error means ctx ended and the operation stays queued.
func (q *Queue) processNext(ctx context.Context) (bool, error) {
	q.run.Lock()
	defer q.run.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return false, nil
	}
	op := q.items[0]
	q.mu.Unlock()

	q.processing.Store(true)
	err := q.attempt(ctx, op)
	q.processing.Store(false)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}

	q.mu.Lock()
	if len(q.items) > 0 && q.items[0].ID == op.ID {
		q.items = q.items[1:]
	}
	depth := len(q.items)
	q.saveLocked()
	q.mu.Unlock()
	q.metrics.Depth.Set(float64(depth))

	if err != nil {
		q.dropped.Add(1)
		q.metrics.Dropped.Inc()
		q.logger.Error("dropping operation", "kind", op.Kind, "id", op.ID, "note", op.NoteID, "folder", op.FolderID, "error", err)
		q.onDrop(op, err)
	}
	return true, nil
}

func (q *Queue) attempt(ctx context.Context, op Op) error {
	b := retry.WithMaxRetries(q.maxAttempts-1, q.backoff())
	n := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		n++
		err := execute(ctx, q.remote, op)
		switch {
		case err == nil:
			q.metrics.Attempts.WithLabelValues("ok").Inc()
			return nil
		case core.Retryable(err):
			q.metrics.Attempts.WithLabelValues("retry").Inc()
			q.logger.Warn("operation failed, will retry", "kind", op.Kind, "id", op.ID, "attempt", n, "error", err)
			return retry.RetryableError(err)
		default:
			q.metrics.Attempts.WithLabelValues("fatal").Inc()
			return err
		}
	})
}

type snapshot struct {
	Items []Op `json:"items"`
}

func (q *Queue) load() error {
	if q.path == "" {
		return nil
	}
	data, err := os.ReadFile(q.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	q.items = append([]Op(nil), s.Items...)
	if len(q.items) > 0 {
		q.logger.Info("restored pending operations", "count", len(q.items), "path", q.path)
	}
	return nil
}

// saveLocked writes the pending operations. Callers hold q.mu.
func (q *Queue) saveLocked() {
	if q.path == "" {
		return
	}
	data, err := json.Marshal(snapshot{Items: q.items})
	if err == nil {
		err = kv.WriteFile(q.path, data, 0o644)
	}
	if err != nil {
		q.logger.Error("failed to persist queue", "path", q.path, "error", err)
	}
}
