package connectivity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ws "github.com/coder/websocket"
	"github.com/sethvargo/go-retry"
)

// TokenSource supplies the bearer token used to open the presence socket.
type TokenSource interface {
	Token() string
}

// Probe is online while it holds a presence websocket to the service. It
// reconnects with capped exponential backoff while Run is active.
type Probe struct {
	*Manual

	url     string
	tokens  TokenSource
	logger  *slog.Logger
	base    time.Duration
	max     time.Duration
	changed func()
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(base, max time.Duration) ProbeOption {
	return func(p *Probe) {
		p.base = base
		p.max = max
	}
}

// WithProbeLogger sets the logger.
func WithProbeLogger(logger *slog.Logger) ProbeOption {
	return func(p *Probe) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// OnRemoteChange registers fn to run whenever the service reports a change
// to the principal's records.
func OnRemoteChange(fn func()) ProbeOption {
	return func(p *Probe) {
		p.changed = fn
	}
}

// NewProbe creates a probe for the service at baseURL (http or https).
func NewProbe(baseURL string, tokens TokenSource, opts ...ProbeOption) *Probe {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	p := &Probe{
		Manual:  NewManual(false),
		url:     u + "/ws",
		tokens:  tokens,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		base:    time.Second,
		max:     30 * time.Second,
		changed: func() {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run keeps the presence socket open until ctx is done.
func (p *Probe) Run(ctx context.Context) error {
	backoff := p.backoff()
	for {
		connected := p.hold(ctx)
		p.Set(false)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = p.backoff()
		}
		delay, _ := backoff.Next()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (p *Probe) backoff() retry.Backoff {
	return retry.WithCappedDuration(p.max, retry.NewExponential(p.base))
}

// hold dials and blocks while the connection lives. It reports whether a
// connection was established.
func (p *Probe) hold(ctx context.Context) bool {
	token := ""
	if p.tokens != nil {
		token = p.tokens.Token()
	}
	if token == "" {
		return false
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := ws.Dial(ctx, p.url, &ws.DialOptions{HTTPHeader: header})
	if err != nil {
		p.logger.Debug("presence dial failed", "url", p.url, "error", err)
		return false
	}
	defer conn.CloseNow()

	p.Set(true)
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			p.logger.Debug("presence connection lost", "error", err)
			return true
		}
		p.changed()
	}
}
