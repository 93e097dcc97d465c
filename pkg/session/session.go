// Package session tracks the signed-in principal.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aretw0/notesync/internal/notify"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/kv"
)

// KeyToken is where a persisted session token is kept.
const KeyToken = "session.token"

// Session identifies the current principal. The zero value is signed out.
type Session struct {
	UserID string
	Token  string
}

// Authenticated reports whether a principal is signed in.
func (s Session) Authenticated() bool {
	return s.UserID != "" && s.Token != ""
}

// Provider reports the current session and its changes.
type Provider interface {
	Current() Session
	Watch(ctx context.Context) <-chan Session
}

// Manager is a Provider driven by explicit Login and Logout calls.
type Manager struct {
	mu      sync.RWMutex
	current Session
	store   kv.Store
	logger  *slog.Logger
	changes notify.Every[Session]
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists the token so the session survives restarts.
func WithStore(store kv.Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager. With a store, a previously persisted
// session is restored silently: watchers are not notified of it.
func NewManager(opts ...Option) *Manager {
	m := &Manager{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(m)
	}
	if m.store != nil {
		if token, ok, err := m.store.Get(KeyToken); err != nil {
			m.logger.Warn("failed to read persisted session", "error", err)
		} else if ok {
			if s, err := parse(token); err == nil {
				m.current = s
			} else {
				m.logger.Warn("discarding persisted session", "error", err)
			}
		}
	}
	return m
}

// Login signs in with a bearer token. The principal is the token's "sub"
// claim; the signature is checked by the service, not here.
func (m *Manager) Login(token string) (Session, error) {
	s, err := parse(token)
	if err != nil {
		return Session{}, err
	}
	if m.store != nil {
		if err := m.store.Set(KeyToken, s.Token); err != nil {
			return Session{}, core.Wrap(core.ErrStorage, "persist session", err)
		}
	}
	m.set(s)
	m.logger.Info("signed in", "user", s.UserID)
	return s, nil
}

// Logout signs out.
func (m *Manager) Logout() error {
	if m.store != nil {
		if err := m.store.Delete(KeyToken); err != nil {
			return core.Wrap(core.ErrStorage, "forget session", err)
		}
	}
	m.set(Session{})
	m.logger.Info("signed out")
	return nil
}

func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Token returns the current bearer token, empty when signed out.
func (m *Manager) Token() string {
	return m.Current().Token
}

// Watch reports every session change until ctx is done.
func (m *Manager) Watch(ctx context.Context) <-chan Session {
	return m.changes.Subscribe(ctx)
}

func (m *Manager) set(s Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.changes.Publish(s)
}

func parse(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, core.Wrap(core.ErrAuth, "login", fmt.Errorf("empty token"))
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Session{}, core.Wrap(core.ErrAuth, "login", err)
	}
	if claims.Subject == "" {
		return Session{}, core.Wrap(core.ErrAuth, "login", fmt.Errorf("token has no subject"))
	}
	return Session{UserID: claims.Subject, Token: token}, nil
}

var _ Provider = (*Manager)(nil)
