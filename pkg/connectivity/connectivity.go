// Package connectivity reports whether the cloud service is reachable.
package connectivity

import (
	"context"
	"sync"

	"github.com/aretw0/notesync/internal/notify"
)

// Signal reports reachability and its changes.
type Signal interface {
	Online() bool
	Watch(ctx context.Context) <-chan bool
}

// Manual is a Signal set explicitly by the host application.
type Manual struct {
	mu      sync.RWMutex
	online  bool
	changes notify.Latest[bool]
}

// NewManual creates a Manual signal in the given state.
func NewManual(online bool) *Manual {
	return &Manual{online: online}
}

func (m *Manual) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set changes the state. Watchers are notified only on transitions.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()
	if changed {
		m.changes.Publish(online)
	}
}

func (m *Manual) Watch(ctx context.Context) <-chan bool {
	return m.changes.Subscribe(ctx)
}

var _ Signal = (*Manual)(nil)
