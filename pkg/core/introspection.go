package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	Notes      int        `json:"notes"`
	Folders    int        `json:"folders"`
	SyncStatus SyncStatus `json:"sync_status"`
	Backend    string     `json:"backend"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	notes, folders := s.store.Len()

	backend := "unknown"
	if comp, ok := s.backend.(introspection.Component); ok {
		backend = comp.ComponentType()
	}

	return ServiceState{
		Notes:      notes,
		Folders:    folders,
		SyncStatus: s.store.Settings().SyncStatus,
		Backend:    backend,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
