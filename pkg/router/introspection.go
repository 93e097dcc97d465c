package router

import (
	"github.com/aretw0/introspection"
)

// State exposes internal state for observability.
type State struct {
	Mode       Mode   `json:"mode"`
	Target     string `json:"target"`
	LastTarget string `json:"last_target"`
	Fallbacks  int64  `json:"fallbacks"`
}

// State implements introspection.Introspectable.
func (r *Router) State() any {
	return State{
		Mode:       r.mode,
		Target:     r.Target().String(),
		LastTarget: Target(r.last.Load()).String(),
		Fallbacks:  r.fallbacks.Load(),
	}
}

// ComponentType implements introspection.Component.
func (r *Router) ComponentType() string {
	return "router"
}

var _ introspection.Introspectable = (*Router)(nil)
var _ introspection.Component = (*Router)(nil)
