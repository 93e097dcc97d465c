package queue

import "github.com/aretw0/introspection"

// State exposes internal state for observability.
type State struct {
	Depth      int   `json:"depth"`
	Processing bool  `json:"processing"`
	Dropped    int64 `json:"dropped"`
	Persistent bool  `json:"persistent"`
}

// State implements introspection.Introspectable.
func (q *Queue) State() any {
	return State{
		Depth:      q.Depth(),
		Processing: q.Processing(),
		Dropped:    q.dropped.Load(),
		Persistent: q.path != "",
	}
}

// ComponentType implements introspection.Component.
func (q *Queue) ComponentType() string {
	return "queue"
}

var _ introspection.Introspectable = (*Queue)(nil)
var _ introspection.Component = (*Queue)(nil)
