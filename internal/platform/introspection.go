package platform

import (
	"fmt"
	"strconv"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/queue"
	"github.com/aretw0/notesync/pkg/router"
)

// EngineState exposes internal state for observability.
type EngineState struct {
	Running       bool              `json:"running"`
	Authenticated bool              `json:"authenticated"`
	Online        bool              `json:"online"`
	Migrated      bool              `json:"migrated"`
	Service       core.ServiceState `json:"service"`
	Router        router.State      `json:"router"`
	Queue         *queue.State      `json:"queue,omitempty"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	e.mu.Lock()
	running := e.cancel != nil
	e.mu.Unlock()

	s := EngineState{
		Running:       running,
		Authenticated: e.session.Current().Authenticated(),
		Online:        e.signal.Online(),
		Service:       e.service.State().(core.ServiceState),
		Router:        e.router.State().(router.State),
	}
	if e.queue != nil {
		qs := e.queue.State().(queue.State)
		s.Queue = &qs
	}
	if e.migrator != nil {
		done, err := e.migrator.Completed()
		s.Migrated = err == nil && done
	}
	return s
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "engine"
}

var _ introspection.Introspectable = (*Engine)(nil)
var _ introspection.Component = (*Engine)(nil)

type engineNode struct {
	Name     string
	Status   string
	Metadata map[string]string
	Children []engineNode
}

// Diagram renders the engine topology as a Mermaid diagram.
func (e *Engine) Diagram() string {
	st := e.State().(EngineState)

	// Status must match classes in introspection.DefaultStyles()
	status := func(active bool) string {
		if active {
			return "running"
		}
		return "suspended"
	}

	backends := []engineNode{{
		Name:     "Local",
		Status:   status(st.Router.Target == router.TargetLocal.String()),
		Metadata: map[string]string{"type": "kv"},
	}}
	if e.cloud != nil {
		backends = append(backends, engineNode{
			Name:     "Cloud",
			Status:   status(st.Router.Target == router.TargetCloud.String()),
			Metadata: map[string]string{"type": "rpc", "online": strconv.FormatBool(st.Online)},
		})
	}
	if e.embedded != nil {
		backends = append(backends, engineNode{
			Name:     "Embedded",
			Status:   status(st.Router.Target == router.TargetEmbedded.String()),
			Metadata: map[string]string{"type": "sqlite"},
		})
	}

	children := []engineNode{
		{
			Name:   "Store",
			Status: "running",
			Metadata: map[string]string{
				"notes":   strconv.Itoa(st.Service.Notes),
				"folders": strconv.Itoa(st.Service.Folders),
				"sync":    string(st.Service.SyncStatus),
			},
		},
		{
			Name:   "Router",
			Status: "running",
			Metadata: map[string]string{
				"mode":      string(st.Router.Mode),
				"fallbacks": fmt.Sprintf("%d", st.Router.Fallbacks),
			},
			Children: backends,
		},
	}
	if st.Queue != nil {
		children = append(children, engineNode{
			Name:   "Queue",
			Status: status(st.Queue.Processing),
			Metadata: map[string]string{
				"depth":   strconv.Itoa(st.Queue.Depth),
				"dropped": fmt.Sprintf("%d", st.Queue.Dropped),
			},
		})
	}

	root := engineNode{
		Name:     "Engine",
		Status:   status(st.Running),
		Metadata: map[string]string{"authenticated": strconv.FormatBool(st.Authenticated)},
		Children: children,
	}

	config := introspection.DefaultDiagramConfig()
	config.SecondaryID = "engine"
	config.SecondaryLabel = "Storage Topology"
	return introspection.TreeDiagram(root, config)
}
