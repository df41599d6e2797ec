package engine

import (
	"sync"
	"sync/atomic"

	"github.com/procflow/procflow/model"
)

// NodeExecutor performs the work of one node type. Executors run
// synchronously under the instance lock and must return promptly;
// long-running work belongs in a collaborator that reports completion
// through a later event.
type NodeExecutor interface {
	Execute(instance *model.FlowInstance, node *model.FlowNode, input map[string]any) (map[string]any, error)
}

// EventHandler reacts to one event type.
type EventHandler interface {
	Handle(event *model.FlowEvent) (bool, error)
}

// ExecutorRegistry is a copy-on-write capability table. Registration
// happens at process start and rarely after; lookups are on the hot
// path of every node execution and read a plain map without locking.
type ExecutorRegistry struct {
	mu    sync.Mutex
	table atomic.Value
}

func NewExecutorRegistry() *ExecutorRegistry {
	r := &ExecutorRegistry{}
	r.table.Store(map[model.NodeType]NodeExecutor{})
	return r
}

// Register upserts; the last registration for a type wins.
func (r *ExecutorRegistry) Register(nodeType model.NodeType, executor NodeExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.table.Load().(map[model.NodeType]NodeExecutor)
	next := make(map[model.NodeType]NodeExecutor, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[nodeType] = executor
	r.table.Store(next)
}

func (r *ExecutorRegistry) Lookup(nodeType model.NodeType) (NodeExecutor, bool) {
	executor, ok := r.table.Load().(map[model.NodeType]NodeExecutor)[nodeType]
	return executor, ok
}

// HandlerRegistry follows the same copy-on-write discipline for event
// handlers.
type HandlerRegistry struct {
	mu    sync.Mutex
	table atomic.Value
}

func NewHandlerRegistry() *HandlerRegistry {
	r := &HandlerRegistry{}
	r.table.Store(map[string]EventHandler{})
	return r
}

func (r *HandlerRegistry) Register(eventType string, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.table.Load().(map[string]EventHandler)
	next := make(map[string]EventHandler, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[eventType] = handler
	r.table.Store(next)
}

func (r *HandlerRegistry) Lookup(eventType string) (EventHandler, bool) {
	handler, ok := r.table.Load().(map[string]EventHandler)[eventType]
	return handler, ok
}
