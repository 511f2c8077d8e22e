package dispatch

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/procq/procq/internal/task"
)

// Processor performs the actual work for one task type. A call either
// returns a result value or fails with an error; it must never take
// down the worker that invoked it. The context carries the execution
// deadline; cooperative processors should observe ctx.Done().
type Processor interface {
	Process(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// Func adapts a plain function to the Processor interface.
type Func func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

// Process implements Processor.
func (f Func) Process(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return f(ctx, payload)
}

// Registry is the dispatch table. Registrations happen at wiring time,
// lookups from every worker; both are safe concurrently.
type Registry struct {
	mu    sync.RWMutex
	procs map[task.Type]Processor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[task.Type]Processor)}
}

// Register binds tt to p, replacing any previous binding.
func (r *Registry) Register(tt task.Type, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[tt] = p
}

// Lookup returns the processor for tt.
func (r *Registry) Lookup(tt task.Type) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[tt]
	return p, ok
}

// Has reports whether tt is registered.
func (r *Registry) Has(tt task.Type) bool {
	_, ok := r.Lookup(tt)
	return ok
}

// Types returns the registered task types in a stable order.
func (r *Registry) Types() []task.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]task.Type, 0, len(r.procs))
	for tt := range r.procs {
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
