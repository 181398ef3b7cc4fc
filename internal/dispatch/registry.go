// Package dispatch maps job names to handlers. Job names arrive as strings
// from the durable queue, so an unknown name is a deployment defect and fails
// the job permanently instead of burning retries.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"duewatch/internal/queue"
)

// HandlerFunc executes one job. The returned bytes are stored as the job
// result; a returned error hands retry policy back to the substrate.
type HandlerFunc func(ctx context.Context, payload []byte, h queue.Handle) ([]byte, error)

type UnknownHandlerError struct {
	Name string
}

func (e *UnknownHandlerError) Error() string {
	return fmt.Sprintf("no handler registered for job %q", e.Name)
}

func (e *UnknownHandlerError) Permanent() bool { return true }

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

func (r *Registry) Register(name string, fn HandlerFunc) {
	r.mu.Lock()
	r.handlers[name] = fn
	r.mu.Unlock()
}

// Names lists registered job names, for health reporting.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

func (r *Registry) Dispatch(ctx context.Context, job *queue.Job, h queue.Handle) ([]byte, error) {
	r.mu.RLock()
	fn, ok := r.handlers[job.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownHandlerError{Name: job.Name}
	}
	return fn(ctx, job.Payload, h)
}
