// Package registry is the handler lookup a worker consults to dispatch a
// message. Spec §9 treats dynamic registration as a producer-side
// collaborator concern; the worker only needs this flat lookup,
// populated once before Worker.Start.
package registry

import (
	"fmt"
	"time"
)

// Handler processes a single message's positional and keyword arguments.
// It returns an error to signal a failed attempt; the worker, not the
// handler, owns retry bookkeeping.
type Handler func(args []interface{}, kwargs map[string]interface{}) error

// Registration pairs a handler with its retry policy.
type Registration struct {
	Handler           Handler
	MaxRetries        int
	DefaultRetryDelay time.Duration
}

// Registry maps task names to registrations.
type Registry struct {
	entries map[string]Registration
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

// Register adds or replaces the registration for taskName.
func (r *Registry) Register(taskName string, reg Registration) {
	r.entries[taskName] = reg
}

// MustRegister is Register with the handler and its retry policy passed
// as separate arguments instead of a Registration. It adds or replaces
// the entry and never panics.
func (r *Registry) MustRegister(taskName string, h Handler, maxRetries int, defaultRetryDelay time.Duration) {
	r.Register(taskName, Registration{
		Handler:           h,
		MaxRetries:        maxRetries,
		DefaultRetryDelay: defaultRetryDelay,
	})
}

// Lookup returns the registration for taskName, or false if unknown.
func (r *Registry) Lookup(taskName string) (Registration, bool) {
	reg, ok := r.entries[taskName]
	return reg, ok
}

// ErrUnknownTask is a descriptive sentinel for logging; the worker's
// dispatch path treats an unknown task as a dead-letter regardless of the
// exact error value.
func ErrUnknownTask(taskName string) error {
	return fmt.Errorf("registry: unknown task %q", taskName)
}
