// Package producer is the caller-facing sugar for putting messages onto a
// Broker: an App that owns the broker connection and a Task type that
// knows how to turn countdown/eta arguments into a scheduled or
// immediate Send, mirroring the original implementation's Celery/Task
// pairing.
package producer

import (
	"context"
	"time"

	"github.com/guido-cesarano/taskqueue/pkg/broker"
	"github.com/guido-cesarano/taskqueue/pkg/message"
)

// App pairs a Broker with the set of Task names a caller has declared,
// purely for bookkeeping; the broker has no notion of "registered"
// producer-side tasks, only of messages.
type App struct {
	Broker broker.Broker
	tasks  map[string]*Task
}

// New returns an App backed by b.
func New(b broker.Broker) *App {
	return &App{Broker: b, tasks: make(map[string]*Task)}
}

// Task declares a named unit of work a producer can enqueue. It carries
// no function body: unlike the worker side, the producer never executes
// the task, it only describes how failures downstream should be
// retried.
type Task struct {
	app               *App
	name              string
	maxRetries        int
	defaultRetryDelay time.Duration
}

// TaskOption configures a Task at registration time.
type TaskOption func(*Task)

// WithMaxRetries overrides the default of 3.
func WithMaxRetries(n int) TaskOption {
	return func(t *Task) { t.maxRetries = n }
}

// WithDefaultRetryDelay overrides the default of 5s.
func WithDefaultRetryDelay(d time.Duration) TaskOption {
	return func(t *Task) { t.defaultRetryDelay = d }
}

// RegisterTask declares name as a producer-visible task and returns a
// handle for enqueuing it. The retry policy recorded here is metadata
// only, useful to a caller wiring the matching worker-side
// registry.Registration; the producer doesn't enforce it.
func (a *App) RegisterTask(name string, opts ...TaskOption) *Task {
	t := &Task{app: a, name: name, maxRetries: 3, defaultRetryDelay: 5 * time.Second}
	for _, opt := range opts {
		opt(t)
	}
	a.tasks[name] = t
	return t
}

// Tasks returns the names of every task registered on this App so far.
func (a *App) Tasks() []string {
	names := make([]string, 0, len(a.tasks))
	for name := range a.tasks {
		names = append(names, name)
	}
	return names
}

// Delay enqueues an immediate invocation of t with the given positional
// and keyword arguments. It is ApplyAsync with no countdown or eta.
func (t *Task) Delay(ctx context.Context, args []interface{}, kwargs map[string]interface{}) (*message.Message, error) {
	return t.ApplyAsync(ctx, args, kwargs, Options{})
}

// Options controls the timing of a single ApplyAsync call. At most one
// of Countdown or ETA should be set; Countdown takes precedence.
type Options struct {
	// Countdown delays delivery by this duration from now.
	Countdown time.Duration
	// ETA delivers at this absolute time.
	ETA time.Time
}

// ApplyAsync builds a Message for t and sends it to the broker,
// scheduling it instead of sending immediately if opts names a
// countdown or an eta.
func (t *Task) ApplyAsync(ctx context.Context, args []interface{}, kwargs map[string]interface{}, opts Options) (*message.Message, error) {
	msg := message.New(t.name, args, kwargs)

	switch {
	case opts.Countdown > 0:
		msg.SetETA(time.Now().Add(opts.Countdown))
	case !opts.ETA.IsZero():
		msg.SetETA(opts.ETA)
	}

	if _, hasETA := msg.ETAAt(); hasETA {
		if err := t.app.Broker.Schedule(ctx, msg); err != nil {
			return nil, err
		}
		return msg, nil
	}

	if err := t.app.Broker.Send(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
