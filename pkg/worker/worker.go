// Package worker hosts the prefetch buffer, dispatches messages to
// registered handlers, and runs the auxiliary heartbeat, schedule-poll,
// and reaper loops described in spec §4.4/§5.
package worker

import (
	"context"
	"time"

	"github.com/guido-cesarano/taskqueue/pkg/broker"
	"github.com/guido-cesarano/taskqueue/pkg/delivery"
	"github.com/guido-cesarano/taskqueue/pkg/metrics"
	"github.com/guido-cesarano/taskqueue/pkg/ratelimit"
	"github.com/guido-cesarano/taskqueue/pkg/reaper"
	"github.com/guido-cesarano/taskqueue/pkg/registry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ResultStore persists the outcome of a successful handler invocation.
// pkg/results.Store satisfies this; it's declared locally so this
// package doesn't need to import a concrete Redis type.
type ResultStore interface {
	Set(ctx context.Context, messageID string, result interface{}) error
}

// Worker consumes messages from a Broker, dispatches them to a Registry
// of handlers, and keeps the broker informed of its liveness.
type Worker struct {
	cfg      Config
	broker   broker.Broker
	registry *registry.Registry
	reaper   *reaper.Reaper
	limiter  *ratelimit.Limiter // optional; nil disables rate limiting
	metrics  *metrics.Metrics   // optional; nil disables instrumentation
	results  ResultStore        // optional; nil disables result storage
	log      zerolog.Logger

	inflight []*delivery.Delivery
}

// Option configures optional Worker collaborators.
type Option func(*Worker)

// WithRateLimiter attaches a per-task-type throttle to the dispatch path.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(w *Worker) { w.limiter = l }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithResultStore records a completion marker for every successfully
// processed message, keyed by message ID.
func WithResultStore(rs ResultStore) Option {
	return func(w *Worker) { w.results = rs }
}

// New constructs a Worker. reg must be fully populated before Start runs.
func New(cfg Config, b broker.Broker, reg *registry.Registry, log zerolog.Logger, opts ...Option) *Worker {
	cfg = cfg.WithDefaults()
	w := &Worker{
		cfg:      cfg,
		broker:   b,
		registry: reg,
		reaper:   reaper.New(b, int(cfg.VisibilityTimeout.Seconds()), log),
		log:      log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start is blocking. It spawns the three auxiliary loops and enters the
// main consumption loop. It returns once ctx is cancelled and the main
// loop has finished draining.
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info().Str("worker", w.cfg.Name).Msg("worker starting")

	g := new(errgroup.Group)
	g.Go(func() error { w.heartbeatLoop(ctx); return nil })
	g.Go(func() error { w.schedulePollLoop(ctx); return nil })
	g.Go(func() error { w.reaperLoop(ctx); return nil })

	w.mainLoop(ctx)

	if err := g.Wait(); err != nil {
		return err
	}
	w.log.Info().Str("worker", w.cfg.Name).Msg("worker shutdown complete")
	return nil
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		if err := w.broker.SendHeartbeat(ctx, w.cfg.Name); err != nil {
			w.log.Error().Err(err).Msg("heartbeat failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) schedulePollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SchedulePollInterval)
	defer ticker.Stop()
	for {
		if moved, err := w.broker.PollSchedule(ctx); err != nil {
			w.log.Error().Err(err).Msg("schedule poll failed")
		} else if moved > 0 {
			w.log.Info().Int("count", moved).Msg("promoted scheduled messages to ready")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ReaperInterval)
	defer ticker.Stop()
	for {
		if err := w.reaper.Reap(ctx); err != nil {
			w.log.Error().Err(err).Msg("reaper tick failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// mainLoop tops up the prefetch buffer and processes one Delivery at a
// time until ctx is cancelled, then drains.
func (w *Worker) mainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		default:
		}

		w.fill(ctx)

		if len(w.inflight) == 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		d := w.inflight[0]
		w.inflight = w.inflight[1:]
		w.processDelivery(ctx, d)
	}
}

// fill tops up the prefetch buffer by reserving up to cfg.Prefetch
// Deliveries, stopping early if the broker has nothing ready.
func (w *Worker) fill(ctx context.Context) {
	for len(w.inflight) < w.cfg.Prefetch {
		d, err := w.broker.Reserve(ctx, int(w.cfg.ReserveTimeout.Seconds()))
		if err != nil {
			w.log.Error().Err(err).Msg("reserve failed")
			return
		}
		if d == nil {
			return
		}
		w.inflight = append(w.inflight, d)
	}
}

// drain leaves any buffered-but-unprocessed Deliveries unacked. They stay
// recorded in RESERVED and are recovered by a reaper (this worker's or
// another's) once the visibility timeout elapses, rather than being
// acked and silently dropped.
func (w *Worker) drain() {
	if len(w.inflight) > 0 {
		w.log.Info().Int("count", len(w.inflight)).Msg("draining: leaving prefetched messages for the reaper")
	}
	w.inflight = nil
}

func (w *Worker) processDelivery(ctx context.Context, d *delivery.Delivery) {
	msg := d.Message
	w.log.Info().Str("worker", w.cfg.Name).Str("task", msg.Task).Str("id", msg.ID).Msg("dispatching")

	reg, ok := w.registry.Lookup(msg.Task)
	if !ok {
		if err := w.broker.Dead(ctx, d); err != nil {
			w.log.Error().Err(err).Msg("dead-letter of unknown task failed")
		}
		w.observe("dead", msg.Task, 0)
		return
	}

	if w.limiter != nil {
		allowed, err := w.limiter.Allow(ctx, msg.Task, 10, 20)
		if err != nil {
			w.log.Error().Err(err).Msg("rate limit check failed, processing anyway")
		} else if !allowed {
			msg.SetETA(time.Now().Add(time.Second))
			if err := w.broker.Schedule(ctx, msg); err != nil {
				w.log.Error().Err(err).Msg("re-schedule after throttle failed")
			}
			if err := w.broker.Ack(ctx, d); err != nil {
				w.log.Error().Err(err).Msg("ack after throttle failed")
			}
			return
		}
	}

	start := time.Now()
	w.observeQueueLatency(msg.Task, msg.TS, start)

	err := reg.Handler(msg.Args, msg.Kwargs)
	w.observe("", msg.Task, time.Since(start).Seconds())

	if err == nil {
		if err := w.broker.Ack(ctx, d); err != nil {
			w.log.Error().Err(err).Msg("ack failed")
		}
		if w.results != nil {
			result := map[string]string{"status": "completed", "completed_at": time.Now().Format(time.RFC3339)}
			if err := w.results.Set(ctx, msg.ID, result); err != nil {
				w.log.Error().Err(err).Msg("result store failed")
			}
		}
		w.observe("success", msg.Task, -1)
		return
	}

	w.log.Error().Err(err).Str("id", msg.ID).Msg("handler failed")
	msg.Retries++
	if msg.Retries > reg.MaxRetries {
		if err := w.broker.Dead(ctx, d); err != nil {
			w.log.Error().Err(err).Msg("dead-letter failed")
		}
		w.observe("failed", msg.Task, -1)
		return
	}

	msg.SetETA(time.Now().Add(reg.DefaultRetryDelay))
	if err := w.broker.Schedule(ctx, msg); err != nil {
		w.log.Error().Err(err).Msg("retry schedule failed")
	}
	if err := w.broker.Ack(ctx, d); err != nil {
		w.log.Error().Err(err).Msg("ack of original reservation failed")
	}
	w.observe("retry", msg.Task, -1)
}

func (w *Worker) observe(status, task string, durationSeconds float64) {
	if w.metrics == nil {
		return
	}
	if status != "" {
		w.metrics.Processed.WithLabelValues(status, task).Inc()
	}
	if durationSeconds >= 0 {
		w.metrics.TaskDuration.WithLabelValues(task).Observe(durationSeconds)
	}
}

func (w *Worker) observeQueueLatency(task string, createdAtSeconds float64, start time.Time) {
	if w.metrics == nil {
		return
	}
	sec := int64(createdAtSeconds)
	nsec := int64((createdAtSeconds - float64(sec)) * 1e9)
	createdAt := time.Unix(sec, nsec)
	w.metrics.QueueLatency.WithLabelValues(task).Observe(start.Sub(createdAt).Seconds())
}
