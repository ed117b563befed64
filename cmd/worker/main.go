// Package main implements the taskqueue worker process.
//
// The worker reserves messages from a Broker, dispatches them to a
// Registry of handlers, and runs the auxiliary heartbeat, schedule-poll,
// and reaper loops alongside its main dispatch loop.
//
// Features:
//   - Prometheus metrics exposed on :8080/metrics (configurable)
//   - Per-registration retry delay with dead-lettering
//   - Per-task-type rate limiting via a Redis-backed token bucket
//   - Background recovery of abandoned reservations and due scheduled
//     messages
//
// Usage:
//
//	go run cmd/worker/main.go
//
// Connects to Redis at REDIS_ADDR (default 127.0.0.1:6379) and exposes
// metrics at METRICS_ADDR (default :8080).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guido-cesarano/taskqueue/pkg/broker"
	"github.com/guido-cesarano/taskqueue/pkg/config"
	"github.com/guido-cesarano/taskqueue/pkg/logger"
	"github.com/guido-cesarano/taskqueue/pkg/metrics"
	"github.com/guido-cesarano/taskqueue/pkg/ratelimit"
	"github.com/guido-cesarano/taskqueue/pkg/registry"
	"github.com/guido-cesarano/taskqueue/pkg/results"
	"github.com/guido-cesarano/taskqueue/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// main initializes the worker, starts the metrics server, and begins
// processing messages. It supports graceful shutdown via SIGINT/SIGTERM.
func main() {
	cfg := config.LoadWorker()
	log := logger.Named("worker")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	b := broker.NewRedisBrokerFromClient(rdb)
	resultStore := results.New(rdb)
	limiter := ratelimit.New(rdb)
	metricsBundle := metrics.New()

	reg := buildRegistry(resultStore, log)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	go collectQueueDepths(ctx, b, metricsBundle)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	w := worker.New(worker.Config{
		Name:                 cfg.Name,
		Prefetch:             cfg.Prefetch,
		HeartbeatInterval:    time.Duration(cfg.HeartbeatInterval) * time.Second,
		SchedulePollInterval: time.Duration(cfg.SchedulePollInterval) * time.Second,
		ReaperInterval:       time.Duration(cfg.ReaperInterval) * time.Second,
		VisibilityTimeout:    time.Duration(cfg.VisibilityTimeout) * time.Second,
	}, b, reg, log, worker.WithRateLimiter(limiter), worker.WithMetrics(metricsBundle), worker.WithResultStore(resultStore))

	if err := w.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker exited with error")
	}
	log.Info().Msg("worker stopped")
}

// collectQueueDepths periodically samples the broker's logical
// collections and publishes them as a gauge.
func collectQueueDepths(ctx context.Context, b *broker.RedisBroker, m *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depths, err := b.GetQueueDepths(ctx)
			if err != nil {
				continue
			}
			for queueName, depth := range depths {
				m.QueueDepth.WithLabelValues(queueName).Set(float64(depth))
			}
		}
	}
}

// buildRegistry declares the task types this worker knows how to
// handle. A real deployment would split this across files per domain;
// kept together here since the set is small.
func buildRegistry(store *results.Store, log zerolog.Logger) *registry.Registry {
	reg := registry.New()

	reg.MustRegister("add", func(args []interface{}, kwargs map[string]interface{}) error {
		if len(args) < 2 {
			return fmt.Errorf("add: expected 2 args, got %d", len(args))
		}
		x, xok := toFloat64(args[0])
		y, yok := toFloat64(args[1])
		if !xok || !yok {
			return fmt.Errorf("add: expected numeric args, got %v", args)
		}
		log.Info().Float64("x", x).Float64("y", y).Float64("result", x+y).Msg("add")
		return nil
	}, 3, 5*time.Second)

	reg.MustRegister("email", func(args []interface{}, kwargs map[string]interface{}) error {
		log.Info().Interface("args", args).Msg("sending email")
		time.Sleep(200 * time.Millisecond)
		return nil
	}, 3, 5*time.Second)

	reg.MustRegister("image_resize", func(args []interface{}, kwargs map[string]interface{}) error {
		log.Info().Interface("args", args).Msg("resizing image")
		time.Sleep(500 * time.Millisecond)
		return nil
	}, 3, 5*time.Second)

	return reg
}

// toFloat64 normalizes a JSON-decoded number (always float64) or a
// Go-literal int/float passed directly by a caller in the same process.
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
