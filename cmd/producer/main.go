// Package main implements the taskqueue producer HTTP API: a thin REST
// front end over pkg/producer and pkg/broker for enqueuing messages and
// inspecting queue state.
//
// API Endpoints:
//
//	POST /enqueue - Enqueues (or schedules) a message
//	GET  /result  - Fetches a stored result by message id
//	GET  /stats   - Reports the depth of every logical collection
//	GET  /tasks   - Lists messages sitting in a named collection
//	GET  /workers - Lists workers that have heartbeat recently
//
// Request format for /enqueue:
//
//	{
//	  "task": "email",
//	  "args": ["user@example.com"],
//	  "kwargs": {"subject": "Hello"},
//	  "countdown": 5
//	}
//
// Usage:
//
//	go run cmd/producer/main.go
//
// Connects to Redis at REDIS_ADDR and listens on LISTEN_ADDR.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/guido-cesarano/taskqueue/pkg/broker"
	"github.com/guido-cesarano/taskqueue/pkg/config"
	"github.com/guido-cesarano/taskqueue/pkg/logger"
	"github.com/guido-cesarano/taskqueue/pkg/producer"
	"github.com/guido-cesarano/taskqueue/pkg/results"
	"github.com/redis/go-redis/v9"
)

// authMiddleware wraps an http.HandlerFunc and enforces API key
// authentication. An empty requiredKey disables the check (dev mode).
func authMiddleware(next http.HandlerFunc, requiredKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requiredKey == "" {
			next(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != requiredKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// enableCORS wraps an http.HandlerFunc and adds permissive CORS headers
// suitable for a local operator dashboard.
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// setupRouter configures the HTTP handlers and returns the mux.
func setupRouter(app *producer.App, b *broker.RedisBroker, store *results.Store, apiKey string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/enqueue", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Task      string                 `json:"task"`
			Args      []interface{}          `json:"args"`
			Kwargs    map[string]interface{} `json:"kwargs"`
			Countdown int                    `json:"countdown"`
			ETA       *float64               `json:"eta"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Task == "" {
			http.Error(w, "task is required", http.StatusBadRequest)
			return
		}

		t := app.RegisterTask(req.Task)

		opts := producer.Options{}
		switch {
		case req.Countdown > 0:
			opts.Countdown = time.Duration(req.Countdown) * time.Second
		case req.ETA != nil:
			sec := int64(*req.ETA)
			nsec := int64((*req.ETA - float64(sec)) * 1e9)
			opts.ETA = time.Unix(sec, nsec)
		}

		msg, err := t.ApplyAsync(r.Context(), req.Args, req.Kwargs, opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, "Message enqueued: %s\n", msg.ID)
	}, apiKey)))

	mux.HandleFunc("/result", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing id", http.StatusBadRequest)
			return
		}

		result, err := store.Get(r.Context(), id)
		if err == redis.Nil {
			http.Error(w, "Result not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(result))
	}, apiKey)))

	mux.HandleFunc("/stats", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		depths, err := b.GetQueueDepths(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(depths)
	}, apiKey)))

	mux.HandleFunc("/tasks", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		queueName := r.URL.Query().Get("queue")
		if queueName == "" {
			http.Error(w, "Missing queue parameter", http.StatusBadRequest)
			return
		}

		msgs, err := b.InspectQueue(r.Context(), queueName, 50)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(msgs)
	}, apiKey)))

	mux.HandleFunc("/workers", enableCORS(authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		names, err := b.ListAliveWorkers(r.Context(), 30)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(names)
	}, apiKey)))

	return mux
}

func main() {
	cfg := config.LoadProducer()
	log := logger.Named("producer")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	b := broker.NewRedisBrokerFromClient(rdb)
	store := results.New(rdb)
	app := producer.New(b)

	if cfg.APIKey == "" {
		log.Warn().Msg("API_KEY not set, authentication disabled")
	} else {
		log.Info().Msg("API authentication enabled")
	}

	mux := setupRouter(app, b, store, cfg.APIKey)

	log.Info().Str("addr", cfg.ListenAddr).Msg("producer api listening")
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatal().Err(err).Msg("producer api failed")
	}
}
