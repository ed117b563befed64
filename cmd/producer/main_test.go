package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/guido-cesarano/taskqueue/pkg/broker"
	"github.com/guido-cesarano/taskqueue/pkg/producer"
	"github.com/guido-cesarano/taskqueue/pkg/results"
	"github.com/redis/go-redis/v9"
)

func setupTestRouter(t *testing.T, apiKey string) *http.ServeMux {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	b := broker.NewRedisBrokerFromClient(rdb)
	store := results.New(rdb)
	app := producer.New(b)
	return setupRouter(app, b, store, apiKey)
}

func TestAuthMiddleware(t *testing.T) {
	mux := setupTestRouter(t, "secret-key")

	tests := []struct {
		name           string
		headerKey      string
		headerValue    string
		expectedStatus int
	}{
		{"No API Key", "", "", http.StatusUnauthorized},
		{"Wrong API Key", "X-API-Key", "wrong-key", http.StatusUnauthorized},
		{"Correct API Key", "X-API-Key", "secret-key", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/enqueue", nil)
			if tt.headerKey != "" {
				req.Header.Set(tt.headerKey, tt.headerValue)
			}

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	mux := setupTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/enqueue", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code == http.StatusUnauthorized {
		t.Error("expected auth to be disabled, got 401")
	}
}

func TestEnqueueAndStats(t *testing.T) {
	mux := setupTestRouter(t, "")

	body := `{"task":"add","args":[1,2]}`
	req := httptest.NewRequest(http.MethodPost, "/enqueue", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	statsReq := httptest.NewRequest(http.MethodGet, "/stats", nil)
	statsW := httptest.NewRecorder()
	mux.ServeHTTP(statsW, statsReq)
	if statsW.Code != http.StatusOK {
		t.Fatalf("expected 200 from /stats, got %d", statsW.Code)
	}
}
