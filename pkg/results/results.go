// Package results stores task execution results outside the core queue
// model. Spec.md notes result storage isn't part of the core; this is
// the operator-facing extra the teacher already built for it.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ttl = 24 * time.Hour

// Store persists and retrieves per-task results, keyed by message ID.
type Store struct {
	rdb *redis.Client
}

// New wraps an existing Redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func key(messageID string) string {
	return fmt.Sprintf("taskq:result:%s", messageID)
}

// Set stores result as JSON under messageID with a 24h TTL.
func (s *Store) Set(ctx context.Context, messageID string, result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("results: set: %w", err)
	}
	return s.rdb.Set(ctx, key(messageID), data, ttl).Err()
}

// Get returns the raw JSON result stored for messageID.
func (s *Store) Get(ctx context.Context, messageID string) (string, error) {
	return s.rdb.Get(ctx, key(messageID)).Result()
}
