package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guido-cesarano/taskqueue/pkg/delivery"
	"github.com/guido-cesarano/taskqueue/pkg/message"
	"github.com/redis/go-redis/v9"
)

// moveByScore atomically ranges a sorted set by score, removes the
// matching members, and pushes their raw payloads onto a destination
// list. It backs both PollSchedule and RecoverExpired, which differ only
// in which sorted set and score cutoff they use.
var moveByScore = redis.NewScript(`
	local src = KEYS[1]
	local dst = KEYS[2]
	local cutoff = tonumber(ARGV[1])

	local moved = redis.call('ZRANGEBYSCORE', src, '-inf', cutoff)
	if #moved > 0 then
		redis.call('ZREMRANGEBYSCORE', src, '-inf', cutoff)
		for _, raw in ipairs(moved) do
			redis.call('RPUSH', dst, raw)
		end
	end
	return #moved
`)

// RedisBroker is the Broker implementation backed by a Redis-compatible
// store (or miniredis in tests).
type RedisBroker struct {
	rdb *redis.Client
}

// NewRedisBroker connects to the Redis instance at addr ("host:port").
func NewRedisBroker(addr string) *RedisBroker {
	return &RedisBroker{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewRedisBrokerFromClient wraps an already-configured *redis.Client,
// useful when the caller needs TLS, auth, or a non-default DB.
func NewRedisBrokerFromClient(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func (b *RedisBroker) Send(ctx context.Context, msg *message.Message) error {
	raw, err := msg.Serialize()
	if err != nil {
		return err
	}
	return b.rdb.RPush(ctx, Ready, raw).Err()
}

func (b *RedisBroker) Schedule(ctx context.Context, msg *message.Message) error {
	eta, ok := msg.ETAAt()
	if !ok {
		return nil
	}
	raw, err := msg.Serialize()
	if err != nil {
		return err
	}
	return b.rdb.ZAdd(ctx, Scheduled, redis.Z{
		Score:  float64(eta.UnixNano()) / 1e9,
		Member: raw,
	}).Err()
}

func (b *RedisBroker) Reserve(ctx context.Context, timeout int) (*delivery.Delivery, error) {
	// Send appends with RPush, so the oldest message sits at the head of
	// the list; BLPop (not BRPop) is what keeps READY FIFO.
	raw, err := b.rdb.BLPop(ctx, time.Duration(timeout)*time.Second, Ready).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("broker: reserve: %w", err)
	}
	// BLPop on a single key returns [key, value].
	rawMsg := raw[1]

	now := float64(time.Now().UnixNano()) / 1e9
	if err := b.rdb.ZAdd(ctx, Reserved, redis.Z{Score: now, Member: rawMsg}).Err(); err != nil {
		return nil, fmt.Errorf("broker: reserve: record reservation: %w", err)
	}

	msg, err := message.Deserialize(rawMsg)
	if err != nil {
		return nil, fmt.Errorf("broker: reserve: %w", err)
	}
	return delivery.New(rawMsg, msg), nil
}

func (b *RedisBroker) Ack(ctx context.Context, d *delivery.Delivery) error {
	return b.rdb.ZRem(ctx, Reserved, d.Raw).Err()
}

func (b *RedisBroker) Dead(ctx context.Context, d *delivery.Delivery) error {
	pipe := b.rdb.TxPipeline()
	pipe.ZRem(ctx, Reserved, d.Raw)
	pipe.RPush(ctx, Dead, d.Raw)
	_, err := pipe.Exec(ctx)
	return err
}

func (b *RedisBroker) RecoverExpired(ctx context.Context, visibilityTimeout int) (int, error) {
	cutoff := float64(time.Now().Add(-time.Duration(visibilityTimeout)*time.Second).UnixNano()) / 1e9
	n, err := moveByScore.Run(ctx, b.rdb, []string{Reserved, Ready}, cutoff).Int()
	if err != nil {
		return 0, fmt.Errorf("broker: recover_expired: %w", err)
	}
	return n, nil
}

func (b *RedisBroker) PollSchedule(ctx context.Context) (int, error) {
	cutoff := float64(time.Now().UnixNano()) / 1e9
	n, err := moveByScore.Run(ctx, b.rdb, []string{Scheduled, Ready}, cutoff).Int()
	if err != nil {
		return 0, fmt.Errorf("broker: poll_schedule: %w", err)
	}
	return n, nil
}

func (b *RedisBroker) SendHeartbeat(ctx context.Context, name string) error {
	now := float64(time.Now().UnixNano()) / 1e9
	return b.rdb.ZAdd(ctx, Workers, redis.Z{Score: now, Member: name}).Err()
}

func (b *RedisBroker) ListAliveWorkers(ctx context.Context, timeout int) ([]string, error) {
	now := time.Now()
	from := float64(now.Add(-time.Duration(timeout)*time.Second).UnixNano()) / 1e9
	to := float64(now.UnixNano()) / 1e9
	names, err := b.rdb.ZRangeByScore(ctx, Workers, &redis.ZRangeBy{
		Min: fmt.Sprintf("%f", from),
		Max: fmt.Sprintf("%f", to),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("broker: list_alive_workers: %w", err)
	}
	return names, nil
}

// GetQueueDepths is an operator-facing extra, outside the five core
// families: it reports the current size of every logical collection.
func (b *RedisBroker) GetQueueDepths(ctx context.Context) (map[string]int64, error) {
	depths := make(map[string]int64, 5)

	for _, key := range []string{Ready, Dead} {
		n, err := b.rdb.LLen(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		depths[key] = n
	}
	for _, key := range []string{Reserved, Scheduled, Workers} {
		n, err := b.rdb.ZCard(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		depths[key] = n
	}
	return depths, nil
}

// InspectQueue returns up to limit entries of a collection, decoded as
// Messages, without removing them. Reserved and Scheduled are read as
// sorted sets and any other key as a list; entries that fail to decode
// are skipped. Intended for operator dashboards, not the worker's hot
// path.
func (b *RedisBroker) InspectQueue(ctx context.Context, key string, limit int64) ([]*message.Message, error) {
	var raws []string
	var err error

	switch key {
	case Reserved, Scheduled:
		raws, err = b.rdb.ZRange(ctx, key, 0, limit-1).Result()
	default:
		raws, err = b.rdb.LRange(ctx, key, 0, limit-1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("broker: inspect_queue: %w", err)
	}

	msgs := make([]*message.Message, 0, len(raws))
	for _, raw := range raws {
		msg, err := message.Deserialize(raw)
		if err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
