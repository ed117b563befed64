// Package broker abstracts over the shared data store that moves messages
// through READY -> RESERVED -> DONE | SCHEDULED | DEAD. The one concrete
// implementation, RedisBroker, targets a Redis-compatible ordered-set +
// list store; the interface exists so the worker and reaper never depend
// on Redis directly.
package broker

import (
	"context"

	"github.com/guido-cesarano/taskqueue/pkg/delivery"
	"github.com/guido-cesarano/taskqueue/pkg/message"
)

// Broker is the five operation families described in spec §4.2: the
// enqueue path, the consume path, the recovery path, the scheduler path,
// and the liveness path.
type Broker interface {
	// Send appends the serialized message to the tail of READY. No
	// acknowledgement; duplicate sends enqueue duplicate messages.
	Send(ctx context.Context, msg *message.Message) error

	// Schedule inserts the serialized message into SCHEDULED keyed by its
	// ETA. A no-op if msg.ETA is absent.
	Schedule(ctx context.Context, msg *message.Message) error

	// Reserve blocks up to timeout for the head of READY. On success it
	// records the reservation in RESERVED and returns a Delivery; on
	// timeout it returns (nil, nil). RedisBroker does the pop and the
	// RESERVED insert as two separate commands, so they are not atomic.
	Reserve(ctx context.Context, timeout int) (*delivery.Delivery, error)

	// Ack removes delivery.Raw from RESERVED. A no-op if the entry is
	// already gone (e.g. the reaper recovered it first).
	Ack(ctx context.Context, d *delivery.Delivery) error

	// Dead removes delivery.Raw from RESERVED and appends it to DEAD.
	Dead(ctx context.Context, d *delivery.Delivery) error

	// RecoverExpired moves every RESERVED entry whose reservation time is
	// older than visibilityTimeout back to READY, returning the count
	// moved.
	RecoverExpired(ctx context.Context, visibilityTimeout int) (int, error)

	// PollSchedule moves every SCHEDULED entry whose eta has passed into
	// READY, returning the count moved.
	PollSchedule(ctx context.Context) (int, error)

	// SendHeartbeat upserts (name -> ts) into WORKERS.
	SendHeartbeat(ctx context.Context, name string) error

	// ListAliveWorkers returns every worker name whose last heartbeat
	// falls within the last timeout seconds.
	ListAliveWorkers(ctx context.Context, timeout int) ([]string, error)
}
