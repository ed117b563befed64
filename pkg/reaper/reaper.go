// Package reaper implements the periodic sweep over RESERVED that returns
// visibility-expired messages to READY.
package reaper

import (
	"context"

	"github.com/guido-cesarano/taskqueue/pkg/broker"
	"github.com/rs/zerolog"
)

// Reaper holds no state beyond the broker it sweeps and the visibility
// timeout it enforces.
type Reaper struct {
	broker            broker.Broker
	visibilityTimeout int
	log               zerolog.Logger
}

// New constructs a Reaper. visibilityTimeout is in seconds.
func New(b broker.Broker, visibilityTimeout int, log zerolog.Logger) *Reaper {
	return &Reaper{broker: b, visibilityTimeout: visibilityTimeout, log: log}
}

// Reap invokes broker.RecoverExpired and logs the count when non-zero.
func (r *Reaper) Reap(ctx context.Context) error {
	n, err := r.broker.RecoverExpired(ctx, r.visibilityTimeout)
	if err != nil {
		return err
	}
	if n > 0 {
		r.log.Info().Int("count", n).Msg("reaper recovered expired messages")
	}
	return nil
}
