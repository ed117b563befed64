// Package delivery holds the worker-local pairing of a reserved message's
// raw wire form, its decoded Message, and the time it was reserved.
package delivery

import (
	"time"

	"github.com/guido-cesarano/taskqueue/pkg/message"
)

// Delivery is created by Broker.Reserve and consumed by Ack, Dead, or the
// retry-reschedule path. It is never persisted; only the raw form (the
// broker's removal key) and the decoded message travel with it.
type Delivery struct {
	Raw        string
	Message    *message.Message
	ReservedAt time.Time
}

// New wraps a raw payload and its decoded message into a Delivery reserved
// at the current time.
func New(raw string, msg *message.Message) *Delivery {
	return &Delivery{Raw: raw, Message: msg, ReservedAt: time.Now()}
}
