package worker

import "time"

// Config enumerates the tunables from spec §4.4.
type Config struct {
	// Name identifies this worker in heartbeats; should be unique within
	// the fleet.
	Name string

	// Prefetch bounds how many Deliveries are buffered locally (>= 1).
	Prefetch int

	// HeartbeatInterval is the time between successive heartbeats.
	HeartbeatInterval time.Duration

	// SchedulePollInterval is the time between successive scheduler
	// polls.
	SchedulePollInterval time.Duration

	// ReaperInterval is the time between successive reaper ticks.
	ReaperInterval time.Duration

	// VisibilityTimeout is passed to the reaper: RESERVED entries older
	// than this are recovered.
	VisibilityTimeout time.Duration

	// ReserveTimeout bounds how long a single Reserve call blocks while
	// topping up the prefetch buffer.
	ReserveTimeout time.Duration
}

// WithDefaults fills any zero-valued fields with the values spec.md's
// example scenarios assume.
func (c Config) WithDefaults() Config {
	if c.Name == "" {
		c.Name = "worker"
	}
	if c.Prefetch < 1 {
		c.Prefetch = 1
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.SchedulePollInterval <= 0 {
		c.SchedulePollInterval = time.Second
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = 10 * time.Second
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 30 * time.Second
	}
	if c.ReserveTimeout <= 0 {
		c.ReserveTimeout = 5 * time.Second
	}
	return c
}
