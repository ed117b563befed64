package broker

// Logical collection names. Fixed so every producer and worker process
// agrees on where messages live, matching spec §6.
const (
	Ready     = "taskq:ready"
	Reserved  = "taskq:processing"
	Scheduled = "taskq:scheduled"
	Dead      = "taskq:dead"
	Workers   = "taskq:workers"
)
