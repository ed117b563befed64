// Package message defines the self-describing unit of work that travels
// through the broker's queues.
package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is the wire record for a task invocation. It is immutable in
// transit except for Retries and ETA, which the worker may bump before
// re-scheduling a failed attempt.
type Message struct {
	ID      string                 `json:"id"`
	Task    string                 `json:"task"`
	Args    []interface{}          `json:"args"`
	Kwargs  map[string]interface{} `json:"kwargs"`
	Retries int                    `json:"retries"`
	ETA     *float64               `json:"eta,omitempty"`
	TS      float64                `json:"ts"`
}

// New constructs a Message for the given task name and arguments. ID is a
// time-ordered UUIDv7 and TS is the current wall-clock time, both assigned
// once here and preserved across Serialize/Deserialize.
func New(task string, args []interface{}, kwargs map[string]interface{}) *Message {
	if args == nil {
		args = []interface{}{}
	}
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the runtime can't read entropy; fall back to
		// a random v4 rather than panicking on message construction.
		id = uuid.New()
	}
	return &Message{
		ID:     id.String(),
		Task:   task,
		Args:   args,
		Kwargs: kwargs,
		TS:     float64(time.Now().UnixNano()) / 1e9,
	}
}

// ETAAt returns the message's eta as an absolute time, and whether it has
// one at all.
func (m *Message) ETAAt() (time.Time, bool) {
	if m.ETA == nil {
		return time.Time{}, false
	}
	sec := int64(*m.ETA)
	nsec := int64((*m.ETA - float64(sec)) * 1e9)
	return time.Unix(sec, nsec), true
}

// SetETA stamps an absolute epoch-seconds eta onto the message.
func (m *Message) SetETA(t time.Time) {
	eta := float64(t.UnixNano()) / 1e9
	m.ETA = &eta
}

// Serialize produces the canonical encoding used as the message's identity
// in RESERVED/SCHEDULED. Field order and whitespace are whatever
// encoding/json produces for this struct — stable across calls for equal
// values, which is all the broker's remove-by-member contract requires.
func (m *Message) Serialize() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("message: serialize: %w", err)
	}
	return string(data), nil
}

// Deserialize is Serialize's inverse. It tolerates records that omit
// "retries" (defaults to 0) and "eta" (defaults to absent) so older
// producers remain compatible with newer workers.
func Deserialize(raw string) (*Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("message: deserialize: %w", err)
	}
	if m.Args == nil {
		m.Args = []interface{}{}
	}
	if m.Kwargs == nil {
		m.Kwargs = map[string]interface{}{}
	}
	return &m, nil
}
