package message

import (
	"testing"
	"time"
)

func TestNewAssignsIdentity(t *testing.T) {
	m := New("add", []interface{}{1, 2}, nil)
	if m.ID == "" {
		t.Fatal("expected non-empty id")
	}
	if m.Task != "add" {
		t.Fatalf("expected task 'add', got %q", m.Task)
	}
	if m.Retries != 0 {
		t.Fatalf("expected retries 0, got %d", m.Retries)
	}
	if m.ETA != nil {
		t.Fatal("expected no eta by default")
	}
}

func TestRoundTrip(t *testing.T) {
	m := New("add", []interface{}{float64(1), float64(2)}, map[string]interface{}{"x": "y"})
	m.SetETA(time.Now().Add(time.Minute))
	m.Retries = 2

	raw, err := m.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	if got.ID != m.ID || got.Task != m.Task || got.Retries != m.Retries {
		t.Fatalf("round trip mismatch: %+v != %+v", got, m)
	}
	if got.ETA == nil || *got.ETA != *m.ETA {
		t.Fatalf("eta mismatch: %+v != %+v", got.ETA, m.ETA)
	}
}

func TestDeserializeDefaultsMissingFields(t *testing.T) {
	raw := `{"id":"abc","task":"noop","args":[],"kwargs":{},"ts":1.0}`
	m, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if m.Retries != 0 {
		t.Fatalf("expected retries default 0, got %d", m.Retries)
	}
	if m.ETA != nil {
		t.Fatal("expected eta default absent")
	}
}

func TestSerializeDeterministicForEqualValues(t *testing.T) {
	m := &Message{ID: "x", Task: "t", Args: []interface{}{}, Kwargs: map[string]interface{}{}, TS: 1}
	a, err := m.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	b, err := m.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical encodings, got %q != %q", a, b)
	}
}
