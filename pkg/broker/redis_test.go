package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/guido-cesarano/taskqueue/pkg/message"
)

func setupTestBroker(t *testing.T) (*miniredis.Miniredis, *RedisBroker) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	return s, NewRedisBroker(s.Addr())
}

func TestSendThenReserve(t *testing.T) {
	_, b := setupTestBroker(t)
	ctx := context.Background()

	msg := message.New("add", []interface{}{float64(1), float64(2)}, nil)
	if err := b.Send(ctx, msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	d, err := b.Reserve(ctx, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if d == nil {
		t.Fatal("expected a delivery")
	}
	if d.Message.ID != msg.ID {
		t.Fatalf("expected id %s, got %s", msg.ID, d.Message.ID)
	}

	depths, err := b.GetQueueDepths(ctx)
	if err != nil {
		t.Fatalf("depths: %v", err)
	}
	if depths[Ready] != 0 {
		t.Errorf("expected READY empty, got %d", depths[Ready])
	}
	if depths[Reserved] != 1 {
		t.Errorf("expected RESERVED 1, got %d", depths[Reserved])
	}
}

func TestSendIsFIFO(t *testing.T) {
	_, b := setupTestBroker(t)
	ctx := context.Background()

	first := message.New("noop", nil, nil)
	second := message.New("noop", nil, nil)
	third := message.New("noop", nil, nil)

	for _, m := range []*message.Message{first, second, third} {
		if err := b.Send(ctx, m); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	for _, want := range []*message.Message{first, second, third} {
		d, err := b.Reserve(ctx, 1)
		if err != nil {
			t.Fatalf("reserve: %v", err)
		}
		if d == nil {
			t.Fatal("expected a delivery")
		}
		if d.Message.ID != want.ID {
			t.Fatalf("expected FIFO order, wanted id %s, got %s", want.ID, d.Message.ID)
		}
	}
}

func TestReserveTimesOutOnEmptyQueue(t *testing.T) {
	_, b := setupTestBroker(t)
	ctx := context.Background()

	d, err := b.Reserve(ctx, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if d != nil {
		t.Fatal("expected no delivery on empty queue")
	}
}

func TestAckRemovesFromReserved(t *testing.T) {
	_, b := setupTestBroker(t)
	ctx := context.Background()

	msg := message.New("noop", nil, nil)
	b.Send(ctx, msg)
	d, _ := b.Reserve(ctx, 1)

	if err := b.Ack(ctx, d); err != nil {
		t.Fatalf("ack: %v", err)
	}

	depths, _ := b.GetQueueDepths(ctx)
	if depths[Reserved] != 0 {
		t.Errorf("expected RESERVED empty after ack, got %d", depths[Reserved])
	}
}

func TestAckIsNoOpIfAlreadyGone(t *testing.T) {
	_, b := setupTestBroker(t)
	ctx := context.Background()

	msg := message.New("noop", nil, nil)
	b.Send(ctx, msg)
	d, _ := b.Reserve(ctx, 1)

	if err := b.Ack(ctx, d); err != nil {
		t.Fatalf("first ack: %v", err)
	}
	if err := b.Ack(ctx, d); err != nil {
		t.Fatalf("second ack should be a no-op, got: %v", err)
	}
}

func TestDeadMovesToDeadLetterQueue(t *testing.T) {
	_, b := setupTestBroker(t)
	ctx := context.Background()

	msg := message.New("noop", nil, nil)
	b.Send(ctx, msg)
	d, _ := b.Reserve(ctx, 1)

	if err := b.Dead(ctx, d); err != nil {
		t.Fatalf("dead: %v", err)
	}

	depths, _ := b.GetQueueDepths(ctx)
	if depths[Reserved] != 0 {
		t.Errorf("expected RESERVED empty, got %d", depths[Reserved])
	}
	if depths[Dead] != 1 {
		t.Errorf("expected DEAD 1, got %d", depths[Dead])
	}
}

func TestScheduleIsNoOpWithoutETA(t *testing.T) {
	_, b := setupTestBroker(t)
	ctx := context.Background()

	msg := message.New("noop", nil, nil)
	if err := b.Schedule(ctx, msg); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	depths, _ := b.GetQueueDepths(ctx)
	if depths[Scheduled] != 0 {
		t.Errorf("expected SCHEDULED empty without eta, got %d", depths[Scheduled])
	}
}

func TestScheduleThenPoll(t *testing.T) {
	_, b := setupTestBroker(t)
	ctx := context.Background()

	due := message.New("noop", nil, nil)
	due.SetETA(time.Now().Add(-time.Second))
	if err := b.Schedule(ctx, due); err != nil {
		t.Fatalf("schedule due: %v", err)
	}

	future := message.New("noop", nil, nil)
	future.SetETA(time.Now().Add(time.Hour))
	if err := b.Schedule(ctx, future); err != nil {
		t.Fatalf("schedule future: %v", err)
	}

	n, err := b.PollSchedule(ctx)
	if err != nil {
		t.Fatalf("poll_schedule: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 message promoted, got %d", n)
	}

	depths, _ := b.GetQueueDepths(ctx)
	if depths[Ready] != 1 {
		t.Errorf("expected READY 1, got %d", depths[Ready])
	}
	if depths[Scheduled] != 1 {
		t.Errorf("expected SCHEDULED 1 remaining, got %d", depths[Scheduled])
	}
}

func TestRecoverExpired(t *testing.T) {
	_, b := setupTestBroker(t)
	ctx := context.Background()

	msg := message.New("noop", nil, nil)
	b.Send(ctx, msg)
	if _, err := b.Reserve(ctx, 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	n, err := b.RecoverExpired(ctx, 1)
	if err != nil {
		t.Fatalf("recover_expired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered, got %d", n)
	}

	depths, _ := b.GetQueueDepths(ctx)
	if depths[Ready] != 1 {
		t.Errorf("expected READY 1 after recovery, got %d", depths[Ready])
	}
	if depths[Reserved] != 0 {
		t.Errorf("expected RESERVED empty after recovery, got %d", depths[Reserved])
	}
}

func TestHeartbeatAndListAliveWorkers(t *testing.T) {
	_, b := setupTestBroker(t)
	ctx := context.Background()

	if err := b.SendHeartbeat(ctx, "worker-a"); err != nil {
		t.Fatalf("heartbeat a: %v", err)
	}
	if err := b.SendHeartbeat(ctx, "worker-b"); err != nil {
		t.Fatalf("heartbeat b: %v", err)
	}

	alive, err := b.ListAliveWorkers(ctx, 3)
	if err != nil {
		t.Fatalf("list_alive_workers: %v", err)
	}
	if len(alive) != 2 {
		t.Fatalf("expected 2 alive workers, got %d: %v", len(alive), alive)
	}

	time.Sleep(4 * time.Second)

	alive, err = b.ListAliveWorkers(ctx, 3)
	if err != nil {
		t.Fatalf("list_alive_workers: %v", err)
	}
	if len(alive) != 0 {
		t.Fatalf("expected 0 alive workers after timeout, got %d: %v", len(alive), alive)
	}
}
