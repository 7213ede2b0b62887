package reqqueue

import (
	"context"
	"testing"
	"time"
)

func newReq(id int64) PendingRequest {
	ctx, cancel := context.WithCancel(context.Background())
	return PendingRequest{ID: id, Input: "x", Kind: NaturalLanguage, QueuedAt: time.Now(), Ctx: ctx, Cancel: cancel}
}

func TestEnqueueRefusesPastMaxDepth(t *testing.T) {
	q := New(1)
	if _, ok := q.Enqueue(newReq(1)); !ok {
		t.Fatal("expected first enqueue to succeed")
	}
	if _, ok := q.Enqueue(newReq(2)); ok {
		t.Fatal("expected second enqueue to be refused at max_depth 1")
	}
}

func TestTryDequeueRespectsInFlightAndConfirmationPending(t *testing.T) {
	q := New(5)
	q.Enqueue(newReq(1))

	q.SetConfirmationPending(true)
	if _, ok := q.TryDequeue(); ok {
		t.Fatal("expected dequeue to be blocked by confirmation_pending")
	}
	q.SetConfirmationPending(false)

	req, ok := q.TryDequeue()
	if !ok || req.ID != 1 {
		t.Fatalf("expected to dequeue request 1, got %+v ok=%v", req, ok)
	}

	q.Enqueue(newReq(2))
	if _, ok := q.TryDequeue(); ok {
		t.Fatal("expected dequeue to be blocked while a request is in flight")
	}
}

func TestCancelByIDRemovesFromPendingAndCancelsContext(t *testing.T) {
	q := New(5)
	req := newReq(1)
	q.Enqueue(req)

	cancelled, ok := q.CancelByID(1)
	if !ok || cancelled.ID != 1 {
		t.Fatalf("expected to cancel request 1, got %+v ok=%v", cancelled, ok)
	}
	select {
	case <-req.Ctx.Done():
	default:
		t.Fatal("expected context to be cancelled")
	}
	if q.Len() != 0 {
		t.Fatalf("expected pending to be empty, got %d", q.Len())
	}
}

func TestCancelCurrentDoesNotClearSlot(t *testing.T) {
	q := New(5)
	q.Enqueue(newReq(1))
	q.TryDequeue()

	cancelled, ok := q.CancelCurrent()
	if !ok || cancelled.ID != 1 {
		t.Fatalf("expected to cancel in-flight request 1, got %+v ok=%v", cancelled, ok)
	}
	if q.InFlight() == nil {
		t.Fatal("expected in-flight slot to remain occupied until the worker reports completion")
	}
	select {
	case <-q.InFlight().Ctx.Done():
	default:
		t.Fatal("expected in-flight context to be cancelled")
	}
}

func TestCancelAllDrainsPendingAndCancelsCurrent(t *testing.T) {
	q := New(5)
	q.Enqueue(newReq(1))
	q.TryDequeue()
	q.Enqueue(newReq(2))
	q.Enqueue(newReq(3))

	drained := q.CancelAll()
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained pending requests, got %d", len(drained))
	}
	if q.Len() != 0 {
		t.Fatalf("expected pending to be empty after CancelAll, got %d", q.Len())
	}
	select {
	case <-q.InFlight().Ctx.Done():
	default:
		t.Fatal("expected in-flight context cancelled by CancelAll")
	}
}

func TestGetQueuePositionsAreOneIndexedAndStable(t *testing.T) {
	q := New(5)
	q.Enqueue(newReq(1))
	q.Enqueue(newReq(2))
	q.Enqueue(newReq(3))

	positions := q.GetQueuePositions()
	want := []QueuePosition{{ID: 1, Position: 1}, {ID: 2, Position: 2}, {ID: 3, Position: 3}}
	for i, p := range want {
		if positions[i] != p {
			t.Fatalf("position %d: got %+v want %+v", i, positions[i], p)
		}
	}
}

func TestNextIDStartsAtOneAndIsMonotonic(t *testing.T) {
	q := New(5)
	if id := q.NextID(); id != 1 {
		t.Fatalf("expected first id to be 1, got %d", id)
	}
	if id := q.NextID(); id != 2 {
		t.Fatalf("expected second id to be 2, got %d", id)
	}
}
