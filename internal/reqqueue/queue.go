// Package reqqueue implements the bounded FIFO of pending work the
// orchestrator actor drains one request at a time.
package reqqueue

import (
	"context"
	"sync"
	"time"
)

// Kind distinguishes how a PendingRequest's SQL (if any) was produced.
type Kind int

const (
	NaturalLanguage Kind = iota
	RawSql
	Confirmation
)

// PendingRequest is one unit of work waiting for, or currently occupying,
// the single in-flight slot.
type PendingRequest struct {
	ID       int64
	Input    string
	Kind     Kind
	QueuedAt time.Time
	Ctx      context.Context
	Cancel   context.CancelFunc
}

const defaultMaxDepth = 10

// Queue is the process-wide FIFO of pending requests plus the single
// in-flight slot, owned exclusively by the orchestrator actor goroutine —
// it performs no locking of its own on that assumption, except for the ID
// counter, which callers outside the actor goroutine also read through
// Actor.NextID and which is therefore guarded by idMu.
type Queue struct {
	pending             []PendingRequest
	inFlight            *PendingRequest
	confirmationPending bool
	maxDepth            int

	idMu   sync.Mutex
	nextID int64
}

// New returns an empty queue. maxDepth <= 0 uses the default of 10.
func New(maxDepth int) *Queue {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Queue{maxDepth: maxDepth}
}

// NextID returns the next process-unique, monotonically increasing request
// id, starting at 1.
func (q *Queue) NextID() int64 {
	q.idMu.Lock()
	defer q.idMu.Unlock()
	q.nextID++
	return q.nextID
}

// Len returns the number of pending (not in-flight) requests.
func (q *Queue) Len() int { return len(q.pending) }

// MaxDepth returns the configured bound on pending requests.
func (q *Queue) MaxDepth() int { return q.maxDepth }

// InFlight returns the request currently occupying the single slot, or nil.
func (q *Queue) InFlight() *PendingRequest { return q.inFlight }

// ConfirmationPending reports whether dequeueing is currently paused
// waiting on a confirm/cancel decision.
func (q *Queue) ConfirmationPending() bool { return q.confirmationPending }

// SetConfirmationPending pauses or resumes dequeueing.
func (q *Queue) SetConfirmationPending(pending bool) { q.confirmationPending = pending }

// CanProcessNext reports whether TryDequeue would succeed.
func (q *Queue) CanProcessNext() bool {
	return q.inFlight == nil && !q.confirmationPending && len(q.pending) > 0
}

// Enqueue appends req to the FIFO unless it is already at max_depth.
func (q *Queue) Enqueue(req PendingRequest) (position int, ok bool) {
	if len(q.pending) >= q.maxDepth {
		return 0, false
	}
	q.pending = append(q.pending, req)
	return len(q.pending), true
}

// TryDequeue pops the front of the FIFO into the in-flight slot, if
// CanProcessNext allows it.
func (q *Queue) TryDequeue() (PendingRequest, bool) {
	if !q.CanProcessNext() {
		return PendingRequest{}, false
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	q.inFlight = &req
	return req, true
}

// ClearInFlight empties the in-flight slot once a request has resolved.
func (q *Queue) ClearInFlight() { q.inFlight = nil }

// CancelByID removes a pending request by id, returning it. If id is the
// in-flight request's id, its cancel handle is invoked but the slot is left
// occupied (the actor's worker goroutine will observe ctx.Done() and report
// completion itself).
func (q *Queue) CancelByID(id int64) (PendingRequest, bool) {
	for i, r := range q.pending {
		if r.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			r.Cancel()
			return r, true
		}
	}
	if q.inFlight != nil && q.inFlight.ID == id {
		q.inFlight.Cancel()
		return *q.inFlight, true
	}
	return PendingRequest{}, false
}

// CancelCurrent cancels the in-flight request's context without clearing
// the slot, returning its cancel handle's target request for reporting.
func (q *Queue) CancelCurrent() (PendingRequest, bool) {
	if q.inFlight == nil {
		return PendingRequest{}, false
	}
	q.inFlight.Cancel()
	return *q.inFlight, true
}

// CancelAll cancels the in-flight request (if any) and drains every
// pending request, cancelling each and returning the drained sequence.
func (q *Queue) CancelAll() []PendingRequest {
	if q.inFlight != nil {
		q.inFlight.Cancel()
	}
	drained := q.pending
	q.pending = nil
	for _, r := range drained {
		r.Cancel()
	}
	return drained
}

// QueuePosition pairs a pending request's id with its current 1-indexed
// position.
type QueuePosition struct {
	ID       int64
	Position int
}

// GetQueuePositions returns the current FIFO order as stable 1-indexed
// positions.
func (q *Queue) GetQueuePositions() []QueuePosition {
	positions := make([]QueuePosition, len(q.pending))
	for i, r := range q.pending {
		positions[i] = QueuePosition{ID: r.ID, Position: i + 1}
	}
	return positions
}
