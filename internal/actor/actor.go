// Package actor runs the orchestrator and request queue on a single
// goroutine, exposing buffered command/response/progress channels as the
// only way the rest of the program interacts with them.
package actor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/glance-db/glance/internal/orchestrator"
	"github.com/glance-db/glance/internal/reqqueue"
	"github.com/glance-db/glance/internal/safety"
	"github.com/glance-db/glance/internal/secretstore"
	"github.com/glance-db/glance/internal/store"
)

const channelCapacity = 32

type completion struct {
	req       reqqueue.PendingRequest
	result    orchestrator.InputResult
	cancelled bool
}

type pendingConfirmation struct {
	OriginalID     int64
	Sql            string
	Classification safety.Result
	FromLLM        bool
}

// Actor owns the orchestrator and request queue exclusively; every other
// goroutine in the program talks to it only through Commands/Responses/
// Progress.
type Actor struct {
	orch    *orchestrator.Orchestrator
	secrets *secretstore.SecretStorage
	queue   *reqqueue.Queue

	commands    chan Command
	responses   chan Response
	progress    chan ProgressMsg
	completions chan completion

	pendingConfirm  *pendingConfirmation
	confirmFromLLM  map[int64]bool
	inFlightStarted time.Time
	exitRequested   bool
}

// New builds an actor with no work in flight. Call Run to start its loop.
func New(orch *orchestrator.Orchestrator, secrets *secretstore.SecretStorage, maxQueueDepth int) *Actor {
	return &Actor{
		orch:           orch,
		secrets:        secrets,
		queue:          reqqueue.New(maxQueueDepth),
		commands:       make(chan Command, channelCapacity),
		responses:      make(chan Response, channelCapacity),
		progress:       make(chan ProgressMsg, channelCapacity),
		completions:    make(chan completion, 4),
		confirmFromLLM: make(map[int64]bool),
	}
}

// Commands is the send side callers use to submit work.
func (a *Actor) Commands() chan<- Command { return a.commands }

// Responses is the receive side callers drain for request-addressed
// outcomes.
func (a *Actor) Responses() <-chan Response { return a.responses }

// Progress is the receive side callers drain for UX affordances.
func (a *Actor) Progress() <-chan ProgressMsg { return a.progress }

// NextID returns the next process-unique request id. Callers construct a
// Command's id and cancellation context with this before sending.
func (a *Actor) NextID() int64 { return a.queue.NextID() }

// Run is the actor's single-goroutine command loop. It returns once a
// Shutdown command (or an orchestrator Exit result) has been processed.
func (a *Actor) Run() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		for drained := true; drained; {
			select {
			case cmd := <-a.commands:
				a.handleCommand(cmd)
			default:
				drained = false
			}
			if a.exitRequested {
				a.shutdown()
				return
			}
		}

		select {
		case cmd := <-a.commands:
			a.handleCommand(cmd)
		case <-ticker.C:
			a.tick()
		case comp := <-a.completions:
			a.handleCompletion(comp)
		}

		if a.exitRequested {
			a.shutdown()
			return
		}
	}
}

func (a *Actor) handleCommand(cmd Command) {
	slog.Debug("actor command received", "kind", fmt.Sprintf("%T", cmd))
	a.executeAction(classifyCommand(cmd))
}

func (a *Actor) tick() {
	inFlight := a.queue.InFlight()
	if inFlight == nil {
		return
	}
	a.respond(Progress{ID: inFlight.ID, Phase: PhaseProcessing, Elapsed: time.Since(a.inFlightStarted)})
}

func (a *Actor) executeAction(action CommandAction) {
	switch ac := action.(type) {
	case actionEnqueueInput:
		kind := reqqueue.NaturalLanguage
		if ac.Raw {
			kind = reqqueue.RawSql
		}
		a.enqueueAndRespond(reqqueue.PendingRequest{ID: ac.ID, Input: ac.Text, Kind: kind, QueuedAt: time.Now(), Ctx: ac.Ctx, Cancel: ac.Cancel}, false)

	case actionConfirm:
		if !a.queue.ConfirmationPending() {
			a.respond(Failed{ID: ac.ID, Error: "no confirmation is pending"})
			return
		}
		a.queue.SetConfirmationPending(false)
		fromLLM := a.pendingConfirm != nil && a.pendingConfirm.FromLLM
		a.pendingConfirm = nil
		a.enqueueAndRespond(reqqueue.PendingRequest{ID: ac.ID, Input: ac.Sql, Kind: reqqueue.Confirmation, QueuedAt: time.Now(), Ctx: ac.Ctx, Cancel: ac.Cancel}, fromLLM)

	case actionCancelCurrent:
		if _, ok := a.queue.CancelCurrent(); ok {
			a.emitQueueUpdate()
		}

	case actionCancelByID:
		a.cancelByID(ac.ID)

	case actionCancelAll:
		drained := a.queue.CancelAll()
		for _, r := range drained {
			delete(a.confirmFromLLM, r.ID)
			a.respond(Cancelled{ID: r.ID})
		}
		a.emitQueueUpdate()

	case actionCancelPendingQuery:
		if !a.queue.ConfirmationPending() {
			return
		}
		a.queue.SetConfirmationPending(false)
		var logEntry *store.HistoryEntry
		if pc := a.pendingConfirm; pc != nil {
			submittedBy := store.SubmittedByUser
			if pc.FromLLM {
				submittedBy = store.SubmittedByLLM
			}
			logEntry = &store.HistoryEntry{SQL: pc.Sql, Status: store.HistoryCancelled, SubmittedBy: submittedBy}
		}
		a.pendingConfirm = nil
		a.respond(PendingQueryCancelled{Message: "Query cancelled.", LogEntry: logEntry})
		a.maybeDequeue()

	case actionGrantPlaintextConsent:
		a.secrets.GrantPlaintextConsent()

	case actionShutdown:
		a.exitRequested = true
	}
}

func (a *Actor) enqueueAndRespond(req reqqueue.PendingRequest, fromLLM bool) {
	pos, ok := a.queue.Enqueue(req)
	if !ok {
		a.respond(QueueFull{ID: req.ID})
		return
	}
	if req.Kind == reqqueue.Confirmation {
		a.confirmFromLLM[req.ID] = fromLLM
	}
	a.respond(Queued{ID: req.ID, Position: pos})
	a.emitQueueUpdate()
	a.maybeDequeue()
}

func (a *Actor) cancelByID(id int64) {
	wasInFlight := a.queue.InFlight() != nil && a.queue.InFlight().ID == id
	req, ok := a.queue.CancelByID(id)
	if !ok {
		return
	}
	if wasInFlight {
		// The worker goroutine will observe ctx.Done(), report back over
		// completions, and the slot is cleared there.
		return
	}
	delete(a.confirmFromLLM, req.ID)
	a.respond(Cancelled{ID: req.ID})
	a.emitQueueUpdate()
	a.maybeDequeue()
}

func (a *Actor) emitQueueUpdate() {
	var current *int64
	if inFlight := a.queue.InFlight(); inFlight != nil {
		id := inFlight.ID
		current = &id
	}
	a.respond(QueueUpdate{
		Depth:     a.queue.Len(),
		MaxDepth:  a.queue.MaxDepth(),
		Current:   current,
		Positions: a.queue.GetQueuePositions(),
	})
}

func (a *Actor) maybeDequeue() {
	if !a.queue.CanProcessNext() {
		return
	}
	req, ok := a.queue.TryDequeue()
	if !ok {
		return
	}
	a.inFlightStarted = time.Now()
	a.respond(Started{ID: req.ID, Phase: startedPhase(req.Kind)})
	a.emitQueueUpdate()
	go a.process(req)
}

func startedPhase(kind reqqueue.Kind) Phase {
	switch kind {
	case reqqueue.RawSql:
		return PhaseClassifying
	case reqqueue.Confirmation:
		return PhaseDbExecuting
	default:
		return PhaseLlmRequesting
	}
}

// process runs one request's orchestrator call in its own goroutine,
// checking cancellation non-blocking first and then racing the work
// against ctx.Done() — the same priority-checked idiom used for every
// blocking wait in the actor, since Go's select has no "biased" mode.
func (a *Actor) process(req reqqueue.PendingRequest) {
	select {
	case <-req.Ctx.Done():
		a.completions <- completion{req: req, cancelled: true}
		return
	default:
	}

	if req.Kind == reqqueue.RawSql || req.Kind == reqqueue.Confirmation {
		a.progress <- DbStarted{ID: req.ID}
	} else {
		a.progress <- LlmStarted{ID: req.ID}
	}

	resultCh := make(chan orchestrator.InputResult, 1)
	go func() {
		switch req.Kind {
		case reqqueue.RawSql:
			resultCh <- a.orch.HandleInput(req.Ctx, "/sql "+req.Input)
		case reqqueue.Confirmation:
			resultCh <- a.orch.HandleConfirmation(req.Ctx, req.Input, a.confirmFromLLM[req.ID])
		default:
			resultCh <- a.orch.HandleInput(req.Ctx, req.Input)
		}
	}()

	select {
	case <-req.Ctx.Done():
		a.completions <- completion{req: req, cancelled: true}
	case result := <-resultCh:
		a.completions <- completion{req: req, result: result}
	}
}

func (a *Actor) handleCompletion(comp completion) {
	a.queue.ClearInFlight()
	delete(a.confirmFromLLM, comp.req.ID)

	if comp.cancelled {
		var logEntry *store.HistoryEntry
		if comp.req.Kind != reqqueue.NaturalLanguage {
			entry := store.HistoryEntry{SQL: comp.req.Input, Status: store.HistoryCancelled, SubmittedBy: submittedByForKind(comp.req.Kind)}
			logEntry = &entry
		}
		a.progress <- ProgressCancelled{ID: comp.req.ID}
		a.respond(Cancelled{ID: comp.req.ID, LogEntry: logEntry})
		a.emitQueueUpdate()
		a.maybeDequeue()
		return
	}

	switch v := comp.result.(type) {
	case orchestrator.None:
		a.respond(Completed{ID: comp.req.ID, Result: "ok"})
	case orchestrator.Exit:
		a.respond(Completed{ID: comp.req.ID, Result: "exit"})
		a.exitRequested = true
	case orchestrator.Messages:
		a.progress <- DbComplete{ID: comp.req.ID}
		a.respond(QueryCompleted{ID: comp.req.ID, Messages: v.Messages, LogEntry: v.LogEntry})
	case orchestrator.NeedsConfirmation:
		a.pendingConfirm = &pendingConfirmation{OriginalID: comp.req.ID, Sql: v.SQL, Classification: v.Classification, FromLLM: v.FromLLM}
		a.queue.SetConfirmationPending(true)
		a.respond(NeedsConfirmationResponse{ID: comp.req.ID, Sql: v.SQL, Classification: v.Classification})
	default:
		a.respond(Failed{ID: comp.req.ID, Error: "unrecognized orchestrator result"})
	}

	a.emitQueueUpdate()
	a.maybeDequeue()
}

func submittedByForKind(kind reqqueue.Kind) store.SubmittedBy {
	if kind == reqqueue.RawSql {
		return store.SubmittedByUser
	}
	return store.SubmittedByLLM
}

func (a *Actor) shutdown() {
	drained := a.queue.CancelAll()
	for _, r := range drained {
		a.respond(Cancelled{ID: r.ID})
	}
	a.emitQueueUpdate()
	if err := a.orch.Close(); err != nil {
		slog.Warn("error closing orchestrator on shutdown", "error", err)
	}
	close(a.responses)
	close(a.progress)
}

func (a *Actor) respond(r Response) {
	a.responses <- r
}
