package actor

import (
	"time"

	"github.com/glance-db/glance/internal/orchestrator"
	"github.com/glance-db/glance/internal/reqqueue"
	"github.com/glance-db/glance/internal/safety"
	"github.com/glance-db/glance/internal/store"
)

// Phase is the coarse stage of work a request is in, surfaced on Started
// and refined on Progress.
type Phase int

const (
	PhaseQueued Phase = iota
	PhaseLlmRequesting
	PhaseLlmThinking
	PhaseLlmStreaming
	PhaseLlmParsing
	PhaseClassifying
	PhaseDbExecuting
	PhaseProcessing
)

func (p Phase) String() string {
	switch p {
	case PhaseQueued:
		return "Queued"
	case PhaseLlmRequesting:
		return "LlmRequesting"
	case PhaseLlmThinking:
		return "LlmThinking"
	case PhaseLlmStreaming:
		return "LlmStreaming"
	case PhaseLlmParsing:
		return "LlmParsing"
	case PhaseClassifying:
		return "Classifying"
	case PhaseDbExecuting:
		return "DbExecuting"
	case PhaseProcessing:
		return "Processing"
	default:
		return "Unknown"
	}
}

// Response is the closed set of messages the actor emits on its response
// channel.
type Response interface{ isResponse() }

type Queued struct {
	ID       int64
	Position int
}

type Started struct {
	ID    int64
	Phase Phase
}

type Progress struct {
	ID      int64
	Phase   Phase
	Elapsed time.Duration
	Detail  string
}

type Completed struct {
	ID     int64
	Result string
}

type QueryCompleted struct {
	ID       int64
	Messages []orchestrator.ChatMessage
	LogEntry *store.HistoryEntry
}

type Failed struct {
	ID    int64
	Error string
}

type Cancelled struct {
	ID       int64
	LogEntry *store.HistoryEntry
}

type NeedsConfirmationResponse struct {
	ID             int64
	Sql            string
	Classification safety.Result
}

type QueueUpdate struct {
	Depth     int
	MaxDepth  int
	Current   *int64
	Positions []reqqueue.QueuePosition
}

type QueueFull struct{ ID int64 }

type PendingQueryCancelled struct {
	Message  string
	LogEntry *store.HistoryEntry
}

func (Queued) isResponse()                    {}
func (Started) isResponse()                   {}
func (Progress) isResponse()                  {}
func (Completed) isResponse()                 {}
func (QueryCompleted) isResponse()            {}
func (Failed) isResponse()                    {}
func (Cancelled) isResponse()                 {}
func (NeedsConfirmationResponse) isResponse() {}
func (QueueUpdate) isResponse()               {}
func (QueueFull) isResponse()                 {}
func (PendingQueryCancelled) isResponse()     {}
