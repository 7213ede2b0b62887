// Package orchestrator holds the pure dispatch logic that turns one line of
// user input into chat output, a confirmation prompt, or an exit signal. It
// calls the subsystems below it directly and holds no queue of its own —
// queuing and cancellation are the actor's job (package actor).
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glance-db/glance/internal/connmgr"
	"github.com/glance-db/glance/internal/dbvalue"
	"github.com/glance-db/glance/internal/executor"
	"github.com/glance-db/glance/internal/llmmanager"
	"github.com/glance-db/glance/internal/llmservice"
	"github.com/glance-db/glance/internal/promptcache"
	"github.com/glance-db/glance/internal/safety"
	"github.com/glance-db/glance/internal/schema"
	"github.com/glance-db/glance/internal/store"
)

// ChatMessage is one line of rendered output for the UI.
type ChatMessage struct {
	Role    string
	Content string
}

func systemMessage(format string, args ...interface{}) ChatMessage {
	return ChatMessage{Role: "system", Content: fmt.Sprintf(format, args...)}
}

// InputResult is the closed outcome of handling one line of input.
type InputResult interface{ isInputResult() }

// None is returned for blank input; there is nothing to do.
type None struct{}

// Messages carries zero or more chat lines to render. LogEntry is non-nil
// only when this result came from a statement that actually ran against
// the database.
type Messages struct {
	Messages []ChatMessage
	LogEntry *store.HistoryEntry
}

// NeedsConfirmation is returned when the SQL path classified sqlText as
// Mutating or Destructive; execution did not happen.
type NeedsConfirmation struct {
	SQL            string
	Classification safety.Result
	FromLLM        bool
}

// Exit signals that the REPL should terminate.
type Exit struct{}

func (None) isInputResult()              {}
func (Messages) isInputResult()          {}
func (NeedsConfirmation) isInputResult() {}
func (Exit) isInputResult()              {}

// Orchestrator wires the connection manager, LLM manager/service, and
// persistence store into the five core commands and the natural-language/
// raw-SQL dispatch described in §4.L.
type Orchestrator struct {
	conn    *connmgr.Manager
	llmMgr  *llmmanager.Manager
	service *llmservice.Service
	persist *store.Store
}

// New builds an orchestrator. persist may be nil to run without history.
func New(conn *connmgr.Manager, llmMgr *llmmanager.Manager, service *llmservice.Service, persist *store.Store) *Orchestrator {
	return &Orchestrator{conn: conn, llmMgr: llmMgr, service: service, persist: persist}
}

// Close closes the active database connection, if any. Called on
// Shutdown; the persistence store and LLM manager are owned by the
// caller that built them and are closed separately.
func (o *Orchestrator) Close() error {
	return o.conn.Close()
}

// HandleInput trims text, dispatches slash-commands, and otherwise routes
// through the LLM service's natural-language path.
func (o *Orchestrator) HandleInput(ctx context.Context, text string) InputResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return None{}
	}
	if strings.HasPrefix(text, "/") {
		return o.dispatchCommand(ctx, text)
	}
	return o.handleNaturalLanguage(ctx, text)
}

func (o *Orchestrator) dispatchCommand(ctx context.Context, text string) InputResult {
	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "/sql":
		if len(args) == 0 {
			return Messages{Messages: []ChatMessage{systemMessage("Usage: /sql <query>")}}
		}
		return o.runSQLPath(ctx, strings.Join(args, " "), false, false)

	case "/clear":
		o.service.Conversation().Clear()
		return Messages{Messages: []ChatMessage{systemMessage("Conversation cleared.")}}

	case "/schema":
		active := o.conn.Active()
		if active == nil {
			return Messages{Messages: []ChatMessage{systemMessage("No active database connection.")}}
		}
		return Messages{Messages: []ChatMessage{{Role: "system", Content: active.Schema.FormatForPrompt()}}}

	case "/help":
		return Messages{Messages: []ChatMessage{{Role: "system", Content: helpText}}}

	case "/quit", "/exit":
		return Exit{}

	default:
		return Messages{Messages: []ChatMessage{systemMessage("Unknown command: %s. Try /help.", command)}}
	}
}

func (o *Orchestrator) handleNaturalLanguage(ctx context.Context, text string) InputResult {
	active := o.conn.Active()
	var sch schema.Schema
	connCtx := promptcache.ConnectionContext{}
	if active != nil {
		sch = active.Schema
		connCtx = promptcache.ConnectionContext{Label: active.Name, Database: active.Database}
	}

	resp, err := o.service.ProcessQuery(ctx, text, sch, connCtx)
	if err != nil {
		return Messages{Messages: []ChatMessage{systemMessage("LLM Error: %v", err)}}
	}

	if resp.SQL != nil {
		return o.runSQLPath(ctx, *resp.SQL, true, false)
	}
	return Messages{Messages: []ChatMessage{{Role: "assistant", Content: resp.Text}}}
}

// HandleConfirmation re-submits sqlText bypassing classification, used when
// the actor processes a ConfirmQuery command for a request that previously
// returned NeedsConfirmation. fromLLM must match the original request's
// origin so history attribution stays correct.
func (o *Orchestrator) HandleConfirmation(ctx context.Context, sqlText string, fromLLM bool) InputResult {
	return o.runSQLPath(ctx, sqlText, fromLLM, true)
}

func (o *Orchestrator) runSQLPath(ctx context.Context, sqlText string, fromLLM, confirmed bool) InputResult {
	active := o.conn.Active()
	if active == nil {
		return Messages{Messages: []ChatMessage{systemMessage("No active database connection.")}}
	}

	ex := executor.New(active.DB, o.persist, active.Name)
	source := executor.SourceManual
	if fromLLM {
		source = executor.SourceGenerated
		if !confirmed && safety.Classify(sqlText).Level == safety.Safe {
			source = executor.SourceAuto
		}
	}

	var outcome executor.Outcome
	if confirmed {
		outcome = ex.ExecuteConfirmed(ctx, sqlText, source)
	} else {
		outcome = ex.Execute(ctx, sqlText, source)
	}

	switch v := outcome.(type) {
	case executor.Success:
		logEntry := v.LogEntry
		return Messages{
			Messages: []ChatMessage{
				{Role: "assistant", Content: formatResult(v.Result)},
				systemMessage("%d row(s) in %s", v.Result.RowCount, v.ExecutionTime.Round(time.Millisecond).String()),
			},
			LogEntry: &logEntry,
		}
	case executor.NeedsConfirmation:
		return NeedsConfirmation{SQL: v.SQL, Classification: v.Classification, FromLLM: fromLLM}
	case executor.Failure:
		return Messages{Messages: []ChatMessage{systemMessage("Error: Error executing query:\n  %v", v.Err)}}
	default:
		return Messages{Messages: []ChatMessage{systemMessage("internal error: unrecognized outcome")}}
	}
}

func formatResult(r dbvalue.QueryResult) string {
	if r.RowCount == 0 {
		return "(no rows)"
	}
	var b strings.Builder
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	b.WriteString(strings.Join(names, " | "))
	b.WriteString("\n")
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.Display()
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	if r.WasTruncated && r.TotalRows != nil {
		fmt.Fprintf(&b, "(showing %d of %d rows)", r.RowCount, *r.TotalRows)
	}
	return strings.TrimRight(b.String(), "\n")
}

const helpText = `Commands:
  /sql <query>  - run raw SQL directly
  /clear        - clear the conversation
  /schema       - show the active connection's schema
  /help         - show this help
  /quit, /exit  - exit glance

Anything else is sent to the LLM as a natural-language question about the
connected database.`
