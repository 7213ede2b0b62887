// Package executor runs classified SQL against the active connection and
// records the outcome to persistent history without blocking the caller.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/glance-db/glance/internal/dbvalue"
	"github.com/glance-db/glance/internal/pgclient"
	"github.com/glance-db/glance/internal/safety"
	"github.com/glance-db/glance/internal/store"
)

// Source identifies who produced the SQL being executed, for history
// attribution and log-entry phrasing.
type Source int

const (
	// SourceManual is raw SQL typed by the user via /sql.
	SourceManual Source = iota
	// SourceGenerated is LLM-produced SQL that required confirmation.
	SourceGenerated
	// SourceAuto is LLM-produced SQL that was Safe and ran without
	// confirmation.
	SourceAuto
)

func (s Source) submittedBy() store.SubmittedBy {
	if s == SourceManual {
		return store.SubmittedByUser
	}
	return store.SubmittedByLLM
}

// Outcome is the closed result of one execute attempt.
type Outcome interface{ isOutcome() }

// Success carries the query result of a statement that ran.
type Success struct {
	Result        dbvalue.QueryResult
	ExecutionTime time.Duration
	LogEntry      store.HistoryEntry
}

// NeedsConfirmation is returned when classification found the statement
// Mutating or Destructive and execution did not proceed.
type NeedsConfirmation struct {
	SQL            string
	Classification safety.Result
}

// Failure wraps any error from executing the statement, whether it ran
// through Execute or ExecuteConfirmed.
type Failure struct{ Err error }

func (Success) isOutcome()           {}
func (NeedsConfirmation) isOutcome() {}
func (Failure) isOutcome()           {}

// Executor runs SQL against one database client and, when a persistence
// store is configured, records history asynchronously.
type Executor struct {
	db             pgclient.DatabaseClient
	persist        *store.Store
	connectionName string
}

// New builds an executor bound to db. persist may be nil, in which case
// history recording is skipped entirely.
func New(db pgclient.DatabaseClient, persist *store.Store, connectionName string) *Executor {
	return &Executor{db: db, persist: persist, connectionName: connectionName}
}

// Execute classifies sqlText and, if Safe, runs it; otherwise it returns
// NeedsConfirmation without touching the database.
func (e *Executor) Execute(ctx context.Context, sqlText string, source Source) Outcome {
	cls := safety.Classify(sqlText)
	if cls.Level != safety.Safe {
		return NeedsConfirmation{SQL: sqlText, Classification: cls}
	}
	return e.run(ctx, sqlText, source, cls)
}

// ExecuteConfirmed runs sqlText unconditionally, bypassing the
// Safe-only gate in Execute. Used for the confirmation-path re-submission
// of a previously classified statement.
func (e *Executor) ExecuteConfirmed(ctx context.Context, sqlText string, source Source) Outcome {
	cls := safety.Classify(sqlText)
	return e.run(ctx, sqlText, source, cls)
}

func (e *Executor) run(ctx context.Context, sqlText string, source Source, cls safety.Result) Outcome {
	requestID := uuid.NewString()
	start := time.Now()
	result, err := e.db.ExecuteQuery(ctx, sqlText)
	elapsed := time.Since(start)
	slog.Debug("statement executed", "request_id", requestID, "elapsed_ms", elapsed.Milliseconds(), "error", err != nil)

	entry := store.HistoryEntry{
		ConnectionName: e.connectionName,
		SubmittedBy:    source.submittedBy(),
		SQL:            sqlText,
		Status:         store.HistorySuccess,
		CreatedAt:      start,
	}
	elapsedMs := elapsed.Milliseconds()
	entry.ExecutionTimeMs = &elapsedMs

	if err != nil {
		entry.Status = store.HistoryError
		entry.ErrorMessage = err.Error()
		e.recordAsync(entry)
		return Failure{Err: err}
	}

	rowCount := result.RowCount
	entry.RowCount = &rowCount
	e.recordAsync(entry)

	return Success{Result: result, ExecutionTime: elapsed, LogEntry: entry}
}

// recordAsync fire-and-forgets the history write on a context detached
// from ctx, so a cancelled request never cancels its own history record,
// and a history failure never fails the query that produced it.
func (e *Executor) recordAsync(entry store.HistoryEntry) {
	if e.persist == nil {
		return
	}
	go func() {
		_, err := store.WithRetry(context.Background(), func() (struct{}, error) {
			return struct{}{}, e.persist.RecordHistory(context.Background(), entry)
		})
		if err != nil {
			slog.Warn("history record failed", "connection", entry.ConnectionName, "error", err)
		}
	}()
}
