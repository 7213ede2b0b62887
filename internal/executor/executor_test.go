package executor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glance-db/glance/internal/dbvalue"
	"github.com/glance-db/glance/internal/pgclient"
	"github.com/glance-db/glance/internal/safety"
	"github.com/glance-db/glance/internal/schema"
	"github.com/glance-db/glance/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"), 1, time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestExecuteSafeStatementRuns(t *testing.T) {
	mock := pgclient.NewMockClient(schema.Schema{})
	mock.Results["SELECT 1"] = dbvalue.QueryResult{RowCount: 1, Rows: [][]dbvalue.Value{{dbvalue.Int(1)}}}

	ex := New(mock, nil, "")
	outcome := ex.Execute(context.Background(), "SELECT 1", SourceManual)

	success, ok := outcome.(Success)
	if !ok {
		t.Fatalf("expected Success, got %#v", outcome)
	}
	if success.Result.RowCount != 1 {
		t.Fatalf("got %+v", success.Result)
	}
}

func TestExecuteMutatingStatementNeedsConfirmation(t *testing.T) {
	mock := pgclient.NewMockClient(schema.Schema{})
	ex := New(mock, nil, "")

	outcome := ex.Execute(context.Background(), "DELETE FROM users", SourceGenerated)

	nc, ok := outcome.(NeedsConfirmation)
	if !ok {
		t.Fatalf("expected NeedsConfirmation, got %#v", outcome)
	}
	if nc.Classification.Level != safety.Mutating && nc.Classification.Level != safety.Destructive {
		t.Fatalf("expected non-Safe classification, got %v", nc.Classification.Level)
	}
	if len(mock.Queries) != 0 {
		t.Fatalf("expected no query to run before confirmation, ran %v", mock.Queries)
	}
}

func TestExecuteConfirmedBypassesGate(t *testing.T) {
	mock := pgclient.NewMockClient(schema.Schema{})
	mock.Results["DELETE FROM users"] = dbvalue.QueryResult{}

	ex := New(mock, nil, "")
	outcome := ex.ExecuteConfirmed(context.Background(), "DELETE FROM users", SourceGenerated)

	if _, ok := outcome.(Success); !ok {
		t.Fatalf("expected Success, got %#v", outcome)
	}
	if len(mock.Queries) != 1 {
		t.Fatalf("expected the statement to run, ran %v", mock.Queries)
	}
}

func TestExecuteFailureStillReturnsFailure(t *testing.T) {
	mock := pgclient.NewMockClient(schema.Schema{})
	mock.DefaultErr = errors.New("syntax error")

	ex := New(mock, nil, "")
	outcome := ex.Execute(context.Background(), "SELECT bogus", SourceManual)

	fail, ok := outcome.(Failure)
	if !ok {
		t.Fatalf("expected Failure, got %#v", outcome)
	}
	if fail.Err == nil {
		t.Fatal("expected non-nil error")
	}
}

func TestExecuteRecordsHistoryAsynchronously(t *testing.T) {
	mock := pgclient.NewMockClient(schema.Schema{})
	mock.Results["SELECT 1"] = dbvalue.QueryResult{RowCount: 0}

	st := openTestStore(t)
	ex := New(mock, st, "local")
	ex.Execute(context.Background(), "SELECT 1", SourceManual)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := st.ListHistory(context.Background(), "", 10)
		if err != nil {
			t.Fatalf("list history: %v", err)
		}
		if len(entries) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("history row never appeared")
}
