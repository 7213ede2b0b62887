package actor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glance-db/glance/internal/connmgr"
	"github.com/glance-db/glance/internal/dbvalue"
	"github.com/glance-db/glance/internal/llm"
	"github.com/glance-db/glance/internal/llmservice"
	"github.com/glance-db/glance/internal/orchestrator"
	"github.com/glance-db/glance/internal/pgclient"
	"github.com/glance-db/glance/internal/promptcache"
	"github.com/glance-db/glance/internal/schema"
	"github.com/glance-db/glance/internal/secretstore"
	"github.com/glance-db/glance/internal/store"
)

type noSavedQueries struct{}

func (noSavedQueries) ListSavedQueries(ctx context.Context, connectionName, tag, text string, limit int) ([]store.SavedQuery, error) {
	return nil, nil
}

func newTestActor(t *testing.T) (*Actor, *connmgr.Manager, *pgclient.MockClient) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"), 2, time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	conn := connmgr.New(st, &secretstore.SecretStorage{}, 2)
	svc := llmservice.New(llm.NewMockClient(), promptcache.New(), noSavedQueries{})
	orch := orchestrator.New(conn, nil, svc, st)

	mock := pgclient.NewMockClient(schema.Schema{})
	if err := conn.Adopt(context.Background(), "test", "testdb", mock); err != nil {
		t.Fatalf("adopt mock: %v", err)
	}

	a := New(orch, &secretstore.SecretStorage{}, 10)
	return a, conn, mock
}

func newCmdCtx() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

func drainUntil[T any](t *testing.T, ch <-chan Response, timeout time.Duration) T {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case r := <-ch:
			if v, ok := r.(T); ok {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestClassifyCommandIsPureMapping(t *testing.T) {
	ctx, cancel := newCmdCtx()
	defer cancel()

	action := classifyCommand(ProcessInput{ID: 1, Text: "hello", Ctx: ctx, Cancel: cancel})
	enq, ok := action.(actionEnqueueInput)
	if !ok || enq.Raw {
		t.Fatalf("expected non-raw actionEnqueueInput, got %#v", action)
	}

	action = classifyCommand(ExecuteSql{ID: 2, Sql: "SELECT 1", Ctx: ctx, Cancel: cancel})
	enq, ok = action.(actionEnqueueInput)
	if !ok || !enq.Raw {
		t.Fatalf("expected raw actionEnqueueInput, got %#v", action)
	}

	if _, ok := classifyCommand(CancelAll{}).(actionCancelAll); !ok {
		t.Fatal("expected actionCancelAll")
	}
	if _, ok := classifyCommand(Shutdown{}).(actionShutdown); !ok {
		t.Fatal("expected actionShutdown")
	}
}

func TestActorRunsSafeStatementToCompletion(t *testing.T) {
	a, _, mock := newTestActor(t)
	mock.Results["SELECT 1"] = dbvalue.QueryResult{RowCount: 1}

	go a.Run()

	ctx, cancel := newCmdCtx()
	defer cancel()
	id := a.NextID()
	a.Commands() <- ExecuteSql{ID: id, Sql: "SELECT 1", Ctx: ctx, Cancel: cancel}

	qc := drainUntil[QueryCompleted](t, a.Responses(), 2*time.Second)
	if qc.ID != id {
		t.Fatalf("expected completion for request %d, got %d", id, qc.ID)
	}

	a.Commands() <- Shutdown{}
	drainClosed(t, a.Responses(), 2*time.Second)
}

func TestActorPausesQueueForConfirmationThenResumes(t *testing.T) {
	a, _, mock := newTestActor(t)
	mock.Results["DELETE FROM users"] = dbvalue.QueryResult{}

	go a.Run()

	ctx, cancel := newCmdCtx()
	defer cancel()
	id := a.NextID()
	a.Commands() <- ExecuteSql{ID: id, Sql: "DELETE FROM users", Ctx: ctx, Cancel: cancel}

	nc := drainUntil[NeedsConfirmationResponse](t, a.Responses(), 2*time.Second)
	if nc.Sql != "DELETE FROM users" {
		t.Fatalf("unexpected sql in confirmation: %q", nc.Sql)
	}

	confirmCtx, confirmCancel := newCmdCtx()
	defer confirmCancel()
	confirmID := a.NextID()
	a.Commands() <- ConfirmQuery{ID: confirmID, Sql: nc.Sql, Ctx: confirmCtx, Cancel: confirmCancel}

	qc := drainUntil[QueryCompleted](t, a.Responses(), 2*time.Second)
	if qc.ID != confirmID {
		t.Fatalf("expected completion for confirm request %d, got %d", confirmID, qc.ID)
	}
	if len(mock.Queries) != 1 {
		t.Fatalf("expected exactly one execution, ran %v", mock.Queries)
	}

	a.Commands() <- Shutdown{}
	drainClosed(t, a.Responses(), 2*time.Second)
}

func TestActorCancelPendingQueryClearsConfirmationGate(t *testing.T) {
	a, _, mock := newTestActor(t)
	mock.Results["DELETE FROM users"] = dbvalue.QueryResult{}

	go a.Run()

	ctx, cancel := newCmdCtx()
	defer cancel()
	id := a.NextID()
	a.Commands() <- ExecuteSql{ID: id, Sql: "DELETE FROM users", Ctx: ctx, Cancel: cancel}
	drainUntil[NeedsConfirmationResponse](t, a.Responses(), 2*time.Second)

	a.Commands() <- CancelPendingQuery{}
	drainUntil[PendingQueryCancelled](t, a.Responses(), 2*time.Second)

	// The gate must be clear: a second statement should run without
	// needing to clear anything first.
	mock.Results["SELECT 1"] = dbvalue.QueryResult{RowCount: 1}
	ctx2, cancel2 := newCmdCtx()
	defer cancel2()
	id2 := a.NextID()
	a.Commands() <- ExecuteSql{ID: id2, Sql: "SELECT 1", Ctx: ctx2, Cancel: cancel2}
	qc := drainUntil[QueryCompleted](t, a.Responses(), 2*time.Second)
	if qc.ID != id2 {
		t.Fatalf("expected completion for %d, got %d", id2, qc.ID)
	}

	a.Commands() <- Shutdown{}
	drainClosed(t, a.Responses(), 2*time.Second)
}

func TestActorQueueFullRejectsBeyondMaxDepth(t *testing.T) {
	built, _, _ := newTestActor(t)
	a := New(built.orch, built.secrets, 1)

	// All three commands are buffered before Run starts, so the loop drains
	// them in one pass: the first goes in flight, the second fills the one
	// pending slot, and the third is beyond max depth.
	var id int64
	for i := 0; i < 3; i++ {
		ctx, cancel := newCmdCtx()
		defer cancel()
		id = a.NextID()
		a.Commands() <- ProcessInput{ID: id, Text: "hello there", Ctx: ctx, Cancel: cancel}
	}

	go a.Run()

	qf := drainUntil[QueueFull](t, a.Responses(), 2*time.Second)
	if qf.ID != id {
		t.Fatalf("expected QueueFull for %d, got %d", id, qf.ID)
	}

	a.Commands() <- Shutdown{}
	drainClosed(t, a.Responses(), 2*time.Second)
}

func drainClosed(t *testing.T, ch <-chan Response, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for response channel to close")
			return
		}
	}
}
