package router

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glance-db/glance/internal/connmgr"
	"github.com/glance-db/glance/internal/llmmanager"
	"github.com/glance-db/glance/internal/secretstore"
	"github.com/glance-db/glance/internal/store"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"), 2, time.Second)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	secrets := &secretstore.SecretStorage{}
	conn := connmgr.New(st, secrets, 2)
	llmMgr, err := llmmanager.New(context.Background(), st, secrets, llmmanager.CLIOverride{Provider: "mock"})
	if err != nil {
		t.Fatalf("new llm manager: %v", err)
	}
	return New(st, conn, llmMgr, secrets)
}

func TestHandlesRecognizesRouterPrefixesOnly(t *testing.T) {
	r := newTestRouter(t)
	if !r.Handles("/connections") {
		t.Fatal("expected /connections to be handled")
	}
	if r.Handles("/sql SELECT 1") {
		t.Fatal("expected /sql to not be handled by the router")
	}
}

func TestConnAddThenListShowsConnection(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	if _, err := r.Handle(ctx, "/conn add mydb host=localhost port=5433 database=app username=alice"); err != nil {
		t.Fatalf("conn add: %v", err)
	}

	out, err := r.Handle(ctx, "/connections")
	if err != nil {
		t.Fatalf("connections: %v", err)
	}
	if !strings.Contains(out, "mydb") || !strings.Contains(out, "alice@localhost:5433/app") {
		t.Fatalf("unexpected connections listing: %q", out)
	}
}

func TestConnDeleteRemovesConnection(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	if _, err := r.Handle(ctx, "/conn add mydb host=localhost database=app username=alice"); err != nil {
		t.Fatalf("conn add: %v", err)
	}
	if _, err := r.Handle(ctx, "/conn delete mydb"); err != nil {
		t.Fatalf("conn delete: %v", err)
	}
	out, err := r.Handle(ctx, "/connections")
	if err != nil {
		t.Fatalf("connections: %v", err)
	}
	if out != "No saved connections." {
		t.Fatalf("expected connection to be gone, got %q", out)
	}
}

func TestSaveQueryThenUseQueryIncrementsUsage(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	if _, err := r.Handle(ctx, "/savequery top-users SELECT * FROM users LIMIT 10"); err != nil {
		t.Fatalf("savequery: %v", err)
	}

	sql, err := r.Handle(ctx, "/usequery top-users")
	if err != nil {
		t.Fatalf("usequery: %v", err)
	}
	if sql != "SELECT * FROM users LIMIT 10" {
		t.Fatalf("unexpected sql: %q", sql)
	}
}

func TestQueryDeleteRemovesSavedQuery(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	if _, err := r.Handle(ctx, "/savequery top-users SELECT 1"); err != nil {
		t.Fatalf("savequery: %v", err)
	}
	if _, err := r.Handle(ctx, "/query delete top-users"); err != nil {
		t.Fatalf("query delete: %v", err)
	}
	if _, err := r.Handle(ctx, "/usequery top-users"); err == nil {
		t.Fatal("expected usequery to fail after deletion")
	}
}

func TestVimTogglesState(t *testing.T) {
	r := newTestRouter(t)
	if r.VimMode() {
		t.Fatal("expected vim mode to start off")
	}
	if _, err := r.Handle(context.Background(), "/vim"); err != nil {
		t.Fatalf("vim: %v", err)
	}
	if !r.VimMode() {
		t.Fatal("expected vim mode to be on after toggling")
	}
}

func TestHistoryEmptyByDefault(t *testing.T) {
	r := newTestRouter(t)
	out, err := r.Handle(context.Background(), "/history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if out != "No history." {
		t.Fatalf("expected empty history, got %q", out)
	}
}

func TestLlmShowsCurrentSettings(t *testing.T) {
	r := newTestRouter(t)
	out, err := r.Handle(context.Background(), "/llm")
	if err != nil {
		t.Fatalf("llm: %v", err)
	}
	if !strings.Contains(out, "provider=mock") {
		t.Fatalf("expected mock provider in output, got %q", out)
	}
}
