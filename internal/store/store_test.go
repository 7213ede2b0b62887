package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path, 2, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesMigrationsToCurrentVersion(t *testing.T) {
	s := openTestStore(t)
	var version int
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_versions").Scan(&version); err != nil {
		t.Fatalf("query version: %v", err)
	}
	if version != CurrentVersion {
		t.Fatalf("got version %d, want %d", version, CurrentVersion)
	}
}

func TestOpenRecoversFromCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	if err := os.WriteFile(path, []byte("not a sqlite file, definitely garbage bytes"), 0o644); err != nil {
		t.Fatalf("seed garbage file: %v", err)
	}

	s, err := Open(path, 2, 0)
	if err != nil {
		t.Fatalf("expected recovery, got error: %v", err)
	}
	defer s.Close()

	if !s.Recovered {
		t.Fatalf("expected Recovered=true")
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
}

func TestUpsertAndGetConnection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := ConnectionProfile{Name: "prod", Backend: "postgres", Database: "app", Host: "db.internal", Port: 5432, Username: "bob", PasswordStorage: SecretKeychain}
	if err := s.UpsertConnection(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetConnection(ctx, "prod")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Database != "app" || got.Host != "db.internal" || got.PasswordStorage != SecretKeychain {
		t.Fatalf("got %+v", got)
	}
}

func TestListConnectionsOrdersByName(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.UpsertConnection(ctx, ConnectionProfile{Name: "zeta", Database: "d"})
	s.UpsertConnection(ctx, ConnectionProfile{Name: "alpha", Database: "d"})

	list, err := s.ListConnections(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "zeta" {
		t.Fatalf("got %+v", list)
	}
}

func TestSaveAndListSavedQueryWithTags(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveQuery(ctx, SavedQuery{Name: "top-users", SQL: "SELECT * FROM users LIMIT 10", Tags: []string{"users", "reporting"}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected non-zero id")
	}

	list, err := s.ListSavedQueries(ctx, "", "reporting", "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "top-users" {
		t.Fatalf("got %+v", list)
	}
	if len(list[0].Tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", list[0].Tags)
	}
}

func TestRecordHistoryAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	execMs := int64(42)
	rows := 3
	err := s.RecordHistory(ctx, HistoryEntry{SubmittedBy: SubmittedByUser, SQL: "SELECT 1", Status: HistorySuccess, ExecutionTimeMs: &execMs, RowCount: &rows})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	list, err := s.ListHistory(ctx, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].SQL != "SELECT 1" || list[0].Status != HistorySuccess {
		t.Fatalf("got %+v", list)
	}
}

func TestLlmSettingsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetLlmSettings(ctx); err != nil || ok {
		t.Fatalf("expected no settings yet, ok=%v err=%v", ok, err)
	}

	err := s.SetLlmSettings(ctx, LlmSettings{Provider: "openai", Model: "gpt-4o", APIKeyStorage: SecretKeychain})
	if err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := s.GetLlmSettings(ctx)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Provider != "openai" || got.Model != "gpt-4o" {
		t.Fatalf("got %+v", got)
	}
}

func TestWithRetryStopsOnNonTransientError(t *testing.T) {
	attempts := 0
	_, err := WithRetry(context.Background(), func() (int, error) {
		attempts++
		return 0, errUnrelated{}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
}

type errUnrelated struct{}

func (errUnrelated) Error() string { return "syntax error near SELECT" }
