package llmmanager

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glance-db/glance/internal/secretstore"
	"github.com/glance-db/glance/internal/store"
)

func newTestManager(t *testing.T, cli CLIOverride) *Manager {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"), 2, 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	secrets := &secretstore.SecretStorage{}
	m, err := New(context.Background(), st, secrets, cli)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestResolveDefaultsToOpenAIWhenNothingSet(t *testing.T) {
	m := newTestManager(t, CLIOverride{})
	if m.Config().Provider != "openai" {
		t.Fatalf("got provider %q", m.Config().Provider)
	}
	if m.Config().Model != "gpt-4o" {
		t.Fatalf("got model %q", m.Config().Model)
	}
}

func TestCLIOverrideTakesTopPriority(t *testing.T) {
	m := newTestManager(t, CLIOverride{Provider: "anthropic", Model: "claude-opus-4"})
	if m.Config().Provider != "anthropic" || m.Config().Model != "claude-opus-4" {
		t.Fatalf("got %+v", m.Config())
	}
}

func TestPersistedSettingOutranksEnvAndDefault(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"), 2, 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.SetLlmSettings(ctx, store.LlmSettings{Provider: "ollama", Model: "llama3.2:3b"}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	secrets := &secretstore.SecretStorage{}
	m, err := New(ctx, st, secrets, CLIOverride{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if m.Config().Provider != "ollama" {
		t.Fatalf("got provider %q", m.Config().Provider)
	}
}

func TestPersistRefusesWithoutKeyringOrConsent(t *testing.T) {
	m := newTestManager(t, CLIOverride{})
	if err := m.Persist(context.Background(), "openai", "gpt-4o", "sk-test"); err == nil {
		t.Fatalf("expected error without keyring/consent")
	}
}
