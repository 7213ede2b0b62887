// Package llmmanager owns the current LLM client and resolves its settings
// from CLI overrides, persisted settings, environment, and provider
// defaults, in that priority order. This generalizes the teacher's
// database-backed provider Registry (a hot-reloadable, priority-ordered
// table) into a fixed four-layer resolution order, since Glance's
// providers are a closed set rather than an operator-extensible table.
package llmmanager

import (
	"context"
	"os"

	"github.com/glance-db/glance/internal/glanceerr"
	"github.com/glance-db/glance/internal/llm"
	"github.com/glance-db/glance/internal/secretstore"
	"github.com/glance-db/glance/internal/store"
)

// CLIOverride holds flags the user passed explicitly; empty fields fall
// through to lower-priority layers.
type CLIOverride struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

type providerDefaults struct {
	model   string
	baseURL string
	apiKeyEnv string
	modelEnv  string
	urlEnv    string
}

var defaultsByProvider = map[string]providerDefaults{
	"openai":    {model: "gpt-4o", apiKeyEnv: "OPENAI_API_KEY", modelEnv: "OPENAI_MODEL", urlEnv: "OPENAI_BASE_URL"},
	"anthropic": {model: "claude-sonnet-4-5", apiKeyEnv: "ANTHROPIC_API_KEY", modelEnv: "ANTHROPIC_MODEL"},
	"ollama":    {model: "llama3.2:3b", baseURL: "http://localhost:11434", apiKeyEnv: "", modelEnv: "OLLAMA_MODEL", urlEnv: "OLLAMA_URL"},
	"mock":      {model: "mock"},
}

const defaultProvider = "openai"

// Manager owns the live LLM client and the config it was built from.
type Manager struct {
	store   *store.Store
	secrets *secretstore.SecretStorage
	cli     CLIOverride

	client  llm.Client
	config  llm.Config
}

// New resolves settings and builds the initial client.
func New(ctx context.Context, st *store.Store, secrets *secretstore.SecretStorage, cli CLIOverride) (*Manager, error) {
	m := &Manager{store: st, secrets: secrets, cli: cli}
	if err := m.Rebuild(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Client returns the current LLM client.
func (m *Manager) Client() llm.Client { return m.client }

// Config returns the resolved config the current client was built from.
func (m *Manager) Config() llm.Config { return m.config }

// Rebuild re-resolves provider/model/api_key/base_url and swaps the client,
// keeping CLI overrides sticky across calls (they are re-applied every
// time, the highest-priority layer by construction). base_url has no
// persisted layer: it resolves from the CLI override, then the
// environment, then the provider default.
func (m *Manager) Rebuild(ctx context.Context) error {
	provider := m.resolveProvider(ctx)
	defaults := defaultsByProvider[provider]

	model := firstNonEmpty(m.cli.Model, m.persistedModel(ctx, provider), os.Getenv(defaults.modelEnv), defaults.model)
	baseURL := firstNonEmpty(m.cli.BaseURL, "", os.Getenv(defaults.urlEnv), defaults.baseURL)
	apiKey := firstNonEmpty(m.cli.APIKey, m.persistedAPIKey(ctx, provider), os.Getenv(defaults.apiKeyEnv), "")

	cfg := llm.Config{Provider: provider, Model: model, APIKey: apiKey, BaseURL: baseURL}
	m.client = llm.New(cfg)
	m.config = cfg
	return nil
}

func (m *Manager) resolveProvider(ctx context.Context) string {
	if m.cli.Provider != "" {
		return m.cli.Provider
	}
	if settings, ok, err := m.store.GetLlmSettings(ctx); err == nil && ok && settings.Provider != "" {
		return settings.Provider
	}
	if p := os.Getenv("GLANCE_LLM_PROVIDER"); p != "" {
		return p
	}
	return defaultProvider
}

func (m *Manager) persistedModel(ctx context.Context, provider string) string {
	settings, ok, err := m.store.GetLlmSettings(ctx)
	if err != nil || !ok || settings.Provider != provider {
		return ""
	}
	return settings.Model
}

func (m *Manager) persistedAPIKey(ctx context.Context, provider string) string {
	settings, ok, err := m.store.GetLlmSettings(ctx)
	if err != nil || !ok || settings.Provider != provider {
		return ""
	}
	switch settings.APIKeyStorage {
	case store.SecretKeychain:
		key, err := m.secrets.GetAPIKey(provider)
		if err != nil {
			return ""
		}
		return key
	case store.SecretPlaintext:
		return settings.APIKeyPlaintext
	default:
		return ""
	}
}

// Persist saves provider/model/api_key as the new persisted settings,
// preferring the keyring and falling back to plaintext only if the secret
// store has PlaintextConsented.
func (m *Manager) Persist(ctx context.Context, provider, model, apiKey string) error {
	settings := store.LlmSettings{Provider: provider, Model: model}

	switch m.secrets.State() {
	case secretstore.KeyringAvailable:
		if apiKey != "" {
			if err := m.secrets.SetAPIKey(provider, apiKey); err != nil {
				return err
			}
		}
		settings.APIKeyStorage = store.SecretKeychain
	case secretstore.PlaintextConsented:
		settings.APIKeyStorage = store.SecretPlaintext
		settings.APIKeyPlaintext = apiKey
	default:
		return glanceerr.ConfigErr("Cannot store API key: no keyring available and plaintext storage was not consented to (--allow-plaintext)")
	}

	return m.store.SetLlmSettings(ctx, settings)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
