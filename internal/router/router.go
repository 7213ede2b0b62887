// Package router implements the richer slash-commands from §6 that sit
// outside the orchestrator actor's five core commands: connection
// management, history, saved queries, and LLM settings. It is a thin layer
// over internal/store, internal/connmgr, internal/llmmanager, and
// internal/secretstore — composed by the REPL front-end alongside the
// actor rather than folded into it, since these commands read/write
// persisted state synchronously and have no need for queueing or
// cancellation.
package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/glance-db/glance/internal/connmgr"
	"github.com/glance-db/glance/internal/glanceerr"
	"github.com/glance-db/glance/internal/llmmanager"
	"github.com/glance-db/glance/internal/secretstore"
	"github.com/glance-db/glance/internal/store"
)

// Router dispatches the companion slash-commands against persisted state.
type Router struct {
	store   *store.Store
	conn    *connmgr.Manager
	llmMgr  *llmmanager.Manager
	secrets *secretstore.SecretStorage
	vimMode bool
}

// New builds a router over the same persistence, connection, LLM, and
// secret capabilities the orchestrator and actor already hold.
func New(st *store.Store, conn *connmgr.Manager, llmMgr *llmmanager.Manager, secrets *secretstore.SecretStorage) *Router {
	return &Router{store: st, conn: conn, llmMgr: llmMgr, secrets: secrets}
}

var prefixes = []string{
	"/connections", "/connect", "/conn", "/history", "/savequery",
	"/queries", "/usequery", "/query", "/llm", "/vim",
}

// Handles reports whether text names one of the router's commands, so the
// REPL can route it here instead of through the actor.
func (r *Router) Handles(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd := strings.ToLower(fields[0])
	for _, p := range prefixes {
		if cmd == p {
			return true
		}
	}
	return false
}

// VimMode reports whether vim-style line editing was toggled on.
func (r *Router) VimMode() bool { return r.vimMode }

// Handle runs one router command and returns its rendered reply.
func (r *Router) Handle(ctx context.Context, text string) (string, error) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/connections":
		return r.listConnections(ctx)
	case "/connect":
		return r.connect(ctx, args)
	case "/conn":
		return r.connCommand(ctx, args)
	case "/history":
		return r.history(ctx, args)
	case "/savequery":
		return r.saveQuery(ctx, args)
	case "/queries":
		return r.listQueries(ctx, args)
	case "/usequery":
		return r.useQuery(ctx, args)
	case "/query":
		return r.query(ctx, args)
	case "/llm":
		return r.llm(ctx, args)
	case "/vim":
		r.vimMode = !r.vimMode
		return fmt.Sprintf("vim mode: %v", r.vimMode), nil
	default:
		return "", glanceerr.ConfigErr("unrecognized router command: " + cmd)
	}
}

func (r *Router) listConnections(ctx context.Context) (string, error) {
	profiles, err := r.store.ListConnections(ctx)
	if err != nil {
		return "", err
	}
	if len(profiles) == 0 {
		return "No saved connections.", nil
	}
	var b strings.Builder
	active := r.conn.Active()
	for _, p := range profiles {
		marker := "  "
		if active != nil && active.Name == p.Name {
			marker = "* "
		}
		fmt.Fprintf(&b, "%s%s\t%s@%s:%d/%s\n", marker, p.Name, p.Username, p.Host, p.Port, p.Database)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Router) connect(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", glanceerr.ConfigErr("usage: /connect <name>")
	}
	if err := r.conn.SwitchTo(ctx, args[0]); err != nil {
		return "", err
	}
	return fmt.Sprintf("Connected to %q.", args[0]), nil
}

func (r *Router) connCommand(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", glanceerr.ConfigErr("usage: /conn add|edit|delete <name> [key=value ...]")
	}
	switch args[0] {
	case "add", "edit":
		return r.connUpsert(ctx, args[1:])
	case "delete":
		return r.connDelete(ctx, args[1:])
	default:
		return "", glanceerr.ConfigErr("usage: /conn add|edit|delete <name> [key=value ...]")
	}
}

func (r *Router) connUpsert(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", glanceerr.ConfigErr("usage: /conn add <name> host=... port=... database=... username=... password=... sslmode=...")
	}
	name := args[0]
	fields := parseKeyValues(args[1:])

	profile := store.ConnectionProfile{
		Name:     name,
		Backend:  "postgres",
		Database: fields["database"],
		Host:     fields["host"],
		Port:     5432,
		Username: fields["username"],
		SSLMode:  fields["sslmode"],
	}
	if existing, err := r.store.GetConnection(ctx, name); err == nil {
		profile = existing
		for k, v := range fields {
			switch k {
			case "host":
				profile.Host = v
			case "database":
				profile.Database = v
			case "username":
				profile.Username = v
			case "sslmode":
				profile.SSLMode = v
			}
		}
	}
	if p, ok := fields["port"]; ok {
		if port, err := strconv.Atoi(p); err == nil {
			profile.Port = port
		}
	} else if profile.Port == 0 {
		profile.Port = 5432
	}

	if password, ok := fields["password"]; ok {
		storage, plaintext, err := r.resolveSecretForPassword(name, password)
		if err != nil {
			return "", err
		}
		profile.PasswordStorage = storage
		profile.PasswordPlaintext = plaintext
	}

	if err := r.store.UpsertConnection(ctx, profile); err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved connection %q.", name), nil
}

func (r *Router) resolveSecretForPassword(name, password string) (store.SecretStorage, string, error) {
	switch r.secrets.State() {
	case secretstore.KeyringAvailable:
		if err := r.secrets.SetConnectionPassword(name, password); err != nil {
			return "", "", err
		}
		return store.SecretKeychain, "", nil
	case secretstore.PlaintextConsented:
		return store.SecretPlaintext, password, nil
	default:
		return "", "", glanceerr.ConfigErr("cannot store password: no keyring available and plaintext storage was not consented to (--allow-plaintext)")
	}
}

func (r *Router) connDelete(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", glanceerr.ConfigErr("usage: /conn delete <name>")
	}
	if err := r.store.DeleteConnection(ctx, args[0]); err != nil {
		return "", err
	}
	_ = r.secrets.DeleteConnectionPassword(args[0])
	return fmt.Sprintf("Deleted connection %q.", args[0]), nil
}

func (r *Router) history(ctx context.Context, args []string) (string, error) {
	connectionName := r.activeConnectionName()
	if len(args) > 0 && args[0] == "clear" {
		if err := r.store.ClearHistory(ctx, connectionName); err != nil {
			return "", err
		}
		return "History cleared.", nil
	}
	entries, err := r.store.ListHistory(ctx, connectionName, 20)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No history.", nil
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s — %s\n", e.Status, e.SubmittedBy, e.SQL)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Router) saveQuery(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", glanceerr.ConfigErr("usage: /savequery <name> <sql...>")
	}
	q := store.SavedQuery{
		Name:           args[0],
		SQL:            strings.Join(args[1:], " "),
		ConnectionName: r.activeConnectionName(),
	}
	if _, err := r.store.SaveQuery(ctx, q); err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved query %q.", q.Name), nil
}

func (r *Router) listQueries(ctx context.Context, args []string) (string, error) {
	tag := ""
	if len(args) > 0 {
		tag = args[0]
	}
	queries, err := r.store.ListSavedQueries(ctx, "", tag, "", 50)
	if err != nil {
		return "", err
	}
	if len(queries) == 0 {
		return "No saved queries.", nil
	}
	var b strings.Builder
	for _, q := range queries {
		fmt.Fprintf(&b, "%s\t%s\n", q.Name, q.SQL)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Router) useQuery(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", glanceerr.ConfigErr("usage: /usequery <name>")
	}
	queries, err := r.store.ListSavedQueries(ctx, "", "", args[0], 1)
	if err != nil {
		return "", err
	}
	if len(queries) == 0 {
		return "", glanceerr.ConfigErr("no saved query named " + args[0])
	}
	q := queries[0]
	_ = r.store.IncrementUsage(ctx, q.ID)
	return q.SQL, nil
}

func (r *Router) query(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 || args[0] != "delete" {
		return "", glanceerr.ConfigErr("usage: /query delete <name>")
	}
	queries, err := r.store.ListSavedQueries(ctx, "", "", args[1], 1)
	if err != nil {
		return "", err
	}
	if len(queries) == 0 {
		return "", glanceerr.ConfigErr("no saved query named " + args[1])
	}
	if err := r.store.DeleteSavedQuery(ctx, queries[0].ID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted query %q.", args[1]), nil
}

func (r *Router) llm(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		cfg := r.llmMgr.Config()
		return fmt.Sprintf("provider=%s model=%s", cfg.Provider, cfg.Model), nil
	}
	switch args[0] {
	case "provider":
		if len(args) != 2 {
			return "", glanceerr.ConfigErr("usage: /llm provider <name>")
		}
		cfg := r.llmMgr.Config()
		if err := r.llmMgr.Persist(ctx, args[1], cfg.Model, cfg.APIKey); err != nil {
			return "", err
		}
		if err := r.llmMgr.Rebuild(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("LLM provider set to %q.", args[1]), nil
	case "model":
		if len(args) != 2 {
			return "", glanceerr.ConfigErr("usage: /llm model <name>")
		}
		cfg := r.llmMgr.Config()
		if err := r.llmMgr.Persist(ctx, cfg.Provider, args[1], cfg.APIKey); err != nil {
			return "", err
		}
		if err := r.llmMgr.Rebuild(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("LLM model set to %q.", args[1]), nil
	case "key":
		if len(args) != 2 {
			return "", glanceerr.ConfigErr("usage: /llm key <api-key>")
		}
		cfg := r.llmMgr.Config()
		if err := r.llmMgr.Persist(ctx, cfg.Provider, cfg.Model, args[1]); err != nil {
			return "", err
		}
		if err := r.llmMgr.Rebuild(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("LLM API key set to %s.", secretstore.Mask(args[1])), nil
	default:
		return "", glanceerr.ConfigErr("usage: /llm [provider|model|key] <value>")
	}
}

func (r *Router) activeConnectionName() string {
	if active := r.conn.Active(); active != nil {
		return active.Name
	}
	return ""
}

func parseKeyValues(args []string) map[string]string {
	out := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
