// Package connmgr owns the single active database connection and its
// introspected schema, hot-swapping between persisted connection profiles.
package connmgr

import (
	"context"

	"github.com/glance-db/glance/internal/glanceerr"
	"github.com/glance-db/glance/internal/pgclient"
	"github.com/glance-db/glance/internal/schema"
	"github.com/glance-db/glance/internal/secretstore"
	"github.com/glance-db/glance/internal/store"
)

// ActiveConnection is the currently connected database plus its schema.
type ActiveConnection struct {
	Name     string
	Database string
	DB       pgclient.DatabaseClient
	Schema   schema.Schema
}

// Manager owns at most one ActiveConnection.
type Manager struct {
	store    *store.Store
	secrets  *secretstore.SecretStorage
	poolSize int
	active   *ActiveConnection
}

// New constructs a connection manager with no active connection.
func New(st *store.Store, secrets *secretstore.SecretStorage, poolSize int) *Manager {
	return &Manager{store: st, secrets: secrets, poolSize: poolSize}
}

// Active returns the current connection, or nil if none is open.
func (m *Manager) Active() *ActiveConnection { return m.active }

// Connect opens a direct (unnamed) connection from explicit fields, e.g.
// the CLI's positional connection string or -H/-p/-d/-U flags.
func (m *Manager) Connect(ctx context.Context, cfg pgclient.Config) error {
	client, err := pgclient.Connect(ctx, cfg, m.poolSize)
	if err != nil {
		return err
	}
	return m.Adopt(ctx, "", cfg.Database, client)
}

// SwitchTo loads a persisted profile, retrieves its password, opens a new
// client, introspects its schema, and only then closes the previous
// connection — so a failed switch preserves the old one.
func (m *Manager) SwitchTo(ctx context.Context, name string) error {
	profile, err := m.store.GetConnection(ctx, name)
	if err != nil {
		return err
	}

	password, err := m.resolvePassword(profile)
	if err != nil {
		return err
	}

	cfg := pgclient.Config{
		Host:     profile.Host,
		Port:     profile.Port,
		Database: profile.Database,
		User:     profile.Username,
		Password: password,
		SSLMode:  profile.SSLMode,
	}

	client, err := pgclient.Connect(ctx, cfg, m.poolSize)
	if err != nil {
		return err
	}

	if err := m.Adopt(ctx, name, profile.Database, client); err != nil {
		client.Close()
		return err
	}

	return m.store.TouchConnection(ctx, name)
}

func (m *Manager) resolvePassword(p store.ConnectionProfile) (string, error) {
	switch p.PasswordStorage {
	case store.SecretKeychain:
		return m.secrets.GetConnectionPassword(p.Name)
	case store.SecretPlaintext:
		return p.PasswordPlaintext, nil
	default:
		return "", nil
	}
}

// Adopt introspects client's schema and makes it the active connection,
// only closing the previous one on success. Exported so test callers can
// install a pgclient.DatabaseClient double without a real network dial.
func (m *Manager) Adopt(ctx context.Context, name, database string, client pgclient.DatabaseClient) error {
	sch, err := client.IntrospectSchema(ctx)
	if err != nil {
		return glanceerr.Wrap(glanceerr.Connection, "Connected, but failed to introspect schema", err)
	}

	previous := m.active
	m.active = &ActiveConnection{Name: name, Database: database, DB: client, Schema: sch}
	if previous != nil {
		previous.DB.Close()
	}
	return nil
}

// Refresh re-introspects the schema of the active connection.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.active == nil {
		return glanceerr.InternalErr("no active connection to refresh")
	}
	sch, err := m.active.DB.IntrospectSchema(ctx)
	if err != nil {
		return err
	}
	m.active.Schema = sch
	return nil
}

// Close closes the active connection, if any.
func (m *Manager) Close() error {
	if m.active == nil {
		return nil
	}
	err := m.active.DB.Close()
	m.active = nil
	return err
}
