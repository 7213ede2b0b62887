package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/glance-db/glance/internal/glanceerr"
)

// UpsertConnection inserts or replaces a connection profile by name.
func (s *Store) UpsertConnection(ctx context.Context, p ConnectionProfile) error {
	_, err := WithRetry(ctx, func() (struct{}, error) {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO connections (name, backend, database, host, port, username, sslmode, extras, password_storage, password_plaintext, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s','now'))
			ON CONFLICT(name) DO UPDATE SET
				backend = excluded.backend,
				database = excluded.database,
				host = excluded.host,
				port = excluded.port,
				username = excluded.username,
				sslmode = excluded.sslmode,
				extras = excluded.extras,
				password_storage = excluded.password_storage,
				password_plaintext = excluded.password_plaintext,
				updated_at = strftime('%s','now')
		`, p.Name, p.Backend, p.Database, p.Host, p.Port, p.Username, p.SSLMode, p.Extras, string(p.PasswordStorage), p.PasswordPlaintext)
		return struct{}{}, err
	})
	if err != nil {
		return glanceerr.Wrap(glanceerr.Persistence, "Failed to save connection profile", err)
	}
	return nil
}

// GetConnection loads one profile by name.
func (s *Store) GetConnection(ctx context.Context, name string) (ConnectionProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, backend, database, COALESCE(host,''), port, COALESCE(username,''), COALESCE(sslmode,''),
		       COALESCE(extras,''), password_storage, COALESCE(password_plaintext,''),
		       created_at, updated_at, last_used_at
		FROM connections WHERE name = ?`, name)
	return scanConnection(row)
}

// ListConnections returns all saved profiles ordered by name.
func (s *Store) ListConnections(ctx context.Context) ([]ConnectionProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, backend, database, COALESCE(host,''), port, COALESCE(username,''), COALESCE(sslmode,''),
		       COALESCE(extras,''), password_storage, COALESCE(password_plaintext,''),
		       created_at, updated_at, last_used_at
		FROM connections ORDER BY name`)
	if err != nil {
		return nil, glanceerr.Wrap(glanceerr.Persistence, "Failed to list connections", err)
	}
	defer rows.Close()

	var out []ConnectionProfile
	for rows.Next() {
		p, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteConnection removes a profile by name.
func (s *Store) DeleteConnection(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM connections WHERE name = ?", name)
	if err != nil {
		return glanceerr.Wrap(glanceerr.Persistence, "Failed to delete connection", err)
	}
	return nil
}

// TouchConnection updates last_used_at to now.
func (s *Store) TouchConnection(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE connections SET last_used_at = strftime('%s','now') WHERE name = ?", name)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnection(row rowScanner) (ConnectionProfile, error) {
	var p ConnectionProfile
	var storage string
	var createdAt, updatedAt int64
	var lastUsed sql.NullInt64

	err := row.Scan(&p.Name, &p.Backend, &p.Database, &p.Host, &p.Port, &p.Username, &p.SSLMode,
		&p.Extras, &storage, &p.PasswordPlaintext, &createdAt, &updatedAt, &lastUsed)
	if err == sql.ErrNoRows {
		return ConnectionProfile{}, glanceerr.PersistenceErr("Connection profile not found")
	}
	if err != nil {
		return ConnectionProfile{}, glanceerr.Wrap(glanceerr.Persistence, "Failed to read connection profile", err)
	}

	p.PasswordStorage = SecretStorage(storage)
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	if lastUsed.Valid {
		t := time.Unix(lastUsed.Int64, 0)
		p.LastUsedAt = &t
	}
	return p, nil
}
