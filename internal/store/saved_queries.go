package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/glance-db/glance/internal/glanceerr"
)

// SaveQuery inserts or updates a saved query by (name, connection_name),
// replacing its tag set.
func (s *Store) SaveQuery(ctx context.Context, q SavedQuery) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, glanceerr.Wrap(glanceerr.Persistence, "Failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO saved_queries (name, sql, description, connection_name, updated_at)
		VALUES (?, ?, ?, ?, strftime('%s','now'))
		ON CONFLICT(name, connection_name) DO UPDATE SET
			sql = excluded.sql, description = excluded.description, updated_at = strftime('%s','now')
	`, q.Name, q.SQL, q.Description, nullableString(q.ConnectionName))
	if err != nil {
		return 0, glanceerr.Wrap(glanceerr.Persistence, "Failed to save query", err)
	}

	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		row := tx.QueryRowContext(ctx, "SELECT id FROM saved_queries WHERE name = ? AND connection_name IS ?", q.Name, nullableString(q.ConnectionName))
		if scanErr := row.Scan(&id); scanErr != nil {
			return 0, glanceerr.Wrap(glanceerr.Persistence, "Failed to resolve saved query id", scanErr)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM saved_query_tags WHERE saved_query_id = ?", id); err != nil {
		return 0, err
	}
	for _, tag := range q.Tags {
		if _, err := tx.ExecContext(ctx, "INSERT INTO saved_query_tags (saved_query_id, tag) VALUES (?, ?)", id, tag); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, glanceerr.Wrap(glanceerr.Persistence, "Failed to commit saved query", err)
	}
	return id, nil
}

// ListSavedQueries filters by connection name, tag, or a substring of name
// or sql; any empty filter is ignored. Matches the `list_saved_queries`
// tool contract in §4.G.
func (s *Store) ListSavedQueries(ctx context.Context, connectionName, tag, text string, limit int) ([]SavedQuery, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT DISTINCT sq.id, sq.name, sq.sql, COALESCE(sq.description,''), COALESCE(sq.connection_name,''),
	                 sq.usage_count, sq.created_at, sq.updated_at
	          FROM saved_queries sq`
	var args []interface{}
	var where []string

	if tag != "" {
		query += " JOIN saved_query_tags t ON t.saved_query_id = sq.id"
		where = append(where, "t.tag = ?")
		args = append(args, tag)
	}
	if connectionName != "" {
		where = append(where, "sq.connection_name = ?")
		args = append(args, connectionName)
	}
	if text != "" {
		where = append(where, "(sq.name LIKE ? OR sq.sql LIKE ?)")
		like := "%" + text + "%"
		args = append(args, like, like)
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY sq.usage_count DESC, sq.name LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, glanceerr.Wrap(glanceerr.Persistence, "Failed to list saved queries", err)
	}
	defer rows.Close()

	var out []SavedQuery
	for rows.Next() {
		var q SavedQuery
		var createdAt, updatedAt int64
		if err := rows.Scan(&q.ID, &q.Name, &q.SQL, &q.Description, &q.ConnectionName, &q.UsageCount, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		q.CreatedAt = time.Unix(createdAt, 0)
		q.UpdatedAt = time.Unix(updatedAt, 0)
		q.Tags, err = s.tagsFor(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) tagsFor(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tag FROM saved_query_tags WHERE saved_query_id = ? ORDER BY tag", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// IncrementUsage bumps a saved query's usage counter, typically called when
// `/usequery` runs it.
func (s *Store) IncrementUsage(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE saved_queries SET usage_count = usage_count + 1 WHERE id = ?", id)
	return err
}

// DeleteSavedQuery removes a saved query by id.
func (s *Store) DeleteSavedQuery(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM saved_queries WHERE id = ?", id)
	return err
}

// GetLlmSettings reads the singleton settings row, or the zero value with
// sql.ErrNoRows-equivalent ok=false if none has been persisted yet.
func (s *Store) GetLlmSettings(ctx context.Context) (LlmSettings, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT provider, model, api_key_storage, COALESCE(api_key_plaintext,''), updated_at FROM llm_settings WHERE id = 1")
	var set LlmSettings
	var storage string
	var updatedAt int64
	err := row.Scan(&set.Provider, &set.Model, &storage, &set.APIKeyPlaintext, &updatedAt)
	if err == sql.ErrNoRows {
		return LlmSettings{}, false, nil
	}
	if err != nil {
		return LlmSettings{}, false, glanceerr.Wrap(glanceerr.Persistence, "Failed to read LLM settings", err)
	}
	set.APIKeyStorage = SecretStorage(storage)
	set.UpdatedAt = time.Unix(updatedAt, 0)
	return set, true, nil
}

// SetLlmSettings upserts the singleton settings row.
func (s *Store) SetLlmSettings(ctx context.Context, set LlmSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_settings (id, provider, model, api_key_storage, api_key_plaintext, updated_at)
		VALUES (1, ?, ?, ?, ?, strftime('%s','now'))
		ON CONFLICT(id) DO UPDATE SET
			provider = excluded.provider, model = excluded.model,
			api_key_storage = excluded.api_key_storage, api_key_plaintext = excluded.api_key_plaintext,
			updated_at = strftime('%s','now')
	`, set.Provider, set.Model, string(set.APIKeyStorage), set.APIKeyPlaintext)
	if err != nil {
		return glanceerr.Wrap(glanceerr.Persistence, "Failed to save LLM settings", err)
	}
	return nil
}
