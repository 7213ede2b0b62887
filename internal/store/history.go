package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/glance-db/glance/internal/glanceerr"
)

// RecordHistory inserts a history row, then prunes rows beyond the
// retention window (90 days, 5000 rows). Call this from a detached
// goroutine per §4.O so a cancelled request doesn't cancel the write.
func (s *Store) RecordHistory(ctx context.Context, e HistoryEntry) error {
	_, err := WithRetry(ctx, func() (struct{}, error) {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO query_history (connection_name, submitted_by, sql, status, execution_time_ms, row_count, error_message, saved_query_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, nullableString(e.ConnectionName), string(e.SubmittedBy), e.SQL, string(e.Status),
			e.ExecutionTimeMs, e.RowCount, nullableString(e.ErrorMessage), e.SavedQueryID)
		return struct{}{}, err
	})
	if err != nil {
		return glanceerr.Wrap(glanceerr.Persistence, "Failed to record query history", err)
	}
	return s.pruneHistory(ctx)
}

func (s *Store) pruneHistory(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -historyRetentionDays).Unix()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM query_history WHERE created_at < ?", cutoff); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM query_history WHERE id NOT IN (
			SELECT id FROM query_history ORDER BY created_at DESC LIMIT ?
		)`, historyRetentionRows)
	return err
}

// ListHistory returns the most recent history rows, optionally filtered by
// connection name.
func (s *Store) ListHistory(ctx context.Context, connectionName string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, COALESCE(connection_name,''), submitted_by, sql, status, execution_time_ms, row_count,
		       COALESCE(error_message,''), saved_query_id, created_at
		FROM query_history`
	args := []interface{}{}
	if connectionName != "" {
		query += " WHERE connection_name = ?"
		args = append(args, connectionName)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, glanceerr.Wrap(glanceerr.Persistence, "Failed to list query history", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var submittedBy, status string
		var execMs, rowCount, savedQueryID sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.ConnectionName, &submittedBy, &e.SQL, &status, &execMs, &rowCount,
			&e.ErrorMessage, &savedQueryID, &createdAt); err != nil {
			return nil, err
		}
		e.SubmittedBy = SubmittedBy(submittedBy)
		e.Status = HistoryStatus(status)
		e.CreatedAt = time.Unix(createdAt, 0)
		if execMs.Valid {
			v := execMs.Int64
			e.ExecutionTimeMs = &v
		}
		if rowCount.Valid {
			v := int(rowCount.Int64)
			e.RowCount = &v
		}
		if savedQueryID.Valid {
			v := savedQueryID.Int64
			e.SavedQueryID = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearHistory deletes every history row, optionally scoped to a connection.
func (s *Store) ClearHistory(ctx context.Context, connectionName string) error {
	if connectionName == "" {
		_, err := s.db.ExecContext(ctx, "DELETE FROM query_history")
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM query_history WHERE connection_name = ?", connectionName)
	return err
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
