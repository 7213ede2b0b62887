// Package pgclient wraps a pooled PostgreSQL connection: connect-with-retry,
// schema introspection, timed query execution, and error normalization.
package pgclient

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"

	"github.com/glance-db/glance/internal/dbvalue"
	"github.com/glance-db/glance/internal/glanceerr"
	"github.com/glance-db/glance/internal/schema"
)

const (
	maxConnectAttempts  = 3
	connectBaseDelay    = 500 * time.Millisecond
	queryTimeout        = 30 * time.Second
	maxResultRows       = 1000
)

// Config describes how to reach a PostgreSQL server.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	Extras   map[string]string
}

// ConnectionString builds a libpq-style connection string from the config.
func (c Config) ConnectionString() string {
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("user=%s", c.User),
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "prefer"
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", sslmode))
	for k, v := range c.Extras {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, " ")
}

// DatabaseClient is the capability interface the rest of the system depends
// on; PostgresClient and MockClient satisfy it structurally. There is no
// always-failing client in this package.
type DatabaseClient interface {
	IntrospectSchema(ctx context.Context) (schema.Schema, error)
	ExecuteQuery(ctx context.Context, sql string) (dbvalue.QueryResult, error)
	Close() error
}

// PostgresClient is the production DatabaseClient backed by lib/pq.
type PostgresClient struct {
	db     *sql.DB
	config Config
}

// Connect opens a pooled connection, making at most maxConnectAttempts
// attempts in total (retrying only transient failures) with exponential
// backoff starting at connectBaseDelay and doubling each attempt.
func Connect(ctx context.Context, cfg Config, poolSize int) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, mapConnectionError(cfg, err)
	}
	if poolSize <= 0 {
		poolSize = 4
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = connectBaseDelay
	bo.Multiplier = 2
	boWithCtx := backoff.WithContext(backoff.WithMaxRetries(bo, maxConnectAttempts-1), ctx)

	var lastErr error
	err = backoff.Retry(func() error {
		pingErr := db.PingContext(ctx)
		if pingErr == nil {
			return nil
		}
		lastErr = pingErr
		if !isTransientError(pingErr) {
			return backoff.Permanent(pingErr)
		}
		return pingErr
	}, boWithCtx)

	if err != nil {
		db.Close()
		if lastErr == nil {
			lastErr = err
		}
		return nil, mapConnectionError(cfg, lastErr)
	}

	return &PostgresClient{db: db, config: cfg}, nil
}

// Close releases the underlying connection pool.
func (c *PostgresClient) Close() error {
	return c.db.Close()
}

// ExecuteQuery runs sql under a hard 30-second timeout, decodes rows to the
// Value tagged union, and caps the result at maxResultRows.
func (c *PostgresClient) ExecuteQuery(ctx context.Context, sqlText string) (dbvalue.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, sqlText)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return dbvalue.QueryResult{}, glanceerr.QueryErr("Query timed out after 30 seconds")
		}
		return dbvalue.QueryResult{}, glanceerr.QueryErr(formatQueryError(err))
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return dbvalue.QueryResult{}, glanceerr.QueryErr(formatQueryError(err))
	}

	columns := make([]dbvalue.Column, len(cols))
	for i, ct := range cols {
		columns[i] = dbvalue.Column{Name: ct.Name(), TypeName: ct.DatabaseTypeName()}
	}

	var result dbvalue.QueryResult
	result.Columns = columns

	rawValues := make([]interface{}, len(cols))
	scanDest := make([]interface{}, len(cols))
	for i := range rawValues {
		scanDest[i] = &rawValues[i]
	}

	total := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return dbvalue.QueryResult{}, glanceerr.QueryErr("Query timed out after 30 seconds")
		}
		if err := rows.Scan(scanDest...); err != nil {
			return dbvalue.QueryResult{}, glanceerr.QueryErr(formatQueryError(err))
		}
		total++
		if total > maxResultRows {
			continue
		}
		row := make([]dbvalue.Value, len(cols))
		for i, raw := range rawValues {
			row[i] = convertValue(raw, columns[i].TypeName)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return dbvalue.QueryResult{}, glanceerr.QueryErr(formatQueryError(err))
	}

	result.ExecutionTime = time.Since(start)
	result.RowCount = len(result.Rows)
	if total > maxResultRows {
		result.WasTruncated = true
		totalCopy := total
		result.TotalRows = &totalCopy
	}

	if len(columns) == 0 && result.RowCount == 0 {
		if recovered, ok := c.fetchColumnMetadata(ctx, sqlText); ok {
			result.Columns = recovered
		}
	}

	return result, nil
}

// fetchColumnMetadata recovers column metadata for a zero-row result by
// wrapping the original query in a zero-row subquery.
func (c *PostgresClient) fetchColumnMetadata(ctx context.Context, sqlText string) ([]dbvalue.Column, bool) {
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _glance_metadata LIMIT 0", sqlText)
	rows, err := c.db.QueryContext(ctx, wrapped)
	if err != nil {
		return nil, false
	}
	defer rows.Close()
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, false
	}
	out := make([]dbvalue.Column, len(cols))
	for i, ct := range cols {
		out[i] = dbvalue.Column{Name: ct.Name(), TypeName: ct.DatabaseTypeName()}
	}
	return out, true
}

func convertValue(raw interface{}, typeName string) dbvalue.Value {
	if raw == nil {
		return dbvalue.Null()
	}
	switch strings.ToUpper(typeName) {
	case "BOOL", "BOOLEAN":
		if b, ok := raw.(bool); ok {
			return dbvalue.Bool(b)
		}
	case "INT2", "SMALLINT", "INT4", "INT", "INTEGER", "INT8", "BIGINT":
		switch v := raw.(type) {
		case int64:
			return dbvalue.Int(v)
		case []byte:
			if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
				return dbvalue.Int(n)
			}
		}
	case "FLOAT4", "REAL", "FLOAT8", "DOUBLE PRECISION":
		switch v := raw.(type) {
		case float64:
			return dbvalue.Float(v)
		case []byte:
			if f, err := strconv.ParseFloat(string(v), 64); err == nil {
				return dbvalue.Float(f)
			}
		}
	case "BYTEA":
		if b, ok := raw.([]byte); ok {
			return dbvalue.Bytes(b)
		}
	}

	switch v := raw.(type) {
	case []byte:
		return dbvalue.Text(string(v))
	case string:
		return dbvalue.Text(v)
	case int64:
		return dbvalue.Int(v)
	case float64:
		return dbvalue.Float(v)
	case bool:
		return dbvalue.Bool(v)
	case time.Time:
		return dbvalue.Text(v.Format(time.RFC3339))
	default:
		return dbvalue.Text(fmt.Sprintf("%v", v))
	}
}

// IntrospectSchema reads tables, columns, primary keys, indexes, and foreign
// keys for the public schema from information_schema/pg_catalog.
func (c *PostgresClient) IntrospectSchema(ctx context.Context) (schema.Schema, error) {
	tableNames, err := c.fetchTables(ctx)
	if err != nil {
		return schema.Schema{}, err
	}

	tables := make([]schema.Table, 0, len(tableNames))
	for _, name := range tableNames {
		cols, err := c.fetchColumns(ctx, name)
		if err != nil {
			return schema.Schema{}, err
		}
		pk, err := c.fetchPrimaryKey(ctx, name)
		if err != nil {
			return schema.Schema{}, err
		}
		idx, err := c.fetchIndexes(ctx, name)
		if err != nil {
			return schema.Schema{}, err
		}
		tables = append(tables, schema.Table{Name: name, Columns: cols, PrimaryKey: pk, Indexes: idx})
	}

	fks, err := c.fetchForeignKeys(ctx)
	if err != nil {
		return schema.Schema{}, err
	}

	return schema.Schema{Tables: tables, ForeignKeys: fks}, nil
}

func (c *PostgresClient) fetchTables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, glanceerr.QueryErr(formatQueryError(err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, glanceerr.QueryErr(formatQueryError(err))
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (c *PostgresClient) fetchColumns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, glanceerr.QueryErr(formatQueryError(err))
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var name, dataType, nullable string
		var def sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable, &def); err != nil {
			return nil, glanceerr.QueryErr(formatQueryError(err))
		}
		col := schema.Column{Name: name, DataType: dataType, IsNullable: nullable == "YES"}
		if def.Valid {
			col.Default = &def.String
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c *PostgresClient) fetchPrimaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = 'public' AND tc.table_name = $1
		ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return nil, glanceerr.QueryErr(formatQueryError(err))
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, glanceerr.QueryErr(formatQueryError(err))
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (c *PostgresClient) fetchIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT ic.relname AS index_name, a.attname AS column_name, ix.indisunique
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_index ix ON ix.indrelid = t.oid
		JOIN pg_class ic ON ic.oid = ix.indexrelid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = 'public' AND t.relname = $1 AND NOT ix.indisprimary
		ORDER BY ic.relname`, table)
	if err != nil {
		return nil, glanceerr.QueryErr(formatQueryError(err))
	}
	defer rows.Close()

	byName := make(map[string]*schema.Index)
	var order []string
	for rows.Next() {
		var idxName, colName string
		var unique bool
		if err := rows.Scan(&idxName, &colName, &unique); err != nil {
			return nil, glanceerr.QueryErr(formatQueryError(err))
		}
		idx, ok := byName[idxName]
		if !ok {
			idx = &schema.Index{Name: idxName, IsUnique: unique}
			byName[idxName] = idx
			order = append(order, idxName)
		}
		idx.Columns = append(idx.Columns, colName)
	}
	if err := rows.Err(); err != nil {
		return nil, glanceerr.QueryErr(formatQueryError(err))
	}

	out := make([]schema.Index, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

func (c *PostgresClient) fetchForeignKeys(ctx context.Context) ([]schema.ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT tc.table_name AS from_table, kcu.column_name AS from_column,
		       ccu.table_name AS to_table, ccu.column_name AS to_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'
		ORDER BY tc.table_name, ccu.table_name, kcu.ordinal_position`)
	if err != nil {
		return nil, glanceerr.QueryErr(formatQueryError(err))
	}
	defer rows.Close()

	type key struct{ from, to string }
	grouped := make(map[key]*schema.ForeignKey)
	var order []key

	for rows.Next() {
		var fromTable, fromCol, toTable, toCol string
		if err := rows.Scan(&fromTable, &fromCol, &toTable, &toCol); err != nil {
			return nil, glanceerr.QueryErr(formatQueryError(err))
		}
		k := key{fromTable, toTable}
		fk, ok := grouped[k]
		if !ok {
			fk = &schema.ForeignKey{FromTable: fromTable, ToTable: toTable}
			grouped[k] = fk
			order = append(order, k)
		}
		fk.FromColumns = append(fk.FromColumns, fromCol)
		fk.ToColumns = append(fk.ToColumns, toCol)
	}
	if err := rows.Err(); err != nil {
		return nil, glanceerr.QueryErr(formatQueryError(err))
	}

	out := make([]schema.ForeignKey, 0, len(order))
	for _, k := range order {
		out = append(out, *grouped[k])
	}
	return out, nil
}

// formatQueryError normalizes a *pq.Error into the multi-line ERROR/DETAIL/
// HINT/TABLE/COLUMN/CONSTRAINT block, omitting absent fields. Other error
// types fall back to their plain message.
func formatQueryError(err error) string {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ERROR: %s", pqErr.Message)
	if pqErr.Detail != "" {
		fmt.Fprintf(&b, "\n  DETAIL: %s", pqErr.Detail)
	}
	if pqErr.Hint != "" {
		fmt.Fprintf(&b, "\n  HINT: %s", pqErr.Hint)
	}
	if pqErr.Table != "" {
		fmt.Fprintf(&b, "\n  TABLE: %s", pqErr.Table)
	}
	if pqErr.Column != "" {
		fmt.Fprintf(&b, "\n  COLUMN: %s", pqErr.Column)
	}
	if pqErr.Constraint != "" {
		fmt.Fprintf(&b, "\n  CONSTRAINT: %s", pqErr.Constraint)
	}
	return b.String()
}

var transientPhrases = []string{
	"connection refused",
	"timed out",
	"timeout",
	"temporarily unavailable",
	"connection reset",
	"broken pipe",
}

var nonTransientPhrases = []string{
	"password authentication failed",
	"authentication failed",
	"does not exist",
	"ssl",
	"tls",
}

func isTransientError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range nonTransientPhrases {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range transientPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func mapConnectionError(cfg Config, err error) error {
	msg := strings.ToLower(err.Error())
	hostPort := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	switch {
	case strings.Contains(msg, "connection refused"):
		return glanceerr.ConnectionErr(fmt.Sprintf("Cannot connect to %s. Check that the server is running.", hostPort))
	case strings.Contains(msg, "password authentication failed"), strings.Contains(msg, "authentication failed"):
		return glanceerr.ConnectionErr(fmt.Sprintf("Authentication failed for user %s. Check your credentials.", cfg.User))
	case strings.Contains(msg, "does not exist") && strings.Contains(msg, "database"):
		return glanceerr.ConnectionErr(fmt.Sprintf("Database %s does not exist.", cfg.Database))
	case strings.Contains(msg, "ssl"), strings.Contains(msg, "tls"):
		return glanceerr.ConnectionErr("Server requires SSL. Add ?sslmode=require to connection string.")
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return glanceerr.ConnectionErr(fmt.Sprintf("Connection to %s timed out. Check network connectivity and firewall rules.", hostPort))
	default:
		return glanceerr.Wrap(glanceerr.Connection, fmt.Sprintf("Cannot connect to %s.", hostPort), err)
	}
}
