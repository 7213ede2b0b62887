package pgclient

import (
	"context"

	"github.com/glance-db/glance/internal/dbvalue"
	"github.com/glance-db/glance/internal/schema"
)

// MockClient is a DatabaseClient double for exercising the agent loop and
// REPL without a live PostgreSQL server.
type MockClient struct {
	Schema       schema.Schema
	Results      map[string]dbvalue.QueryResult
	DefaultErr   error
	Queries      []string
	ClosedCalled bool
}

// NewMockClient returns a MockClient seeded with schema and a keyed result
// table; queries not present in results fall back to DefaultErr (or an empty
// result if DefaultErr is nil).
func NewMockClient(s schema.Schema) *MockClient {
	return &MockClient{Schema: s, Results: make(map[string]dbvalue.QueryResult)}
}

func (m *MockClient) IntrospectSchema(ctx context.Context) (schema.Schema, error) {
	return m.Schema, nil
}

func (m *MockClient) ExecuteQuery(ctx context.Context, sql string) (dbvalue.QueryResult, error) {
	m.Queries = append(m.Queries, sql)
	if r, ok := m.Results[sql]; ok {
		return r, nil
	}
	if m.DefaultErr != nil {
		return dbvalue.QueryResult{}, m.DefaultErr
	}
	return dbvalue.QueryResult{}, nil
}

func (m *MockClient) Close() error {
	m.ClosedCalled = true
	return nil
}
