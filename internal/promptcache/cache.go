// Package promptcache caches the rendered system prompt by schema content
// hash and connection context, returning the same string pointer on a key
// hit so identity comparison is a pointer comparison, the Go rendering of
// the original's shared immutable `Arc<str>`.
package promptcache

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/glance-db/glance/internal/schema"
)

// ConnectionContext is the redacted (label?, database?) pair safe to embed
// in an LLM prompt — never a host, username, or password.
type ConnectionContext struct {
	Label    string
	Database string
}

func (c ConnectionContext) hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "label=%s|db=%s", c.Label, c.Database)
	return h.Sum64()
}

// Expand renders the `{connection}` template slot per §6.
func (c ConnectionContext) Expand() string {
	switch {
	case c.Label != "" && c.Database != "":
		return fmt.Sprintf("Connection: %s (database: %s)", c.Label, c.Database)
	case c.Label != "":
		return fmt.Sprintf("Connection: %s", c.Label)
	case c.Database != "":
		return fmt.Sprintf("Database: %s", c.Database)
	default:
		return ""
	}
}

const systemPromptTemplate = `You are a SQL assistant for a PostgreSQL database. Generate SQL queries based on user questions.
%s
DATABASE SCHEMA:
%s

INSTRUCTIONS:
- Generate only valid PostgreSQL SQL
- Return ONLY the SQL query, no explanations
- Use appropriate JOINs based on foreign keys
- Limit results to 100 rows unless user specifies otherwise
- Never generate DROP DATABASE or similar destructive operations
- If the question cannot be answered with the schema, explain why

OUTPUT FORMAT:
Return the SQL query wrapped in ` + "```sql" + ` code blocks.
If you need to explain something, put it before or after the code block.`

type cacheKey struct {
	schemaHash uint64
	connHash   uint64
}

// Cache is a content-hash-keyed system prompt cache.
type Cache struct {
	mu      sync.Mutex
	key     cacheKey
	valid   bool
	current *string
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// GetOrBuild returns the cached prompt if (schema.ContentHash(), hash(ctx))
// matches the last build; otherwise it rebuilds and replaces the cached
// pointer. A hit returns the exact same *string value as the prior build.
func (c *Cache) GetOrBuild(s schema.Schema, ctx ConnectionContext) *string {
	key := cacheKey{schemaHash: s.ContentHash(), connHash: ctx.hash()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.key == key {
		return c.current
	}

	rendered := fmt.Sprintf(systemPromptTemplate, ctx.Expand(), s.FormatForPrompt())
	c.current = &rendered
	c.key = key
	c.valid = true
	return c.current
}

// Invalidate forces the next GetOrBuild to rebuild regardless of key,
// called explicitly on schema refresh per §4.F.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}
