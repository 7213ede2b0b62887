package llm

import (
	"context"
	"strings"
)

// MockClient is deterministic: it routes on keywords in the last user
// message to a canned SQL response, for use in tests and with --llm mock.
type MockClient struct {
	patterns []mockPattern
}

type mockPattern struct {
	keyword  string
	response string
}

var defaultMockPatterns = []mockPattern{
	{"show users", "```sql\nSELECT * FROM users;\n```"},
	{"show me all users", "```sql\nSELECT * FROM users;\n```"},
	{"count orders", "```sql\nSELECT COUNT(*) FROM orders;\n```"},
	{"how many", "```sql\nSELECT COUNT(*) FROM orders;\n```"},
}

func NewMockClient() *MockClient {
	patterns := make([]mockPattern, len(defaultMockPatterns))
	copy(patterns, defaultMockPatterns)
	return &MockClient{patterns: patterns}
}

// AddPattern inserts a custom keyword→response mapping, checked before the
// built-in defaults.
func (m *MockClient) AddPattern(keyword, response string) {
	m.patterns = append([]mockPattern{{keyword, response}}, m.patterns...)
}

func (m *MockClient) lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func (m *MockClient) route(messages []Message) string {
	last := strings.ToLower(m.lastUserMessage(messages))
	for _, p := range m.patterns {
		if strings.Contains(last, p.keyword) {
			return p.response
		}
	}
	return "I'm not sure how to answer that."
}

func (m *MockClient) Complete(ctx context.Context, messages []Message) (string, error) {
	return m.route(messages), nil
}

func (m *MockClient) CompleteStream(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Delta: m.route(messages)}
	close(ch)
	return ch, nil
}

func (m *MockClient) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDef) (CompletionResult, error) {
	return CompletionResult{Content: m.route(messages)}, nil
}

func (m *MockClient) ContinueWithToolResults(ctx context.Context, messages []Message, calls []ToolCall, results []ToolResult, tools []ToolDef) (CompletionResult, error) {
	return CompletionResult{Content: m.route(messages)}, nil
}
