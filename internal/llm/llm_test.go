package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestMockClientRoutesOnKeyword(t *testing.T) {
	m := NewMockClient()
	text, err := m.Complete(context.Background(), []Message{{Role: RoleUser, Content: "please show users for me"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "SELECT * FROM users") {
		t.Fatalf("got %q", text)
	}
}

func TestMockClientUnmatchedFallsBack(t *testing.T) {
	m := NewMockClient()
	text, _ := m.Complete(context.Background(), []Message{{Role: RoleUser, Content: "what is the weather"}})
	if text != "I'm not sure how to answer that." {
		t.Fatalf("got %q", text)
	}
}

func TestMockClientCustomPatternTakesPriority(t *testing.T) {
	m := NewMockClient()
	m.AddPattern("show users", "```sql\nSELECT id FROM users;\n```")
	text, _ := m.Complete(context.Background(), []Message{{Role: RoleUser, Content: "show users"}})
	if !strings.Contains(text, "SELECT id FROM users") {
		t.Fatalf("custom pattern not applied: %q", text)
	}
}

func TestSplitSystemExtractsLeadingSystemMessage(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "hi"},
	}
	system, rest := splitSystem(messages)
	if system != "be helpful" {
		t.Fatalf("got system=%q", system)
	}
	if len(rest) != 1 || rest[0].Role != RoleUser {
		t.Fatalf("unexpected rest: %+v", rest)
	}
}

func TestSplitSystemNoLeadingSystem(t *testing.T) {
	messages := []Message{{Role: RoleUser, Content: "hi"}}
	system, rest := splitSystem(messages)
	if system != "" || len(rest) != 1 {
		t.Fatalf("unexpected split: %q %+v", system, rest)
	}
}

func TestRetryNonStreamingStopsOn401(t *testing.T) {
	attempts := 0
	_, err := retryNonStreaming(context.Background(), "openai", func() (string, error) {
		attempts++
		return "", &httpError{status: http.StatusUnauthorized, body: "bad key"}
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt on 401, got %d", attempts)
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected provider-specific message, got %v", err)
	}
}

func TestRetryNonStreamingRetriesOn429(t *testing.T) {
	attempts := 0
	_, err := retryNonStreaming(context.Background(), "openai", func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &httpError{status: http.StatusTooManyRequests, body: "rate limited"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryNonStreamingStopsOnNonTransientError(t *testing.T) {
	attempts := 0
	_, err := retryNonStreaming(context.Background(), "openai", func() (string, error) {
		attempts++
		return "", errors.New("invalid request: malformed json")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt for non-transient error, got %d", attempts)
	}
}

func TestNewDispatchesByProvider(t *testing.T) {
	if _, ok := New(Config{Provider: "mock"}).(*MockClient); !ok {
		t.Fatalf("expected MockClient")
	}
	if _, ok := New(Config{Provider: "anthropic"}).(*AnthropicClient); !ok {
		t.Fatalf("expected AnthropicClient")
	}
	if _, ok := New(Config{Provider: "ollama"}).(*OllamaClient); !ok {
		t.Fatalf("expected OllamaClient")
	}
	if _, ok := New(Config{Provider: "openai"}).(*OpenAIClient); !ok {
		t.Fatalf("expected OpenAIClient")
	}
}
