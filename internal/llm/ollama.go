package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient talks to a local Ollama daemon over /api/chat. There is no
// API key; tool calling falls back to prompt-only completion since Ollama's
// tool support varies by model and is not part of this contract.
type OllamaClient struct {
	model   string
	baseURL string
	http    *http.Client
}

func NewOllamaClient(model, baseURL string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2:3b"
	}
	return &OllamaClient{model: model, baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: timeout}}
}

type olMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type olRequest struct {
	Model    string      `json:"model"`
	Messages []olMessage `json:"messages"`
	Stream   bool        `json:"stream"`
}

type olResponse struct {
	Message olMessage `json:"message"`
	Done    bool      `json:"done"`
}

func toOlMessages(messages []Message) []olMessage {
	out := make([]olMessage, len(messages))
	for i, m := range messages {
		out[i] = olMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func (c *OllamaClient) Complete(ctx context.Context, messages []Message) (string, error) {
	return retryNonStreaming(ctx, "ollama", func() (string, error) {
		body, err := json.Marshal(olRequest{Model: c.model, Messages: toOlMessages(messages)})
		if err != nil {
			return "", err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return "", &httpError{status: resp.StatusCode, body: fmt.Sprintf("Ollama API error %d: %s", resp.StatusCode, string(b))}
		}

		var out olResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", err
		}
		return out.Message.Content, nil
	})
}

func (c *OllamaClient) CompleteStream(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	body, err := json.Marshal(olRequest{Model: c.model, Messages: toOlMessages(messages), Stream: true})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpError{status: resp.StatusCode, body: fmt.Sprintf("Ollama API error %d: %s", resp.StatusCode, string(b))}
	}

	ch := make(chan StreamChunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			var chunk olResponse
			if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
				continue
			}
			if chunk.Message.Content != "" {
				ch <- StreamChunk{Delta: chunk.Message.Content}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Err: err}
		}
	}()
	return ch, nil
}

// CompleteWithTools falls back to a plain completion; Ollama tool-calling
// support is model-dependent and out of scope for this client.
func (c *OllamaClient) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDef) (CompletionResult, error) {
	text, err := c.Complete(ctx, messages)
	if err != nil {
		return CompletionResult{}, err
	}
	return CompletionResult{Content: text}, nil
}

func (c *OllamaClient) ContinueWithToolResults(ctx context.Context, messages []Message, calls []ToolCall, results []ToolResult, tools []ToolDef) (CompletionResult, error) {
	text, err := c.Complete(ctx, messages)
	if err != nil {
		return CompletionResult{}, err
	}
	return CompletionResult{Content: text}, nil
}
