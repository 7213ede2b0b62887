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

// AnthropicClient speaks the Messages API, hoisting the leading system
// message out of the messages array into the dedicated "system" field.
type AnthropicClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewAnthropicClient(apiKey, model, baseURL string, timeout time.Duration) *AnthropicClient {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	return &AnthropicClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type anMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type anToolResultBlock struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

type anToolUseBlock struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type anTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

type anRequest struct {
	Model     string      `json:"model"`
	System    string      `json:"system,omitempty"`
	Messages  []anMessage `json:"messages"`
	MaxTokens int         `json:"max_tokens"`
	Stream    bool        `json:"stream"`
	Tools     []anTool    `json:"tools,omitempty"`
}

type anContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anResponse struct {
	Content []anContentBlock `json:"content"`
}

type anStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

const defaultMaxTokens = 4096

func splitSystem(messages []Message) (string, []Message) {
	if len(messages) > 0 && messages[0].Role == RoleSystem {
		return messages[0].Content, messages[1:]
	}
	return "", messages
}

func toAnMessages(messages []Message) []anMessage {
	out := make([]anMessage, len(messages))
	for i, m := range messages {
		out[i] = anMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func toAnTools(tools []ToolDef) []anTool {
	out := make([]anTool, len(tools))
	for i, t := range tools {
		out[i] = anTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters}
	}
	return out
}

func (c *AnthropicClient) do(ctx context.Context, req anRequest) (*anResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &httpError{status: resp.StatusCode, body: fmt.Sprintf("Anthropic API error %d: %s", resp.StatusCode, string(b))}
	}

	var out anResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, messages []Message) (string, error) {
	system, rest := splitSystem(messages)
	return retryNonStreaming(ctx, "anthropic", func() (string, error) {
		resp, err := c.do(ctx, anRequest{Model: c.model, System: system, Messages: toAnMessages(rest), MaxTokens: defaultMaxTokens})
		if err != nil {
			return "", err
		}
		return extractText(resp.Content), nil
	})
}

func extractText(blocks []anContentBlock) string {
	var b strings.Builder
	for _, blk := range blocks {
		if blk.Type == "text" {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

func (c *AnthropicClient) CompleteStream(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	system, rest := splitSystem(messages)
	req := anRequest{Model: c.model, System: system, Messages: toAnMessages(rest), MaxTokens: defaultMaxTokens, Stream: true}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpError{status: resp.StatusCode, body: fmt.Sprintf("Anthropic API error %d: %s", resp.StatusCode, string(b))}
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
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			var evt anStreamEvent
			if err := json.Unmarshal([]byte(data), &evt); err != nil {
				continue
			}
			if evt.Type == "message_stop" {
				return
			}
			if evt.Type == "content_block_delta" && evt.Delta.Text != "" {
				ch <- StreamChunk{Delta: evt.Delta.Text}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Err: err}
		}
	}()
	return ch, nil
}

func (c *AnthropicClient) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDef) (CompletionResult, error) {
	system, rest := splitSystem(messages)
	resp, err := c.do(ctx, anRequest{Model: c.model, System: system, Messages: toAnMessages(rest), MaxTokens: defaultMaxTokens, Tools: toAnTools(tools)})
	if err != nil {
		return CompletionResult{}, mapTopLevelErr(err)
	}
	return fromAnResponse(resp), nil
}

func (c *AnthropicClient) ContinueWithToolResults(ctx context.Context, messages []Message, calls []ToolCall, results []ToolResult, tools []ToolDef) (CompletionResult, error) {
	system, rest := splitSystem(messages)
	msgs := toAnMessages(rest)

	assistantBlocks := make([]anContentBlock, 0, len(calls))
	for _, call := range calls {
		assistantBlocks = append(assistantBlocks, anContentBlock{Type: "tool_use", ID: call.ID, Name: call.Name, Input: json.RawMessage(call.Arguments)})
	}
	msgs = append(msgs, anMessage{Role: "assistant", Content: assistantBlocks})

	resultBlocks := make([]anToolResultBlock, 0, len(results))
	for _, r := range results {
		resultBlocks = append(resultBlocks, anToolResultBlock{Type: "tool_result", ToolUseID: r.ToolCallID, Content: r.Content})
	}
	msgs = append(msgs, anMessage{Role: "user", Content: resultBlocks})

	resp, err := c.do(ctx, anRequest{Model: c.model, System: system, Messages: msgs, MaxTokens: defaultMaxTokens, Tools: toAnTools(tools)})
	if err != nil {
		return CompletionResult{}, mapTopLevelErr(err)
	}
	return fromAnResponse(resp), nil
}

func fromAnResponse(resp *anResponse) CompletionResult {
	out := CompletionResult{Content: extractText(resp.Content)}
	for _, blk := range resp.Content {
		if blk.Type == "tool_use" {
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: blk.ID, Name: blk.Name, Arguments: string(blk.Input)})
		}
	}
	return out
}
