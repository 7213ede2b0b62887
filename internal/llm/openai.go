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

// OpenAIClient speaks the Chat Completions wire format. Its BaseURL is
// overridable so the same implementation serves any OpenAI-compatible
// endpoint (OPENAI_BASE_URL).
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// NewOpenAIClient builds a client against baseURL (defaulting to the public
// OpenAI API) with the given request timeout.
func NewOpenAIClient(apiKey, model, baseURL string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
}

type oaToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string                 `json:"name"`
		Description string                 `json:"description,omitempty"`
		Parameters  map[string]interface{} `json:"parameters,omitempty"`
	} `json:"function"`
}

type oaRequest struct {
	Model    string      `json:"model"`
	Messages []oaMessage `json:"messages"`
	Stream   bool        `json:"stream"`
	Tools    []oaTool    `json:"tools,omitempty"`
}

type oaResponse struct {
	Choices []struct {
		Message struct {
			Content   string       `json:"content"`
			ToolCalls []oaToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

type oaStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta"`
	} `json:"choices"`
}

func toOAMessages(messages []Message) []oaMessage {
	out := make([]oaMessage, len(messages))
	for i, m := range messages {
		out[i] = oaMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func toOATools(tools []ToolDef) []oaTool {
	out := make([]oaTool, len(tools))
	for i, t := range tools {
		out[i].Type = "function"
		out[i].Function.Name = t.Name
		out[i].Function.Description = t.Description
		out[i].Function.Parameters = t.Parameters
	}
	return out
}

func (c *OpenAIClient) doJSON(ctx context.Context, req oaRequest) (*oaResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &httpError{status: resp.StatusCode, body: fmt.Sprintf("OpenAI API error %d: %s", resp.StatusCode, string(b))}
	}

	var out oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	return retryNonStreaming(ctx, "openai", func() (string, error) {
		resp, err := c.doJSON(ctx, oaRequest{Model: c.model, Messages: toOAMessages(messages)})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	})
}

func (c *OpenAIClient) CompleteStream(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	req := oaRequest{Model: c.model, Messages: toOAMessages(messages), Stream: true}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpError{status: resp.StatusCode, body: fmt.Sprintf("OpenAI API error %d: %s", resp.StatusCode, string(b))}
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
			if data == "[DONE]" {
				return
			}
			var chunk oaStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				ch <- StreamChunk{Delta: chunk.Choices[0].Delta.Content}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Err: err}
		}
	}()
	return ch, nil
}

func (c *OpenAIClient) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDef) (CompletionResult, error) {
	resp, err := c.doJSON(ctx, oaRequest{Model: c.model, Messages: toOAMessages(messages), Tools: toOATools(tools)})
	if err != nil {
		return CompletionResult{}, mapTopLevelErr(err)
	}
	return fromOAResponse(resp), nil
}

func (c *OpenAIClient) ContinueWithToolResults(ctx context.Context, messages []Message, calls []ToolCall, results []ToolResult, tools []ToolDef) (CompletionResult, error) {
	msgs := toOAMessages(messages)

	assistantMsg := oaMessage{Role: "assistant"}
	for _, call := range calls {
		tc := oaToolCall{ID: call.ID, Type: "function"}
		tc.Function.Name = call.Name
		tc.Function.Arguments = call.Arguments
		assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, tc)
	}
	msgs = append(msgs, assistantMsg)

	for _, r := range results {
		msgs = append(msgs, oaMessage{Role: "tool", ToolCallID: r.ToolCallID, Content: r.Content})
	}

	resp, err := c.doJSON(ctx, oaRequest{Model: c.model, Messages: msgs, Tools: toOATools(tools)})
	if err != nil {
		return CompletionResult{}, mapTopLevelErr(err)
	}
	return fromOAResponse(resp), nil
}

func fromOAResponse(resp *oaResponse) CompletionResult {
	if len(resp.Choices) == 0 {
		return CompletionResult{}
	}
	choice := resp.Choices[0].Message
	out := CompletionResult{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out
}

func mapTopLevelErr(err error) error {
	if httpErr, ok := err.(*httpError); ok {
		if httpErr.status == http.StatusUnauthorized {
			return fmt.Errorf("authentication failed: %s", httpErr.body)
		}
	}
	return err
}
