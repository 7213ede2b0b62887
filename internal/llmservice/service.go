// Package llmservice drives one natural-language query through the prompt
// cache, the LLM client, its tool-calling loop, and response parsing.
package llmservice

import (
	"context"
	"encoding/json"

	"github.com/glance-db/glance/internal/llm"
	"github.com/glance-db/glance/internal/promptcache"
	"github.com/glance-db/glance/internal/schema"
	"github.com/glance-db/glance/internal/store"
)

// SavedQueryLister is the capability the list_saved_queries tool depends
// on; *store.Store satisfies it structurally.
type SavedQueryLister interface {
	ListSavedQueries(ctx context.Context, connectionName, tag, text string, limit int) ([]store.SavedQuery, error)
}

var listSavedQueriesTool = llm.ToolDef{
	Name:        "list_saved_queries",
	Description: "List previously saved SQL queries, optionally filtered by connection, tag, or text.",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"connection_name": map[string]interface{}{"type": "string"},
			"tags":            map[string]interface{}{"type": "string"},
			"text":            map[string]interface{}{"type": "string"},
			"limit":           map[string]interface{}{"type": "integer"},
		},
	},
}

var declaredTools = []llm.ToolDef{listSavedQueriesTool}

// Service owns the conversation and drives LLM requests.
type Service struct {
	client       llm.Client
	cache        *promptcache.Cache
	savedQueries SavedQueryLister
	conversation *Conversation
}

// New builds an LLM service around client, sharing cache across calls so
// prompt rebuilds only happen on schema/context change.
func New(client llm.Client, cache *promptcache.Cache, savedQueries SavedQueryLister) *Service {
	return &Service{client: client, cache: cache, savedQueries: savedQueries, conversation: NewConversation(0)}
}

// Conversation exposes the underlying bounded message history, e.g. for
// `/clear`.
func (s *Service) Conversation() *Conversation { return s.conversation }

type toolArgs struct {
	ConnectionName string `json:"connection_name"`
	Tags           string `json:"tags"`
	Text           string `json:"text"`
	Limit          int    `json:"limit"`
}

// ProcessQuery runs the full pipeline described in §4.G: append the user
// message, build the cached system prompt, request a completion with
// tools, execute any requested tools and continue once, append the final
// assistant content, then parse it for an embedded SQL statement.
func (s *Service) ProcessQuery(ctx context.Context, userText string, sch schema.Schema, connCtx promptcache.ConnectionContext) (ParsedResponse, error) {
	s.conversation.Append(llm.RoleUser, userText)

	systemPrompt := s.cache.GetOrBuild(sch, connCtx)
	messages := append([]llm.Message{{Role: llm.RoleSystem, Content: *systemPrompt}}, s.conversation.Messages()...)

	result, err := s.client.CompleteWithTools(ctx, messages, declaredTools)
	if err != nil {
		return ParsedResponse{}, err
	}

	if len(result.ToolCalls) > 0 {
		results := s.executeTools(ctx, result.ToolCalls)
		result, err = s.client.ContinueWithToolResults(ctx, messages, result.ToolCalls, results, declaredTools)
		if err != nil {
			return ParsedResponse{}, err
		}
	}

	s.conversation.Append(llm.RoleAssistant, result.Content)
	return Parse(result.Content), nil
}

func (s *Service) executeTools(ctx context.Context, calls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, 0, len(calls))
	for _, call := range calls {
		content := s.executeTool(ctx, call)
		results = append(results, llm.ToolResult{ToolCallID: call.ID, Content: content})
	}
	return results
}

func (s *Service) executeTool(ctx context.Context, call llm.ToolCall) string {
	if call.Name != "list_saved_queries" {
		return `{"error": "unknown tool"}`
	}

	var args toolArgs
	_ = json.Unmarshal([]byte(call.Arguments), &args)

	queries, err := s.savedQueries.ListSavedQueries(ctx, args.ConnectionName, args.Tags, args.Text, args.Limit)
	if err != nil {
		errJSON, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(errJSON)
	}

	out, err := json.Marshal(queries)
	if err != nil {
		return "[]"
	}
	return string(out)
}
