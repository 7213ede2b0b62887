package llmservice

import "github.com/glance-db/glance/internal/llm"

const defaultMaxExchanges = 10

// Conversation is a bounded sequence of system/user/assistant messages. Trim
// preserves leading system messages and drops the oldest complete
// user+assistant exchange until within maxExchanges.
type Conversation struct {
	messages     []llm.Message
	maxExchanges int
}

// NewConversation returns an empty conversation bounded to maxExchanges
// user+assistant pairs (0 or negative uses the default of 10).
func NewConversation(maxExchanges int) *Conversation {
	if maxExchanges <= 0 {
		maxExchanges = defaultMaxExchanges
	}
	return &Conversation{maxExchanges: maxExchanges}
}

// Messages returns the current message sequence.
func (c *Conversation) Messages() []llm.Message { return c.messages }

// Append adds one message and trims if necessary.
func (c *Conversation) Append(role llm.Role, content string) {
	c.messages = append(c.messages, llm.Message{Role: role, Content: content})
	c.trim()
}

// Clear removes all messages.
func (c *Conversation) Clear() {
	c.messages = nil
}

func (c *Conversation) trim() {
	leadingSystem := 0
	for leadingSystem < len(c.messages) && c.messages[leadingSystem].Role == llm.RoleSystem {
		leadingSystem++
	}

	exchanges := countExchanges(c.messages[leadingSystem:])
	for exchanges > c.maxExchanges {
		dropped := dropOldestExchange(c.messages[leadingSystem:])
		c.messages = append(c.messages[:leadingSystem], dropped...)
		exchanges = countExchanges(c.messages[leadingSystem:])
	}
}

func countExchanges(messages []llm.Message) int {
	count := 0
	for _, m := range messages {
		if m.Role == llm.RoleUser {
			count++
		}
	}
	return count
}

// dropOldestExchange removes the first user message and everything up to
// (but not including) the next user message.
func dropOldestExchange(messages []llm.Message) []llm.Message {
	i := 0
	for i < len(messages) && messages[i].Role != llm.RoleUser {
		i++
	}
	if i >= len(messages) {
		return messages
	}
	j := i + 1
	for j < len(messages) && messages[j].Role != llm.RoleUser {
		j++
	}
	out := make([]llm.Message, 0, len(messages)-(j-i))
	out = append(out, messages[:i]...)
	out = append(out, messages[j:]...)
	return out
}
