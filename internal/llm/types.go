// Package llm defines the language-model client interface used by the
// orchestration loop and an OpenAI-compatible implementation of it.
package llm

import (
	"context"
	"encoding/json"
)

// Conversation roles on Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a model's request to run one tool. Arguments is the raw
// JSON object produced by the model; it is validated downstream at the
// registry boundary, never trusted here.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Message is one entry in a conversation history. ToolCallID links a
// RoleTool message back to the call it answers.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolSchema describes one callable tool to the model. Parameters is a
// JSON-schema-shaped value.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  any
}

// Request is one completion call: system guidance, the running
// conversation, and the tools the model may request.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSchema
}

// Turn is the model's reply to a Request: either a final answer, tool
// requests, or both.
type Turn struct {
	Content   string
	ToolCalls []ToolCall
}

// RequestsTools reports whether the turn asks for tool execution.
func (t *Turn) RequestsTools() bool {
	return t != nil && len(t.ToolCalls) > 0
}

// Client produces model turns. Implementations must be safe for
// concurrent use.
type Client interface {
	Complete(ctx context.Context, req Request) (*Turn, error)
}
