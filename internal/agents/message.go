// Package agents implements the multi-agent turn runtime: agent
// definitions, the turn state machine, tracing, and streaming.
package agents

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by a completion.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is a single entry in the working message list of a turn.
// AgentName tags assistant messages with the agent that produced them; it
// never crosses the provider boundary.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	AgentName  string     `json:"agent_name,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitzero"`
}
