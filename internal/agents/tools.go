package agents

import (
	"context"
	"encoding/json"
)

// ToolSpec describes a callable tool surfaced to the completion client.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolGateway invokes domain tools on behalf of a single user.
type ToolGateway interface {
	ListTools(ctx context.Context) ([]ToolSpec, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (string, error)
}

// CompletionRequest carries a working message list and the tools the model
// may call.
type CompletionRequest struct {
	Messages []Message
	Tools    []ToolSpec
}

// Completion is the model's reply: assistant content, tool calls, or both.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// CompletionClient produces a single completion for a request.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// LocalToolFunc executes a tool in-process without the gateway.
type LocalToolFunc func(ctx context.Context, arguments map[string]any) (string, error)

// LocalTool is a tool executed inside the runtime. ReturnDirect tools end
// the turn with their result as the response.
type LocalTool struct {
	Spec         ToolSpec
	ReturnDirect bool
	Run          LocalToolFunc
}
