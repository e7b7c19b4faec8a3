package agents

// EventType identifies a turn progress event.
type EventType string

const (
	EventStarted      EventType = "started"
	EventAgentChanged EventType = "agent_changed"
	EventToolCalled   EventType = "tool_called"
	EventContentDelta EventType = "content_delta"
	EventCompleted    EventType = "completed"
	EventFailed       EventType = "failed"
)

// Event is a single progress notification emitted while a turn executes.
type Event struct {
	Type    EventType `json:"type"`
	Agent   string    `json:"agent,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// TraceEntry records one step the runtime took during a turn.
type TraceEntry struct {
	Step   int    `json:"step"`
	Agent  string `json:"agent"`
	Action string `json:"action"`
	Tool   string `json:"tool,omitempty"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Trace entry actions.
const (
	ActionCompletion = "completion"
	ActionToolCall   = "tool_call"
	ActionHandoff    = "handoff"
	ActionFinalize   = "finalize"
)

// Trace entry statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	Response   string       `json:"response"`
	FinalAgent string       `json:"final_agent"`
	Steps      int          `json:"steps"`
	Trace      []TraceEntry `json:"trace"`
}
