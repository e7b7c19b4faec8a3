package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Fixed responses for forced terminations. Completion failures and step
// budget exhaustion never surface raw errors to the user.
const (
	fallbackResponse  = "I'm sorry, I couldn't process your request right now. Please try again!"
	stepLimitResponse = "Sorry, need more steps to process this request."
)

// Options configures a runtime.
type Options struct {
	MaxSteps int
	Finalize bool

	// ReturnDirect names gateway tools whose result ends the turn as the
	// final response.
	ReturnDirect []string
}

// Runtime executes conversation turns against a registry of agents. All
// mutable turn state lives in the working message list; the runtime itself
// is safe for sequential reuse across turns.
type Runtime struct {
	registry     *Registry
	completions  CompletionClient
	gateway      ToolGateway
	local        map[string]*LocalTool
	returnDirect map[string]bool
	maxSteps     int
	finalize     bool
	logger       *slog.Logger
}

// NewRuntime creates a runtime over the specified agents, completion client,
// and tool gateway.
func NewRuntime(registry *Registry, completions CompletionClient, gateway ToolGateway, opts Options, logger *slog.Logger) *Runtime {
	maxSteps := opts.MaxSteps
	if maxSteps < 2 {
		maxSteps = 25
	}

	returnDirect := map[string]bool{}
	for _, name := range opts.ReturnDirect {
		returnDirect[name] = true
	}

	return &Runtime{
		registry:     registry,
		completions:  completions,
		gateway:      gateway,
		local:        map[string]*LocalTool{},
		returnDirect: returnDirect,
		maxSteps:     maxSteps,
		finalize:     opts.Finalize,
		logger:       logger,
	}
}

// AddLocalTool registers a tool executed in-process instead of through the
// gateway.
func (r *Runtime) AddLocalTool(tool *LocalTool) {
	r.local[tool.Spec.Name] = tool
}

// turn tracks the state of one executing turn.
type turn struct {
	userID   string
	active   *Definition
	working  []Message
	steps    int
	trace    []TraceEntry
	sink     Sink
	gateway  []ToolSpec
	degraded bool
}

// ExecuteTurn runs the state machine for one user message and returns the
// turn outcome. The input carries any conversation context already prepended.
// Progress is reported through the sink; pass DiscardSink for synchronous
// callers.
func (r *Runtime) ExecuteTurn(ctx context.Context, userID, input string, sink Sink) (*TurnResult, error) {
	initial, err := r.registry.Default()
	if err != nil {
		return nil, err
	}

	t := &turn{
		userID: userID,
		active: initial,
		working: []Message{
			{Role: RoleUser, Content: input, Timestamp: time.Now()},
		},
		sink: sink,
	}

	t.sink.Emit(Event{Type: EventStarted, Agent: t.active.Name})
	t.sink.Emit(Event{Type: EventAgentChanged, Agent: t.active.Name})

	t.gateway, t.degraded = r.fetchGatewayTools(ctx)

	for {
		completion, err := r.completions.Complete(ctx, CompletionRequest{
			Messages: r.requestMessages(t),
			Tools:    r.agentTools(t),
		})
		t.steps++

		if err != nil {
			r.logger.Error("completion failed", "user_id", userID, "agent", t.active.Name, "error", err)
			t.trace = append(t.trace, TraceEntry{
				Step:   t.steps,
				Agent:  t.active.Name,
				Action: ActionCompletion,
				Status: StatusFailed,
				Detail: err.Error(),
			})
			return r.finish(ctx, t, fallbackResponse, false), nil
		}

		t.trace = append(t.trace, TraceEntry{
			Step:   t.steps,
			Agent:  t.active.Name,
			Action: ActionCompletion,
			Status: StatusOK,
		})

		if len(completion.ToolCalls) == 0 {
			t.working = append(t.working, Message{
				Role:      RoleAssistant,
				Content:   completion.Content,
				AgentName: t.active.Name,
				Timestamp: time.Now(),
			})
			return r.finish(ctx, t, completion.Content, r.finalize), nil
		}

		t.working = append(t.working, Message{
			Role:      RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
			AgentName: t.active.Name,
			Timestamp: time.Now(),
		})

		if t.steps >= r.maxSteps-1 {
			r.logger.Warn("step budget exhausted", "user_id", userID, "agent", t.active.Name, "steps", t.steps)
			return r.finish(ctx, t, stepLimitResponse, false), nil
		}

		if final, done := r.executeToolCalls(ctx, t, completion.ToolCalls); done {
			return r.finish(ctx, t, final, false), nil
		}
	}
}

// executeToolCalls runs each requested tool call in order. It returns the
// final response and true when a return-direct tool ends the turn.
func (r *Runtime) executeToolCalls(ctx context.Context, t *turn, calls []ToolCall) (string, bool) {
	for _, call := range calls {
		if target, ok := HandoffTarget(call.Name); ok {
			r.handoff(t, call, target)
			continue
		}

		if tool, ok := r.local[call.Name]; ok {
			result, err := tool.Run(ctx, call.Arguments)
			if err != nil {
				result = fmt.Sprintf("Error: %s", err)
			}

			t.sink.Emit(Event{Type: EventToolCalled, Agent: t.active.Name, Tool: call.Name})
			t.appendToolResult(call, result)
			t.trace = append(t.trace, TraceEntry{
				Step:   t.steps,
				Agent:  t.active.Name,
				Action: ActionToolCall,
				Tool:   call.Name,
				Status: toolStatus(err),
			})

			if tool.ReturnDirect && err == nil {
				t.working = append(t.working, Message{
					Role:      RoleAssistant,
					Content:   result,
					AgentName: t.active.Name,
					Timestamp: time.Now(),
				})
				return result, true
			}
			continue
		}

		t.sink.Emit(Event{Type: EventToolCalled, Agent: t.active.Name, Tool: call.Name})

		result, err := r.gatewayCall(ctx, t, call)
		if err != nil {
			r.logger.Warn("tool call failed", "user_id", t.userID, "tool", call.Name, "error", err)
			result = fmt.Sprintf("Error: %s", err)
		}

		t.appendToolResult(call, result)
		t.trace = append(t.trace, TraceEntry{
			Step:   t.steps,
			Agent:  t.active.Name,
			Action: ActionToolCall,
			Tool:   call.Name,
			Status: toolStatus(err),
		})

		if r.returnDirect[call.Name] && err == nil {
			t.working = append(t.working, Message{
				Role:      RoleAssistant,
				Content:   result,
				AgentName: t.active.Name,
				Timestamp: time.Now(),
			})
			return result, true
		}
	}

	return "", false
}

// handoff acknowledges a transfer_to_X call and switches the active agent.
// The working message list is shared, so the new agent sees full history.
func (r *Runtime) handoff(t *turn, call ToolCall, target string) {
	def, ok := r.registry.Get(target)
	if !ok {
		t.appendToolResult(call, fmt.Sprintf("Error: unknown agent %q", target))
		t.trace = append(t.trace, TraceEntry{
			Step:   t.steps,
			Agent:  t.active.Name,
			Action: ActionHandoff,
			Tool:   call.Name,
			Status: StatusFailed,
			Detail: "unknown agent",
		})
		return
	}

	t.appendToolResult(call, fmt.Sprintf("Transferred to %s", target))
	t.trace = append(t.trace, TraceEntry{
		Step:   t.steps,
		Agent:  t.active.Name,
		Action: ActionHandoff,
		Tool:   call.Name,
		Status: StatusOK,
		Detail: target,
	})

	t.active = def
	t.sink.Emit(Event{Type: EventAgentChanged, Agent: target})
}

func (r *Runtime) gatewayCall(ctx context.Context, t *turn, call ToolCall) (string, error) {
	if r.gateway == nil || t.degraded {
		return "", fmt.Errorf("tool %s unavailable", call.Name)
	}
	return r.gateway.CallTool(ctx, call.Name, call.Arguments)
}

// finish applies the optional finalization pass, emits the terminal events,
// and builds the turn result. The last assistant message always matches the
// emitted response.
func (r *Runtime) finish(ctx context.Context, t *turn, response string, finalize bool) *TurnResult {
	if finalize {
		if rewritten, ok := r.finalizeResponse(ctx, t, response); ok {
			response = rewritten
			if n := len(t.working); n > 0 && t.working[n-1].Role == RoleAssistant {
				t.working[n-1].Content = response
			}
		}
	}

	if n := len(t.working); n == 0 || t.working[n-1].Role != RoleAssistant || t.working[n-1].Content != response {
		t.working = append(t.working, Message{
			Role:      RoleAssistant,
			Content:   response,
			AgentName: t.active.Name,
			Timestamp: time.Now(),
		})
	}

	t.sink.Emit(Event{Type: EventContentDelta, Agent: t.active.Name, Content: response})
	t.sink.Emit(Event{Type: EventCompleted, Agent: t.active.Name})

	return &TurnResult{
		Response:   response,
		FinalAgent: t.active.Name,
		Steps:      t.steps,
		Trace:      t.trace,
	}
}

// finalizeResponse rewrites the raw response in the assistant's voice. A
// failed rewrite keeps the original content.
func (r *Runtime) finalizeResponse(ctx context.Context, t *turn, response string) (string, bool) {
	completion, err := r.completions.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: finalizerPrompt},
			{Role: RoleUser, Content: response},
		},
	})
	if err != nil || completion.Content == "" {
		r.logger.Warn("finalization failed", "user_id", t.userID, "error", err)
		t.trace = append(t.trace, TraceEntry{
			Step:   t.steps,
			Agent:  t.active.Name,
			Action: ActionFinalize,
			Status: StatusFailed,
		})
		return "", false
	}

	t.trace = append(t.trace, TraceEntry{
		Step:   t.steps,
		Agent:  t.active.Name,
		Action: ActionFinalize,
		Status: StatusOK,
	})
	return completion.Content, true
}

// requestMessages prepends the active agent's rendered system prompt to the
// shared working list.
func (r *Runtime) requestMessages(t *turn) []Message {
	messages := make([]Message, 0, len(t.working)+1)
	messages = append(messages, Message{
		Role:    RoleSystem,
		Content: t.active.RenderPrompt(t.userID),
	})
	return append(messages, t.working...)
}

// agentTools resolves the active agent's tool specs: its gateway and local
// tools by name, plus a synthetic transfer tool per handoff target.
func (r *Runtime) agentTools(t *turn) []ToolSpec {
	byName := map[string]ToolSpec{}
	for _, spec := range t.gateway {
		byName[spec.Name] = spec
	}

	var specs []ToolSpec
	for _, name := range t.active.ToolNames {
		if tool, ok := r.local[name]; ok {
			specs = append(specs, tool.Spec)
			continue
		}
		if spec, ok := byName[name]; ok {
			specs = append(specs, spec)
		}
	}

	for _, target := range t.active.HandoffTargets {
		specs = append(specs, ToolSpec{
			Name:        HandoffToolName(target),
			Description: fmt.Sprintf("Transfer the conversation to the %s agent.", target),
		})
	}

	return specs
}

// fetchGatewayTools lists the gateway's tools once per turn. An unreachable
// gateway degrades the turn to local and transfer tools only.
func (r *Runtime) fetchGatewayTools(ctx context.Context) ([]ToolSpec, bool) {
	if r.gateway == nil {
		return nil, true
	}

	specs, err := r.gateway.ListTools(ctx)
	if err != nil {
		r.logger.Warn("tool listing failed, continuing without gateway tools", "error", err)
		return nil, true
	}

	return specs, false
}

func (t *turn) appendToolResult(call ToolCall, content string) {
	t.working = append(t.working, Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
		Timestamp:  time.Now(),
	})
}

func toolStatus(err error) string {
	if err != nil {
		return StatusFailed
	}
	return StatusOK
}
