package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

// scriptedCompletions replays a fixed sequence of completions.
type scriptedCompletions struct {
	script []func(req CompletionRequest) (*Completion, error)
	calls  int
}

func (s *scriptedCompletions) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	if s.calls >= len(s.script) {
		return nil, errors.New("unexpected completion call")
	}
	step := s.script[s.calls]
	s.calls++
	return step(req)
}

func reply(content string) func(CompletionRequest) (*Completion, error) {
	return func(CompletionRequest) (*Completion, error) {
		return &Completion{Content: content}, nil
	}
}

func callTool(name string, args map[string]any) func(CompletionRequest) (*Completion, error) {
	return func(CompletionRequest) (*Completion, error) {
		return &Completion{ToolCalls: []ToolCall{{ID: "call-" + name, Name: name, Arguments: args}}}, nil
	}
}

// fakeGateway records calls and returns scripted results per tool.
type fakeGateway struct {
	tools   []ToolSpec
	listErr error
	results map[string]string
	errs    map[string]error
	called  []string
}

func (g *fakeGateway) ListTools(context.Context) ([]ToolSpec, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.tools, nil
}

func (g *fakeGateway) CallTool(_ context.Context, name string, _ map[string]any) (string, error) {
	g.called = append(g.called, name)
	if err, ok := g.errs[name]; ok {
		return "", err
	}
	return g.results[name], nil
}

// recordingSink captures the ordered event stream.
type recordingSink struct {
	events []Event
}

func (s *recordingSink) Emit(event Event) {
	s.events = append(s.events, event)
}

func (s *recordingSink) types() []string {
	types := make([]string, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, string(e.Type))
	}
	return types
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := DefaultRegistry([]string{"log_activity"}, []string{"get_stats"})
	if err != nil {
		t.Fatalf("DefaultRegistry() error = %v", err)
	}
	return registry
}

func testRuntime(t *testing.T, completions CompletionClient, gateway ToolGateway, opts Options) *Runtime {
	t.Helper()
	rt := NewRuntime(testRegistry(t), completions, gateway, opts, slog.New(slog.DiscardHandler))
	rt.AddLocalTool(NewQuickResponseTool())
	return rt
}

func TestExecuteTurnDirectResponse(t *testing.T) {
	completions := &scriptedCompletions{script: []func(CompletionRequest) (*Completion, error){
		reply("Nice work on your run!"),
	}}
	gateway := &fakeGateway{}
	sink := &recordingSink{}

	result, err := testRuntime(t, completions, gateway, Options{}).ExecuteTurn(context.Background(), "u1", "I ran 5 km", sink)
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}

	if result.Response != "Nice work on your run!" {
		t.Errorf("Response = %q", result.Response)
	}
	if result.FinalAgent != AgentOrchestrator {
		t.Errorf("FinalAgent = %q, want %q", result.FinalAgent, AgentOrchestrator)
	}
	if result.Steps != 1 {
		t.Errorf("Steps = %d, want 1", result.Steps)
	}

	want := []string{"started", "agent_changed", "content_delta", "completed"}
	got := sink.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExecuteTurnHandoffAndTool(t *testing.T) {
	completions := &scriptedCompletions{script: []func(CompletionRequest) (*Completion, error){
		callTool(HandoffToolName(AgentLogger), nil),
		callTool("log_activity", map[string]any{"activity": "run", "distance": 5}),
		callTool(HandoffToolName(AgentOrchestrator), nil),
		reply("Logged your 5 km run, great job!"),
	}}
	gateway := &fakeGateway{
		tools:   []ToolSpec{{Name: "log_activity"}},
		results: map[string]string{"log_activity": "activity logged"},
	}
	sink := &recordingSink{}

	result, err := testRuntime(t, completions, gateway, Options{}).ExecuteTurn(context.Background(), "u1", "I ran 5 km", sink)
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}

	if result.Response != "Logged your 5 km run, great job!" {
		t.Errorf("Response = %q", result.Response)
	}
	if len(gateway.called) != 1 || gateway.called[0] != "log_activity" {
		t.Errorf("gateway calls = %v", gateway.called)
	}

	want := []string{"started", "agent_changed", "agent_changed", "tool_called", "agent_changed", "content_delta", "completed"}
	got := sink.types()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}

	agents := []string{}
	for _, e := range sink.events {
		if e.Type == EventAgentChanged {
			agents = append(agents, e.Agent)
		}
	}
	wantAgents := []string{AgentOrchestrator, AgentLogger, AgentOrchestrator}
	if strings.Join(agents, ",") != strings.Join(wantAgents, ",") {
		t.Errorf("agent changes = %v, want %v", agents, wantAgents)
	}
}

func TestExecuteTurnQuickResponseShortCircuit(t *testing.T) {
	completions := &scriptedCompletions{script: []func(CompletionRequest) (*Completion, error){
		callTool(QuickResponseToolName, map[string]any{"query_type": "greeting", "user_query": "hi"}),
	}}
	sink := &recordingSink{}

	result, err := testRuntime(t, completions, &fakeGateway{}, Options{}).ExecuteTurn(context.Background(), "u1", "hi", sink)
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}

	if result.Response == "" {
		t.Error("expected quick response content")
	}
	if completions.calls != 1 {
		t.Errorf("completion calls = %d, want 1", completions.calls)
	}
	if result.Steps != 1 {
		t.Errorf("Steps = %d, want 1", result.Steps)
	}
}

func TestExecuteTurnStepBudgetExhaustion(t *testing.T) {
	// Every completion hands off, forever.
	var script []func(CompletionRequest) (*Completion, error)
	for range 10 {
		script = append(script,
			callTool(HandoffToolName(AgentLogger), nil),
			callTool(HandoffToolName(AgentOrchestrator), nil),
		)
	}
	completions := &scriptedCompletions{script: script}

	result, err := testRuntime(t, completions, &fakeGateway{}, Options{MaxSteps: 5}).ExecuteTurn(context.Background(), "u1", "loop", &recordingSink{})
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}

	if result.Response != stepLimitResponse {
		t.Errorf("Response = %q, want %q", result.Response, stepLimitResponse)
	}
	if result.Steps >= 5 {
		t.Errorf("Steps = %d, want < 5", result.Steps)
	}
}

func TestExecuteTurnCompletionFailure(t *testing.T) {
	completions := &scriptedCompletions{script: []func(CompletionRequest) (*Completion, error){
		func(CompletionRequest) (*Completion, error) {
			return nil, errors.New("provider unreachable")
		},
	}}
	sink := &recordingSink{}

	result, err := testRuntime(t, completions, &fakeGateway{}, Options{}).ExecuteTurn(context.Background(), "u1", "hello", sink)
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}

	if result.Response != fallbackResponse {
		t.Errorf("Response = %q, want %q", result.Response, fallbackResponse)
	}

	failed := false
	for _, entry := range result.Trace {
		if entry.Action == ActionCompletion && entry.Status == StatusFailed {
			failed = true
		}
	}
	if !failed {
		t.Error("expected a failed completion trace entry")
	}
}

func TestExecuteTurnToolFailureRecovers(t *testing.T) {
	var toolMessage string
	completions := &scriptedCompletions{script: []func(CompletionRequest) (*Completion, error){
		callTool(HandoffToolName(AgentLogger), nil),
		callTool("log_activity", map[string]any{"activity": "run"}),
		func(req CompletionRequest) (*Completion, error) {
			for _, m := range req.Messages {
				if m.Role == RoleTool && m.Name == "log_activity" {
					toolMessage = m.Content
				}
			}
			return &Completion{Content: "Sorry, logging is down right now. Want me to try again later?"}, nil
		},
	}}
	gateway := &fakeGateway{
		tools: []ToolSpec{{Name: "log_activity"}},
		errs:  map[string]error{"log_activity": errors.New("tool invocation timed out")},
	}

	result, err := testRuntime(t, completions, gateway, Options{}).ExecuteTurn(context.Background(), "u1", "I ran 5 km", &recordingSink{})
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}

	if !strings.Contains(toolMessage, "timed out") {
		t.Errorf("tool message = %q, want timeout notice", toolMessage)
	}
	if !strings.Contains(result.Response, "try again") {
		t.Errorf("Response = %q, want recovery content", result.Response)
	}
}

func TestExecuteTurnReturnDirectGatewayTool(t *testing.T) {
	completions := &scriptedCompletions{script: []func(CompletionRequest) (*Completion, error){
		callTool(HandoffToolName(AgentLogger), nil),
		callTool("log_activity", map[string]any{"activity": "run"}),
	}}
	gateway := &fakeGateway{
		tools:   []ToolSpec{{Name: "log_activity"}},
		results: map[string]string{"log_activity": "Run logged: 5 km"},
	}

	result, err := testRuntime(t, completions, gateway, Options{ReturnDirect: []string{"log_activity"}}).
		ExecuteTurn(context.Background(), "u1", "I ran 5 km", &recordingSink{})
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}

	if result.Response != "Run logged: 5 km" {
		t.Errorf("Response = %q", result.Response)
	}
	if completions.calls != 2 {
		t.Errorf("completion calls = %d, want 2", completions.calls)
	}
}

func TestExecuteTurnDegradedGateway(t *testing.T) {
	completions := &scriptedCompletions{script: []func(CompletionRequest) (*Completion, error){
		reply("I can still chat even without my tools!"),
	}}
	gateway := &fakeGateway{listErr: errors.New("tool gateway unavailable")}

	result, err := testRuntime(t, completions, gateway, Options{}).ExecuteTurn(context.Background(), "u1", "hello", &recordingSink{})
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}

	if result.Response == "" {
		t.Error("expected content despite degraded gateway")
	}
}

func TestExecuteTurnPromptSubstitution(t *testing.T) {
	var systemPrompt string
	completions := &scriptedCompletions{script: []func(CompletionRequest) (*Completion, error){
		func(req CompletionRequest) (*Completion, error) {
			if len(req.Messages) > 0 && req.Messages[0].Role == RoleSystem {
				systemPrompt = req.Messages[0].Content
			}
			return &Completion{Content: "hello"}, nil
		},
	}}

	userID := fmt.Sprintf("user-%d", 42)
	if _, err := testRuntime(t, completions, &fakeGateway{}, Options{}).ExecuteTurn(context.Background(), userID, "hi", &recordingSink{}); err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}

	if !strings.Contains(systemPrompt, userID) {
		t.Errorf("system prompt missing user id %q", userID)
	}
	if strings.Contains(systemPrompt, "{user_id}") {
		t.Error("system prompt placeholder not substituted")
	}
}

// ctxCapturingCompletions replays replies while recording each call's context.
type ctxCapturingCompletions struct {
	replies []string
	ctxs    []context.Context
}

func (c *ctxCapturingCompletions) Complete(ctx context.Context, _ CompletionRequest) (*Completion, error) {
	c.ctxs = append(c.ctxs, ctx)
	if len(c.ctxs) > len(c.replies) {
		return nil, errors.New("unexpected completion call")
	}
	return &Completion{Content: c.replies[len(c.ctxs)-1]}, nil
}

func TestExecuteTurnFinalizePassUsesTurnContext(t *testing.T) {
	completions := &ctxCapturingCompletions{replies: []string{"raw draft", "Polished reply!"}}
	sink := &recordingSink{}

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "turn")

	result, err := testRuntime(t, completions, &fakeGateway{}, Options{Finalize: true}).ExecuteTurn(ctx, "u1", "hi", sink)
	if err != nil {
		t.Fatalf("ExecuteTurn() error = %v", err)
	}

	if result.Response != "Polished reply!" {
		t.Errorf("Response = %q, want the finalized reply", result.Response)
	}
	if len(completions.ctxs) != 2 {
		t.Fatalf("completion calls = %d, want 2", len(completions.ctxs))
	}
	if completions.ctxs[1].Value(ctxKey{}) != "turn" {
		t.Error("finalization must run on the turn's context, not a fresh one")
	}
}
