package agents

import (
	"fmt"
	"strings"
)

// HandoffPrefix marks synthetic tool names that transfer control between
// agents rather than invoking the gateway.
const HandoffPrefix = "transfer_to_"

// DefaultAgentName is preferred as the entry agent when registered.
const DefaultAgentName = "orchestrator"

// Definition declares a single agent: its prompt, the gateway tools it may
// call, and the agents it may hand off to.
type Definition struct {
	Name           string
	SystemPrompt   string
	ToolNames      []string
	HandoffTargets []string
}

// RenderPrompt substitutes per-turn values into the agent's system prompt.
func (d *Definition) RenderPrompt(userID string) string {
	return strings.ReplaceAll(d.SystemPrompt, "{user_id}", userID)
}

// HandoffToolName returns the synthetic tool name that transfers control to
// the named agent.
func HandoffToolName(agent string) string {
	return HandoffPrefix + agent
}

// HandoffTarget extracts the target agent from a synthetic handoff tool name.
// The second return is false when the name is not a handoff.
func HandoffTarget(toolName string) (string, bool) {
	if !strings.HasPrefix(toolName, HandoffPrefix) {
		return "", false
	}
	target := strings.TrimPrefix(toolName, HandoffPrefix)
	if target == "" {
		return "", false
	}
	return target, true
}

// Registry holds the agents available to the runtime in registration order.
type Registry struct {
	order     []string
	byName    map[string]*Definition
	preferred string
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: map[string]*Definition{},
	}
}

// Register adds an agent definition. Registering a duplicate name or a
// handoff target that shadows a tool name is an error.
func (r *Registry) Register(def *Definition) error {
	if def.Name == "" {
		return fmt.Errorf("agent name required")
	}
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("agent %q already registered", def.Name)
	}

	r.byName[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Get returns the named agent definition.
func (r *Registry) Get(name string) (*Definition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

// SetPreferred names the agent that opens each turn. An empty or unknown
// name falls back to the standard default.
func (r *Registry) SetPreferred(name string) {
	r.preferred = name
}

// Default returns the entry agent: the preferred agent when set and
// registered, then orchestrator, then the first registered agent.
func (r *Registry) Default() (*Definition, error) {
	if r.preferred != "" {
		if def, ok := r.byName[r.preferred]; ok {
			return def, nil
		}
	}
	if def, ok := r.byName[DefaultAgentName]; ok {
		return def, nil
	}
	if len(r.order) == 0 {
		return nil, fmt.Errorf("no agents registered")
	}
	return r.byName[r.order[0]], nil
}

// Names returns the registered agent names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Validate checks that every handoff target resolves to a registered agent.
func (r *Registry) Validate() error {
	for _, name := range r.order {
		for _, target := range r.byName[name].HandoffTargets {
			if _, ok := r.byName[target]; !ok {
				return fmt.Errorf("agent %q hands off to unknown agent %q", name, target)
			}
		}
	}
	return nil
}
