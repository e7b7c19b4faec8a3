package agents

import "testing"

func TestHandoffTarget(t *testing.T) {
	tests := []struct {
		name       string
		toolName   string
		wantTarget string
		wantOK     bool
	}{
		{"logger transfer", "transfer_to_logger", "logger", true},
		{"coach transfer", "transfer_to_coach", "coach", true},
		{"domain tool", "log_activity", "", false},
		{"bare prefix", "transfer_to_", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := HandoffTarget(tt.toolName)
			if target != tt.wantTarget || ok != tt.wantOK {
				t.Errorf("HandoffTarget(%q) = (%q, %v), want (%q, %v)", tt.toolName, target, ok, tt.wantTarget, tt.wantOK)
			}
		})
	}
}

func TestRegistryDefault(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.Default(); err == nil {
		t.Error("Default() on empty registry should error")
	}

	if err := registry.Register(&Definition{Name: "coach"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	def, err := registry.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if def.Name != "coach" {
		t.Errorf("Default() = %q, want first registered agent", def.Name)
	}

	if err := registry.Register(&Definition{Name: DefaultAgentName}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	def, err = registry.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if def.Name != DefaultAgentName {
		t.Errorf("Default() = %q, want %q", def.Name, DefaultAgentName)
	}

	registry.SetPreferred("coach")
	def, _ = registry.Default()
	if def.Name != "coach" {
		t.Errorf("Default() with preferred = %q, want coach", def.Name)
	}

	registry.SetPreferred("missing")
	def, _ = registry.Default()
	if def.Name != DefaultAgentName {
		t.Errorf("Default() with unknown preferred = %q, want %q", def.Name, DefaultAgentName)
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&Definition{Name: "logger"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(&Definition{Name: "logger"}); err == nil {
		t.Error("Register() duplicate should error")
	}
	if err := registry.Register(&Definition{}); err == nil {
		t.Error("Register() empty name should error")
	}
}

func TestRegistryValidate(t *testing.T) {
	registry := NewRegistry()
	_ = registry.Register(&Definition{Name: "orchestrator", HandoffTargets: []string{"logger"}})

	if err := registry.Validate(); err == nil {
		t.Error("Validate() should reject unknown handoff target")
	}

	_ = registry.Register(&Definition{Name: "logger", HandoffTargets: []string{"orchestrator"}})
	if err := registry.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRenderPrompt(t *testing.T) {
	def := &Definition{
		Name:         "logger",
		SystemPrompt: "Acting for {user_id}. Remember, {user_id} counts on you.",
	}

	got := def.RenderPrompt("u42")
	want := "Acting for u42. Remember, u42 counts on you."
	if got != want {
		t.Errorf("RenderPrompt() = %q, want %q", got, want)
	}
}
