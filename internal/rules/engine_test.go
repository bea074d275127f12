package rules

import (
	"os"
	"path/filepath"
	"testing"

	"uiforge-mcp-server/internal/analyzer"
	"uiforge-mcp-server/internal/config"
	"uiforge-mcp-server/internal/proposal"
	"uiforge-mcp-server/internal/risk"
)

const billingRules = `
Decl tool_candidate(ToolID, Name, Type, Component).
Decl handler_call(ToolID, Method, Url).
Decl risk_override(ToolID, Tier).

risk_override(ToolID, "destructive") :-
    tool_candidate(ToolID, _, _, "BillingPanel"),
    handler_call(ToolID, "POST", _).
`

func writeRuleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risk.mg")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write rule file: %v", err)
	}
	return path
}

func billingProposal(id, component string) *proposal.ToolProposal {
	return &proposal.ToolProposal{
		ID:        id,
		Name:      "update_payment",
		Type:      proposal.TypeForm,
		Component: component,
		Risk:      risk.Assessment{Tier: risk.TierCaution},
		Handler: &analyzer.EventHandler{
			Name:  "handleSubmit",
			Event: "submit",
			APICalls: []analyzer.APICall{
				{Method: "POST", URL: "/api/billing"},
			},
		},
	}
}

func TestEngineDisabled(t *testing.T) {
	e, err := NewEngine(config.RulesConfig{Enable: false})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if e.Ready() {
		t.Error("disabled engine must not report ready")
	}

	// AssertProposal is a no-op when disabled
	if err := e.AssertProposal(billingProposal("t1", "BillingPanel")); err != nil {
		t.Errorf("AssertProposal should succeed when disabled: %v", err)
	}

	if _, _, ok := e.Override(billingProposal("t1", "BillingPanel")); ok {
		t.Error("disabled engine must never override")
	}
}

func TestNewEngineMissingRuleFile(t *testing.T) {
	_, err := NewEngine(config.RulesConfig{
		Enable:   true,
		RuleFile: "/nonexistent/risk.mg",
	})
	if err == nil {
		t.Error("expected error for missing rule file")
	}
}

func TestLoadRulesInvalidSyntax(t *testing.T) {
	path := writeRuleFile(t, "this is not a rule ((( ")
	_, err := NewEngine(config.RulesConfig{Enable: true, RuleFile: path})
	if err == nil {
		t.Error("expected error for invalid rule syntax")
	}
}

func TestOverrideFromRuleFile(t *testing.T) {
	path := writeRuleFile(t, billingRules)
	e, err := NewEngine(config.RulesConfig{
		Enable:          true,
		RuleFile:        path,
		FactBufferLimit: 100,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if !e.Ready() {
		t.Fatal("engine with loaded rules must report ready")
	}

	matching := billingProposal("t1", "BillingPanel")
	if err := e.AssertProposal(matching); err != nil {
		t.Fatalf("AssertProposal failed: %v", err)
	}

	tier, reason, ok := e.Override(matching)
	if !ok {
		t.Fatal("expected an override for the matching proposal")
	}
	if tier != risk.TierDestructive {
		t.Errorf("expected destructive override, got %q", tier)
	}
	if reason == "" {
		t.Error("expected a non-empty override reason")
	}
}

func TestOverrideFiresWithoutPriorAssert(t *testing.T) {
	path := writeRuleFile(t, billingRules)
	e, err := NewEngine(config.RulesConfig{
		Enable:          true,
		RuleFile:        path,
		FactBufferLimit: 100,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	// Override must assert the proposal's facts itself: the first pass
	// over a source file has to classify the same as every later pass.
	p := billingProposal("t1", "BillingPanel")
	tier, _, ok := e.Override(p)
	if !ok {
		t.Fatal("expected the rule to fire on the first query")
	}
	if tier != risk.TierDestructive {
		t.Errorf("expected destructive override, got %q", tier)
	}

	againTier, _, againOK := e.Override(p)
	if !againOK || againTier != tier {
		t.Errorf("repeat query diverged: %v %q vs %q", againOK, againTier, tier)
	}
}

func TestOverrideNonMatchingProposal(t *testing.T) {
	path := writeRuleFile(t, billingRules)
	e, err := NewEngine(config.RulesConfig{
		Enable:          true,
		RuleFile:        path,
		FactBufferLimit: 100,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	other := billingProposal("t2", "ProfileForm")
	if err := e.AssertProposal(other); err != nil {
		t.Fatalf("AssertProposal failed: %v", err)
	}

	if _, _, ok := e.Override(other); ok {
		t.Error("rule must not fire for a non-billing component")
	}
}

func TestFactBufferLimit(t *testing.T) {
	path := writeRuleFile(t, billingRules)
	e, err := NewEngine(config.RulesConfig{
		Enable:          true,
		RuleFile:        path,
		FactBufferLimit: 10,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	for i := 0; i < 20; i++ {
		p := billingProposal("t"+string(rune('a'+i)), "ProfileForm")
		if err := e.AssertProposal(p); err != nil {
			t.Fatalf("AssertProposal failed: %v", err)
		}
	}

	e.mu.Lock()
	n := len(e.facts)
	e.mu.Unlock()
	if n > 10 {
		t.Errorf("fact buffer exceeded limit: %d", n)
	}
}
