package proposal

import (
	"strings"
	"testing"

	"uiforge-mcp-server/internal/analyzer"
	"uiforge-mcp-server/internal/config"
	"uiforge-mcp-server/internal/risk"
)

func buildFrom(t *testing.T, source, file string) *Result {
	t.Helper()
	analysis, err := analyzer.Parse(source, file)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return NewBuilder(config.ClassifyConfig{DestructiveHandling: "flag"}).Build(analysis)
}

func TestBuildContactFormProposal(t *testing.T) {
	src := `
	<form id="contact">
	  <label for="name">Name</label>
	  <input type="text" id="name" name="name" required>
	  <input type="email" name="email" placeholder="Email" required>
	  <button type="submit">Send Message</button>
	</form>
	`
	result := buildFrom(t, src, "contact.html")
	if len(result.Proposals) != 1 {
		t.Fatalf("expected exactly 1 proposal, got %d", len(result.Proposals))
	}

	p := result.Proposals[0]
	if p.Risk.Tier != risk.TierCaution {
		t.Errorf("submit-labeled form: got %s, want caution", p.Risk.Tier)
	}
	if p.Type != TypeForm {
		t.Errorf("expected form type, got %s", p.Type)
	}
	// No reconcile pass ran, so no element clears the confidence gate.
	if !p.Unstable || p.Selected {
		t.Error("proposals without runtime selectors must be unstable and unselected")
	}

	props, _ := p.InputSchema["properties"].(map[string]any)
	if len(props) != 2 {
		t.Fatalf("expected 2 schema properties, got %d: %v", len(props), props)
	}
	for _, key := range []string{"name", "email"} {
		prop, ok := props[key].(map[string]any)
		if !ok {
			t.Fatalf("missing property %q", key)
		}
		if prop["type"] != "string" {
			t.Errorf("property %q: got type %v, want string", key, prop["type"])
		}
	}
	required, _ := p.InputSchema["required"].([]string)
	if len(required) != 2 {
		t.Errorf("expected both fields required, got %v", required)
	}
}

func TestBuildSaveAndDeleteButtons(t *testing.T) {
	src := `
	<form id="account">
	  <input type="text" name="display_name">
	  <button type="submit">Save Changes</button>
	</form>
	<button id="delete-account">Delete Account</button>
	`
	result := buildFrom(t, src, "account.html")
	if len(result.Proposals) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(result.Proposals))
	}

	var save, del *ToolProposal
	for _, p := range result.Proposals {
		switch p.Risk.Tier {
		case risk.TierCaution:
			save = p
		case risk.TierDestructive:
			del = p
		}
	}
	if save == nil || del == nil {
		t.Fatalf("expected one caution and one destructive proposal, got %+v", result.Proposals)
	}
	if del.Selected {
		t.Error("destructive proposals must default to unselected")
	}
	if del.Type != TypeAction {
		t.Errorf("standalone button should be an action, got %s", del.Type)
	}
}

func TestBuildSearchFormIsSafe(t *testing.T) {
	src := `
	<form>
	  <input type="search" name="q" placeholder="Find anything">
	  <button type="submit">Find</button>
	</form>
	`
	result := buildFrom(t, src, "finder.html")
	if len(result.Proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(result.Proposals))
	}
	if result.Proposals[0].Risk.Tier != risk.TierSafe {
		t.Errorf("got %s (%s), want safe", result.Proposals[0].Risk.Tier, result.Proposals[0].Risk.Reason)
	}
}

func TestBuildExcludedNeverAppears(t *testing.T) {
	src := `<button onclick="navigateHome()">Go home via redirect</button>`
	result := buildFrom(t, src, "nav.html")
	if len(result.Proposals) != 0 {
		t.Fatalf("navigation candidates must be dropped, got %+v", result.Proposals)
	}
	if result.Explanation == "" {
		t.Error("empty result must carry an explanation")
	}
}

func TestBuildIndexesAreContiguous(t *testing.T) {
	src := `
	<form id="contact">
	  <input type="text" name="name">
	  <button type="submit">Send</button>
	</form>
	<button onclick="navigateHome()">Go home via redirect</button>
	<button id="export">Export data</button>
	`
	result := buildFrom(t, src, "contact.html")
	if len(result.Proposals) != 2 {
		t.Fatalf("expected 2 proposals after dropping the navigation button, got %d", len(result.Proposals))
	}
	for i, p := range result.Proposals {
		if p.Index != i+1 {
			t.Errorf("proposal %d: got index %d, want %d", i, p.Index, i+1)
		}
	}
}

func TestBuildNothingInstrumentable(t *testing.T) {
	src := `<form><input type="password" name="secret"></form>`
	result := buildFrom(t, src, "locked.html")
	if len(result.Proposals) != 0 {
		t.Fatalf("expected no proposals, got %d", len(result.Proposals))
	}
	if !strings.Contains(result.Explanation, "no instrumentable elements") {
		t.Errorf("explanation should distinguish nothing-found from failure: %q", result.Explanation)
	}
}

func formCandidate(component string, renameField string) (string, candidate) {
	fieldName := "email"
	if renameField != "" {
		fieldName = renameField
	}
	return component, candidate{
		kind: TypeForm,
		inputs: []*analyzer.UIElement{
			{Tag: "input", Name: fieldName, InputType: "email", Label: "Email"},
		},
		trigger: &analyzer.UIElement{Tag: "button", Label: "Send", InputType: "submit"},
	}
}

func TestStableIDIgnoresCosmetics(t *testing.T) {
	comp, cand := formCandidate("ContactForm", "")
	before := stableID(comp, cand)

	// Styling and position must never contribute.
	cand.inputs[0].Attributes = map[string]string{"class": "mt-4 text-lg", "style": "color:red"}
	cand.trigger.Attributes = map[string]string{"class": "btn btn-primary"}
	after := stableID(comp, cand)

	if before != after {
		t.Errorf("cosmetic attributes changed the ID: %s vs %s", before, after)
	}
}

func TestStableIDTracksSemanticChanges(t *testing.T) {
	comp, cand := formCandidate("ContactForm", "")
	base := stableID(comp, cand)

	_, renamed := formCandidate("ContactForm", "contact_email")
	if stableID(comp, renamed) == base {
		t.Error("renaming a field must change the ID")
	}

	_, retyped := formCandidate("ContactForm", "")
	retyped.inputs[0].InputType = "number"
	if stableID(comp, retyped) == base {
		t.Error("changing a field type must change the ID")
	}

	if stableID("OtherForm", cand) == base {
		t.Error("component name must contribute to the ID")
	}
}

func TestToolNaming(t *testing.T) {
	comp, cand := formCandidate("ContactForm", "")
	if got := toolName(comp, cand); got != "send_contact_form" {
		t.Errorf("form tool name: got %q", got)
	}

	action := candidate{kind: TypeAction, trigger: &analyzer.UIElement{Tag: "button", Label: "Delete Account!"}}
	if got := toolName("Settings", action); got != "delete_account" {
		t.Errorf("action tool name: got %q", got)
	}

	bare := candidate{kind: TypeAction, trigger: &analyzer.UIElement{Tag: "button"}}
	if got := toolName("SettingsPanel", bare); got != "action_in_settings_panel" {
		t.Errorf("fallback action name: got %q", got)
	}
}

func TestSchemaFieldCollisions(t *testing.T) {
	inputs := []*analyzer.UIElement{
		{Tag: "input", Name: "email", InputType: "text", Label: "Work email"},
		{Tag: "input", Name: "email", InputType: "email", Label: "Personal email"},
	}
	schema, collisions := buildSchema(inputs)
	props, _ := schema["properties"].(map[string]any)
	if len(props) != 1 {
		t.Fatalf("colliding keys are not deduplicated into new keys: %v", props)
	}
	if len(collisions) != 1 || collisions[0] != "email" {
		t.Errorf("expected reported collision on email, got %v", collisions)
	}
	// Later element overwrites earlier.
	prop := props["email"].(map[string]any)
	if !strings.Contains(prop["description"].(string), "Personal") {
		t.Errorf("later element must win the key, got %v", prop)
	}
}

func TestSchemaTypeTable(t *testing.T) {
	tests := []struct {
		inputType string
		tag       string
		want      string
	}{
		{"number", "input", "number"},
		{"range", "input", "number"},
		{"checkbox", "input", "boolean"},
		{"date", "input", "string"},
		{"text", "input", "string"},
		{"", "textarea", "string"},
	}
	for _, tt := range tests {
		el := &analyzer.UIElement{Tag: tt.tag, InputType: tt.inputType}
		if got := jsonType(el); got != tt.want {
			t.Errorf("%s/%s: got %s, want %s", tt.tag, tt.inputType, got, tt.want)
		}
	}
}

func TestSelectGetsChoiceAnnotation(t *testing.T) {
	schema, _ := buildSchema([]*analyzer.UIElement{
		{Tag: "select", Name: "country", Label: "Country"},
	})
	props, _ := schema["properties"].(map[string]any)
	prop := props["country"].(map[string]any)
	if !strings.Contains(prop["description"].(string), "choice field") {
		t.Errorf("select needs a choice annotation, got %v", prop)
	}
}

func selectors(scores ...float64) []analyzer.SelectorStrategy {
	out := make([]analyzer.SelectorStrategy, 0, len(scores))
	for _, s := range scores {
		out = append(out, analyzer.SelectorStrategy{Strategy: analyzer.StrategyRawCSS, Value: "x", Score: s})
	}
	return out
}

func TestStabilityGateBoundary(t *testing.T) {
	mk := func(score float64) *ToolProposal {
		return &ToolProposal{
			Trigger: &analyzer.UIElement{Tag: "button", Selectors: selectors(score)},
			Inputs: []*analyzer.UIElement{
				{Tag: "input", Name: "email", Selectors: selectors(0.9)},
			},
		}
	}

	atGate := mk(0.6)
	applyStabilityGate(atGate)
	if atGate.Unstable {
		t.Errorf("0.60 is inclusive-stable, reasons: %v", atGate.StabilityReasons)
	}

	below := mk(0.59)
	applyStabilityGate(below)
	if !below.Unstable {
		t.Error("0.59 must be unstable")
	}
	if len(below.StabilityReasons) != 1 || !strings.Contains(below.StabilityReasons[0], "trigger") {
		t.Errorf("reason must name the field: %v", below.StabilityReasons)
	}
}

func TestStabilityGateMissingSelectors(t *testing.T) {
	p := &ToolProposal{
		Inputs: []*analyzer.UIElement{{Tag: "input", Name: "email"}},
	}
	applyStabilityGate(p)
	if !p.Unstable {
		t.Fatal("element without selectors must be unstable")
	}
	if !strings.Contains(p.StabilityReasons[0], "lacks a runtime selector") {
		t.Errorf("reason: %v", p.StabilityReasons)
	}
}

func TestUnstableForcesUnselected(t *testing.T) {
	p := &ToolProposal{
		Risk:    risk.Assessment{Tier: risk.TierSafe},
		Trigger: &analyzer.UIElement{Tag: "button"},
	}
	applyStabilityGate(p)
	if defaultSelected(p, "flag") {
		t.Error("unstable proposals must never default to selected")
	}
}

func TestDestructiveHandlingModes(t *testing.T) {
	src := `<button id="wipe" onclick="wipeAll()">Wipe everything</button>`
	analysis, err := analyzer.Parse(src, "danger.html")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	excluded := NewBuilder(config.ClassifyConfig{DestructiveHandling: "exclude"}).Build(analysis)
	if len(excluded.Proposals) != 0 {
		t.Errorf("exclude mode must drop destructive proposals, got %d", len(excluded.Proposals))
	}

	allowed := NewBuilder(config.ClassifyConfig{DestructiveHandling: "allow"}).Build(analysis)
	if len(allowed.Proposals) != 1 {
		t.Errorf("allow mode keeps destructive proposals: %+v", allowed.Proposals)
	}
}

func TestDefaultSelection(t *testing.T) {
	stable := func(tier risk.Tier) *ToolProposal {
		return &ToolProposal{Risk: risk.Assessment{Tier: tier}}
	}

	if !defaultSelected(stable(risk.TierCaution), "flag") {
		t.Error("stable caution proposals default to selected")
	}
	if defaultSelected(stable(risk.TierDestructive), "flag") {
		t.Error("flag mode deselects destructive proposals")
	}
	if !defaultSelected(stable(risk.TierDestructive), "allow") {
		t.Error("allow mode selects destructive proposals")
	}
}

func TestNameFilters(t *testing.T) {
	src := `
	<form>
	  <input type="text" name="q">
	  <button type="submit">Find</button>
	</form>
	`
	analysis, err := analyzer.Parse(src, "finder.html")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	result := NewBuilder(config.ClassifyConfig{Exclude: []string{"find*"}}).Build(analysis)
	if len(result.Proposals) != 0 {
		t.Errorf("exclude pattern should drop the tool, got %+v", result.Proposals)
	}

	result = NewBuilder(config.ClassifyConfig{Include: []string{"nonexistent"}}).Build(analysis)
	if len(result.Proposals) != 0 {
		t.Errorf("include list without a match drops the tool, got %+v", result.Proposals)
	}
}

func TestBuildDeterministic(t *testing.T) {
	src := `
	<form id="contact">
	  <input type="text" name="name" required>
	  <button type="submit">Send</button>
	</form>
	`
	analysis, err := analyzer.Parse(src, "contact.html")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	b := NewBuilder(config.ClassifyConfig{})
	first := b.Build(analysis)
	for i := 0; i < 5; i++ {
		again := b.Build(analysis)
		if len(again.Proposals) != len(first.Proposals) {
			t.Fatal("proposal count varies across runs")
		}
		for j := range again.Proposals {
			if again.Proposals[j].ID != first.Proposals[j].ID || again.Proposals[j].Name != first.Proposals[j].Name {
				t.Fatalf("run %d: proposal %d differs", i, j)
			}
		}
	}
}
