// Package proposal groups parsed interaction surfaces into tool proposals:
// named, described, risk-classified candidates with a JSON Schema input
// contract and a content-derived stable identity.
package proposal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"

	"uiforge-mcp-server/internal/analyzer"
	"uiforge-mcp-server/internal/config"
	"uiforge-mcp-server/internal/risk"
)

// Candidate type values.
const (
	TypeForm   = "form"
	TypeAction = "action"
)

const idHexLen = 12

// ToolProposal is one proposed agent tool derived from a component.
type ToolProposal struct {
	ID string `json:"id"`
	// Index is the proposal's 1-based position in the build output.
	// Filtered candidates never consume an index.
	Index       int             `json:"index"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Component   string          `json:"component"`
	SourceFile  string          `json:"source_file,omitempty"`
	Risk        risk.Assessment `json:"risk"`
	InputSchema map[string]any  `json:"input_schema"`

	Inputs  []*analyzer.UIElement  `json:"inputs,omitempty"`
	Trigger *analyzer.UIElement    `json:"trigger,omitempty"`
	Handler *analyzer.EventHandler `json:"handler,omitempty"`

	Selected bool `json:"selected"`
	// Unstable marks proposals whose selectors do not clear the confidence
	// gate; unstable tools are never auto-approved.
	Unstable         bool     `json:"unstable,omitempty"`
	StabilityReasons []string `json:"stability_reasons,omitempty"`
	// FieldCollisions records schema keys that more than one input element
	// normalized to. The later element wins the key.
	FieldCollisions []string `json:"field_collisions,omitempty"`
}

// Result is the outcome of one build pass. Zero proposals is a valid
// terminal state, not an error; Explanation tells the caller which it was.
type Result struct {
	Proposals   []*ToolProposal `json:"proposals"`
	Explanation string          `json:"explanation,omitempty"`
}

// Overrider lets a rules engine replace a proposal's computed risk tier.
type Overrider interface {
	Override(p *ToolProposal) (risk.Tier, string, bool)
}

// Builder turns component analyses into tool proposals under a workspace
// classification policy.
type Builder struct {
	classifier          *risk.Classifier
	include             []string
	exclude             []string
	destructiveHandling string
	overrider           Overrider
}

func NewBuilder(cfg config.ClassifyConfig) *Builder {
	return &Builder{
		classifier:          risk.NewClassifier(cfg),
		include:             cfg.Include,
		exclude:             cfg.Exclude,
		destructiveHandling: cfg.DestructiveHandling,
	}
}

// SetOverrider installs a risk override source consulted after the
// built-in cascade. Overrides apply per proposal by stable ID or name.
func (b *Builder) SetOverrider(o Overrider) { b.overrider = o }

// Build groups every component in the analysis into proposals. Excluded
// candidates are dropped before numbering, so they never appear in output.
func (b *Builder) Build(analysis *analyzer.ComponentAnalysis) *Result {
	var proposals []*ToolProposal
	for i := range analysis.Components {
		comp := &analysis.Components[i]
		for _, cand := range groupCandidates(comp) {
			p := b.finish(comp, analysis.File, cand)
			if p != nil {
				proposals = append(proposals, p)
			}
		}
	}

	for i, p := range proposals {
		p.Index = i + 1
	}

	res := &Result{Proposals: proposals}
	if len(proposals) == 0 {
		res.Explanation = "no instrumentable elements found: the source parsed cleanly but contains no " +
			"non-excluded interactive surface (forms, inputs, or action buttons) to build tools from"
	}
	return res
}

// candidate is a pre-classification grouping of elements.
type candidate struct {
	kind    string
	inputs  []*analyzer.UIElement
	trigger *analyzer.UIElement
	handler *analyzer.EventHandler
}

// groupCandidates implements the grouping algorithm: the form path claims
// inputs and a trigger per submit handler (or per <form> for markup), then
// the action path turns every unclaimed button into a standalone candidate.
func groupCandidates(comp *analyzer.ComponentInfo) []candidate {
	var out []candidate
	claimed := map[*analyzer.UIElement]bool{}

	submitHandlers := handlersByEvent(comp.Handlers, "submit")
	forms := elementsByTag(comp.Elements, "form")

	switch {
	case len(submitHandlers) > 0:
		inputs := textCapableInputs(comp.Elements, "")
		trigger := pickTrigger(comp.Elements, "")
		for i := range submitHandlers {
			out = append(out, candidate{kind: TypeForm, inputs: inputs, trigger: trigger, handler: submitHandlers[i]})
		}
		if trigger != nil {
			claimed[trigger] = true
		}
	case len(forms) > 0:
		for _, form := range forms {
			inputs := textCapableInputs(comp.Elements, form.FormID)
			trigger := pickTrigger(comp.Elements, form.FormID)
			if len(inputs) == 0 && trigger == nil {
				continue
			}
			out = append(out, candidate{kind: TypeForm, inputs: inputs, trigger: trigger})
			if trigger != nil {
				claimed[trigger] = true
			}
		}
	default:
		// Implicit grouping: form-free inputs plus a button still make a tool.
		inputs := textCapableInputs(comp.Elements, "")
		trigger := pickTrigger(comp.Elements, "")
		if len(inputs) > 0 && trigger != nil {
			out = append(out, candidate{kind: TypeForm, inputs: inputs, trigger: trigger})
			claimed[trigger] = true
		}
	}

	for _, el := range comp.Elements {
		if el.Tag != "button" || claimed[el] {
			continue
		}
		out = append(out, candidate{kind: TypeAction, trigger: el, handler: clickHandlerFor(comp.Handlers, el)})
	}
	return out
}

func (b *Builder) finish(comp *analyzer.ComponentInfo, file string, cand candidate) *ToolProposal {
	assessment := b.classifier.Classify(cand.trigger, cand.handler)
	if assessment.Tier == risk.TierExcluded {
		return nil
	}
	if assessment.Tier == risk.TierDestructive && b.destructiveHandling == "exclude" {
		return nil
	}

	p := &ToolProposal{
		Type:       cand.kind,
		Component:  comp.Name,
		SourceFile: file,
		Risk:       assessment,
		Inputs:     cand.inputs,
		Trigger:    cand.trigger,
		Handler:    cand.handler,
	}
	p.Name = toolName(comp.Name, cand)
	p.Description = describe(cand)
	p.InputSchema, p.FieldCollisions = buildSchema(cand.inputs)
	p.ID = stableID(comp.Name, cand)

	if !b.nameAllowed(p.Name) {
		return nil
	}
	if b.overrider != nil {
		if tier, reason, ok := b.overrider.Override(p); ok {
			p.Risk = risk.Assessment{Tier: tier, Reason: reason}
			if tier == risk.TierExcluded {
				return nil
			}
		}
	}

	applyStabilityGate(p)
	p.Selected = defaultSelected(p, b.destructiveHandling)
	return p
}

func (b *Builder) nameAllowed(name string) bool {
	match := func(pat string) bool {
		if strings.ContainsAny(pat, "*?[") {
			ok, err := path.Match(pat, name)
			return err == nil && ok
		}
		return strings.Contains(name, pat)
	}
	for _, pat := range b.exclude {
		if match(pat) {
			return false
		}
	}
	if len(b.include) == 0 {
		return true
	}
	for _, pat := range b.include {
		if match(pat) {
			return true
		}
	}
	return false
}

func defaultSelected(p *ToolProposal, destructiveHandling string) bool {
	if p.Unstable {
		return false
	}
	if p.Risk.Tier != risk.TierDestructive {
		return true
	}
	return destructiveHandling == "allow"
}

// applyStabilityGate marks a proposal unstable when any of its elements
// lacks a selector list or tops out below 0.6.
func applyStabilityGate(p *ToolProposal) {
	check := func(field string, el *analyzer.UIElement) {
		if el == nil {
			return
		}
		if len(el.Selectors) == 0 {
			p.Unstable = true
			p.StabilityReasons = append(p.StabilityReasons,
				fmt.Sprintf("%s lacks a runtime selector entirely", field))
			return
		}
		top := el.Selectors[0].Score
		for _, s := range el.Selectors[1:] {
			if s.Score > top {
				top = s.Score
			}
		}
		if top < 0.6 {
			p.Unstable = true
			p.StabilityReasons = append(p.StabilityReasons,
				fmt.Sprintf("%s best selector score %.2f is below 0.60", field, top))
		}
	}

	check("trigger", p.Trigger)
	for _, el := range p.Inputs {
		check("field "+fieldKey(el), el)
	}
}

func handlersByEvent(handlers []analyzer.EventHandler, event string) []*analyzer.EventHandler {
	var out []*analyzer.EventHandler
	for i := range handlers {
		if handlers[i].Event == event {
			out = append(out, &handlers[i])
		}
	}
	return out
}

func elementsByTag(elements []*analyzer.UIElement, tag string) []*analyzer.UIElement {
	var out []*analyzer.UIElement
	for _, el := range elements {
		if el.Tag == tag {
			out = append(out, el)
		}
	}
	return out
}

// textCapableInputs returns the inputs a form tool can fill: inputs,
// textareas and selects, except password-only and file inputs. An empty
// formID means no scoping.
func textCapableInputs(elements []*analyzer.UIElement, formID string) []*analyzer.UIElement {
	var out []*analyzer.UIElement
	for _, el := range elements {
		switch el.Tag {
		case "input", "textarea", "select":
		default:
			continue
		}
		if el.InputType == "password" || el.InputType == "file" {
			continue
		}
		if el.InputType == "submit" || el.InputType == "button" {
			continue
		}
		if formID != "" && el.FormID != formID {
			continue
		}
		out = append(out, el)
	}
	return out
}

// pickTrigger prefers the first button explicitly marked submit-type, then
// the first button at all.
func pickTrigger(elements []*analyzer.UIElement, formID string) *analyzer.UIElement {
	var first *analyzer.UIElement
	for _, el := range elements {
		isButton := el.Tag == "button" || (el.Tag == "input" && el.InputType == "submit")
		if !isButton {
			continue
		}
		if formID != "" && el.FormID != formID {
			continue
		}
		if first == nil {
			first = el
		}
		if el.InputType == "submit" || el.Attributes["type"] == "submit" {
			return el
		}
	}
	return first
}

// clickHandlerFor matches a button to a click handler by element id first,
// then by any tag-level click handler.
func clickHandlerFor(handlers []analyzer.EventHandler, el *analyzer.UIElement) *analyzer.EventHandler {
	var tagLevel *analyzer.EventHandler
	for i := range handlers {
		h := &handlers[i]
		if h.Event != "click" {
			continue
		}
		if el.ID != "" && h.ElementID == el.ID {
			return h
		}
		if tagLevel == nil && h.ElementTag == "button" {
			tagLevel = h
		}
	}
	return tagLevel
}

var (
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]+`)
	camelBounds = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// slug lowercase-snake-cases a name, stripping everything non-alphanumeric.
func slug(s string) string {
	s = camelBounds.ReplaceAllString(s, "${1}_${2}")
	s = nonAlnum.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(s, "_")
}

func toolName(component string, cand candidate) string {
	if cand.kind == TypeForm {
		verb := actionVerb(cand)
		if verb == "" {
			verb = "submit"
		}
		return slug(verb) + "_" + slug(component)
	}

	if cand.trigger != nil {
		if cand.trigger.Label != "" {
			return slug(cand.trigger.Label)
		}
		if cand.trigger.ID != "" {
			return slug(cand.trigger.ID)
		}
	}
	if cand.handler != nil && cand.handler.Name != "" {
		return slug(handlerVerbSource(cand.handler.Name))
	}
	return "action_in_" + slug(component)
}

// actionVerb picks the leading verb from the trigger label, else from the
// handler name with conventional prefixes stripped.
func actionVerb(cand candidate) string {
	if cand.trigger != nil && cand.trigger.Label != "" {
		word := strings.Fields(cand.trigger.Label)[0]
		if cleaned := slug(word); cleaned != "" {
			return cleaned
		}
	}
	if cand.handler != nil && cand.handler.Name != "" {
		name := handlerVerbSource(cand.handler.Name)
		if parts := strings.SplitN(slug(name), "_", 2); parts[0] != "" {
			return parts[0]
		}
	}
	return ""
}

// handlerVerbSource strips handle/on prefixes: handleSaveDraft -> SaveDraft.
func handlerVerbSource(name string) string {
	for _, prefix := range []string{"handle", "on"} {
		trimmed := strings.TrimPrefix(name, prefix)
		if trimmed != name && trimmed != "" && trimmed[0] >= 'A' && trimmed[0] <= 'Z' {
			return trimmed
		}
	}
	return name
}

func describe(cand candidate) string {
	if cand.kind == TypeAction {
		if cand.trigger != nil && cand.trigger.Label != "" {
			return "Trigger: " + cand.trigger.Label
		}
		return "Triggers a standalone page action"
	}

	verb := actionVerb(cand)
	if verb == "" {
		verb = "submit"
	}
	var fields []string
	for _, el := range cand.inputs {
		label := el.Label
		if label == "" {
			label = el.Name
		}
		if label == "" {
			continue
		}
		fields = append(fields, label)
		if len(fields) == 3 {
			break
		}
	}
	if len(fields) == 0 {
		return fmt.Sprintf("Performs the %s action", verb)
	}
	return fmt.Sprintf("Performs the %s action with fields: %s", verb, strings.Join(fields, ", "))
}

// fieldKey normalizes an input element to its schema property key, in
// priority: name, id, bound state variable, label.
func fieldKey(el *analyzer.UIElement) string {
	switch {
	case el.Name != "":
		return slug(el.Name)
	case el.ID != "":
		return slug(el.ID)
	case el.Binding != nil:
		if el.Binding.Path != "" {
			return slug(el.Binding.Path)
		}
		return slug(el.Binding.Variable)
	case el.Label != "":
		return slug(el.Label)
	}
	return "field"
}

// jsonType maps an input subtype to its JSON Schema type.
func jsonType(el *analyzer.UIElement) string {
	switch el.InputType {
	case "number", "range":
		return "number"
	case "checkbox":
		return "boolean"
	}
	return "string"
}

// buildSchema produces a JSON Schema object for the candidate inputs.
// Colliding keys are not deduplicated; the later element overwrites and
// the collision is reported.
func buildSchema(inputs []*analyzer.UIElement) (map[string]any, []string) {
	properties := map[string]any{}
	var required []string
	var collisions []string
	requiredSeen := map[string]bool{}

	for _, el := range inputs {
		key := fieldKey(el)
		if _, exists := properties[key]; exists {
			collisions = append(collisions, key)
		}

		prop := map[string]any{"type": jsonType(el)}
		desc := el.Label
		if desc == "" {
			desc = el.Aria.AriaLabel
		}
		if el.Tag == "select" {
			if desc != "" {
				desc += " (choice field)"
			} else {
				desc = "Choice field"
			}
		}
		if desc != "" {
			prop["description"] = desc
		}
		properties[key] = prop

		if hasRequiredMarker(el) && !requiredSeen[key] {
			requiredSeen[key] = true
			required = append(required, key)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema, collisions
}

func hasRequiredMarker(el *analyzer.UIElement) bool {
	for _, v := range el.Validation {
		if v == "required" {
			return true
		}
	}
	return false
}

// stableID hashes the candidate's semantic surface: component, kind,
// trigger identity, and per-input field key, label and subtype. Styling
// and DOM position never contribute, so cosmetic refactors keep the ID.
func stableID(component string, cand candidate) string {
	var parts []string
	add := func(s string) { parts = append(parts, strings.ToLower(s)) }

	add(component)
	add(cand.kind)
	if cand.trigger != nil {
		add(cand.trigger.Tag)
		add(cand.trigger.Label)
		add(cand.trigger.Name)
	} else {
		add("")
		add("")
		add("")
	}
	for _, el := range cand.inputs {
		add(fieldKey(el))
		label := el.Label
		if label == "" {
			label = el.Aria.AriaLabel
		}
		add(label)
		if el.InputType != "" {
			add(el.InputType)
		} else {
			add(el.Tag)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:idHexLen]
}
