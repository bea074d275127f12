// Package match reconciles statically parsed elements with live probe
// results, attaching a scored fallback-selector list to every element.
package match

import (
	"fmt"
	"sort"
	"strings"

	"uiforge-mcp-server/internal/analyzer"
)

// ToolHookAttribute is the first-class instrumentation attribute. Pages
// annotated with it get the strongest possible selectors.
const ToolHookAttribute = "data-uiforge"

// testHookAttributes are recognized test-hook attributes, checked in order.
var testHookAttributes = []string{
	"data-testid", "data-test-id", "data-test", "data-cy",
}

// Signal weights. Each contributes only when present on both sides.
const (
	weightID       = 0.5
	weightName     = 0.4
	weightTestHook = 0.6
	weightToolHook = 0.8
	weightLabelEq  = 0.4
	weightLabelSub = 0.2
	weightRole     = 0.2
	matchThreshold = 0.3
	scoreCap       = 1.0
)

// Reconcile scores every static element against every probe element and
// installs the best match's selector list in place. With an empty probe
// set every element still gets an AST-derived fallback list.
func Reconcile(staticElements []*analyzer.UIElement, probeElements []analyzer.ProbeElement) {
	for _, el := range staticElements {
		best, score := bestMatch(el, probeElements)
		if best != nil && score > matchThreshold {
			el.Selectors = probeSelectors(el, best, score)
		} else {
			el.Selectors = astSelectors(el)
		}
	}
}

func bestMatch(el *analyzer.UIElement, probes []analyzer.ProbeElement) (*analyzer.ProbeElement, float64) {
	var best *analyzer.ProbeElement
	bestScore := 0.0
	for i := range probes {
		s := Score(el, &probes[i])
		if s > bestScore {
			best = &probes[i]
			bestScore = s
		}
	}
	return best, bestScore
}

// Score computes the weighted match score between one static and one probe
// element, capped at 1.0.
func Score(el *analyzer.UIElement, probe *analyzer.ProbeElement) float64 {
	score := 0.0

	if el.ID != "" && el.ID == probe.ID {
		score += weightID
	}
	if el.Name != "" && el.Name == probe.Name {
		score += weightName
	}
	if v := testHookValue(el.Attributes); v != "" && v == testHookValue(probe.Attributes) {
		score += weightTestHook
	}
	if v := el.Attributes[ToolHookAttribute]; v != "" && v == probe.Attributes[ToolHookAttribute] {
		score += weightToolHook
	}

	label := staticLabel(el)
	if label != "" && probe.AccessibleName != "" {
		a, b := strings.ToLower(label), strings.ToLower(probe.AccessibleName)
		switch {
		case a == b:
			score += weightLabelEq
		case strings.Contains(a, b) || strings.Contains(b, a):
			score += weightLabelSub
		}
	}

	if role := InferRole(el.Tag, el.InputType); role != "" && role == probe.Role {
		score += weightRole
	}

	if score > scoreCap {
		score = scoreCap
	}
	return score
}

// probeSelectors synthesizes the fallback list from a matched probe
// element, strongest strategy first.
func probeSelectors(el *analyzer.UIElement, probe *analyzer.ProbeElement, matchScore float64) []analyzer.SelectorStrategy {
	var out []analyzer.SelectorStrategy

	if v := probe.Attributes[ToolHookAttribute]; v != "" {
		out = append(out, analyzer.SelectorStrategy{
			Strategy: analyzer.StrategyHookAttribute,
			Value:    fmt.Sprintf("[%s=%q]", ToolHookAttribute, v),
			Score:    1.0,
		})
	}
	if attr, v := testHook(probe.Attributes); v != "" {
		out = append(out, analyzer.SelectorStrategy{
			Strategy: analyzer.StrategyTestID,
			Value:    fmt.Sprintf("[%s=%q]", attr, v),
			Score:    0.9,
		})
	}
	if probe.AccessibleName != "" {
		out = append(out, analyzer.SelectorStrategy{
			Strategy: analyzer.StrategyLabelText,
			Value:    probe.AccessibleName,
			Score:    0.8,
		})
	}
	if probe.Role != "" && probe.AccessibleName != "" {
		out = append(out, analyzer.SelectorStrategy{
			Strategy: analyzer.StrategyRoleBased,
			Value:    fmt.Sprintf("role=%s[name=%q]", probe.Role, probe.AccessibleName),
			Score:    0.6,
		})
	}

	raw := matchScore * 0.5
	if raw < 0.2 {
		raw = 0.2
	}
	out = append(out, analyzer.SelectorStrategy{
		Strategy: analyzer.StrategyRawCSS,
		Value:    probe.Selector,
		Score:    raw,
	})

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// astSelectors derives a lower-confidence list from static attributes
// alone, so elements keep a usable selector even without a probe match.
func astSelectors(el *analyzer.UIElement) []analyzer.SelectorStrategy {
	var out []analyzer.SelectorStrategy

	if attr, v := testHook(el.Attributes); v != "" {
		out = append(out, analyzer.SelectorStrategy{
			Strategy: analyzer.StrategyTestID,
			Value:    fmt.Sprintf("[%s=%q]", attr, v),
			Score:    0.5,
		})
	}
	if el.ID != "" {
		out = append(out, analyzer.SelectorStrategy{
			Strategy: analyzer.StrategyRawCSS,
			Value:    "#" + el.ID,
			Score:    0.4,
		})
	}
	if el.Name != "" {
		out = append(out, analyzer.SelectorStrategy{
			Strategy: analyzer.StrategyRawCSS,
			Value:    fmt.Sprintf("%s[name=%q]", el.Tag, el.Name),
			Score:    0.35,
		})
	}
	if len(out) == 0 {
		out = append(out, analyzer.SelectorStrategy{
			Strategy: analyzer.StrategyRawCSS,
			Value:    el.Tag,
			Score:    0.1,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func staticLabel(el *analyzer.UIElement) string {
	if el.Label != "" {
		return el.Label
	}
	return el.Aria.AriaLabel
}

func testHookValue(attrs map[string]string) string {
	_, v := testHook(attrs)
	return v
}

func testHook(attrs map[string]string) (string, string) {
	for _, attr := range testHookAttributes {
		if v := attrs[attr]; v != "" {
			return attr, v
		}
	}
	return "", ""
}

// InferRole maps a tag plus input subtype to its implicit ARIA role.
func InferRole(tag, inputType string) string {
	switch tag {
	case "button":
		return "button"
	case "select":
		return "combobox"
	case "textarea":
		return "textbox"
	case "form":
		return "form"
	case "input":
		switch inputType {
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "range":
			return "slider"
		case "number":
			return "spinbutton"
		case "submit", "button":
			return "button"
		case "search":
			return "searchbox"
		default:
			return "textbox"
		}
	}
	return ""
}
