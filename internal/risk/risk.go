// Package risk classifies interaction candidates into risk tiers with a
// deterministic, order-sensitive rule cascade. Classification is a pure
// function of the trigger element and handler text signals.
package risk

import (
	"strings"

	"uiforge-mcp-server/internal/analyzer"
	"uiforge-mcp-server/internal/config"
)

type Tier string

const (
	TierSafe        Tier = "safe"
	TierCaution     Tier = "caution"
	TierDestructive Tier = "destructive"
	TierExcluded    Tier = "excluded"
)

// Rank orders tiers for override comparisons; higher is more severe.
func (t Tier) Rank() int {
	switch t {
	case TierSafe:
		return 0
	case TierCaution:
		return 1
	case TierDestructive:
		return 2
	case TierExcluded:
		return 3
	}
	return -1
}

func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierSafe:
		return TierSafe, true
	case TierCaution:
		return TierCaution, true
	case TierDestructive:
		return TierDestructive, true
	case TierExcluded:
		return TierExcluded, true
	}
	return "", false
}

// Assessment is the classification outcome with a human-readable reason.
type Assessment struct {
	Tier   Tier   `json:"tier"`
	Reason string `json:"reason"`
}

var (
	navigationKeywords = []string{
		"navigate", "redirect", "route", "link", "href", "goto",
	}
	uploadKeywords = []string{
		"upload", "file-upload", "filepicker",
	}
	destructiveKeywords = []string{
		"delete", "remove", "destroy", "drop", "purge", "erase",
		"revoke", "terminate", "cancel", "unsubscribe", "deactivate",
		"reset", "wipe", "clear-all",
	}
	cautionKeywords = []string{
		"update", "edit", "modify", "change", "save", "submit",
		"post", "put", "patch", "send", "publish", "create",
		"toggle", "enable", "disable", "set",
	}
)

// Classifier applies the built-in cascade plus workspace-configured
// extensions. The zero value uses the built-in keyword sets only.
type Classifier struct {
	extraNavigation  []string
	extraDestructive []string
	extraCaution     []string
	customRules      []config.MatchRule
	navigationFlags  bool
}

func NewClassifier(cfg config.ClassifyConfig) *Classifier {
	return &Classifier{
		extraNavigation:  lowerAll(cfg.ExtraNavigation),
		extraDestructive: lowerAll(cfg.ExtraDestructive),
		extraCaution:     lowerAll(cfg.ExtraCaution),
		customRules:      cfg.CustomRules,
		navigationFlags:  cfg.NavigationHandling == "flag",
	}
}

// Classify runs the cascade in fixed priority: custom rules, exclusion,
// destructive, caution, safe. Both arguments are optional; a missing
// trigger must never downgrade a destructive handler.
func (c *Classifier) Classify(el *analyzer.UIElement, handler *analyzer.EventHandler) Assessment {
	text := signalText(el, handler)

	for _, rule := range c.customRules {
		match := strings.ToLower(rule.Match)
		if match == "" || !strings.Contains(text, match) {
			continue
		}
		if tier, ok := ParseTier(rule.Risk); ok {
			return Assessment{Tier: tier, Reason: "custom rule matched " + quoted(rule.Match)}
		}
	}

	if kw, ok := firstMatch(text, navigationKeywords, c.extraNavigation); ok {
		if c.navigationFlags {
			return Assessment{Tier: TierCaution, Reason: "navigation intent " + quoted(kw) + " flagged by workspace policy"}
		}
		return Assessment{Tier: TierExcluded, Reason: "navigation intent keyword " + quoted(kw)}
	}
	if kw, ok := uploadMatch(el, text); ok {
		return Assessment{Tier: TierExcluded, Reason: "file upload marker " + quoted(kw)}
	}

	if kw, ok := firstMatch(text, destructiveKeywords, c.extraDestructive); ok {
		return Assessment{Tier: TierDestructive, Reason: "destructive intent keyword " + quoted(kw)}
	}
	if method, ok := callWithMethod(handler, "DELETE"); ok {
		return Assessment{Tier: TierDestructive, Reason: "handler issues " + method + " request"}
	}

	if kw, ok := firstMatch(text, cautionKeywords, c.extraCaution); ok {
		return Assessment{Tier: TierCaution, Reason: "mutation intent keyword " + quoted(kw)}
	}
	if method, ok := callWithMethod(handler, "POST", "PUT", "PATCH"); ok {
		return Assessment{Tier: TierCaution, Reason: "handler issues " + method + " request"}
	}

	return Assessment{Tier: TierSafe, Reason: "no risk signals detected"}
}

// Classify is the zero-config entry point used by callers without a
// workspace policy.
func Classify(el *analyzer.UIElement, handler *analyzer.EventHandler) Assessment {
	return (&Classifier{}).Classify(el, handler)
}

// signalText concatenates every available text signal, lowercased.
func signalText(el *analyzer.UIElement, handler *analyzer.EventHandler) string {
	var parts []string
	if el != nil {
		parts = append(parts, el.Label, el.Name, el.ID)
	}
	if handler != nil {
		parts = append(parts, handler.Name, handler.Body)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func firstMatch(text string, builtin, extra []string) (string, bool) {
	for _, kw := range builtin {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	for _, kw := range extra {
		if kw != "" && strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

func uploadMatch(el *analyzer.UIElement, text string) (string, bool) {
	if el != nil && el.InputType == "file" {
		return "input type=file", true
	}
	return firstMatch(text, uploadKeywords, nil)
}

func callWithMethod(handler *analyzer.EventHandler, methods ...string) (string, bool) {
	if handler == nil {
		return "", false
	}
	for _, call := range handler.APICalls {
		for _, m := range methods {
			if strings.EqualFold(call.Method, m) {
				return m, true
			}
		}
	}
	return "", false
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

func quoted(s string) string {
	return `"` + s + `"`
}
