// Package rules hosts an optional Datalog policy layer on top of the
// built-in risk cascade. Workspaces ship a rule file deriving
// risk_override(ToolID, Tier) facts from asserted proposal facts.
package rules

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"uiforge-mcp-server/internal/config"
	"uiforge-mcp-server/internal/proposal"
	"uiforge-mcp-server/internal/risk"
)

// OverridePredicate is the derived predicate rule files must produce:
// risk_override(ToolID, Tier).
const OverridePredicate = "risk_override"

// Fact is one asserted proposal attribute.
type Fact struct {
	Predicate string
	Args      []interface{}
}

// Engine evaluates a workspace rule program against per-proposal facts.
// A disabled engine accepts every call and never overrides.
type Engine struct {
	cfg config.RulesConfig

	mu          sync.Mutex
	programInfo *analysis.ProgramInfo
	store       factstore.FactStore
	facts       []Fact
	loaded      bool
}

func NewEngine(cfg config.RulesConfig) (*Engine, error) {
	e := &Engine{
		cfg:   cfg,
		store: factstore.NewSimpleInMemoryStore(),
	}
	if cfg.Enable && cfg.RuleFile != "" {
		if err := e.LoadRules(cfg.RuleFile); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// LoadRules parses and analyzes a Mangle rule file.
func (e *Engine) LoadRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rule file: %w", err)
	}

	sourceUnit, err := parse.Unit(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse rule file: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(sourceUnit, make(map[ast.PredicateSym]ast.Decl))
	if err != nil {
		return fmt.Errorf("analyze rule file: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.programInfo = programInfo
	e.loaded = true
	return nil
}

// Ready reports whether Override can produce results.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Enable && e.loaded
}

// AssertProposal pushes one proposal's semantic surface into the fact
// store so rules can match on it.
func (e *Engine) AssertProposal(p *proposal.ToolProposal) error {
	if !e.cfg.Enable {
		return nil
	}

	facts := []Fact{
		{Predicate: "tool_candidate", Args: []interface{}{p.ID, p.Name, p.Type, p.Component}},
		{Predicate: "tool_risk", Args: []interface{}{p.ID, string(p.Risk.Tier)}},
	}
	if p.Trigger != nil && p.Trigger.Label != "" {
		facts = append(facts, Fact{Predicate: "tool_trigger_label", Args: []interface{}{p.ID, p.Trigger.Label}})
	}
	if props, ok := p.InputSchema["properties"].(map[string]any); ok {
		for key, raw := range props {
			t := ""
			if prop, ok := raw.(map[string]any); ok {
				t, _ = prop["type"].(string)
			}
			facts = append(facts, Fact{Predicate: "tool_field", Args: []interface{}{p.ID, key, t}})
		}
	}
	if p.Handler != nil {
		facts = append(facts, Fact{Predicate: "tool_handler", Args: []interface{}{p.ID, p.Handler.Name, p.Handler.Event}})
		for _, call := range p.Handler.APICalls {
			facts = append(facts, Fact{Predicate: "handler_call", Args: []interface{}{p.ID, call.Method, call.URL}})
		}
	}

	return e.addFacts(facts)
}

func (e *Engine) addFacts(facts []Fact) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.facts = append(e.facts, facts...)
	if e.cfg.FactBufferLimit > 0 && len(e.facts) > e.cfg.FactBufferLimit {
		e.facts = e.facts[len(e.facts)-e.cfg.FactBufferLimit:]
	}

	for _, f := range facts {
		e.store.Add(factToAtom(f))
	}

	if e.loaded {
		if err := engine.EvalProgram(e.programInfo, e.store); err != nil {
			return fmt.Errorf("eval rules: %w", err)
		}
	}
	return nil
}

// Override implements proposal.Overrider. The proposal's facts are
// asserted and the program evaluated before the query, so a rule fires
// on the very first pass over a source file. The last derived
// risk_override fact for the proposal's ID wins.
func (e *Engine) Override(p *proposal.ToolProposal) (risk.Tier, string, bool) {
	if !e.Ready() {
		return "", "", false
	}
	if err := e.AssertProposal(p); err != nil {
		return "", "", false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	queryAtom := ast.Atom{
		Predicate: ast.PredicateSym{Symbol: OverridePredicate, Arity: 2},
		Args:      []ast.BaseTerm{ast.Variable{Symbol: "ToolID"}, ast.Variable{Symbol: "Tier"}},
	}

	var tier risk.Tier
	found := false
	_ = e.store.GetFacts(queryAtom, func(atom ast.Atom) error {
		if len(atom.Args) != 2 {
			return nil
		}
		if constantString(atom.Args[0]) != p.ID {
			return nil
		}
		if t, ok := risk.ParseTier(constantString(atom.Args[1])); ok {
			tier = t
			found = true
		}
		return nil
	})

	if !found {
		return "", "", false
	}
	return tier, "workspace rule derived " + OverridePredicate, true
}

func factToAtom(f Fact) ast.Atom {
	args := make([]ast.BaseTerm, len(f.Args))
	for i, arg := range f.Args {
		args[i] = toConstant(arg)
	}
	return ast.Atom{
		Predicate: ast.PredicateSym{Symbol: f.Predicate, Arity: len(f.Args)},
		Args:      args,
	}
}

func toConstant(v interface{}) ast.Constant {
	switch val := v.(type) {
	case string:
		return ast.String(val)
	case int:
		return ast.Number(int64(val))
	case int64:
		return ast.Number(val)
	case float64:
		return ast.Float64(val)
	default:
		return ast.String(fmt.Sprintf("%v", v))
	}
}

func constantString(term ast.BaseTerm) string {
	c, ok := term.(ast.Constant)
	if !ok {
		return ""
	}
	if c.Type == ast.StringType {
		val, _ := c.StringValue()
		return val
	}
	return c.String()
}
