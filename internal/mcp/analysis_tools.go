package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"uiforge-mcp-server/internal/cache"
	"uiforge-mcp-server/internal/match"
	"uiforge-mcp-server/internal/probe"
	"uiforge-mcp-server/internal/recorder"

	"github.com/google/uuid"
)

// AnalyzeSourceTool parses one UI source file into the structural model.
type AnalyzeSourceTool struct {
	rec *recorder.Recorder
}

func (t *AnalyzeSourceTool) Name() string { return "analyze-source" }
func (t *AnalyzeSourceTool) Description() string {
	return `Parse UI source files (HTML, JSX/TSX, or Vue SFC) into their interactive structure.

Returns components with their elements, labels, state bindings, handlers and
extracted outbound HTTP calls. Pass "file" to read from disk, "source" plus
a "file" identifier (used for framework detection by extension), or "files"
to analyze a batch; one unparseable file never aborts the rest.

EXAMPLE:
analyze-source(file: "src/ContactForm.tsx")`
}
func (t *AnalyzeSourceTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file": map[string]interface{}{
				"type":        "string",
				"description": "Path to the source file, or the identifier for inline source",
			},
			"source": map[string]interface{}{
				"type":        "string",
				"description": "Inline source text; skips reading from disk",
			},
			"files": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Paths for batch analysis; per-file failures are reported, not fatal",
			},
		},
	}
}
func (t *AnalyzeSourceTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if files := getStringSliceArg(args, "files"); len(files) > 0 {
		return t.executeBatch(files)
	}

	source, file, err := loadSource(args)
	if err != nil {
		return nil, err
	}
	analysis, err := analyzeOne(source, file)
	if err != nil {
		return nil, err
	}
	if t.rec != nil {
		t.rec.Log("analyze", "", analysis)
	}
	return analysis, nil
}

func (t *AnalyzeSourceTool) executeBatch(files []string) (interface{}, error) {
	var analyses []interface{}
	errs := map[string]string{}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			errs[f] = err.Error()
			continue
		}
		analysis, err := analyzeOne(string(data), filepath.Base(f))
		if err != nil {
			errs[f] = err.Error()
			continue
		}
		if t.rec != nil {
			t.rec.Log("analyze", "", analysis)
		}
		analyses = append(analyses, analysis)
	}

	payload := map[string]interface{}{"analyses": analyses}
	if len(errs) > 0 {
		payload["errors"] = errs
	}
	return payload, nil
}

// BuildProposalsTool runs the full pipeline: parse, optional runtime probe,
// reconcile, group, classify.
type BuildProposalsTool struct {
	server *Server
}

func (t *BuildProposalsTool) Name() string { return "build-proposals" }
func (t *BuildProposalsTool) Description() string {
	return `Build agent-tool proposals from a UI source file.

Parses the source, optionally probes a live URL to attach runtime selectors,
reconciles static elements against the live DOM, then groups inputs and
triggers into named, risk-classified tool proposals with JSON Schema input
contracts and stable content-derived IDs.

A failed probe is reported but never fatal: proposals fall back to
static-analysis selectors. Zero proposals with an explanation means the
source had no instrumentable surface, not an error.

EXAMPLE:
build-proposals(file: "src/ContactForm.tsx", url: "http://localhost:3000/contact")`
}
func (t *BuildProposalsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file": map[string]interface{}{
				"type":        "string",
				"description": "Path to the source file, or the identifier for inline source",
			},
			"source": map[string]interface{}{
				"type":        "string",
				"description": "Inline source text; skips reading from disk",
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Rendered page URL to probe for runtime selectors (optional)",
			},
			"setup_script": map[string]interface{}{
				"type":        "string",
				"description": "JavaScript run after load, e.g. to open a modal, before extraction",
			},
			"timeout_ms": map[string]interface{}{
				"type":        "number",
				"description": "Navigation timeout in milliseconds (default from config)",
			},
		},
		"required": []string{"file"},
	}
}
func (t *BuildProposalsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	s := t.server
	runID := uuid.NewString()

	source, file, err := loadSource(args)
	if err != nil {
		return nil, err
	}
	analysis, err := analyzeOne(source, file)
	if err != nil {
		return nil, err
	}
	if s.rec != nil {
		_ = s.rec.Start(runID)
		s.rec.Log("analyze", runID, analysis)
	}

	probeError := ""
	elements := collectElements(analysis)
	url := getStringArg(args, "url")
	if url != "" {
		opts := probe.Options{
			SetupScript: getStringArg(args, "setup_script"),
			Timeout:     time.Duration(getIntArg(args, "timeout_ms", 0)) * time.Millisecond,
		}
		snapshot, probeErr := s.prober.Probe(ctx, url, opts)
		if probeErr != nil {
			// Recoverable: static results stay valid without the snapshot.
			probeError = probeErr.Error()
			log.Printf("build-proposals %s: %v (continuing with static selectors)", runID, probeErr)
			match.Reconcile(elements, nil)
		} else {
			if s.rec != nil {
				s.rec.Log("probe", runID, snapshot)
			}
			match.Reconcile(elements, snapshot.Elements)
		}
	} else {
		match.Reconcile(elements, nil)
	}

	// The builder's overrider asserts each proposal's facts and evaluates
	// the rule program before classifying, so no separate assertion pass
	// is needed here.
	result := s.builder.Build(analysis)
	if s.rec != nil {
		s.rec.Log("proposals", runID, result)
	}

	cacheKeys := map[string]string{}
	for _, p := range result.Proposals {
		cacheKeys[p.ID] = cache.Key(p)
	}

	payload := map[string]interface{}{
		"run_id":     runID,
		"file":       analysis.File,
		"framework":  analysis.Framework,
		"proposals":  result.Proposals,
		"cache_keys": cacheKeys,
	}
	if result.Explanation != "" {
		payload["explanation"] = result.Explanation
	}
	if probeError != "" {
		payload["probe_error"] = probeError
	}
	return payload, nil
}

// ProbePageTool captures the live interactivity tree of a rendered page.
type ProbePageTool struct {
	prober *probe.Prober
	rec    *recorder.Recorder
}

func (t *ProbePageTool) Name() string { return "probe-page" }
func (t *ProbePageTool) Description() string {
	return `Probe a rendered page for its live interactive elements.

Launches a scoped headless browser, navigates, waits for render plus a settle
delay, optionally runs a setup script, and extracts inputs, buttons, selects,
textareas and forms with accessible names, roles and structural selectors.
The browser session is always torn down before returning.

EXAMPLE:
probe-page(url: "http://localhost:3000/contact", setup_script: "document.querySelector('#open-modal').click()")`
}
func (t *ProbePageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Page URL to probe",
			},
			"setup_script": map[string]interface{}{
				"type":        "string",
				"description": "JavaScript run after load, before extraction",
			},
			"timeout_ms": map[string]interface{}{
				"type":        "number",
				"description": "Navigation timeout in milliseconds (default from config)",
			},
		},
		"required": []string{"url"},
	}
}
func (t *ProbePageTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	url := getStringArg(args, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	opts := probe.Options{
		SetupScript: getStringArg(args, "setup_script"),
		Timeout:     time.Duration(getIntArg(args, "timeout_ms", 0)) * time.Millisecond,
	}
	snapshot, err := t.prober.Probe(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if t.rec != nil {
		t.rec.Log("probe", snapshot.RunID, snapshot)
	}
	return snapshot, nil
}

// ReconcileElementsTool attaches runtime selectors to statically parsed
// elements without building proposals.
type ReconcileElementsTool struct {
	server *Server
}

func (t *ReconcileElementsTool) Name() string { return "reconcile-elements" }
func (t *ReconcileElementsTool) Description() string {
	return `Match statically parsed elements against a live page and attach scored
fallback selectors to each.

Every element always receives a selector list: probe matches give runtime
strategies (hook attribute, test id, label text, role, raw CSS), unmatched or
unprobed elements get lower-confidence selectors derived from static
attributes alone.

EXAMPLE:
reconcile-elements(file: "src/ContactForm.tsx", url: "http://localhost:3000/contact")`
}
func (t *ReconcileElementsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file": map[string]interface{}{
				"type":        "string",
				"description": "Path to the source file, or the identifier for inline source",
			},
			"source": map[string]interface{}{
				"type":        "string",
				"description": "Inline source text; skips reading from disk",
			},
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Rendered page URL to probe (optional; omitting yields static selectors)",
			},
		},
		"required": []string{"file"},
	}
}
func (t *ReconcileElementsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	s := t.server
	source, file, err := loadSource(args)
	if err != nil {
		return nil, err
	}
	analysis, err := analyzeOne(source, file)
	if err != nil {
		return nil, err
	}

	elements := collectElements(analysis)
	probeError := ""
	url := getStringArg(args, "url")
	if url != "" {
		snapshot, probeErr := s.prober.Probe(ctx, url, probe.Options{})
		if probeErr != nil {
			probeError = probeErr.Error()
			match.Reconcile(elements, nil)
		} else {
			match.Reconcile(elements, snapshot.Elements)
		}
	} else {
		match.Reconcile(elements, nil)
	}

	payload := map[string]interface{}{
		"file":     analysis.File,
		"elements": elements,
	}
	if probeError != "" {
		payload["probe_error"] = probeError
	}
	return payload, nil
}

// ListSupportedTypesTool reports the recognized source extensions.
type ListSupportedTypesTool struct{}

func (t *ListSupportedTypesTool) Name() string { return "list-supported-types" }
func (t *ListSupportedTypesTool) Description() string {
	return "List the source file extensions the analyzer accepts."
}
func (t *ListSupportedTypesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *ListSupportedTypesTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"extensions": supportedTypesLine()}, nil
}

// GetCachedHandlerTool reads a previously generated handler body by key.
type GetCachedHandlerTool struct {
	store cache.Store
}

func (t *GetCachedHandlerTool) Name() string { return "get-cached-handler" }
func (t *GetCachedHandlerTool) Description() string {
	return `Look up a cached handler body by its interactive-surface key.

Keys come from the "cache_key" hashing of a proposal's semantic surface;
cosmetic source edits keep the key stable. A miss returns found=false.`
}
func (t *GetCachedHandlerTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Cache key of the tool's interactive surface",
			},
		},
		"required": []string{"key"},
	}
}
func (t *GetCachedHandlerTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	key := getStringArg(args, "key")
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	handler, found := t.store.Get(key)
	return map[string]interface{}{"found": found, "handler": handler}, nil
}

// SetCachedHandlerTool writes a generated handler body through to disk.
type SetCachedHandlerTool struct {
	store cache.Store
}

func (t *SetCachedHandlerTool) Name() string { return "set-cached-handler" }
func (t *SetCachedHandlerTool) Description() string {
	return "Store a generated handler body under an interactive-surface key. Writes go through immediately."
}
func (t *SetCachedHandlerTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Cache key of the tool's interactive surface",
			},
			"handler": map[string]interface{}{
				"type":        "string",
				"description": "Handler body to cache",
			},
		},
		"required": []string{"key", "handler"},
	}
}
func (t *SetCachedHandlerTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	key := getStringArg(args, "key")
	handler := getStringArg(args, "handler")
	if key == "" || handler == "" {
		return nil, fmt.Errorf("key and handler are required")
	}
	if err := t.store.Set(key, handler); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "entries": t.store.Len()}, nil
}

// ClearHandlerCacheTool drops every cached handler.
type ClearHandlerCacheTool struct {
	store cache.Store
}

func (t *ClearHandlerCacheTool) Name() string { return "clear-handler-cache" }
func (t *ClearHandlerCacheTool) Description() string {
	return "Remove every cached handler body. The cache has no automatic eviction; this is the external clearing path."
}
func (t *ClearHandlerCacheTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}
func (t *ClearHandlerCacheTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := t.store.Clear(); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}
