// Package probe captures the live interactivity tree of a rendered page.
// Each probe call owns a scoped browser session for its full duration and
// releases it on every exit path.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"uiforge-mcp-server/internal/analyzer"
	"uiforge-mcp-server/internal/config"
)

// Snapshot is the result of one probe pass over one URL.
type Snapshot struct {
	RunID     string                  `json:"run_id"`
	URL       string                  `json:"url"`
	Elements  []analyzer.ProbeElement `json:"elements"`
	Timestamp time.Time               `json:"timestamp"`
}

// Options tune a single probe call. Zero values fall back to the prober's
// browser configuration.
type Options struct {
	Timeout time.Duration
	// SetupScript runs after the initial settle delay, e.g. to open a
	// modal before extraction. A second settle delay follows it.
	SetupScript string
}

// FailedError wraps any probe failure. Callers treat it as recoverable:
// static analysis results stay valid without the runtime snapshot.
type FailedError struct {
	URL   string
	Stage string
	Err   error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("probe of %s failed during %s: %v", e.URL, e.Stage, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Prober launches one browser per Probe call. It holds no state between
// calls, so concurrent probes of independent URLs need no coordination.
type Prober struct {
	cfg config.BrowserConfig
}

func NewProber(cfg config.BrowserConfig) *Prober {
	return &Prober{cfg: cfg}
}

// Probe navigates to url, waits for render plus the settle delay, runs the
// optional setup script, and extracts every interactive element. The
// browser session never leaks past this call.
func (p *Prober) Probe(ctx context.Context, url string, opts Options) (*Snapshot, error) {
	runID := uuid.NewString()
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = p.cfg.NavigationTimeout()
	}

	controlURL, cleanup, err := p.controlURL()
	if err != nil {
		return nil, &FailedError{URL: url, Stage: "launch", Err: err}
	}
	defer cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, &FailedError{URL: url, Stage: "connect", Err: err}
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.Printf("probe %s: browser close: %v", runID, err)
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, &FailedError{URL: url, Stage: "open page", Err: err}
	}
	defer page.Close()

	if err := page.Timeout(timeout).Navigate(url); err != nil {
		return nil, &FailedError{URL: url, Stage: "navigate", Err: err}
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return nil, &FailedError{URL: url, Stage: "wait load", Err: err}
	}
	settle(ctx, p.cfg.Settle())

	if strings.TrimSpace(opts.SetupScript) != "" {
		if _, err := page.Timeout(timeout).Eval(wrapSetup(opts.SetupScript)); err != nil {
			return nil, &FailedError{URL: url, Stage: "setup script", Err: err}
		}
		settle(ctx, p.cfg.Settle())
	}

	result, err := page.Timeout(timeout).Eval(extractScript)
	if err != nil {
		return nil, &FailedError{URL: url, Stage: "extract", Err: err}
	}

	raw, err := json.Marshal(result.Value.Val())
	if err != nil {
		return nil, &FailedError{URL: url, Stage: "decode", Err: err}
	}
	var elements []analyzer.ProbeElement
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, &FailedError{URL: url, Stage: "decode", Err: err}
	}

	log.Printf("probe %s: %s yielded %d elements", runID, url, len(elements))
	return &Snapshot{
		RunID:     runID,
		URL:       url,
		Elements:  elements,
		Timestamp: time.Now().UTC(),
	}, nil
}

// controlURL connects to a configured debugger or launches a fresh
// browser, returning a cleanup that kills anything launched here.
func (p *Prober) controlURL() (string, func(), error) {
	if p.cfg.DebuggerURL != "" {
		return p.cfg.DebuggerURL, func() {}, nil
	}

	l := launcher.New().Headless(p.cfg.IsHeadless())
	if len(p.cfg.Launch) > 0 {
		l = l.Bin(p.cfg.Launch[0])
		for _, rawFlag := range p.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
	}
	url, err := l.Launch()
	if err != nil {
		return "", func() {}, fmt.Errorf("launch browser: %w", err)
	}
	return url, l.Kill, nil
}

func settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func wrapSetup(script string) string {
	return "() => {\n" + script + "\n}"
}

// extractScript walks the live DOM for interactive elements, resolving an
// accessible name per the usual precedence and a stable structural
// selector. Generated-looking ids never become selectors. Zero-size or
// invisible elements are dropped, forms excepted since they are often
// unstyled containers.
const extractScript = `
() => {
	const interactive = new Set(['input', 'button', 'select', 'textarea', 'form']);

	const generatedId = (id) =>
		!id || id.includes(':') || /\d{4,}/.test(id) || /^(ember|radix|mui)-?\d/.test(id);

	const accessibleName = (el) => {
		const aria = el.getAttribute('aria-label');
		if (aria) return aria.trim();
		const labelledBy = el.getAttribute('aria-labelledby');
		if (labelledBy) {
			const text = labelledBy.split(/\s+/)
				.map((id) => { const ref = document.getElementById(id); return ref ? ref.textContent.trim() : ''; })
				.filter((t) => t).join(' ');
			if (text) return text;
		}
		const tag = el.tagName.toLowerCase();
		if (tag === 'button' && el.textContent.trim()) return el.textContent.trim();
		if (tag === 'input' && (el.type === 'submit' || el.type === 'button') && el.value) {
			return el.value.trim();
		}
		if (el.id) {
			const lab = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
			if (lab && lab.textContent.trim()) return lab.textContent.trim();
		}
		const wrap = el.closest('label');
		if (wrap && wrap.textContent.trim()) return wrap.textContent.trim();
		const placeholder = el.getAttribute('placeholder');
		if (placeholder) return placeholder.trim();
		return '';
	};

	const implicitRole = (el) => {
		const explicit = el.getAttribute('role');
		if (explicit) return explicit;
		const tag = el.tagName.toLowerCase();
		if (tag === 'button') return 'button';
		if (tag === 'select') return 'combobox';
		if (tag === 'textarea') return 'textbox';
		if (tag === 'form') return 'form';
		if (tag === 'input') {
			switch (el.type) {
				case 'checkbox': return 'checkbox';
				case 'radio': return 'radio';
				case 'range': return 'slider';
				case 'number': return 'spinbutton';
				case 'submit':
				case 'button': return 'button';
				case 'search': return 'searchbox';
				default: return 'textbox';
			}
		}
		return '';
	};

	const hookAttrs = ['data-uiforge', 'data-testid', 'data-test-id', 'data-test', 'data-cy'];

	const selectorFor = (el) => {
		for (const attr of hookAttrs) {
			const v = el.getAttribute(attr);
			if (v) return '[' + attr + '="' + CSS.escape(v) + '"]';
		}
		if (el.id && !generatedId(el.id)) return '#' + CSS.escape(el.id);
		const tag = el.tagName.toLowerCase();
		const name = el.getAttribute('name');
		if (name) return tag + '[name="' + CSS.escape(name) + '"]';
		const parts = [];
		let node = el;
		while (node && node !== document.body && parts.length < 5) {
			const t = node.tagName.toLowerCase();
			const siblings = node.parentElement
				? Array.from(node.parentElement.children).filter((c) => c.tagName === node.tagName)
				: [];
			parts.unshift(siblings.length > 1
				? t + ':nth-of-type(' + (siblings.indexOf(node) + 1) + ')'
				: t);
			node = node.parentElement;
		}
		return parts.join(' > ');
	};

	const out = [];
	for (const el of document.querySelectorAll('input, button, select, textarea, form')) {
		const tag = el.tagName.toLowerCase();
		if (!interactive.has(tag)) continue;

		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		const invisible = style.display === 'none' || style.visibility === 'hidden';
		if (tag !== 'form' && ((rect.width === 0 && rect.height === 0) || invisible)) continue;

		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;

		out.push({
			tag: tag,
			id: generatedId(el.id) ? '' : el.id,
			name: el.getAttribute('name') || '',
			input_type: tag === 'input' ? (el.type || 'text') : '',
			accessible_name: accessibleName(el),
			role: implicitRole(el),
			selector: selectorFor(el),
			x: rect.x,
			y: rect.y,
			width: rect.width,
			height: rect.height,
			attributes: attrs,
			interactive: !el.disabled
		});
	}
	return out;
}
`
