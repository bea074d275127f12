package probe

import (
	"errors"
	"strings"
	"testing"
	"time"

	"uiforge-mcp-server/internal/config"
)

func TestFailedError(t *testing.T) {
	inner := errors.New("connection refused")
	err := &FailedError{URL: "http://localhost:3000", Stage: "connect", Err: inner}

	msg := err.Error()
	if !strings.Contains(msg, "http://localhost:3000") || !strings.Contains(msg, "connect") {
		t.Errorf("unexpected error message: %s", msg)
	}
	if !errors.Is(err, inner) {
		t.Error("FailedError must unwrap to the inner error")
	}

	var failed *FailedError
	if !errors.As(error(err), &failed) {
		t.Error("errors.As must recognize *FailedError")
	}
	if failed.Stage != "connect" {
		t.Errorf("unexpected stage %q", failed.Stage)
	}
}

func TestProberTimeoutFallback(t *testing.T) {
	p := NewProber(config.BrowserConfig{DefaultNavigationTimeout: "3s"})
	if p.cfg.NavigationTimeout() != 3*time.Second {
		t.Errorf("unexpected timeout %v", p.cfg.NavigationTimeout())
	}
}

func TestWrapSetup(t *testing.T) {
	wrapped := wrapSetup("document.title = 'x'")
	if !strings.Contains(wrapped, "document.title = 'x'") {
		t.Errorf("setup script body lost: %s", wrapped)
	}
}

func TestExtractScriptShape(t *testing.T) {
	// The extraction script must stay a self-contained expression Rod can Eval.
	if !strings.Contains(extractScript, "querySelectorAll") {
		t.Error("extraction script must walk the DOM")
	}
	for _, tag := range []string{"input", "button", "select", "textarea", "form"} {
		if !strings.Contains(extractScript, tag) {
			t.Errorf("extraction script must collect %s elements", tag)
		}
	}
}

func TestExtractScriptAccessibleNameOrder(t *testing.T) {
	// Name resolution order: aria-label, aria-labelledby text, button text,
	// submit value, label[for], wrapping label, placeholder. Title never
	// participates.
	markers := []string{
		"'aria-label'",
		"'aria-labelledby'",
		"el.textContent.trim()",
		"el.value",
		"label[for=",
		"closest('label')",
		"'placeholder'",
	}
	pos := -1
	for _, m := range markers {
		i := strings.Index(extractScript, m)
		if i < 0 {
			t.Fatalf("extraction script missing name source %s", m)
		}
		if i <= pos {
			t.Errorf("name source %s resolved out of order", m)
		}
		pos = i
	}
	if strings.Contains(extractScript, "'title'") {
		t.Error("title must not contribute to the accessible name")
	}
}

func TestExtractScriptSelectorPriority(t *testing.T) {
	// Hook attributes outrank ids, which outrank tag[name] selectors.
	for _, attr := range []string{"data-uiforge", "data-testid", "data-test-id", "data-test", "data-cy"} {
		if !strings.Contains(extractScript, attr) {
			t.Errorf("extraction script must prefer %s hooks", attr)
		}
	}
	hook := strings.Index(extractScript, "hookAttrs")
	id := strings.Index(extractScript, "generatedId(el.id)) return '#'")
	name := strings.Index(extractScript, "[name=")
	if hook < 0 || id < 0 || name < 0 {
		t.Fatal("extraction script missing a selector strategy")
	}
	if !(hook < id && id < name) {
		t.Error("selector strategies must try hooks, then ids, then tag[name]")
	}
}
