package mcp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetStringArg(t *testing.T) {
	args := map[string]interface{}{
		"str": "value",
		"num": 42,
	}

	if got := getStringArg(args, "str"); got != "value" {
		t.Errorf("expected 'value', got %q", got)
	}
	if got := getStringArg(args, "num"); got != "42" {
		t.Errorf("expected stringified '42', got %q", got)
	}
	if got := getStringArg(args, "missing"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestGetIntArg(t *testing.T) {
	args := map[string]interface{}{
		"int":     42,
		"float":   float64(7), // JSON numbers decode as float64
		"invalid": "nope",
	}

	if got := getIntArg(args, "int", 0); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if got := getIntArg(args, "float", 0); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if got := getIntArg(args, "invalid", 9); got != 9 {
		t.Errorf("expected fallback 9, got %d", got)
	}
	if got := getIntArg(args, "missing", 5); got != 5 {
		t.Errorf("expected fallback 5, got %d", got)
	}
}

func TestLoadSourceInlineWins(t *testing.T) {
	source, file, err := loadSource(map[string]interface{}{
		"file":   "Widget.tsx",
		"source": "export function Widget() {}",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != "export function Widget() {}" {
		t.Errorf("unexpected source %q", source)
	}
	if file != "Widget.tsx" {
		t.Errorf("unexpected file %q", file)
	}
}

func TestLoadSourceFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	if err := os.WriteFile(path, []byte("<form></form>"), 0644); err != nil {
		t.Fatal(err)
	}

	source, file, err := loadSource(map[string]interface{}{"file": path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != "<form></form>" {
		t.Errorf("unexpected source %q", source)
	}
	// The identifier keeps only the base name, extension intact.
	if file != "page.html" {
		t.Errorf("unexpected file %q", file)
	}
}

func TestLoadSourceErrors(t *testing.T) {
	if _, _, err := loadSource(map[string]interface{}{}); err == nil {
		t.Error("expected error without file or source")
	}
	if _, _, err := loadSource(map[string]interface{}{"source": "x"}); err == nil {
		t.Error("expected error for inline source without identifier")
	}
	if _, _, err := loadSource(map[string]interface{}{"file": "/nonexistent/x.html"}); err == nil {
		t.Error("expected error for unreadable file")
	}
}
