package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	if cfg.Server.Name != "uiforge-mcp" {
		t.Errorf("expected server name 'uiforge-mcp', got %q", cfg.Server.Name)
	}
	if cfg.Server.Version != "0.1.0" {
		t.Errorf("expected server version '0.1.0', got %q", cfg.Server.Version)
	}
	if cfg.Server.LogFile != "uiforge-mcp.log" {
		t.Errorf("expected log file 'uiforge-mcp.log', got %q", cfg.Server.LogFile)
	}

	// Browser defaults
	if cfg.Browser.DefaultNavigationTimeout != "15s" {
		t.Errorf("expected navigation timeout '15s', got %q", cfg.Browser.DefaultNavigationTimeout)
	}
	if cfg.Browser.SettleDelay != "1500ms" {
		t.Errorf("expected settle delay '1500ms', got %q", cfg.Browser.SettleDelay)
	}
	if cfg.Browser.ViewportWidth != 1920 {
		t.Errorf("expected viewport width 1920, got %d", cfg.Browser.ViewportWidth)
	}
	if cfg.Browser.ViewportHeight != 1080 {
		t.Errorf("expected viewport height 1080, got %d", cfg.Browser.ViewportHeight)
	}
	if !cfg.Browser.IsHeadless() {
		t.Error("expected headless by default")
	}

	// Classify defaults
	if cfg.Classify.DestructiveHandling != "flag" {
		t.Errorf("expected destructive_handling 'flag', got %q", cfg.Classify.DestructiveHandling)
	}
	if cfg.Classify.NavigationHandling != "exclude" {
		t.Errorf("expected navigation_handling 'exclude', got %q", cfg.Classify.NavigationHandling)
	}

	// Rules defaults
	if cfg.Rules.Enable {
		t.Error("expected Rules.Enable to be false")
	}
	if cfg.Rules.FactBufferLimit != 2048 {
		t.Errorf("expected fact buffer limit 2048, got %d", cfg.Rules.FactBufferLimit)
	}

	// Cache and recorder defaults
	if cfg.Cache.Path != ".uiforge/data/handler-cache.json" {
		t.Errorf("unexpected cache path %q", cfg.Cache.Path)
	}
	if cfg.Recorder.Enable {
		t.Error("expected Recorder.Enable to be false")
	}
	if cfg.MCP.SSEPort != 0 {
		t.Errorf("expected SSE port 0, got %d", cfg.MCP.SSEPort)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	if err == nil {
		t.Error("expected error for empty path")
	}
	if err.Error() != "config path is required" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  name: "test-server"
  version: "1.0.0"
  log_file: "test.log"

browser:
  debugger_url: "ws://localhost:9222"
  headless: false
  default_navigation_timeout: "20s"
  settle_delay: "2s"
  viewport_width: 1280
  viewport_height: 720

classify:
  destructive_handling: "exclude"
  extra_destructive:
    - archive
  custom_rules:
    - match: "billing"
      risk: caution

rules:
  enable: true
  rule_file: "rules/risk.mg"
  fact_buffer_limit: 5000

cache:
  path: "custom-cache.json"

recorder:
  enable: true
  dir: "traces"

mcp:
  sse_port: 8931
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Name != "test-server" {
		t.Errorf("expected server name 'test-server', got %q", cfg.Server.Name)
	}
	if cfg.Browser.DebuggerURL != "ws://localhost:9222" {
		t.Errorf("unexpected debugger URL %q", cfg.Browser.DebuggerURL)
	}
	if cfg.Browser.IsHeadless() {
		t.Error("expected headless false")
	}
	if cfg.Classify.DestructiveHandling != "exclude" {
		t.Errorf("unexpected destructive_handling %q", cfg.Classify.DestructiveHandling)
	}
	if len(cfg.Classify.ExtraDestructive) != 1 || cfg.Classify.ExtraDestructive[0] != "archive" {
		t.Errorf("unexpected extra_destructive %v", cfg.Classify.ExtraDestructive)
	}
	if len(cfg.Classify.CustomRules) != 1 || cfg.Classify.CustomRules[0].Match != "billing" || cfg.Classify.CustomRules[0].Risk != "caution" {
		t.Errorf("unexpected custom_rules %v", cfg.Classify.CustomRules)
	}
	if !cfg.Rules.Enable || cfg.Rules.RuleFile != "rules/risk.mg" || cfg.Rules.FactBufferLimit != 5000 {
		t.Errorf("unexpected rules config %+v", cfg.Rules)
	}
	if cfg.Cache.Path != "custom-cache.json" {
		t.Errorf("unexpected cache path %q", cfg.Cache.Path)
	}
	if !cfg.Recorder.Enable || cfg.Recorder.Dir != "traces" {
		t.Errorf("unexpected recorder config %+v", cfg.Recorder)
	}
	if cfg.MCP.SSEPort != 8931 {
		t.Errorf("unexpected SSE port %d", cfg.MCP.SSEPort)
	}
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("classify:\n  destructive_handling: allow\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Classify.DestructiveHandling != "allow" {
		t.Errorf("override lost: %q", cfg.Classify.DestructiveHandling)
	}
	if cfg.Server.Name != "uiforge-mcp" {
		t.Errorf("default server name lost: %q", cfg.Server.Name)
	}
	if cfg.Browser.DefaultNavigationTimeout != "15s" {
		t.Errorf("default timeout lost: %q", cfg.Browser.DefaultNavigationTimeout)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	cfg = DefaultConfig()
	cfg.Server.Name = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty server name")
	}

	cfg = DefaultConfig()
	cfg.Classify.DestructiveHandling = "yolo"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for bad destructive_handling")
	}

	cfg = DefaultConfig()
	cfg.Classify.NavigationHandling = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for bad navigation_handling")
	}

	cfg = DefaultConfig()
	cfg.Rules.Enable = true
	cfg.Rules.RuleFile = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for enabled rules without rule_file")
	}
}

func TestDurationHelpers(t *testing.T) {
	b := BrowserConfig{}
	if b.NavigationTimeout() != 15*time.Second {
		t.Errorf("default navigation timeout: %v", b.NavigationTimeout())
	}
	if b.Settle() != 1500*time.Millisecond {
		t.Errorf("default settle: %v", b.Settle())
	}

	b = BrowserConfig{DefaultNavigationTimeout: "30s", SettleDelay: "250ms"}
	if b.NavigationTimeout() != 30*time.Second {
		t.Errorf("parsed navigation timeout: %v", b.NavigationTimeout())
	}
	if b.Settle() != 250*time.Millisecond {
		t.Errorf("parsed settle: %v", b.Settle())
	}

	b = BrowserConfig{DefaultNavigationTimeout: "not-a-duration"}
	if b.NavigationTimeout() != 15*time.Second {
		t.Errorf("invalid duration should fall back: %v", b.NavigationTimeout())
	}
}

func TestViewportDefaults(t *testing.T) {
	b := BrowserConfig{}
	if b.GetViewportWidth() != 1920 || b.GetViewportHeight() != 1080 {
		t.Errorf("viewport defaults: %dx%d", b.GetViewportWidth(), b.GetViewportHeight())
	}
	b = BrowserConfig{ViewportWidth: 800, ViewportHeight: 600}
	if b.GetViewportWidth() != 800 || b.GetViewportHeight() != 600 {
		t.Errorf("viewport overrides: %dx%d", b.GetViewportWidth(), b.GetViewportHeight())
	}
}
