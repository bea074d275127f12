package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level UIForge config.
	WorkspaceDirName = ".uiforge"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up (--workspace-dir flag).
	ExplicitDir string
}

// Config captures all tunable settings for the UIForge MCP server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Browser  BrowserConfig  `yaml:"browser"`
	Classify ClassifyConfig `yaml:"classify"`
	Rules    RulesConfig    `yaml:"rules"`
	Cache    CacheConfig    `yaml:"cache"`
	Recorder RecorderConfig `yaml:"recorder"`
	MCP      MCPConfig      `yaml:"mcp"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
}

// BrowserConfig configures how the runtime probe launches or attaches to Chrome.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). When set, the probe
	// attaches instead of launching its own browser.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional launch command for a specific Chrome binary
	// (e.g., ["chromium", "--no-sandbox"]). Empty means Rod's managed browser.
	Launch []string `yaml:"launch"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Navigation timeout for one probe call (e.g., "15s").
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout"`
	// Delay after load before extraction, to let client-side frameworks render (e.g., "1500ms").
	SettleDelay string `yaml:"settle_delay"`
	// Viewport width for probe pages (default: 1920).
	ViewportWidth int `yaml:"viewport_width"`
	// Viewport height for probe pages (default: 1080).
	ViewportHeight int `yaml:"viewport_height"`
}

// ClassifyConfig overrides the built-in risk classification behavior.
type ClassifyConfig struct {
	// Tool name patterns forced in/out of the output regardless of risk.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	// How destructive tools are handled: "flag" (default, kept but deselected),
	// "exclude" (dropped), or "allow" (kept and selected).
	DestructiveHandling string `yaml:"destructive_handling"`
	// How navigation-intent elements are handled: "exclude" (default) or "flag".
	NavigationHandling string `yaml:"navigation_handling"`
	// Extra keywords appended to the built-in keyword tables.
	ExtraDestructive []string `yaml:"extra_destructive"`
	ExtraCaution     []string `yaml:"extra_caution"`
	ExtraNavigation  []string `yaml:"extra_navigation"`
	// Custom substring-match rules, evaluated before the built-in cascade.
	CustomRules []MatchRule `yaml:"custom_rules"`
}

// MatchRule maps a case-insensitive substring match to a risk tier.
type MatchRule struct {
	Match string `yaml:"match"`
	Risk  string `yaml:"risk"`
}

// RulesConfig controls the embedded deductive engine for user-defined risk overrides.
type RulesConfig struct {
	Enable bool `yaml:"enable"`
	// Path to a Mangle rule file deriving risk_override(ToolID, Tier) atoms.
	RuleFile string `yaml:"rule_file"`
	// Upper bound on buffered candidate facts (default: 2048).
	FactBufferLimit int `yaml:"fact_buffer_limit"`
}

// CacheConfig controls the persisted handler cache.
type CacheConfig struct {
	// Path to the JSON cache file. Empty disables persistence (in-memory only).
	Path string `yaml:"path"`
	// Disable turns the cache off entirely.
	Disable bool `yaml:"disable"`
}

// RecorderConfig controls the rotating pipeline trace recorder.
type RecorderConfig struct {
	Enable bool   `yaml:"enable"`
	Dir    string `yaml:"dir"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "uiforge-mcp",
			Version: "0.1.0",
			LogFile: "uiforge-mcp.log",
		},
		Browser: BrowserConfig{
			DefaultNavigationTimeout: "15s",
			SettleDelay:              "1500ms",
			ViewportWidth:            1920,
			ViewportHeight:           1080,
		},
		Classify: ClassifyConfig{
			DestructiveHandling: "flag",
			NavigationHandling:  "exclude",
		},
		Rules: RulesConfig{
			Enable:          false,
			FactBufferLimit: 2048,
		},
		Cache: CacheConfig{
			Path: ".uiforge/data/handler-cache.json",
		},
		Recorder: RecorderConfig{
			Enable: false,
			Dir:    ".uiforge/data/traces",
		},
		MCP: MCPConfig{
			SSEPort: 0,
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// DiscoverWorkspace walks up from startDir looking for a .uiforge/config.yaml file.
// Returns the workspace root directory (parent of .uiforge/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements multi-layer config merge:
//
//	DefaultConfig() <- .uiforge/config.yaml <- explicit --config <- CLI flags
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	// Layer 1: Workspace config (if not disabled)
	if !opts.Disable {
		var err error
		if opts.ExplicitDir != "" {
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, cwdErr := os.Getwd()
			if cwdErr != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", cwdErr)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
			cfg = resolveWorkspacePaths(cfg, wsDir)
		}
	}

	// Layer 2: Explicit config file (--config flag)
	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

// InitWorkspace creates a .uiforge/ directory with template files at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}

	dirs := []string{
		wsDir,
		filepath.Join(wsDir, "rules"),
		filepath.Join(wsDir, "data"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	templateConfig := `# UIForge project-level configuration
# Values here override defaults but are overridden by --config and CLI flags.

# classify:
#   destructive_handling: flag     # flag | exclude | allow
#   navigation_handling: exclude   # exclude | flag
#   extra_destructive:
#     - archive
#   custom_rules:
#     - match: "billing"
#       risk: caution

# rules:
#   enable: true
#   rule_file: ".uiforge/rules/risk.mg"

# browser:
#   headless: false
#   default_navigation_timeout: "20s"
#   settle_delay: "2s"
`
	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	if err := os.WriteFile(configPath, []byte(templateConfig), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	templateRules := `# Risk override rules, evaluated against asserted proposal facts.
# Derive risk_override(ToolID, Tier) to replace the built-in classification.
# Every predicate matched in a rule body needs a Decl.
#
# Available facts:
#   tool_candidate(ToolID, Name, Type, Component)
#   tool_risk(ToolID, Tier)
#   tool_trigger_label(ToolID, Label)
#   tool_field(ToolID, FieldKey, JsonType)
#   tool_handler(ToolID, HandlerName, Event)
#   handler_call(ToolID, Method, Url)
#
# Example: treat every POST from a billing component as destructive.
#
# Decl tool_candidate(ToolID, Name, Type, Component).
# Decl handler_call(ToolID, Method, Url).
# Decl risk_override(ToolID, Tier).
#
# risk_override(ToolID, "destructive") :-
#     tool_candidate(ToolID, _, _, "BillingPanel"),
#     handler_call(ToolID, "POST", _).
`
	rulesPath := filepath.Join(wsDir, "rules", "risk.mg")
	if err := os.WriteFile(rulesPath, []byte(templateRules), 0644); err != nil {
		return fmt.Errorf("writing rules template: %w", err)
	}

	gitignoreContent := "# Runtime data (logs, caches, traces) - do not version control\ndata/\n"
	gitignorePath := filepath.Join(wsDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	return nil
}

// resolveWorkspacePaths resolves relative paths in the config against the workspace directory.
func resolveWorkspacePaths(cfg Config, wsDir string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(wsDir, p)
	}

	cfg.Server.LogFile = resolve(cfg.Server.LogFile)
	cfg.Rules.RuleFile = resolve(cfg.Rules.RuleFile)
	cfg.Cache.Path = resolve(cfg.Cache.Path)
	cfg.Recorder.Dir = resolve(cfg.Recorder.Dir)
	return cfg
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	switch c.Classify.DestructiveHandling {
	case "", "flag", "exclude", "allow":
	default:
		return fmt.Errorf("classify.destructive_handling must be flag, exclude, or allow (got %q)", c.Classify.DestructiveHandling)
	}
	switch c.Classify.NavigationHandling {
	case "", "exclude", "flag":
	default:
		return fmt.Errorf("classify.navigation_handling must be exclude or flag (got %q)", c.Classify.NavigationHandling)
	}
	if c.Rules.Enable && c.Rules.RuleFile == "" {
		return errors.New("rules.rule_file is required when rules.enable is true")
	}
	return nil
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	if b.DefaultNavigationTimeout == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(b.DefaultNavigationTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// Settle returns the parsed settle delay with a sane default.
func (b BrowserConfig) Settle() time.Duration {
	if b.SettleDelay == "" {
		return 1500 * time.Millisecond
	}
	d, err := time.ParseDuration(b.SettleDelay)
	if err != nil {
		return 1500 * time.Millisecond
	}
	return d
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1920
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1080
	}
	return b.ViewportHeight
}
