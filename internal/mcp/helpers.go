package mcp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"uiforge-mcp-server/internal/analyzer"
)

func getStringArg(args map[string]interface{}, key string) string {
	val, ok := args[key]
	if !ok {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func getIntArg(args map[string]interface{}, key string, fallback int) int {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// getStringSliceArg extracts a string slice, tolerating the []interface{}
// shape JSON decoding produces.
func getStringSliceArg(args map[string]interface{}, key string) []string {
	val, ok := args[key]
	if !ok {
		return nil
	}
	switch v := val.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// getBoolArg extracts a boolean argument with default.
func getBoolArg(args map[string]interface{}, key string, fallback bool) bool {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return fallback
}

// loadSource resolves the source text for analysis tools: inline "source"
// wins, else "file" is read from disk. The returned identifier keeps the
// extension so framework sniffing works either way.
func loadSource(args map[string]interface{}) (source, file string, err error) {
	file = getStringArg(args, "file")
	source = getStringArg(args, "source")

	if source != "" {
		if file == "" {
			return "", "", fmt.Errorf("inline source requires a file identifier for framework detection")
		}
		return source, file, nil
	}
	if file == "" {
		return "", "", fmt.Errorf("either file or source is required")
	}

	data, readErr := os.ReadFile(file)
	if readErr != nil {
		return "", "", fmt.Errorf("read %s: %w", file, readErr)
	}
	return string(data), filepath.Base(file), nil
}

// analyzeOne parses one source file, surfacing the typed parse errors.
func analyzeOne(source, file string) (*analyzer.ComponentAnalysis, error) {
	analysis, err := analyzer.Parse(source, file)
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// collectElements flattens every element across all components.
func collectElements(analysis *analyzer.ComponentAnalysis) []*analyzer.UIElement {
	var out []*analyzer.UIElement
	for i := range analysis.Components {
		out = append(out, analysis.Components[i].Elements...)
	}
	return out
}

func supportedTypesLine() string {
	return strings.Join(analyzer.SupportedExtensions(), ", ")
}
