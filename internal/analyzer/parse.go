package analyzer

import (
	"path/filepath"
	"sort"
	"strings"
)

type dialectParser func(src, file string) ([]ComponentInfo, error)

// Framework selection is pure extension sniffing. Each dialect is an
// independent function behind this table; adding a dialect is a table entry.
var parsersByExt = map[string]struct {
	framework Framework
	parse     dialectParser
}{
	".html": {FrameworkHTML, parseHTML},
	".htm":  {FrameworkHTML, parseHTML},
	".jsx":  {FrameworkReact, parseReact},
	".tsx":  {FrameworkReact, parseReact},
	".vue":  {FrameworkVue, parseVue},
}

// SupportedExtensions lists the recognized file extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(parsersByExt))
	for ext := range parsersByExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse turns raw source text into the shared structural model. Components
// with zero elements and zero handlers are dropped from the result entirely.
func Parse(source, file string) (*ComponentAnalysis, error) {
	ext := strings.ToLower(filepath.Ext(file))
	entry, ok := parsersByExt[ext]
	if !ok {
		return nil, &UnsupportedFileTypeError{File: file, Ext: ext, Supported: SupportedExtensions()}
	}

	components, err := entry.parse(source, file)
	if err != nil {
		return nil, err
	}

	kept := make([]ComponentInfo, 0, len(components))
	for _, c := range components {
		if len(c.Elements) == 0 && len(c.Handlers) == 0 {
			continue
		}
		c.Type = classifyComponent(c.Elements, c.Handlers)
		kept = append(kept, c)
	}

	return &ComponentAnalysis{
		File:       file,
		Framework:  entry.framework,
		Components: kept,
	}, nil
}
