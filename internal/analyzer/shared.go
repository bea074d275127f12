package analyzer

import (
	"path/filepath"
	"regexp"
	"strings"
)

// trivialSetterPattern matches one-line pass-through state setters like
// setEmail(e.target.value) or (e) => setName(e.target.value). Handlers whose
// entire body is such a call carry no actionable semantics and are filtered.
var trivialSetterPattern = regexp.MustCompile(`^\(?\s*\w*\s*\)?\s*(?:=>)?\s*\{?\s*set[A-Z]\w*\(\s*[\w.]*(?:e(?:vent)?\.target\.(?:value|checked)|[\w.]+)?\s*\)\s*;?\s*\}?$`)

func isTrivialSetter(body string) bool {
	body = strings.TrimSpace(body)
	if body == "" {
		return true
	}
	if strings.Count(body, ";") > 1 || strings.Count(body, "\n") > 1 {
		return false
	}
	return trivialSetterPattern.MatchString(body)
}

// matchBrace returns the body between the opening brace at src[open] and its
// balanced closing brace, tolerating quotes and line comments. Returns the
// body and the index just past the closing brace, or ("", -1) when unbalanced.
func matchBrace(src string, open int) (string, int) {
	if open < 0 || open >= len(src) || src[open] != '{' {
		return "", -1
	}
	depth := 0
	inStr := byte(0)
	for i := open; i < len(src); i++ {
		c := src[i]
		if inStr != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == inStr {
				inStr = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			inStr = c
		case '/':
			if i+1 < len(src) && src[i+1] == '/' {
				for i < len(src) && src[i] != '\n' {
					i++
				}
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[open+1 : i], i + 1
			}
		}
	}
	return "", -1
}

// matchParen extracts the balanced argument text starting at src[open] == '('.
func matchParen(src string, open int) (string, int) {
	if open < 0 || open >= len(src) || src[open] != '(' {
		return "", -1
	}
	depth := 0
	inStr := byte(0)
	for i := open; i < len(src); i++ {
		c := src[i]
		if inStr != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == inStr {
				inStr = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			inStr = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return src[open+1 : i], i + 1
			}
		}
	}
	return "", -1
}

// inferKind guesses a primitive kind from an initializer literal.
func inferKind(initial string) string {
	initial = strings.TrimSpace(initial)
	switch {
	case initial == "":
		return "string"
	case strings.HasPrefix(initial, "\"") || strings.HasPrefix(initial, "'") || strings.HasPrefix(initial, "`"):
		return "string"
	case initial == "true" || initial == "false":
		return "boolean"
	case regexp.MustCompile(`^-?\d`).MatchString(initial):
		return "number"
	case strings.HasPrefix(initial, "{"):
		return "object"
	case strings.HasPrefix(initial, "["):
		return "array"
	default:
		return "string"
	}
}

// componentNameFromFile derives a component name from a file identifier, e.g.
// "contact-form.html" becomes "ContactForm".
func componentNameFromFile(file string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' '
	})
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	if b.Len() == 0 {
		return "Page"
	}
	return b.String()
}

// collapseSpace normalizes whitespace runs in extracted text.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// validationMarkers derives the validation list from an attribute map.
func validationMarkers(attrs map[string]string) []string {
	var v []string
	if _, ok := attrs["required"]; ok {
		v = append(v, "required")
	}
	for _, key := range []string{"minlength", "minLength"} {
		if val, ok := attrs[key]; ok && val != "" {
			v = append(v, "minLength:"+val)
			break
		}
	}
	for _, key := range []string{"maxlength", "maxLength"} {
		if val, ok := attrs[key]; ok && val != "" {
			v = append(v, "maxLength:"+val)
			break
		}
	}
	if val, ok := attrs["pattern"]; ok && val != "" {
		v = append(v, "pattern:"+val)
	}
	return v
}

// ariaHints pulls accessibility attributes out of an attribute map.
func ariaHints(attrs map[string]string) AccessibilityHints {
	return AccessibilityHints{
		AriaLabel:       attrs["aria-label"],
		AriaDescribedBy: attrs["aria-describedby"],
		Role:            attrs["role"],
	}
}
