package analyzer

import (
	"fmt"
	"regexp"
	"strings"
)

// Vue single-file components split into a template block (tag-scanned like
// JSX) and a script block (pattern-scanned for state and handlers). Both
// script-setup and options-API shapes are recognized.

var (
	vueRefPattern      = regexp.MustCompile(`const\s+(\w+)\s*=\s*ref`)
	vueReactivePattern = regexp.MustCompile(`const\s+(\w+)\s*=\s*reactive`)
	vueUseFormPattern  = regexp.MustCompile(`const\s*\{([^}]*)\}\s*=\s*useForm`)
	vueMethodsPattern  = regexp.MustCompile(`methods\s*:\s*\{`)
	vueMethodPattern   = regexp.MustCompile(`(async\s+)?(\w+)\s*\(([^)]*)\)\s*\{`)
	vuePropsPattern    = regexp.MustCompile(`(?:defineProps\(\s*\{|props\s*:\s*\{)`)
	vuePropKeyPattern  = regexp.MustCompile(`(?m)^\s*(\w+)\s*:`)

	vueAssignSetter = regexp.MustCompile(`^[\w.]+\s*=\s*\$event(\.target\.(value|checked))?$`)
	vueCallExpr     = regexp.MustCompile(`^(\w+)\s*\(`)
)

func parseVue(src, file string) ([]ComponentInfo, error) {
	template := sfcBlock(src, "template")
	script := sfcBlock(src, "script")
	if template == "" && script == "" {
		return nil, &ParseFailedError{File: file, Reason: "no template or script block found"}
	}

	comp := ComponentInfo{
		Name:  componentNameFromFile(file),
		State: extractVueState(script),
		Props: extractVueProps(script),
	}

	decls := extractHandlerDecls(script)
	for name, d := range extractVueMethods(script) {
		decls[name] = d
	}

	root := scanMarkup(template)
	formCount := 0
	formIDs := map[*tagNode]string{}
	seenHandlers := map[string]bool{}
	inlineCount := 0

	root.walk(func(n *tagNode) {
		tag, inputType, ok := resolveTagName(n.Name)
		if !ok {
			return
		}

		attrs := n.attrMap()
		if t, found := attrs["type"]; found && t != "" {
			inputType = t
		}

		el := &UIElement{
			Tag:        tag,
			ID:         attrs["id"],
			Name:       attrs["name"],
			InputType:  inputType,
			Attributes: attrs,
			Validation: vueValidationMarkers(attrs),
			Aria:       ariaHints(attrs),
		}

		if tag == "form" {
			formCount++
			id := attrs["id"]
			if id == "" {
				id = fmt.Sprintf("form_%d", formCount)
			}
			formIDs[n] = id
			el.FormID = id
		} else if f := n.closestForm(); f != nil {
			el.FormID = formIDs[f]
		}

		el.Binding = vueModelBinding(n)
		el.Label = resolveJSXLabel(root, n, tag, attrs)

		comp.Elements = append(comp.Elements, el)

		for _, a := range n.Attrs {
			event, ok := vueEventName(a.Name)
			if !ok || strings.TrimSpace(a.Value) == "" {
				continue
			}
			h, ok := resolveVueHandlerExpr(a.Value, event, decls, &inlineCount)
			if !ok {
				continue
			}
			h.ElementTag = tag
			h.ElementID = el.ID
			key := h.Name + ":" + h.Event
			if seenHandlers[key] {
				continue
			}
			seenHandlers[key] = true
			comp.Handlers = append(comp.Handlers, h)
		}
	})

	return []ComponentInfo{comp}, nil
}

// sfcBlock extracts the inner text of a top-level SFC block.
func sfcBlock(src, name string) string {
	openStart := strings.Index(src, "<"+name)
	if openStart < 0 {
		return ""
	}
	openEnd := strings.IndexByte(src[openStart:], '>')
	if openEnd < 0 {
		return ""
	}
	start := openStart + openEnd + 1
	close := strings.LastIndex(src, "</"+name+">")
	if close < start {
		return ""
	}
	return src[start:close]
}

// vueEventName maps a directive attribute to one of the three handler events.
func vueEventName(attr string) (string, bool) {
	var event string
	switch {
	case strings.HasPrefix(attr, "@"):
		event = strings.TrimPrefix(attr, "@")
	case strings.HasPrefix(attr, "v-on:"):
		event = strings.TrimPrefix(attr, "v-on:")
	default:
		return "", false
	}
	// Drop modifiers: @submit.prevent -> submit.
	if i := strings.IndexByte(event, '.'); i >= 0 {
		event = event[:i]
	}
	switch event {
	case "submit", "click", "change":
		return event, true
	}
	return "", false
}

func vueModelBinding(n *tagNode) *StateBinding {
	for _, a := range n.Attrs {
		if a.Name != "v-model" && !strings.HasPrefix(a.Name, "v-model.") {
			continue
		}
		expr := strings.TrimSpace(a.Value)
		if identExpr.MatchString(expr) {
			return &StateBinding{Variable: expr}
		}
		if m := dottedExpr.FindStringSubmatch(expr); m != nil {
			return &StateBinding{Variable: m[1], Path: m[2]}
		}
	}
	return nil
}

func resolveVueHandlerExpr(expr, event string, decls map[string]handlerDecl, inlineCount *int) (EventHandler, bool) {
	expr = strings.TrimSpace(expr)

	name := expr
	if m := vueCallExpr.FindStringSubmatch(expr); m != nil {
		name = m[1]
	}
	if identExpr.MatchString(name) {
		if d, found := decls[name]; found {
			if isTrivialSetter(d.body) {
				return EventHandler{}, false
			}
			return EventHandler{
				Name:     name,
				Event:    event,
				Body:     d.body,
				IsAsync:  d.isAsync,
				APICalls: ExtractAPICalls(d.body),
			}, true
		}
		if name == expr {
			return EventHandler{Name: name, Event: event}, true
		}
	}

	// Inline statement like "email = $event.target.value" carries no semantics.
	if vueAssignSetter.MatchString(expr) || isTrivialSetter(expr) {
		return EventHandler{}, false
	}
	*inlineCount++
	return EventHandler{
		Name:     fmt.Sprintf("inline_%s_%d", event, *inlineCount),
		Event:    event,
		Body:     expr,
		APICalls: ExtractAPICalls(expr),
	}, true
}

// vueValidationMarkers also accepts bound attributes (:required="true").
func vueValidationMarkers(attrs map[string]string) []string {
	merged := make(map[string]string, len(attrs))
	for k, v := range attrs {
		merged[strings.TrimPrefix(k, ":")] = v
	}
	if v, ok := merged["required"]; ok && v == "false" {
		delete(merged, "required")
	}
	return validationMarkers(merged)
}

func extractVueState(script string) []StateVariable {
	var state []StateVariable

	for _, m := range vueRefPattern.FindAllStringSubmatchIndex(script, -1) {
		sv := StateVariable{Name: script[m[2]:m[3]], Declaration: "state"}
		if open := strings.IndexByte(script[m[1]:], '('); open >= 0 {
			initial, _ := matchParen(script, m[1]+open)
			sv.Initial = strings.TrimSpace(initial)
		}
		sv.Kind = inferKind(sv.Initial)
		state = append(state, sv)
	}
	for _, m := range vueReactivePattern.FindAllStringSubmatchIndex(script, -1) {
		sv := StateVariable{Name: script[m[2]:m[3]], Declaration: "state", Kind: "object"}
		if open := strings.IndexByte(script[m[1]:], '('); open >= 0 {
			initial, _ := matchParen(script, m[1]+open)
			sv.Initial = strings.TrimSpace(initial)
		}
		state = append(state, sv)
	}
	for _, m := range vueUseFormPattern.FindAllStringSubmatch(script, -1) {
		for _, raw := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(raw)
			if i := strings.IndexAny(name, ":="); i >= 0 {
				name = strings.TrimSpace(name[:i])
			}
			if name == "" {
				continue
			}
			state = append(state, StateVariable{Name: name, Declaration: "form", Kind: "object"})
		}
	}
	return state
}

// extractVueMethods pulls method shorthand declarations out of an options-API
// methods block.
func extractVueMethods(script string) map[string]handlerDecl {
	decls := map[string]handlerDecl{}
	loc := vueMethodsPattern.FindStringIndex(script)
	if loc == nil {
		return decls
	}
	block, _ := matchBrace(script, loc[1]-1)
	if block == "" {
		return decls
	}
	for _, m := range vueMethodPattern.FindAllStringSubmatchIndex(block, -1) {
		name := block[m[4]:m[5]]
		body, _ := matchBrace(block, m[1]-1)
		if body == "" {
			continue
		}
		decls[name] = handlerDecl{body: strings.TrimSpace(body), isAsync: m[2] >= 0}
	}
	return decls
}

func extractVueProps(script string) []string {
	loc := vuePropsPattern.FindStringIndex(script)
	if loc == nil {
		return nil
	}
	block, _ := matchBrace(script, loc[1]-1)
	if block == "" {
		return nil
	}
	var props []string
	for _, m := range vuePropKeyPattern.FindAllStringSubmatch(block, -1) {
		props = append(props, m[1])
	}
	return props
}
