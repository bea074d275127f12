package analyzer

import (
	"fmt"
	"regexp"
	"strings"
)

// The React dialect is scanned heuristically: component declarations, hook
// call sites, and handler declarations are recognized by pattern, and the JSX
// markup inside each component body goes through the tolerant tag scanner.
// Unknown component names are simply not matched; only a file in which no
// component boundary can be found at all falls back to whole-file analysis.

var (
	funcComponentPattern  = regexp.MustCompile(`(?m)^\s*(?:export\s+(?:default\s+)?)?function\s+([A-Z]\w*)\s*\(`)
	arrowComponentPattern = regexp.MustCompile(`(?m)^\s*(?:export\s+(?:default\s+)?)?const\s+([A-Z]\w*)\s*(?::\s*[\w.<>,\[\]\s]+)?=\s*(?:React\.memo\(\s*|forwardRef\(\s*)?\(`)

	useStatePattern   = regexp.MustCompile(`const\s*\[\s*(\w+)\s*,\s*(\w+)\s*\]\s*=\s*useState`)
	useRefPattern     = regexp.MustCompile(`const\s+(\w+)\s*=\s*useRef`)
	useReducerPattern = regexp.MustCompile(`const\s*\[\s*(\w+)\s*,\s*(\w+)\s*\]\s*=\s*useReducer`)
	useFormPattern    = regexp.MustCompile(`const\s*\{([^}]*)\}\s*=\s*useForm`)

	arrowHandlerPattern = regexp.MustCompile(`(?:const|let|var)\s+(\w+)\s*=\s*(async)?\s*(?:\([^)]*\)|\w+)\s*=>\s*\{`)
	namedFuncPattern    = regexp.MustCompile(`(async\s+)?function\s+(\w+)\s*\(`)

	identExpr    = regexp.MustCompile(`^\w+$`)
	dottedExpr   = regexp.MustCompile(`^(\w+)\.(\w+)$`)
	wrappedExpr  = regexp.MustCompile(`^(\w+)\(\s*(\w+)\s*\)$`)
	registerExpr = regexp.MustCompile(`register\(\s*["'](\w+)["']`)
)

func parseReact(src, file string) ([]ComponentInfo, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &ParseFailedError{File: file, Reason: "empty source"}
	}

	type span struct {
		name string
		args string
		body string
	}
	var spans []span

	for _, m := range funcComponentPattern.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		args, after := matchParen(src, m[1]-1)
		if after < 0 {
			continue
		}
		open := strings.IndexByte(src[after:], '{')
		if open < 0 {
			continue
		}
		body, _ := matchBrace(src, after+open)
		if body == "" {
			continue
		}
		spans = append(spans, span{name: name, args: args, body: body})
	}
	for _, m := range arrowComponentPattern.FindAllStringSubmatchIndex(src, -1) {
		name := src[m[2]:m[3]]
		args, after := matchParen(src, m[1]-1)
		if after < 0 {
			continue
		}
		rest := src[after:]
		arrow := strings.Index(rest, "=>")
		if arrow < 0 || arrow > 8 {
			continue
		}
		tail := strings.TrimLeft(rest[arrow+2:], " \t\r\n")
		offset := after + arrow + 2 + (len(rest[arrow+2:]) - len(tail))
		var body string
		switch {
		case strings.HasPrefix(tail, "{"):
			body, _ = matchBrace(src, offset)
		case strings.HasPrefix(tail, "("):
			body, _ = matchParen(src, offset)
		}
		if body == "" {
			continue
		}
		spans = append(spans, span{name: name, args: args, body: body})
	}

	if len(spans) == 0 {
		// No recognizable component boundary; analyze the file as one unit.
		spans = append(spans, span{name: componentNameFromFile(file), body: src})
	}

	components := make([]ComponentInfo, 0, len(spans))
	for _, s := range spans {
		components = append(components, analyzeJSXComponent(s.name, s.args, s.body))
	}
	return components, nil
}

func analyzeJSXComponent(name, args, body string) ComponentInfo {
	comp := ComponentInfo{
		Name:  name,
		Props: destructuredNames(args),
		State: extractReactState(body),
	}

	decls := extractHandlerDecls(body)
	setters := map[string]string{}
	for _, sv := range comp.State {
		if sv.Setter != "" {
			setters[sv.Name] = sv.Setter
		}
	}

	root := scanMarkup(body)
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

		// react-hook-form spreads: {...register("email")} carries the field name.
		formManaged := false
		for _, a := range n.Attrs {
			if a.Name == "" && a.Expr {
				if m := registerExpr.FindStringSubmatch(a.Value); m != nil {
					if attrs["name"] == "" {
						attrs["name"] = m[1]
					}
					formManaged = true
				}
			}
		}

		el := &UIElement{
			Tag:        tag,
			ID:         attrs["id"],
			Name:       attrs["name"],
			InputType:  inputType,
			Attributes: attrs,
			Validation: validationMarkers(attrs),
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

		el.Binding = resolveBinding(n, attrs, setters, formManaged)
		el.Label = resolveJSXLabel(root, n, tag, attrs)

		comp.Elements = append(comp.Elements, el)

		// Fixed visit order keeps Handlers deterministic across parses.
		for _, ev := range []struct{ attr, event string }{
			{"onSubmit", "submit"},
			{"onClick", "click"},
			{"onChange", "change"},
		} {
			attrName, event := ev.attr, ev.event
			expr, found := n.attr(attrName)
			if !found || strings.TrimSpace(expr) == "" {
				continue
			}
			h, ok := resolveHandlerExpr(expr, event, decls, &inlineCount)
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

	return comp
}

// resolveTagName maps a JSX tag to a native interactive tag, via the
// component mapping table for capitalized names.
func resolveTagName(name string) (tag, inputType string, ok bool) {
	lower := strings.ToLower(name)
	if name == lower {
		if interactiveTags[lower] {
			return lower, "", true
		}
		return "", "", false
	}
	if mapped, found := componentTagMap[name]; found {
		return mapped.tag, mapped.inputType, true
	}
	return "", "", false
}

type handlerDecl struct {
	body    string
	isAsync bool
}

func extractHandlerDecls(body string) map[string]handlerDecl {
	decls := map[string]handlerDecl{}

	for _, m := range arrowHandlerPattern.FindAllStringSubmatchIndex(body, -1) {
		name := body[m[2]:m[3]]
		open := strings.LastIndexByte(body[m[0]:m[1]], '{') + m[0]
		fnBody, _ := matchBrace(body, open)
		if fnBody == "" {
			continue
		}
		decls[name] = handlerDecl{body: strings.TrimSpace(fnBody), isAsync: m[4] >= 0}
	}
	for _, m := range namedFuncPattern.FindAllStringSubmatchIndex(body, -1) {
		name := body[m[4]:m[5]]
		_, after := matchParen(body, m[1]-1)
		if after < 0 {
			continue
		}
		open := strings.IndexByte(body[after:], '{')
		if open < 0 {
			continue
		}
		fnBody, _ := matchBrace(body, after+open)
		if fnBody == "" {
			continue
		}
		decls[name] = handlerDecl{body: strings.TrimSpace(fnBody), isAsync: m[2] >= 0}
	}
	return decls
}

// resolveHandlerExpr turns an event-attribute expression into an EventHandler.
// Named references resolve to their declared body; inline arrows keep the
// expression text as the body; trivial one-line setters are dropped.
func resolveHandlerExpr(expr, event string, decls map[string]handlerDecl, inlineCount *int) (EventHandler, bool) {
	expr = strings.TrimSpace(expr)

	resolveNamed := func(name string) (EventHandler, bool) {
		d, found := decls[name]
		if !found {
			// Handler declared out of scope (imported, prop). Keep the name.
			return EventHandler{Name: name, Event: event}, true
		}
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

	if identExpr.MatchString(expr) {
		return resolveNamed(expr)
	}
	if m := wrappedExpr.FindStringSubmatch(expr); m != nil {
		// handleSubmit(onSubmit): resolve the wrapped callback.
		return resolveNamed(m[2])
	}

	// Inline arrow handler.
	if isTrivialSetter(expr) {
		return EventHandler{}, false
	}
	*inlineCount++
	isAsync := strings.Contains(expr, "async")
	return EventHandler{
		Name:     fmt.Sprintf("inline_%s_%d", event, *inlineCount),
		Event:    event,
		Body:     expr,
		IsAsync:  isAsync,
		APICalls: ExtractAPICalls(expr),
	}, true
}

// resolveBinding links a value-carrying attribute to component state, with
// one level of dotted-path resolution for object-shaped state. attrs is the
// resolved attribute map, which also carries names injected by register
// spreads the node's raw attribute list never had.
func resolveBinding(n *tagNode, attrs map[string]string, setters map[string]string, formManaged bool) *StateBinding {
	for _, attrName := range []string{"value", "checked"} {
		expr, found := n.attr(attrName)
		if !found {
			continue
		}
		expr = strings.TrimSpace(expr)
		if identExpr.MatchString(expr) {
			return &StateBinding{Variable: expr, Setter: setters[expr]}
		}
		if m := dottedExpr.FindStringSubmatch(expr); m != nil {
			return &StateBinding{Variable: m[1], Setter: setters[m[1]], Path: m[2]}
		}
	}
	if formManaged && attrs["name"] != "" {
		return &StateBinding{Variable: attrs["name"]}
	}
	return nil
}

func resolveJSXLabel(root, n *tagNode, tag string, attrs map[string]string) string {
	for _, key := range []string{"placeholder", "aria-label", "title"} {
		if v := strings.TrimSpace(attrs[key]); v != "" {
			return v
		}
	}
	if id := attrs["id"]; id != "" {
		var text string
		root.walk(func(c *tagNode) {
			if text != "" || (c.Name != "label" && c.Name != "Label") {
				return
			}
			if forID, _ := c.attr("htmlFor"); forID == id {
				text = c.textContent()
			} else if forID, _ := c.attr("for"); forID == id {
				text = c.textContent()
			}
		})
		if text != "" {
			return text
		}
	}
	if wrap := n.closestLabel(); wrap != nil {
		if text := wrap.textContent(); text != "" {
			return text
		}
	}
	if tag == "button" {
		if text := n.textContent(); text != "" {
			return text
		}
	}
	if tag == "input" && (attrs["type"] == "submit" || attrs["type"] == "button") {
		return strings.TrimSpace(attrs["value"])
	}
	return ""
}

func extractReactState(body string) []StateVariable {
	var state []StateVariable

	for _, m := range useStatePattern.FindAllStringSubmatchIndex(body, -1) {
		sv := StateVariable{
			Name:        body[m[2]:m[3]],
			Setter:      body[m[4]:m[5]],
			Declaration: "state",
		}
		if open := strings.IndexByte(body[m[1]:], '('); open >= 0 {
			initial, _ := matchParen(body, m[1]+open)
			sv.Initial = strings.TrimSpace(initial)
		}
		sv.Kind = inferKind(sv.Initial)
		state = append(state, sv)
	}
	for _, m := range useRefPattern.FindAllStringSubmatchIndex(body, -1) {
		state = append(state, StateVariable{
			Name:        body[m[2]:m[3]],
			Declaration: "ref",
			Kind:        "object",
		})
	}
	for _, m := range useReducerPattern.FindAllStringSubmatchIndex(body, -1) {
		state = append(state, StateVariable{
			Name:        body[m[2]:m[3]],
			Setter:      body[m[4]:m[5]],
			Declaration: "reducer",
			Kind:        "object",
		})
	}
	for _, m := range useFormPattern.FindAllStringSubmatch(body, -1) {
		for _, raw := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(raw)
			if i := strings.IndexAny(name, ":="); i >= 0 {
				name = strings.TrimSpace(name[:i])
			}
			if name == "" {
				continue
			}
			state = append(state, StateVariable{
				Name:        name,
				Declaration: "form",
				Kind:        "object",
			})
		}
	}
	return state
}

func destructuredNames(args string) []string {
	args = strings.TrimSpace(args)
	if !strings.HasPrefix(args, "{") {
		return nil
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(args, "{"), "}")
	var names []string
	for _, raw := range strings.Split(inner, ",") {
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "..."))
		if i := strings.IndexAny(name, ":="); i >= 0 {
			name = strings.TrimSpace(name[:i])
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
