package analyzer

import "strings"

// The tag scanner is a tolerant tokenizer for JSX and Vue template markup.
// It does not attempt a full grammar: unknown constructs are skipped, close
// tags without a matching open are ignored, and scanning never fails. The
// standard HTML parser is unsuitable for these dialects because it lowercases
// component names (TextField) and rejects brace-expression attributes.

type tagAttr struct {
	Name  string
	Value string
	// Expr marks a brace-expression value ({handleSubmit}) or a spread
	// expression attribute ({...register("email")}, with empty Name).
	Expr bool
}

type tagNode struct {
	Name       string
	Attrs      []tagAttr
	SelfClosed bool
	Parent     *tagNode
	Children   []*tagNode
	textChunks []string
}

// Tags that never wrap children even when written without a slash.
var voidTags = map[string]bool{
	"input": true,
	"img":   true,
	"br":    true,
	"hr":    true,
	"meta":  true,
	"link":  true,
}

func (n *tagNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *tagNode) attrMap() map[string]string {
	m := make(map[string]string, len(n.Attrs))
	for _, a := range n.Attrs {
		if a.Name != "" {
			m[a.Name] = a.Value
		}
	}
	return m
}

// textContent concatenates the node's own text and all descendant text.
func (n *tagNode) textContent() string {
	var b strings.Builder
	var walk func(*tagNode)
	walk = func(t *tagNode) {
		for _, c := range t.textChunks {
			b.WriteString(c)
			b.WriteByte(' ')
		}
		for _, child := range t.Children {
			walk(child)
		}
	}
	walk(n)
	return collapseSpace(b.String())
}

// walk visits every node depth-first, parents before children.
func (n *tagNode) walk(fn func(*tagNode)) {
	for _, c := range n.Children {
		fn(c)
		c.walk(fn)
	}
}

// closestForm returns the nearest ancestor form node, or nil.
func (n *tagNode) closestForm() *tagNode {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Name == "form" || p.Name == "Form" {
			return p
		}
	}
	return nil
}

// closestLabel returns the nearest ancestor label node, or nil.
func (n *tagNode) closestLabel() *tagNode {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Name == "label" || p.Name == "Label" {
			return p
		}
	}
	return nil
}

func isTagNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isTagNameChar(c byte) bool {
	return isTagNameStart(c) || (c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_'
}

func isAttrNameChar(c byte) bool {
	// Vue directives use @, : and . (e.g. @submit.prevent, :required).
	return isTagNameChar(c) || c == '@' || c == ':'
}

// scanMarkup parses source text into a tag tree rooted at a virtual node.
// Anything that does not look like a tag is treated as text.
func scanMarkup(src string) *tagNode {
	root := &tagNode{}
	cur := root
	i := 0
	textStart := 0

	flushText := func(end int) {
		if end <= textStart {
			return
		}
		chunk := stripExpressions(src[textStart:end])
		if strings.TrimSpace(chunk) != "" {
			cur.textChunks = append(cur.textChunks, strings.TrimSpace(chunk))
		}
	}

	for i < len(src) {
		if src[i] != '<' {
			i++
			continue
		}
		if i+1 >= len(src) {
			break
		}
		next := src[i+1]

		switch {
		case next == '!':
			// Comment or doctype.
			flushText(i)
			if strings.HasPrefix(src[i:], "<!--") {
				if end := strings.Index(src[i:], "-->"); end >= 0 {
					i += end + 3
				} else {
					i = len(src)
				}
			} else {
				if end := strings.IndexByte(src[i:], '>'); end >= 0 {
					i += end + 1
				} else {
					i = len(src)
				}
			}
			textStart = i

		case next == '/':
			flushText(i)
			j := i + 2
			nameStart := j
			for j < len(src) && isTagNameChar(src[j]) {
				j++
			}
			name := src[nameStart:j]
			for j < len(src) && src[j] != '>' {
				j++
			}
			if j < len(src) {
				j++
			}
			// Pop to the matching open tag; ignore an unmatched close.
			for p := cur; p != nil && p != root; p = p.Parent {
				if p.Name == name {
					cur = p.Parent
					break
				}
			}
			i = j
			textStart = i

		case isTagNameStart(next):
			flushText(i)
			node, end := scanTag(src, i)
			if node == nil {
				// Looked like a tag but was not; treat '<' as text.
				i++
				continue
			}
			node.Parent = cur
			cur.Children = append(cur.Children, node)
			if !node.SelfClosed && !voidTags[node.Name] {
				cur = node
			}
			i = end
			textStart = i

		default:
			// Comparison operator or stray '<'.
			i++
		}
	}
	flushText(len(src))
	return root
}

// scanTag parses one open tag starting at src[start] == '<'. Returns the node
// and the index just past '>', or (nil, start) when the text is not a tag.
func scanTag(src string, start int) (*tagNode, int) {
	i := start + 1
	nameStart := i
	for i < len(src) && isTagNameChar(src[i]) {
		i++
	}
	name := src[nameStart:i]
	if name == "" {
		return nil, start
	}

	node := &tagNode{Name: name}
	for i < len(src) {
		// Skip whitespace between attributes.
		for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\n' || src[i] == '\r') {
			i++
		}
		if i >= len(src) {
			return node, i
		}
		switch {
		case src[i] == '>':
			return node, i + 1
		case src[i] == '/' && i+1 < len(src) && src[i+1] == '>':
			node.SelfClosed = true
			return node, i + 2
		case src[i] == '{':
			// JSX spread or expression attribute: {...register("email")}.
			expr, end := matchBrace(src, i)
			if end < 0 {
				return node, len(src)
			}
			node.Attrs = append(node.Attrs, tagAttr{Value: strings.TrimSpace(expr), Expr: true})
			i = end
		case isAttrNameChar(src[i]):
			attr, end := scanAttr(src, i)
			node.Attrs = append(node.Attrs, attr)
			i = end
		default:
			// Unexpected byte inside a tag; skip it rather than fail.
			i++
		}
	}
	return node, i
}

func scanAttr(src string, start int) (tagAttr, int) {
	i := start
	for i < len(src) && isAttrNameChar(src[i]) {
		i++
	}
	attr := tagAttr{Name: src[start:i]}
	if i >= len(src) || src[i] != '=' {
		return attr, i
	}
	i++
	if i >= len(src) {
		return attr, i
	}
	switch src[i] {
	case '"', '\'':
		quote := src[i]
		j := i + 1
		for j < len(src) && src[j] != quote {
			j++
		}
		attr.Value = src[i+1 : j]
		if j < len(src) {
			j++
		}
		return attr, j
	case '{':
		expr, end := matchBrace(src, i)
		if end < 0 {
			attr.Value = strings.TrimSpace(src[i+1:])
			attr.Expr = true
			return attr, len(src)
		}
		attr.Value = strings.TrimSpace(expr)
		attr.Expr = true
		return attr, end
	default:
		j := i
		for j < len(src) && src[j] != ' ' && src[j] != '\t' && src[j] != '\n' && src[j] != '>' && src[j] != '/' {
			j++
		}
		attr.Value = src[i:j]
		return attr, j
	}
}

// stripExpressions removes {expr} regions from JSX text so labels come out as
// plain words ("Save {count}" reads as "Save").
func stripExpressions(s string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
				continue
			}
		default:
			if depth == 0 {
				b.WriteByte(s[i])
			}
		}
	}
	return b.String()
}
