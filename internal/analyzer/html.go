package analyzer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// parseHTML handles the markup-only dialect. The whole file is modeled as one
// component. The underlying parser tolerates malformed-but-plausible markup;
// only an unreadable document is fatal.
func parseHTML(src, file string) ([]ComponentInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, &ParseFailedError{File: file, Reason: "unreadable HTML document", Err: err}
	}

	// Assign every form a stable identifier up front so elements can be
	// attributed to the nearest enclosing form, including sibling forms.
	formIDs := map[*html.Node]string{}
	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		if id == "" {
			id = fmt.Sprintf("form_%d", i+1)
		}
		formIDs[s.Nodes[0]] = id
	})

	comp := ComponentInfo{Name: componentNameFromFile(file)}

	doc.Find("input, button, select, textarea, form").Each(func(i int, s *goquery.Selection) {
		node := s.Nodes[0]
		tag := goquery.NodeName(s)

		attrs := make(map[string]string, len(node.Attr))
		for _, a := range node.Attr {
			attrs[a.Key] = a.Val
		}

		el := &UIElement{
			Tag:        tag,
			ID:         attrs["id"],
			Name:       attrs["name"],
			InputType:  attrs["type"],
			Attributes: attrs,
			Validation: validationMarkers(attrs),
			Aria:       ariaHints(attrs),
			Label:      resolveHTMLLabel(doc, s, tag, attrs),
		}

		if tag == "form" {
			el.FormID = formIDs[node]
		} else if form := s.Closest("form"); form.Length() > 0 {
			el.FormID = formIDs[form.Nodes[0]]
		}

		comp.Elements = append(comp.Elements, el)

		// The markup dialect carries handlers as inline event attributes.
		// Fixed visit order keeps Handlers deterministic across parses.
		for _, ev := range []struct{ attr, event string }{
			{"onsubmit", "submit"},
			{"onclick", "click"},
			{"onchange", "change"},
		} {
			attr, event := ev.attr, ev.event
			body, ok := attrs[attr]
			if !ok || strings.TrimSpace(body) == "" {
				continue
			}
			name := el.ID
			if name == "" {
				name = fmt.Sprintf("%s_%s_%d", tag, event, i+1)
			} else {
				name = name + "_" + event
			}
			comp.Handlers = append(comp.Handlers, EventHandler{
				Name:       name,
				Event:      event,
				ElementTag: tag,
				ElementID:  el.ID,
				Body:       body,
				APICalls:   ExtractAPICalls(body),
			})
		}
	})

	return []ComponentInfo{comp}, nil
}

// resolveHTMLLabel applies the fixed label priority chain: explicit
// placeholder/aria-label/title attribute, then <label for=id> text, then the
// nearest wrapping label, then inner text (buttons only).
func resolveHTMLLabel(doc *goquery.Document, s *goquery.Selection, tag string, attrs map[string]string) string {
	for _, key := range []string{"placeholder", "aria-label", "title"} {
		if v := strings.TrimSpace(attrs[key]); v != "" {
			return v
		}
	}
	if id := attrs["id"]; id != "" {
		if lbl := doc.Find(`label[for="` + id + `"]`); lbl.Length() > 0 {
			if text := collapseSpace(lbl.First().Text()); text != "" {
				return text
			}
		}
	}
	if wrap := s.Closest("label"); wrap.Length() > 0 {
		if text := collapseSpace(wrap.First().Text()); text != "" {
			return text
		}
	}
	if tag == "button" {
		if text := collapseSpace(s.Text()); text != "" {
			return text
		}
		// Submit inputs label themselves through value.
	}
	if tag == "input" && (attrs["type"] == "submit" || attrs["type"] == "button") {
		return strings.TrimSpace(attrs["value"])
	}
	return ""
}
