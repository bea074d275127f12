package analyzer

// Framework identifies the source dialect a file was parsed as.
type Framework string

const (
	FrameworkHTML  Framework = "html"
	FrameworkReact Framework = "react"
	FrameworkVue   Framework = "vue"
)

// Interactive tags the parsers collect. Anything outside this set is ignored.
var interactiveTags = map[string]bool{
	"input":    true,
	"button":   true,
	"select":   true,
	"textarea": true,
	"form":     true,
}

// componentTagMap resolves well-known third-party input-like component names
// to their native-tag equivalent. Declarative data, extended here rather than
// in parser logic.
var componentTagMap = map[string]mappedComponent{
	"TextField": {tag: "input", inputType: "text"},
	"TextInput": {tag: "input", inputType: "text"},
	"Input":     {tag: "input", inputType: "text"},
	"Checkbox":  {tag: "input", inputType: "checkbox"},
	"Radio":     {tag: "input", inputType: "radio"},
	"Switch":    {tag: "input", inputType: "checkbox"},
	"Select":    {tag: "select"},
	"Dropdown":  {tag: "select"},
	"Combobox":  {tag: "select"},
	"TextArea":  {tag: "textarea"},
	"Textarea":  {tag: "textarea"},
	"Button":    {tag: "button"},
	"IconButton": {tag: "button"},
	"Form":      {tag: "form"},
}

type mappedComponent struct {
	tag       string
	inputType string
}

// StateBinding links an element's value-carrying attribute to component state.
type StateBinding struct {
	Variable string `json:"variable"`
	Setter   string `json:"setter,omitempty"`
	// Path is the dotted field for object-shaped state, e.g. "email" for
	// value={form.email}.
	Path string `json:"path,omitempty"`
}

// AccessibilityHints carries the ARIA signals found on an element.
type AccessibilityHints struct {
	AriaLabel       string `json:"aria_label,omitempty"`
	AriaDescribedBy string `json:"aria_described_by,omitempty"`
	Role            string `json:"role,omitempty"`
}

// UIElement is one discovered interactive node. Attribute keys and values are
// always strings; numeric and boolean HTML attributes are stringified. The
// Selectors field is the only field mutated after creation (by the matcher).
type UIElement struct {
	Tag        string             `json:"tag"`
	ID         string             `json:"id,omitempty"`
	Name       string             `json:"name,omitempty"`
	Label      string             `json:"label,omitempty"`
	InputType  string             `json:"input_type,omitempty"`
	Attributes map[string]string  `json:"attributes,omitempty"`
	Binding    *StateBinding      `json:"binding,omitempty"`
	Validation []string           `json:"validation,omitempty"`
	Aria       AccessibilityHints `json:"aria,omitempty"`
	// FormID attributes the element to the nearest enclosing form.
	FormID    string             `json:"form_id,omitempty"`
	Selectors []SelectorStrategy `json:"selectors,omitempty"`
}

// APICall is an outbound HTTP call heuristically extracted from a handler body.
type APICall struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// EventHandler is a function bound to a UI event. Event is always one of
// submit, click, or change.
type EventHandler struct {
	Name       string    `json:"name"`
	Event      string    `json:"event"`
	ElementTag string    `json:"element_tag,omitempty"`
	ElementID  string    `json:"element_id,omitempty"`
	Body       string    `json:"body,omitempty"`
	IsAsync    bool      `json:"is_async,omitempty"`
	APICalls   []APICall `json:"api_calls,omitempty"`
}

// StateVariable is one piece of component-local reactive state.
type StateVariable struct {
	Name    string `json:"name"`
	Setter  string `json:"setter,omitempty"`
	Initial string `json:"initial,omitempty"`
	// Kind is the primitive kind inferred syntactically from the initializer:
	// string, boolean, number, object, array.
	Kind string `json:"kind,omitempty"`
	// Declaration is how the state was declared: state (reactive cell), ref,
	// reducer, form (form-library-managed), or other.
	Declaration string `json:"declaration,omitempty"`
}

// Component classification values.
const (
	ComponentForm    = "form"
	ComponentAction  = "action"
	ComponentDisplay = "display"
	ComponentMixed   = "mixed"
)

// ComponentInfo is one discovered component, or the whole file for markup input.
type ComponentInfo struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Elements []*UIElement    `json:"elements"`
	Handlers []EventHandler  `json:"handlers"`
	State    []StateVariable `json:"state,omitempty"`
	Props    []string        `json:"props,omitempty"`
}

// ComponentAnalysis is the result of one parse pass over one file.
type ComponentAnalysis struct {
	File       string          `json:"file"`
	Framework  Framework       `json:"framework"`
	Components []ComponentInfo `json:"components"`
}

// SelectorStrategy is one scored way to locate an element at invocation time.
// A UIElement's fallback list is always sorted descending by score.
type SelectorStrategy struct {
	Strategy string  `json:"strategy"`
	Value    string  `json:"value"`
	Score    float64 `json:"score"`
}

// Selector strategy kinds.
const (
	StrategyHookAttribute = "hook-attribute"
	StrategyTestID        = "test-id"
	StrategyLabelText     = "label-text"
	StrategyRoleBased     = "role-based"
	StrategyRawCSS        = "raw-css"
)

// ProbeElement is one live DOM node found by the runtime probe.
type ProbeElement struct {
	Tag            string            `json:"tag"`
	ID             string            `json:"id,omitempty"`
	Name           string            `json:"name,omitempty"`
	InputType      string            `json:"input_type,omitempty"`
	AccessibleName string            `json:"accessible_name,omitempty"`
	Role           string            `json:"role,omitempty"`
	Selector       string            `json:"selector"`
	X              float64           `json:"x"`
	Y              float64           `json:"y"`
	Width          float64           `json:"width"`
	Height         float64           `json:"height"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	Interactive    bool              `json:"interactive"`
}

// classifyComponent derives the component type from its elements and handlers.
func classifyComponent(elements []*UIElement, handlers []EventHandler) string {
	hasForm := false
	hasInput := false
	hasButton := false
	for _, el := range elements {
		switch el.Tag {
		case "form":
			hasForm = true
		case "input", "select", "textarea":
			hasInput = true
		case "button":
			hasButton = true
		}
	}
	hasSubmit := false
	for _, h := range handlers {
		if h.Event == "submit" {
			hasSubmit = true
		}
	}

	switch {
	case (hasForm || hasSubmit) && hasInput:
		return ComponentForm
	case hasButton && !hasInput:
		return ComponentAction
	case hasInput || hasButton:
		return ComponentMixed
	default:
		return ComponentDisplay
	}
}
