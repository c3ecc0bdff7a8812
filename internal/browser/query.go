package browser

import (
	"fmt"
	"strings"
)

// StepKind selects how a Step finds elements.
type StepKind string

const (
	StepCSS  StepKind = "css"
	StepRole StepKind = "role"
	StepText StepKind = "text"
)

// Step is one hop of a Query. Each step searches inside the elements
// matched by the previous step (the document for the first step).
type Step struct {
	Kind     StepKind `json:"kind"`
	Selector string   `json:"selector,omitempty"`
	Role     string   `json:"role,omitempty"`
	// Name is the accessible name for role steps and the text for text steps.
	Name  string `json:"name,omitempty"`
	Exact bool   `json:"exact,omitempty"`
	// Nth narrows the matches to one element; negative values count from the end.
	Nth *int `json:"nth,omitempty"`
}

// Query is a declarative element description. It holds no element handle and
// is resolved from scratch every time a transport evaluates it.
type Query []Step

// CSS returns a single step query for selector.
func CSS(selector string) Query {
	return Query{{Kind: StepCSS, Selector: selector}}
}

// With returns a copy of q extended by step. q itself is never modified.
func (q Query) With(step Step) Query {
	out := make(Query, len(q), len(q)+1)
	copy(out, q)
	return append(out, step)
}

// Nth returns a copy of q whose last step is narrowed to index i.
func (q Query) Nth(i int) Query {
	if len(q) == 0 {
		return q
	}
	out := make(Query, len(q))
	copy(out, q)
	idx := i
	out[len(out)-1].Nth = &idx
	return out
}

// String renders q in a Playwright like selector notation, e.g.
// `css=.figure >> nth=1 >> css=.figcaption`.
func (q Query) String() string {
	parts := make([]string, 0, len(q)*2)
	for _, s := range q {
		switch s.Kind {
		case StepCSS:
			parts = append(parts, "css="+s.Selector)
		case StepRole:
			if s.Name != "" {
				parts = append(parts, fmt.Sprintf("role=%s[name=%q]", s.Role, s.Name))
			} else {
				parts = append(parts, "role="+s.Role)
			}
		case StepText:
			parts = append(parts, fmt.Sprintf("text=%q", s.Name))
		default:
			parts = append(parts, string(s.Kind))
		}
		if s.Nth != nil {
			parts = append(parts, fmt.Sprintf("nth=%d", *s.Nth))
		}
	}
	return strings.Join(parts, " >> ")
}

// ElementState is a snapshot of the first element a Query resolves to.
type ElementState struct {
	// Count is the number of matches of the whole query.
	Count    int    `json:"count"`
	Attached bool   `json:"attached"`
	Visible  bool   `json:"visible"`
	Enabled  bool   `json:"enabled"`
	Checked  bool   `json:"checked"`
	Text     string `json:"text"`
}

// Found reports whether the query matched anything.
func (s ElementState) Found() bool { return s.Count > 0 }
