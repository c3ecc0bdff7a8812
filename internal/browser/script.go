package browser

import (
	_ "embed"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ResolverSource is a JavaScript function expression taking one ScriptRequest.
// Every real transport evaluates it so locator semantics match across engines.
//
//go:embed resolve.js
var ResolverSource string

// Script operations understood by ResolverSource.
const (
	OpInspect   = "inspect"
	OpAttribute = "attribute"
	OpPoint     = "point"
	OpElement   = "element"
	OpMark      = "mark"
	OpUnmark    = "unmark"
	OpDrag      = "drag"
	OpHTML      = "html"
)

// MarkAttribute tags an element so a driver can address it with its own
// selector engine after the resolver found it.
const MarkAttribute = "data-lancet-target"

// ScriptRequest is the argument passed to ResolverSource.
type ScriptRequest struct {
	Op     string `json:"op"`
	Query  Query  `json:"query"`
	Target Query  `json:"target,omitempty"`
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
}

// AttributeResult is returned by OpAttribute.
type AttributeResult struct {
	Found   bool   `json:"found"`
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

// PointResult is returned by OpPoint, in CSS pixels relative to the viewport.
type PointResult struct {
	Found bool    `json:"found"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// FoundResult is returned by OpMark, OpUnmark, OpDrag and OpHTML.
type FoundResult struct {
	Found bool   `json:"found"`
	Value string `json:"value,omitempty"`
}

// Expression returns a self contained expression that applies ResolverSource to req.
func Expression(req ScriptRequest) (string, error) {
	arg, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode script request: %w", err)
	}
	return fmt.Sprintf("(%s)(%s)", ResolverSource, arg), nil
}

// ToArgument converts req into the generic map form drivers that serialize
// arguments themselves expect.
func ToArgument(req ScriptRequest) (map[string]any, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode script request: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to convert script request: %w", err)
	}
	return out, nil
}

// DecodeResult converts a generically decoded script result into out.
func DecodeResult(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to re-encode script result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode script result: %w", err)
	}
	return nil
}
