// Package suite loads declarative YAML scenario files and compiles them into
// harness scenarios.
package suite

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/harness"
)

// DefaultSession names the session a step targets when it gives no `on:`.
const DefaultSession = "main"

// File is one parsed suite file.
type File struct {
	Path        string         `yaml:"-"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Scenarios   []ScenarioSpec `yaml:"scenarios"`
}

// ScenarioSpec is one declarative scenario.
type ScenarioSpec struct {
	Line        int      `yaml:"-"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Steps       []Step   `yaml:"-"`
}

// LocatorSpec describes an element. A plain string is shorthand for css.
type LocatorSpec struct {
	CSS  string       `yaml:"css"`
	Role string       `yaml:"role"`
	Name string       `yaml:"name"`
	Text string       `yaml:"text"`
	Nth  *int         `yaml:"nth"`
	In   *LocatorSpec `yaml:"in"`
}

// UnmarshalYAML accepts either a selector string or a mapping.
func (l *LocatorSpec) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		l.CSS = n.Value
		return nil
	}
	type plain LocatorSpec
	return n.Decode((*plain)(l))
}

func (l LocatorSpec) validate() error {
	kinds := 0
	for _, set := range []bool{l.CSS != "", l.Role != "", l.Text != ""} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return errors.New("locator needs exactly one of css, role or text")
	}
	if l.Name != "" && l.Role == "" {
		return errors.New("locator name is only valid with role")
	}
	if l.In != nil {
		return l.In.validate()
	}
	return nil
}

// Query converts l into a transport query.
func (l LocatorSpec) Query() browser.Query {
	var q browser.Query
	if l.In != nil {
		q = l.In.Query()
	}
	var step browser.Step
	switch {
	case l.CSS != "":
		step = browser.Step{Kind: browser.StepCSS, Selector: l.CSS}
	case l.Role != "":
		step = browser.Step{Kind: browser.StepRole, Role: l.Role, Name: l.Name}
	default:
		step = browser.Step{Kind: browser.StepText, Name: l.Text}
	}
	step.Nth = l.Nth
	return q.With(step)
}

// UploadSpec is the argument of set_input_files.
type UploadSpec struct {
	Locator LocatorSpec `yaml:"locator"`
	Files   []string    `yaml:"files"`
}

// DragSpec is the argument of drag.
type DragSpec struct {
	From LocatorSpec `yaml:"from"`
	To   LocatorSpec `yaml:"to"`
}

// AttributeSpec asserts an attribute value.
type AttributeSpec struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// ExpectSpec is an assertion over one locator. Every predicate given is
// checked in turn; not negates each of them.
type ExpectSpec struct {
	Locator      LocatorSpec    `yaml:"locator"`
	Visible      *bool          `yaml:"visible"`
	ContainsText *string        `yaml:"contains_text"`
	Text         *string        `yaml:"text"`
	Checked      *bool          `yaml:"checked"`
	Count        *int           `yaml:"count"`
	Attribute    *AttributeSpec `yaml:"attribute"`
	Not          bool           `yaml:"not"`
	Timeout      time.Duration  `yaml:"timeout"`
}

// Step is one instruction. Exactly one action field is set.
type Step struct {
	Line int `yaml:"-"`
	// On names the session the step acts on.
	On string `yaml:"on"`
	// As names what the step creates: a session for goto, a registration
	// for expect_dialog and expect_popup.
	As string `yaml:"as"`

	Goto          string                     `yaml:"goto"`
	Click         *LocatorSpec               `yaml:"click"`
	Hover         *LocatorSpec               `yaml:"hover"`
	Check         *LocatorSpec               `yaml:"check"`
	Uncheck       *LocatorSpec               `yaml:"uncheck"`
	SetInputFiles *UploadSpec                `yaml:"set_input_files"`
	Drag          *DragSpec                  `yaml:"drag"`
	ExpectDialog  *harness.DialogExpectation `yaml:"expect_dialog"`
	WaitDialog    string                     `yaml:"wait_dialog"`
	ExpectPopup   bool                       `yaml:"expect_popup"`
	WaitPopup     string                     `yaml:"wait_popup"`
	BringToFront  bool                       `yaml:"bring_to_front"`
	Close         bool                       `yaml:"close"`
	Expect        *ExpectSpec                `yaml:"expect"`
	CheckDialogs  bool                       `yaml:"check_dialogs"`
}

// Kind names the action the step performs.
func (s Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) == 1 {
		return kinds[0]
	}
	return ""
}

func (s Step) kinds() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(s.Goto != "", "goto")
	add(s.Click != nil, "click")
	add(s.Hover != nil, "hover")
	add(s.Check != nil, "check")
	add(s.Uncheck != nil, "uncheck")
	add(s.SetInputFiles != nil, "set_input_files")
	add(s.Drag != nil, "drag")
	add(s.ExpectDialog != nil, "expect_dialog")
	add(s.WaitDialog != "", "wait_dialog")
	add(s.ExpectPopup, "expect_popup")
	add(s.WaitPopup != "", "wait_popup")
	add(s.BringToFront, "bring_to_front")
	add(s.Close, "close")
	add(s.Expect != nil, "expect")
	add(s.CheckDialogs, "check_dialogs")
	return out
}

// LineError is a validation failure tied to a place in a suite file.
type LineError struct {
	Path string
	Line int
	Msg  string
}

func (e *LineError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// Load reads and validates the suite file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open suite: %w", err)
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse decodes and validates a suite. path is used in error messages and
// to resolve relative upload paths.
func Parse(r io.Reader, path string) (*File, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}

	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%s: invalid YAML: %w", path, err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("%s: empty suite", path)
	}
	doc := root.Content[0]

	file := &File{Path: path}
	if err := doc.Decode(file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Steps are decoded node by node to keep their line numbers.
	scenarioNodes := mappingValue(doc, "scenarios")
	if scenarioNodes == nil || len(scenarioNodes.Content) == 0 {
		return nil, &LineError{Path: path, Line: doc.Line, Msg: "suite has no scenarios"}
	}
	for i, scNode := range scenarioNodes.Content {
		spec := &file.Scenarios[i]
		spec.Line = scNode.Line
		stepsNode := mappingValue(scNode, "steps")
		if stepsNode == nil || len(stepsNode.Content) == 0 {
			return nil, &LineError{Path: path, Line: scNode.Line, Msg: fmt.Sprintf("scenario %q has no steps", spec.Name)}
		}
		for _, stepNode := range stepsNode.Content {
			var st Step
			if err := stepNode.Decode(&st); err != nil {
				return nil, &LineError{Path: path, Line: stepNode.Line, Msg: err.Error()}
			}
			st.Line = stepNode.Line
			spec.Steps = append(spec.Steps, st)
		}
	}

	if err := file.validate(); err != nil {
		return nil, err
	}
	return file, nil
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// validate checks every scenario statically: one action per step, valid
// locators, and names used only after they are defined.
func (f *File) validate() error {
	seen := make(map[string]bool)
	for _, sc := range f.Scenarios {
		if strings.TrimSpace(sc.Name) == "" {
			return &LineError{Path: f.Path, Line: sc.Line, Msg: "scenario needs a name"}
		}
		if seen[sc.Name] {
			return &LineError{Path: f.Path, Line: sc.Line, Msg: fmt.Sprintf("duplicate scenario %q", sc.Name)}
		}
		seen[sc.Name] = true
		if err := f.validateSteps(sc); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) validateSteps(sc ScenarioSpec) error {
	sessions := make(map[string]bool)
	dialogs := make(map[string]bool)
	popups := make(map[string]bool)

	for _, st := range sc.Steps {
		fail := func(format string, args ...any) error {
			return &LineError{Path: f.Path, Line: st.Line, Msg: fmt.Sprintf(format, args...)}
		}
		kinds := st.kinds()
		switch len(kinds) {
		case 0:
			return fail("step has no action")
		case 1:
		default:
			return fail("step has several actions: %s", strings.Join(kinds, ", "))
		}

		on := st.On
		if on == "" {
			on = DefaultSession
		}
		kind := kinds[0]
		if kind != "goto" && kind != "wait_dialog" && kind != "wait_popup" && !sessions[on] {
			return fail("%s on unknown session %q", kind, on)
		}
		if st.As != "" && kind != "goto" && kind != "expect_dialog" && kind != "expect_popup" && kind != "wait_popup" {
			return fail("as: is not valid for %s", kind)
		}

		var locs []LocatorSpec
		switch kind {
		case "goto":
			name := on
			if st.As != "" {
				name = st.As
			}
			sessions[name] = true
		case "click":
			locs = append(locs, *st.Click)
		case "hover":
			locs = append(locs, *st.Hover)
		case "check":
			locs = append(locs, *st.Check)
		case "uncheck":
			locs = append(locs, *st.Uncheck)
		case "set_input_files":
			if len(st.SetInputFiles.Files) == 0 {
				return fail("set_input_files needs files")
			}
			locs = append(locs, st.SetInputFiles.Locator)
		case "drag":
			locs = append(locs, st.Drag.From, st.Drag.To)
		case "expect_dialog":
			switch st.ExpectDialog.Action {
			case "", harness.DialogAccept, harness.DialogAcceptWithText, harness.DialogDismiss:
			default:
				return fail("unknown dialog action %q", st.ExpectDialog.Action)
			}
			if st.As != "" {
				dialogs[st.As] = true
			}
		case "wait_dialog":
			if !dialogs[st.WaitDialog] {
				return fail("wait_dialog on unknown registration %q", st.WaitDialog)
			}
		case "expect_popup":
			if st.As == "" {
				return fail("expect_popup needs as: to name the popup")
			}
			popups[st.As] = true
		case "wait_popup":
			if !popups[st.WaitPopup] {
				return fail("wait_popup on unknown registration %q", st.WaitPopup)
			}
			name := st.WaitPopup
			if st.As != "" {
				name = st.As
			}
			sessions[name] = true
		case "expect":
			e := st.Expect
			if e.Visible == nil && e.ContainsText == nil && e.Text == nil && e.Checked == nil && e.Count == nil && e.Attribute == nil {
				return fail("expect needs at least one of visible, contains_text, text, checked, count, attribute")
			}
			if e.Attribute != nil && e.Attribute.Name == "" {
				return fail("expect attribute needs a name")
			}
			if e.Timeout < 0 {
				return fail("expect timeout must not be negative")
			}
			locs = append(locs, e.Locator)
		}
		for _, l := range locs {
			if err := l.validate(); err != nil {
				return fail("%s", err)
			}
		}
	}
	return nil
}

// resolvePath makes upload paths relative to the suite file.
func (f *File) resolvePath(p string) string {
	if filepath.IsAbs(p) || f.Path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(f.Path), p)
}
