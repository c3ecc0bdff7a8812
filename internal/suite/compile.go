package suite

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/lancet/internal/harness"
)

// Compile turns every scenario of f into a harness scenario. Relative goto
// targets are joined to baseURL.
func (f *File) Compile(baseURL string) []harness.Scenario {
	out := make([]harness.Scenario, 0, len(f.Scenarios))
	for _, spec := range f.Scenarios {
		spec := spec
		name := spec.Name
		if f.Name != "" {
			name = f.Name + "/" + spec.Name
		}
		out = append(out, harness.Scenario{
			Name:        name,
			Description: spec.Description,
			Tags:        spec.Tags,
			Run: func(ctx context.Context, c *harness.Controller) error {
				// Upload files are checked before anything is navigated.
				for _, st := range spec.Steps {
					if st.SetInputFiles == nil {
						continue
					}
					if err := harness.ValidateFiles(f.uploadPaths(st)...); err != nil {
						return fmt.Errorf("step %s at line %d: %w", st.Kind(), st.Line, err)
					}
				}
				ex := &execution{file: f, baseURL: baseURL, ctrl: c,
					sessions: make(map[string]*harness.Session),
					dialogs:  make(map[string]*harness.PendingDialog),
					popups:   make(map[string]*harness.PendingPopup),
				}
				for _, st := range spec.Steps {
					if err := ex.step(ctx, st); err != nil {
						return fmt.Errorf("step %s at line %d: %w", st.Kind(), st.Line, err)
					}
				}
				return nil
			},
		})
	}
	return out
}

// execution is the state of one scenario run.
type execution struct {
	file     *File
	baseURL  string
	ctrl     *harness.Controller
	sessions map[string]*harness.Session
	dialogs  map[string]*harness.PendingDialog
	popups   map[string]*harness.PendingPopup
}

func (ex *execution) url(target string) string {
	if strings.Contains(target, "://") {
		return target
	}
	return strings.TrimRight(ex.baseURL, "/") + "/" + strings.TrimLeft(target, "/")
}

func (f *File) uploadPaths(st Step) []string {
	paths := make([]string, len(st.SetInputFiles.Files))
	for i, p := range st.SetInputFiles.Files {
		paths[i] = f.resolvePath(p)
	}
	return paths
}

func sessionName(st Step) string {
	if st.On != "" {
		return st.On
	}
	return DefaultSession
}

func (ex *execution) locate(s *harness.Session, l LocatorSpec) *harness.Locator {
	return s.FromQuery(l.Query())
}

func (ex *execution) step(ctx context.Context, st Step) error {
	s := ex.sessions[sessionName(st)]

	switch st.Kind() {
	case "goto":
		if st.As == "" && s != nil {
			return s.Navigate(ctx, ex.url(st.Goto))
		}
		name := sessionName(st)
		if st.As != "" {
			name = st.As
		}
		ns, err := ex.ctrl.Open(ctx, ex.url(st.Goto))
		if err != nil {
			return err
		}
		ex.sessions[name] = ns
		return nil
	case "click":
		return ex.locate(s, *st.Click).Click(ctx)
	case "hover":
		return ex.locate(s, *st.Hover).Hover(ctx)
	case "check":
		return ex.locate(s, *st.Check).Check(ctx)
	case "uncheck":
		return ex.locate(s, *st.Uncheck).Uncheck(ctx)
	case "set_input_files":
		return ex.locate(s, st.SetInputFiles.Locator).SetInputFiles(ctx, ex.file.uploadPaths(st)...)
	case "drag":
		return harness.SimulateDragDrop(ctx, ex.locate(s, st.Drag.From), ex.locate(s, st.Drag.To))
	case "expect_dialog":
		pd, err := s.ExpectDialog(*st.ExpectDialog)
		if err != nil {
			return err
		}
		if st.As != "" {
			ex.dialogs[st.As] = pd
		}
		return nil
	case "wait_dialog":
		return ex.dialogs[st.WaitDialog].Wait(ctx)
	case "expect_popup":
		pp, err := s.ExpectPopup()
		if err != nil {
			return err
		}
		ex.popups[st.As] = pp
		return nil
	case "wait_popup":
		popup, err := harness.WaitForPopup(ctx, ex.popups[st.WaitPopup])
		if err != nil {
			return err
		}
		name := st.WaitPopup
		if st.As != "" {
			name = st.As
		}
		ex.sessions[name] = popup
		return nil
	case "bring_to_front":
		return s.BringToFront(ctx)
	case "close":
		return s.Close()
	case "expect":
		return ex.expect(ctx, s, st.Expect)
	case "check_dialogs":
		return s.CheckDialogs()
	}
	return fmt.Errorf("unsupported step")
}

func (ex *execution) expect(ctx context.Context, s *harness.Session, e *ExpectSpec) error {
	var preds []harness.Predicate
	if e.Visible != nil {
		p := harness.IsVisible()
		if !*e.Visible {
			p = harness.Not(p)
		}
		preds = append(preds, p)
	}
	if e.ContainsText != nil {
		preds = append(preds, harness.ContainsText(*e.ContainsText))
	}
	if e.Text != nil {
		preds = append(preds, harness.HasText(*e.Text))
	}
	if e.Checked != nil {
		p := harness.IsChecked()
		if !*e.Checked {
			p = harness.Not(p)
		}
		preds = append(preds, p)
	}
	if e.Count != nil {
		preds = append(preds, harness.HasCount(*e.Count))
	}
	if e.Attribute != nil {
		preds = append(preds, harness.HasAttribute(e.Attribute.Name, e.Attribute.Value))
	}

	l := ex.locate(s, e.Locator)
	for _, p := range preds {
		if e.Not {
			p = harness.Not(p)
		}
		if err := harness.Assert(ctx, l, p, e.Timeout); err != nil {
			return err
		}
	}
	return nil
}
