package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
)

var errStateUnchanged = errors.New("element state did not change")

// requirement lists the checks a target must pass before an action runs.
// Attachment is always required.
type requirement struct {
	visible bool
	enabled bool
}

var (
	needInteractive = requirement{visible: true, enabled: true}
	needVisible     = requirement{visible: true}
	needEnabled     = requirement{enabled: true}
	needAttached    = requirement{}
)

// waitActionable polls until the target passes req. On timeout the returned
// ActionError carries the reason of the last failed check.
func (l *Locator) waitActionable(ctx context.Context, action string, req requirement, timeout time.Duration) error {
	reason := ReasonNotFound
	var lastErr error

	err := poll(ctx, timeout, l.session.timeouts().PollInterval, func(pctx context.Context) (bool, error) {
		st, err := l.session.page.Inspect(pctx, l.query)
		if err != nil {
			if errors.Is(err, browser.ErrPageClosed) {
				return false, err
			}
			if pctx.Err() == nil {
				reason, lastErr = ReasonTransport, err
			}
			return false, nil
		}
		lastErr = nil
		switch {
		case !st.Found():
			reason = ReasonNotFound
		case !st.Attached:
			reason = ReasonDetached
		case req.visible && !st.Visible:
			reason = ReasonNotVisible
		case req.enabled && !st.Enabled:
			reason = ReasonNotEnabled
		default:
			return true, nil
		}
		return false, nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errPollTimeout):
		return &ActionError{Action: action, Locator: l.String(), Reason: reason, Err: lastErr}
	case errors.Is(err, browser.ErrPageClosed):
		return &ActionError{Action: action, Locator: l.String(), Reason: ReasonDetached, Err: err}
	default:
		return &ActionError{Action: action, Locator: l.String(), Reason: reason, Err: err}
	}
}

// act runs one interaction: surface pending faults, wait for actionability,
// perform, then surface faults the interaction itself caused (a dialog it
// opened, for instance).
func (l *Locator) act(ctx context.Context, action string, req requirement, timeout time.Duration, do func(ctx context.Context) error) (err error) {
	s := l.session
	defer func() { s.ctrl.opts.Metrics.ActionObserved(action, err) }()

	if err := s.usable(); err != nil {
		return err
	}
	s.ctrl.transition(StateActing)

	if err := l.waitActionable(ctx, action, req, timeout); err != nil {
		return err
	}

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := do(actx); err != nil {
		var ae *ActionError
		if errors.As(err, &ae) {
			return err
		}
		reason := ReasonTransport
		switch {
		case errors.Is(err, browser.ErrElementNotFound):
			reason = ReasonDetached
		case errors.Is(err, errStateUnchanged):
			reason = ReasonStateUnchanged
		}
		return &ActionError{Action: action, Locator: l.String(), Reason: reason, Err: err}
	}
	s.logger.Debug("Action performed.", zap.String("action", action), zap.Stringer("locator", l))
	return s.takeFaults()
}

// Click clicks the center of the target once it is visible and enabled.
func (l *Locator) Click(ctx context.Context) error {
	return l.act(ctx, "click", needInteractive, l.session.timeouts().Action, func(actx context.Context) error {
		return l.session.page.Click(actx, l.query)
	})
}

// Hover moves the pointer over the target once it is visible.
func (l *Locator) Hover(ctx context.Context) error {
	return l.act(ctx, "hover", needVisible, l.session.timeouts().Action, func(actx context.Context) error {
		return l.session.page.Hover(actx, l.query)
	})
}

// Check ensures the target checkbox is checked. Already checked is a no-op.
func (l *Locator) Check(ctx context.Context) error { return l.setChecked(ctx, true) }

// Uncheck ensures the target checkbox is unchecked.
func (l *Locator) Uncheck(ctx context.Context) error { return l.setChecked(ctx, false) }

func (l *Locator) setChecked(ctx context.Context, want bool) error {
	action := "uncheck"
	if want {
		action = "check"
	}
	page := l.session.page
	return l.act(ctx, action, needInteractive, l.session.timeouts().Action, func(actx context.Context) error {
		st, err := page.Inspect(actx, l.query)
		if err != nil {
			return err
		}
		if st.Checked == want {
			return nil
		}
		if err := page.SetChecked(actx, l.query, want); err != nil {
			return err
		}
		after, err := page.Inspect(actx, l.query)
		if err != nil {
			return err
		}
		if after.Checked != want {
			return errStateUnchanged
		}
		return nil
	})
}

// GetAttribute reads an attribute of the target. ok is false when the
// element exists but has no such attribute.
func (l *Locator) GetAttribute(ctx context.Context, name string) (value string, ok bool, err error) {
	err = l.act(ctx, "get_attribute", needAttached, l.session.timeouts().Action, func(actx context.Context) error {
		var aerr error
		value, ok, aerr = l.session.page.Attribute(actx, l.query, name)
		return aerr
	})
	return value, ok, err
}

// SetInputFiles assigns files to a file input. Every path must name a
// readable regular file; this is checked before the browser is touched. The
// input only has to be attached and enabled since file inputs are commonly
// hidden behind a styled label.
func (l *Locator) SetInputFiles(ctx context.Context, paths ...string) error {
	abs, err := validateFiles(paths)
	if err != nil {
		l.session.ctrl.opts.Metrics.ActionObserved("set_input_files", err)
		return err
	}
	return l.act(ctx, "set_input_files", needEnabled, l.session.timeouts().Upload, func(actx context.Context) error {
		return l.session.page.SetInputFiles(actx, l.query, abs)
	})
}

// ValidateFiles reports the first path that is not a readable regular file.
func ValidateFiles(paths ...string) error {
	_, err := validateFiles(paths)
	return err
}

func validateFiles(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, &InvalidFileError{Err: errors.New("no files given")}
	}
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		full, err := filepath.Abs(p)
		if err != nil {
			return nil, &InvalidFileError{Path: p, Err: err}
		}
		info, err := os.Stat(full)
		if err != nil {
			return nil, &InvalidFileError{Path: p, Err: err}
		}
		if !info.Mode().IsRegular() {
			return nil, &InvalidFileError{Path: p, Err: fmt.Errorf("not a regular file (%s)", info.Mode().Type())}
		}
		f, err := os.Open(full)
		if err != nil {
			return nil, &InvalidFileError{Path: p, Err: err}
		}
		_ = f.Close()
		abs = append(abs, full)
	}
	return abs, nil
}

// SimulateDragDrop drags source onto target by dispatching the HTML5 drag
// event sequence with one shared DataTransfer. Pointer driven drags do not
// fire HTML5 drag events in every engine, so no mouse input is used.
func SimulateDragDrop(ctx context.Context, source, target *Locator) error {
	if source.session != target.session {
		return &ActionError{Action: "drag", Locator: source.String(), Reason: "target belongs to another session"}
	}
	return source.act(ctx, "drag", needVisible, source.session.timeouts().Action, func(actx context.Context) error {
		if err := target.waitActionable(actx, "drag", needVisible, source.session.timeouts().Action); err != nil {
			return err
		}
		return source.session.page.DispatchDrag(actx, source.query, target.query)
	})
}
