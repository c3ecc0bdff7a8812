package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
)

// DialogAction is the answer given to an expected dialog.
type DialogAction string

const (
	DialogAccept         DialogAction = "accept"
	DialogAcceptWithText DialogAction = "accept_with_text"
	DialogDismiss        DialogAction = "dismiss"
)

// DialogExpectation describes a dialog a scenario is about to trigger and
// how to answer it. Empty Type or Message match anything.
type DialogExpectation struct {
	Type    browser.DialogType `json:"type,omitempty" yaml:"type,omitempty"`
	Message string             `json:"message,omitempty" yaml:"message,omitempty"`
	Action  DialogAction       `json:"action,omitempty" yaml:"action,omitempty"`
	Text    string             `json:"text,omitempty" yaml:"text,omitempty"`
}

func (e DialogExpectation) String() string {
	typ := string(e.Type)
	if typ == "" {
		typ = "any"
	}
	if e.Message == "" {
		return typ
	}
	return fmt.Sprintf("%s %q", typ, e.Message)
}

func (e DialogExpectation) matches(info DialogInfo) bool {
	if e.Type != "" && e.Type != info.Type {
		return false
	}
	return e.Message == "" || e.Message == info.Message
}

func validAction(a DialogAction) bool {
	switch a {
	case DialogAccept, DialogAcceptWithText, DialogDismiss:
		return true
	}
	return false
}

// PendingDialog is a one shot registration. The first dialog the session
// raises after registration consumes it; later dialogs need their own.
type PendingDialog struct {
	session *Session
	done    chan struct{}

	mu        sync.Mutex
	expect    DialogExpectation
	consumed  bool
	withdrawn bool
	observed  *DialogInfo
}

// ExpectDialog registers the answer for the next dialog this session raises.
// Registrations queue in order, each consumed by exactly one dialog.
func (s *Session) ExpectDialog(exp DialogExpectation) (*PendingDialog, error) {
	if exp.Action == "" {
		exp.Action = DialogAccept
	}
	if !validAction(exp.Action) {
		return nil, fmt.Errorf("unknown dialog action %q", exp.Action)
	}
	pd := &PendingDialog{session: s, expect: exp, done: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("session %s: %w", s.id, ErrSessionClosed)
	}
	s.dialogs = append(s.dialogs, pd)
	return pd, nil
}

// RespondToDialog changes the answer of a registration that has not fired yet.
func RespondToDialog(pd *PendingDialog, action DialogAction, text string) error {
	if !validAction(action) {
		return fmt.Errorf("unknown dialog action %q", action)
	}
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.consumed || pd.withdrawn {
		return ErrDialogConsumed
	}
	pd.expect.Action = action
	pd.expect.Text = text
	return nil
}

// Expectation returns the registration as it currently stands.
func (pd *PendingDialog) Expectation() DialogExpectation {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.expect
}

// Consumed reports whether a dialog used this registration.
func (pd *PendingDialog) Consumed() bool {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	return pd.consumed
}

// Observed returns the dialog that consumed the registration.
func (pd *PendingDialog) Observed() (DialogInfo, bool) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.observed == nil {
		return DialogInfo{}, false
	}
	return *pd.observed, true
}

// Wait blocks until the registration is consumed and answered, then surfaces
// any dialog fault of the session. A dialog that does not arrive within the
// dialog timeout withdraws the registration and yields DialogNotHandledError.
func (pd *PendingDialog) Wait(ctx context.Context) error {
	timer := time.NewTimer(pd.session.timeouts().Dialog)
	defer timer.Stop()

	select {
	case <-pd.done:
		return pd.session.takeFaults()
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	if !pd.session.removeDialog(pd) || !pd.withdraw() {
		// Lost the race against the handler; the answer is on its way.
		select {
		case <-pd.done:
			return pd.session.takeFaults()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	exp := pd.Expectation()
	return &DialogNotHandledError{Expected: &exp}
}

// consume claims the registration for info and returns the answer to give.
func (pd *PendingDialog) consume(info DialogInfo) (DialogExpectation, bool) {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.consumed || pd.withdrawn {
		return DialogExpectation{}, false
	}
	pd.consumed = true
	pd.observed = &info
	return pd.expect, true
}

func (pd *PendingDialog) finish() { close(pd.done) }

// withdraw retires an unconsumed registration. Reports false when a dialog
// already consumed it.
func (pd *PendingDialog) withdraw() bool {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.consumed || pd.withdrawn {
		return false
	}
	pd.withdrawn = true
	return true
}

func (s *Session) removeDialog(pd *PendingDialog) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.dialogs {
		if p == pd {
			s.dialogs = append(s.dialogs[:i], s.dialogs[i+1:]...)
			return true
		}
	}
	return false
}

// nextDialog pops the oldest live registration.
func (s *Session) nextDialog(info DialogInfo) (*PendingDialog, DialogExpectation, bool) {
	for {
		s.mu.Lock()
		if len(s.dialogs) == 0 {
			s.mu.Unlock()
			return nil, DialogExpectation{}, false
		}
		pd := s.dialogs[0]
		s.dialogs = s.dialogs[1:]
		s.mu.Unlock()

		if exp, ok := pd.consume(info); ok {
			return pd, exp, true
		}
	}
}

// handleDialog runs on the transport's goroutine for every native dialog.
// Faults are recorded before the dialog is answered so the action that
// triggered it observes them when it returns.
func (s *Session) handleDialog(d browser.Dialog) {
	info := DialogInfo{Type: d.Type(), Message: d.Message()}
	metrics := s.ctrl.opts.Metrics

	pd, exp, ok := s.nextDialog(info)
	if !ok {
		s.addFault(&DialogNotHandledError{Unexpected: &info})
		s.logger.Warn("Unexpected dialog dismissed.", zap.Stringer("dialog", info))
		metrics.DialogObserved(info.Type, "unexpected")
		if err := d.Dismiss(); err != nil {
			s.logger.Debug("Failed to dismiss dialog.", zap.Error(err))
		}
		return
	}

	var mismatch error
	if !exp.matches(info) {
		mismatch = &DialogMismatchError{Expected: exp, Actual: info}
		s.addFault(mismatch)
		s.logger.Warn("Dialog did not match its registration.", zap.Stringer("expected", exp), zap.Stringer("actual", info))
		metrics.DialogObserved(info.Type, "mismatch")
	}

	var err error
	switch exp.Action {
	case DialogDismiss:
		err = d.Dismiss()
	case DialogAcceptWithText:
		err = d.Accept(exp.Text)
	default:
		err = d.Accept("")
	}
	if err != nil {
		err = &ActionError{Action: "respond_dialog", Locator: info.String(), Reason: ReasonTransport, Err: err}
		s.addFault(err)
	} else if mismatch == nil {
		metrics.DialogObserved(info.Type, string(exp.Action))
	}
	s.logger.Debug("Dialog answered.", zap.Stringer("dialog", info), zap.String("action", string(exp.Action)))
	pd.finish()
}
