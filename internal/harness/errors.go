package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/lancet/internal/browser"
)

// ErrScenarioFatal matches every harness error with errors.Is. Any of them
// aborts the remaining steps of the scenario that hit it.
var ErrScenarioFatal = errors.New("scenario failed")

// Sentinels for errors.Is on the typed errors below.
var (
	ErrNavigation       = errors.New("navigation failed")
	ErrAction           = errors.New("target not actionable")
	ErrInvalidFile      = errors.New("invalid file")
	ErrDialogNotHandled = errors.New("dialog not handled")
	ErrDialogMismatch   = errors.New("dialog mismatch")
	ErrPopupTimeout     = errors.New("popup timeout")
	ErrAssertionTimeout = errors.New("assertion timeout")
)

var (
	// ErrScenarioTimeout is wrapped when a scenario outlives runner.scenario_timeout.
	ErrScenarioTimeout = errors.New("scenario timed out")
	// ErrScenarioPanic is wrapped when a scenario function panics.
	ErrScenarioPanic = errors.New("scenario panicked")
	// ErrDialogConsumed is returned when responding to a registration that already fired.
	ErrDialogConsumed = errors.New("dialog registration already consumed")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrControllerClosed is returned by Open after teardown started.
	ErrControllerClosed = errors.New("controller closed")
)

// Action failure reasons.
const (
	ReasonNotFound       = "not found"
	ReasonDetached       = "detached"
	ReasonNotVisible     = "not visible"
	ReasonNotEnabled     = "not enabled"
	ReasonStateUnchanged = "state did not change"
	ReasonTransport      = "transport error"
)

// NavigationError reports a failed page load.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}
func (e *NavigationError) Unwrap() error { return e.Err }
func (e *NavigationError) Is(target error) bool {
	return target == ErrNavigation || target == ErrScenarioFatal
}

// ActionError reports a target that never became actionable or an
// interaction the transport refused.
type ActionError struct {
	Action  string
	Locator string
	Reason  string
	Err     error
}

func (e *ActionError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Action, e.Locator, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}
func (e *ActionError) Unwrap() error { return e.Err }
func (e *ActionError) Is(target error) bool {
	return target == ErrAction || target == ErrScenarioFatal
}

// InvalidFileError reports an upload path that is not a readable regular file.
type InvalidFileError struct {
	Path string
	Err  error
}

func (e *InvalidFileError) Error() string {
	return fmt.Sprintf("invalid file %q: %v", e.Path, e.Err)
}
func (e *InvalidFileError) Unwrap() error { return e.Err }
func (e *InvalidFileError) Is(target error) bool {
	return target == ErrInvalidFile || target == ErrScenarioFatal
}

// DialogInfo describes a dialog the page actually opened.
type DialogInfo struct {
	Type    browser.DialogType
	Message string
}

func (d DialogInfo) String() string {
	return fmt.Sprintf("%s %q", d.Type, d.Message)
}

// DialogNotHandledError reports either a registration that never fired
// (Expected set) or a dialog that fired with no registration (Unexpected set).
type DialogNotHandledError struct {
	Expected   *DialogExpectation
	Unexpected *DialogInfo
}

func (e *DialogNotHandledError) Error() string {
	switch {
	case e.Unexpected != nil:
		return fmt.Sprintf("dialog not handled: unexpected %s dialog was dismissed", e.Unexpected)
	case e.Expected != nil:
		return fmt.Sprintf("dialog not handled: expected %s never appeared", e.Expected)
	default:
		return "dialog not handled"
	}
}
func (e *DialogNotHandledError) Is(target error) bool {
	return target == ErrDialogNotHandled || target == ErrScenarioFatal
}

// DialogMismatchError reports a dialog whose type or message differed from
// the registration that consumed it.
type DialogMismatchError struct {
	Expected DialogExpectation
	Actual   DialogInfo
}

func (e *DialogMismatchError) Error() string {
	return fmt.Sprintf("dialog mismatch: expected %s, got %s", e.Expected, e.Actual)
}
func (e *DialogMismatchError) Is(target error) bool {
	return target == ErrDialogMismatch || target == ErrScenarioFatal
}

// PopupTimeoutError reports an expected popup that was not observed in time,
// or never awaited at all when Timeout is zero.
type PopupTimeoutError struct {
	Timeout time.Duration
}

func (e *PopupTimeoutError) Error() string {
	if e.Timeout == 0 {
		return "popup timeout: expected popup was never awaited"
	}
	return fmt.Sprintf("popup timeout: no new page opened within %s", e.Timeout)
}
func (e *PopupTimeoutError) Is(target error) bool {
	return target == ErrPopupTimeout || target == ErrScenarioFatal
}

// AssertionTimeoutError reports a predicate that never held.
type AssertionTimeoutError struct {
	Locator      string
	Predicate    string
	LastObserved any
	Timeout      time.Duration
}

func (e *AssertionTimeoutError) Error() string {
	subject := e.Locator
	if subject == "" {
		subject = "value"
	}
	return fmt.Sprintf("assertion timeout after %s: expected %s to be %s, last observed %v",
		e.Timeout, subject, e.Predicate, e.LastObserved)
}
func (e *AssertionTimeoutError) Is(target error) bool {
	return target == ErrAssertionTimeout || target == ErrScenarioFatal
}

// Classify maps a scenario error to the short failure class used in reports
// and metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrScenarioTimeout):
		return "timeout"
	case errors.Is(err, ErrScenarioPanic):
		return "panic"
	case errors.Is(err, ErrInvalidFile):
		return "invalid_file"
	case errors.Is(err, ErrNavigation):
		return "navigation"
	case errors.Is(err, ErrDialogNotHandled):
		return "dialog_not_handled"
	case errors.Is(err, ErrDialogMismatch):
		return "dialog_mismatch"
	case errors.Is(err, ErrPopupTimeout):
		return "popup_timeout"
	case errors.Is(err, ErrAssertionTimeout):
		return "assertion_timeout"
	case errors.Is(err, ErrAction):
		return "action"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// joinErrors is errors.Join that returns a lone error unchanged.
func joinErrors(errs ...error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return errors.Join(kept...)
}

// firstLine trims multi-error messages for single line log and report output.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
