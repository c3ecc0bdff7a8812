package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/xkilldash9x/lancet/internal/browser"
)

// Predicate is a condition on a located element. Predicates are evaluated
// against fresh state on every poll.
type Predicate struct {
	name string
	eval func(ctx context.Context, l *Locator) (ok bool, observed any, err error)
}

func (p Predicate) String() string { return p.name }

func stateOf(ctx context.Context, l *Locator) (browser.ElementState, error) {
	return l.session.page.Inspect(ctx, l.query)
}

// IsVisible holds when the target exists and is rendered.
func IsVisible() Predicate {
	return Predicate{name: "visible", eval: func(ctx context.Context, l *Locator) (bool, any, error) {
		st, err := stateOf(ctx, l)
		if err != nil {
			return false, nil, err
		}
		switch {
		case !st.Found():
			return false, "not found", nil
		case st.Visible:
			return true, "visible", nil
		default:
			return false, "hidden", nil
		}
	}}
}

// ContainsText holds when the target's normalized text contains sub.
func ContainsText(sub string) Predicate {
	return Predicate{name: fmt.Sprintf("containing text %q", sub), eval: func(ctx context.Context, l *Locator) (bool, any, error) {
		st, err := stateOf(ctx, l)
		if err != nil {
			return false, nil, err
		}
		if !st.Found() {
			return false, "not found", nil
		}
		return strings.Contains(st.Text, sub), st.Text, nil
	}}
}

// HasText holds when the target's normalized text equals text.
func HasText(text string) Predicate {
	return Predicate{name: fmt.Sprintf("with text %q", text), eval: func(ctx context.Context, l *Locator) (bool, any, error) {
		st, err := stateOf(ctx, l)
		if err != nil {
			return false, nil, err
		}
		if !st.Found() {
			return false, "not found", nil
		}
		return st.Text == text, st.Text, nil
	}}
}

// IsChecked holds when the target checkbox or radio is checked.
func IsChecked() Predicate {
	return Predicate{name: "checked", eval: func(ctx context.Context, l *Locator) (bool, any, error) {
		st, err := stateOf(ctx, l)
		if err != nil {
			return false, nil, err
		}
		switch {
		case !st.Found():
			return false, "not found", nil
		case st.Checked:
			return true, "checked", nil
		default:
			return false, "unchecked", nil
		}
	}}
}

// HasAttribute holds when the target carries name with exactly value.
func HasAttribute(name, value string) Predicate {
	return Predicate{name: fmt.Sprintf("with %s=%q", name, value), eval: func(ctx context.Context, l *Locator) (bool, any, error) {
		v, ok, err := l.session.page.Attribute(ctx, l.query, name)
		switch {
		case errors.Is(err, browser.ErrElementNotFound):
			return false, "not found", nil
		case err != nil:
			return false, nil, err
		case !ok:
			return false, "absent", nil
		}
		return v == value, v, nil
	}}
}

// HasCount holds when the query matches exactly n elements.
func HasCount(n int) Predicate {
	return Predicate{name: fmt.Sprintf("matching %d elements", n), eval: func(ctx context.Context, l *Locator) (bool, any, error) {
		st, err := stateOf(ctx, l)
		if err != nil {
			return false, nil, err
		}
		return st.Count == n, st.Count, nil
	}}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return Predicate{name: "not " + p.name, eval: func(ctx context.Context, l *Locator) (bool, any, error) {
		ok, observed, err := p.eval(ctx, l)
		return !ok, observed, err
	}}
}

// Assert polls p against l until it holds or timeout elapses. A zero timeout
// uses the assertion default.
func Assert(ctx context.Context, l *Locator, p Predicate, timeout time.Duration) error {
	s := l.session
	if err := s.usable(); err != nil {
		return err
	}
	s.ctrl.transition(StateAsserting)

	t := s.timeouts()
	if timeout <= 0 {
		timeout = t.Assertion
	}

	var observed any = "nothing"
	err := poll(ctx, timeout, t.PollInterval, func(pctx context.Context) (bool, error) {
		ok, obs, err := p.eval(pctx, l)
		if err != nil {
			if errors.Is(err, browser.ErrPageClosed) {
				return false, err
			}
			return false, nil
		}
		observed = obs
		return ok, nil
	})
	switch {
	case err == nil:
		return s.takeFaults()
	case errors.Is(err, errPollTimeout):
		return &AssertionTimeoutError{Locator: l.String(), Predicate: p.String(), LastObserved: observed, Timeout: timeout}
	case errors.Is(err, browser.ErrPageClosed):
		return &ActionError{Action: "assert", Locator: l.String(), Reason: ReasonDetached, Err: err}
	default:
		return err
	}
}

// ValuePredicate is a condition on a plain value.
type ValuePredicate struct {
	name string
	test func(v any) bool
}

func (p ValuePredicate) String() string { return p.name }

// Equals holds when the value is deeply equal to want.
func Equals(want any) ValuePredicate {
	return ValuePredicate{name: fmt.Sprintf("equal to %#v", want), test: func(v any) bool {
		return reflect.DeepEqual(v, want)
	}}
}

// Contains holds when the value's string form contains sub.
func Contains(sub string) ValuePredicate {
	return ValuePredicate{name: fmt.Sprintf("containing %q", sub), test: func(v any) bool {
		return strings.Contains(fmt.Sprint(v), sub)
	}}
}

// Occurrences holds when sub appears exactly n times in the value's string
// form.
func Occurrences(sub string, n int) ValuePredicate {
	return ValuePredicate{name: fmt.Sprintf("containing %q %d time(s)", sub, n), test: func(v any) bool {
		return strings.Count(fmt.Sprint(v), sub) == n
	}}
}

// NotValue inverts p.
func NotValue(p ValuePredicate) ValuePredicate {
	return ValuePredicate{name: "not " + p.name, test: func(v any) bool { return !p.test(v) }}
}

// AssertValue polls get until its value satisfies p or timeout elapses.
// Errors from get are retried until the timeout. It paces itself with
// DefaultTimeouts; scenarios should prefer Controller.AssertValue, which
// follows the configured assertion timeout and poll interval.
func AssertValue(ctx context.Context, get func(ctx context.Context) (any, error), p ValuePredicate, timeout time.Duration) error {
	return assertValue(ctx, DefaultTimeouts(), get, p, timeout)
}

// AssertValue is the package AssertValue paced by the controller's timeouts.
// A zero timeout uses timeouts.assertion.
func (c *Controller) AssertValue(ctx context.Context, get func(ctx context.Context) (any, error), p ValuePredicate, timeout time.Duration) error {
	return assertValue(ctx, c.opts.Timeouts, get, p, timeout)
}

func assertValue(ctx context.Context, t Timeouts, get func(ctx context.Context) (any, error), p ValuePredicate, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = t.Assertion
	}
	var observed any = "nothing"
	err := poll(ctx, timeout, t.PollInterval, func(pctx context.Context) (bool, error) {
		v, err := get(pctx)
		if err != nil {
			observed = err
			return false, nil
		}
		observed = v
		return p.test(v), nil
	})
	if errors.Is(err, errPollTimeout) {
		return &AssertionTimeoutError{Predicate: p.String(), LastObserved: observed, Timeout: timeout}
	}
	return err
}
