package harness_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/browser/fakebrowser"
	"github.com/xkilldash9x/lancet/internal/harness"
	"github.com/xkilldash9x/lancet/internal/testing/demosite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const origin = fakebrowser.DefaultOrigin

func fastOptions() harness.Options {
	return harness.Options{Timeouts: harness.Timeouts{
		Navigation:   time.Second,
		Action:       300 * time.Millisecond,
		Assertion:    300 * time.Millisecond,
		Popup:        300 * time.Millisecond,
		Dialog:       300 * time.Millisecond,
		Upload:       300 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}}
}

type fixture struct {
	browser *fakebrowser.Browser
	ctrl    *harness.Controller
}

func setup(t *testing.T) *fixture {
	t.Helper()
	b := fakebrowser.New(demosite.NewFakeSite())
	b.DialogWait = time.Second
	f := &fixture{browser: b, ctrl: harness.NewController(b, fastOptions(), zap.NewNop())}
	t.Cleanup(func() {
		_ = f.ctrl.Close()
		_ = b.Close()
	})
	return f
}

func (f *fixture) open(t *testing.T, path string) *harness.Session {
	t.Helper()
	s, err := f.ctrl.Open(context.Background(), origin+path)
	require.NoError(t, err)
	return s
}

func TestOpenNavigatesFreshSession(t *testing.T) {
	f := setup(t)
	s := f.open(t, "/checkboxes")

	assert.Equal(t, origin+"/checkboxes", s.URL())
	assert.Equal(t, harness.StateNavigated, f.ctrl.State())
	assert.Equal(t, 1, f.browser.OpenPages())

	_, err := f.ctrl.Open(context.Background(), origin+"/nope")
	var navErr *harness.NavigationError
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, origin+"/nope", navErr.URL)
	assert.ErrorIs(t, err, harness.ErrScenarioFatal)
	assert.Equal(t, 1, f.browser.OpenPages(), "the failed session is closed again")

	require.NoError(t, f.ctrl.Close())
	assert.Zero(t, f.browser.OpenPages())
	assert.NoError(t, f.ctrl.Close(), "close is idempotent")

	_, err = f.ctrl.Open(context.Background(), origin+"/checkboxes")
	assert.ErrorIs(t, err, harness.ErrControllerClosed)
}

func TestStateHistory(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/checkboxes")

	box := s.Locate(`input[type="checkbox"]`, 0)
	require.NoError(t, box.Check(ctx))
	require.NoError(t, harness.Assert(ctx, box, harness.IsChecked(), 0))
	require.NoError(t, f.ctrl.Close())
	assert.Equal(t, harness.StatePassed, f.ctrl.Finish(nil))

	assert.Equal(t, []harness.State{
		harness.StateCreated,
		harness.StateNavigated,
		harness.StateActing,
		harness.StateAsserting,
		harness.StateClosed,
		harness.StatePassed,
	}, f.ctrl.History())
}

func TestCheckAndUncheck(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/checkboxes")

	first := s.Locate(`input[type="checkbox"]`, 0)
	second := s.Locate(`input[type="checkbox"]`, 1)

	require.NoError(t, harness.Assert(ctx, first, harness.Not(harness.IsChecked()), 0))
	require.NoError(t, harness.Assert(ctx, second, harness.IsChecked(), 0))

	require.NoError(t, first.Check(ctx))
	require.NoError(t, first.Check(ctx), "checking twice is a no-op")
	require.NoError(t, second.Uncheck(ctx))

	require.NoError(t, harness.Assert(ctx, first, harness.IsChecked(), 0))
	require.NoError(t, harness.Assert(ctx, second, harness.Not(harness.IsChecked()), 0))
	assert.Equal(t, 2, countOps(f.browser, "set_checked"), "the repeated check never reaches the page")
}

func countOps(b *fakebrowser.Browser, verb string) int {
	n := 0
	for _, op := range b.Ops() {
		if len(op) >= len(verb) && op[:len(verb)] == verb {
			n++
		}
	}
	return n
}

func TestHoverRevealsCaption(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/hovers")

	for i := 0; i < 3; i++ {
		figure := s.Locate(".figure", i)
		caption := figure.Locator(".figcaption")

		require.NoError(t, harness.Assert(ctx, caption, harness.Not(harness.IsVisible()), 0))
		require.NoError(t, figure.Hover(ctx))
		require.NoError(t, harness.Assert(ctx, caption, harness.IsVisible(), 0))
		require.NoError(t, harness.Assert(ctx, caption.Locator("h5"), harness.ContainsText(fmt.Sprintf("name: user%d", i+1)), 0))

		link := caption.GetByRole("link", "View profile")
		href, ok, err := link.GetAttribute(ctx, "href")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("/users/%d", i+1), href)
		require.NoError(t, harness.Assert(ctx, link, harness.HasAttribute("href", href), 0))
	}

	// Only the last hovered figure shows its caption.
	require.NoError(t, harness.Assert(ctx, s.Locate(".figure", 0).Locator(".figcaption"), harness.Not(harness.IsVisible()), 0))
}

func TestGetAttributeAbsent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/hovers")

	_, ok, err := s.Locate(".figure", 0).GetAttribute(ctx, "data-missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Locate(".nothing-here").GetAttribute(ctx, "href")
	var actErr *harness.ActionError
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, harness.ReasonNotFound, actErr.Reason)
}

func TestActionErrorsCarryReason(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/hovers")

	tests := []struct {
		name    string
		locator *harness.Locator
		reason  string
	}{
		{"missing element", s.Locate("#does-not-exist"), harness.ReasonNotFound},
		{"hidden caption", s.Locate(".figcaption a", 0), harness.ReasonNotVisible},
		{"index out of range", s.Locate(".figure", 5), harness.ReasonNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			err := tt.locator.Click(ctx)
			var actErr *harness.ActionError
			require.ErrorAs(t, err, &actErr)
			assert.Equal(t, "click", actErr.Action)
			assert.Equal(t, tt.reason, actErr.Reason)
			assert.Equal(t, tt.locator.String(), actErr.Locator)
			assert.ErrorIs(t, err, harness.ErrScenarioFatal)
			assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond, "actionability is retried until the timeout")
		})
	}
}

func TestDialogResponses(t *testing.T) {
	tests := []struct {
		button string
		expect harness.DialogExpectation
		result string
	}{
		{"Click for JS Alert", harness.DialogExpectation{Type: browser.DialogAlert, Message: "I am a JS Alert", Action: harness.DialogAccept}, "You successfully clicked an alert"},
		{"Click for JS Confirm", harness.DialogExpectation{Type: browser.DialogConfirm, Action: harness.DialogAccept}, "You clicked: Ok"},
		{"Click for JS Confirm", harness.DialogExpectation{Type: browser.DialogConfirm, Action: harness.DialogDismiss}, "You clicked: Cancel"},
		{"Click for JS Prompt", harness.DialogExpectation{Type: browser.DialogPrompt, Action: harness.DialogAcceptWithText, Text: "Input test"}, "You entered: Input test"},
		{"Click for JS Prompt", harness.DialogExpectation{Type: browser.DialogPrompt, Action: harness.DialogDismiss}, "You entered: null"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.expect.Type, tt.expect.Action), func(t *testing.T) {
			ctx := context.Background()
			f := setup(t)
			s := f.open(t, "/javascript_alerts")

			pd, err := s.ExpectDialog(tt.expect)
			require.NoError(t, err)
			require.NoError(t, s.GetByRole("button", tt.button).Click(ctx))
			require.NoError(t, pd.Wait(ctx))

			assert.True(t, pd.Consumed())
			info, ok := pd.Observed()
			require.True(t, ok)
			assert.Equal(t, tt.expect.Type, info.Type)

			require.NoError(t, harness.Assert(ctx, s.Locate("#result"), harness.HasText(tt.result), 0))
			require.NoError(t, s.CheckDialogs())
		})
	}
}

func TestUnexpectedDialogFailsTriggeringAction(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/javascript_alerts")

	err := s.GetByRole("button", "Click for JS Confirm").Click(ctx)
	var dnh *harness.DialogNotHandledError
	require.ErrorAs(t, err, &dnh)
	require.NotNil(t, dnh.Unexpected)
	assert.Equal(t, browser.DialogConfirm, dnh.Unexpected.Type)
	assert.ErrorIs(t, err, harness.ErrDialogNotHandled)
	assert.ErrorIs(t, err, harness.ErrScenarioFatal)

	// The dialog was dismissed so the page did not hang.
	require.NoError(t, harness.Assert(ctx, s.Locate("#result"), harness.HasText("You clicked: Cancel"), 0))
}

func TestDialogRegistrationIsOneShot(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/javascript_alerts")
	button := s.GetByRole("button", "Click for JS Alert")

	pd, err := s.ExpectDialog(harness.DialogExpectation{Type: browser.DialogAlert})
	require.NoError(t, err)
	require.NoError(t, button.Click(ctx))
	require.NoError(t, pd.Wait(ctx))

	assert.ErrorIs(t, harness.RespondToDialog(pd, harness.DialogDismiss, ""), harness.ErrDialogConsumed)

	err = button.Click(ctx)
	assert.ErrorIs(t, err, harness.ErrDialogNotHandled, "a second dialog needs its own registration")
}

func TestRespondToDialogOverridesPendingAnswer(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/javascript_alerts")

	pd, err := s.ExpectDialog(harness.DialogExpectation{Type: browser.DialogConfirm, Action: harness.DialogAccept})
	require.NoError(t, err)
	require.NoError(t, harness.RespondToDialog(pd, harness.DialogDismiss, ""))
	assert.Error(t, harness.RespondToDialog(pd, "shrug", ""))

	require.NoError(t, s.GetByRole("button", "Click for JS Confirm").Click(ctx))
	require.NoError(t, harness.Assert(ctx, s.Locate("#result"), harness.HasText("You clicked: Cancel"), 0))
}

func TestDialogRegistrationsQueueInOrder(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/javascript_alerts")
	confirm := s.GetByRole("button", "Click for JS Confirm")

	_, err := s.ExpectDialog(harness.DialogExpectation{Type: browser.DialogConfirm, Action: harness.DialogAccept})
	require.NoError(t, err)
	_, err = s.ExpectDialog(harness.DialogExpectation{Type: browser.DialogConfirm, Action: harness.DialogDismiss})
	require.NoError(t, err)

	require.NoError(t, confirm.Click(ctx))
	require.NoError(t, harness.Assert(ctx, s.Locate("#result"), harness.HasText("You clicked: Ok"), 0))
	require.NoError(t, confirm.Click(ctx))
	require.NoError(t, harness.Assert(ctx, s.Locate("#result"), harness.HasText("You clicked: Cancel"), 0))
}

func TestDialogMismatchIsReported(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/javascript_alerts")

	_, err := s.ExpectDialog(harness.DialogExpectation{Type: browser.DialogConfirm, Action: harness.DialogAccept})
	require.NoError(t, err)

	err = s.GetByRole("button", "Click for JS Alert").Click(ctx)
	var mismatch *harness.DialogMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, browser.DialogAlert, mismatch.Actual.Type)
	assert.Equal(t, "I am a JS Alert", mismatch.Actual.Message)
}

func TestUnconsumedRegistrationReportedAtTeardown(t *testing.T) {
	f := setup(t)
	s := f.open(t, "/javascript_alerts")

	_, err := s.ExpectDialog(harness.DialogExpectation{Type: browser.DialogPrompt, Message: "never shown"})
	require.NoError(t, err)

	err = f.ctrl.Close()
	var dnh *harness.DialogNotHandledError
	require.ErrorAs(t, err, &dnh)
	require.NotNil(t, dnh.Expected)
	assert.Equal(t, "never shown", dnh.Expected.Message)
	assert.Equal(t, harness.StateFailed, f.ctrl.Finish(err))
}

func TestNavigateDiscardsUnconsumedRegistrations(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/javascript_alerts")

	_, err := s.ExpectDialog(harness.DialogExpectation{Type: browser.DialogAlert, Message: "I am a JS Alert"})
	require.NoError(t, err)

	err = s.Navigate(ctx, origin+"/javascript_alerts")
	var dnh *harness.DialogNotHandledError
	require.ErrorAs(t, err, &dnh)
	require.NotNil(t, dnh.Expected)
	assert.Equal(t, browser.DialogAlert, dnh.Expected.Type)
	assert.ErrorIs(t, err, harness.ErrDialogNotHandled)
	assert.Equal(t, 1, countOps(f.browser, "navigate"), "the failed navigation never reached the page")

	// The discarded registration must not answer the next alert.
	err = s.GetByRole("button", "Click for JS Alert").Click(ctx)
	require.ErrorAs(t, err, &dnh)
	require.NotNil(t, dnh.Unexpected)
	assert.NoError(t, f.ctrl.Close(), "nothing is reported twice at teardown")
}

func TestPendingDialogWaitTimesOut(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/javascript_alerts")

	pd, err := s.ExpectDialog(harness.DialogExpectation{Type: browser.DialogAlert})
	require.NoError(t, err)

	err = pd.Wait(ctx)
	assert.ErrorIs(t, err, harness.ErrDialogNotHandled)
	assert.ErrorIs(t, harness.RespondToDialog(pd, harness.DialogAccept, ""), harness.ErrDialogConsumed)
	assert.NoError(t, f.ctrl.Close(), "a withdrawn registration is not reported twice")
}

func TestPopupBecomesTrackedSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/windows")

	pp, err := s.ExpectPopup()
	require.NoError(t, err)
	require.NoError(t, s.GetByText("Click Here").Click(ctx))

	popup, err := harness.WaitForPopup(ctx, pp)
	require.NoError(t, err)
	assert.Same(t, s, popup.Opener())
	require.NoError(t, popup.BringToFront(ctx))
	require.NoError(t, harness.Assert(ctx, popup.Locate("h3"), harness.HasText("New Window"), 0))

	again, err := pp.Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, popup, again)

	assert.Len(t, f.ctrl.Sessions(), 2)
	assert.Equal(t, 2, f.browser.OpenPages())

	require.NoError(t, popup.Close())
	assert.Equal(t, 1, f.browser.OpenPages())
	require.NoError(t, harness.Assert(ctx, s.Locate("h3"), harness.HasText("Opening a new window"), 0))

	require.NoError(t, f.ctrl.Close())
	assert.Zero(t, f.browser.OpenPages())
}

func TestUnexpectedPopupIsClosedAtTeardown(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/windows")

	require.NoError(t, s.GetByText("Click Here").Click(ctx))
	require.Eventually(t, func() bool { return len(f.ctrl.Sessions()) == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, f.ctrl.Close())
	assert.Zero(t, f.browser.OpenPages())
}

func TestPopupTimeout(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/windows")

	pp, err := s.ExpectPopup()
	require.NoError(t, err)
	_, err = harness.WaitForPopup(ctx, pp)
	var pte *harness.PopupTimeoutError
	require.ErrorAs(t, err, &pte)
	assert.Equal(t, 300*time.Millisecond, pte.Timeout)
	assert.NoError(t, f.ctrl.Close())
}

func TestUnawaitedPopupIsReported(t *testing.T) {
	f := setup(t)
	s := f.open(t, "/windows")

	_, err := s.ExpectPopup()
	require.NoError(t, err)
	assert.ErrorIs(t, f.ctrl.Close(), harness.ErrPopupTimeout)
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return path
}

func TestUploadFlow(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/upload")
	file := writeFile(t, "jpg500kb.jpg", 1024)

	require.NoError(t, s.Locate("#file-upload").SetInputFiles(ctx, file))
	require.NoError(t, s.Locate("#file-submit").Click(ctx))
	require.NoError(t, harness.Assert(ctx, s.Locate("#uploaded-files"), harness.IsVisible(), 0))
	require.NoError(t, harness.Assert(ctx, s.Locate("#uploaded-files"), harness.HasText("jpg500kb.jpg"), 0))
}

func TestSetInputFilesRejectsBadPathsBeforeTouchingThePage(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/upload")
	good := writeFile(t, "ok.pdf", 10)

	tests := []struct {
		name  string
		paths []string
	}{
		{"missing", []string{filepath.Join(t.TempDir(), "missing.doc")}},
		{"directory", []string{t.TempDir()}},
		{"one bad among good", []string{good, filepath.Join(t.TempDir(), "nope.xls")}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Locate("#file-upload").SetInputFiles(ctx, tt.paths...)
			var ife *harness.InvalidFileError
			require.ErrorAs(t, err, &ife)
			assert.ErrorIs(t, err, harness.ErrScenarioFatal)
			assert.ErrorIs(t, harness.ValidateFiles(tt.paths...), harness.ErrInvalidFile)
		})
	}
	assert.Zero(t, countOps(f.browser, "set_input_files"))
}

func TestDragAndDropSwapsAndSwapsBack(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/drag_and_drop")
	a, b := s.Locate("#column-a"), s.Locate("#column-b")

	require.NoError(t, harness.SimulateDragDrop(ctx, a, b))
	require.NoError(t, harness.Assert(ctx, a.Locator("header"), harness.HasText("B"), 0))
	require.NoError(t, harness.Assert(ctx, b.Locator("header"), harness.HasText("A"), 0))

	require.NoError(t, harness.SimulateDragDrop(ctx, b, a))
	require.NoError(t, harness.Assert(ctx, a.Locator("header"), harness.HasText("A"), 0))
	require.NoError(t, harness.Assert(ctx, b.Locator("header"), harness.HasText("B"), 0))
}

func TestDragAcrossSessionsIsRejected(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	one := f.open(t, "/drag_and_drop")
	two := f.open(t, "/drag_and_drop")

	err := harness.SimulateDragDrop(ctx, one.Locate("#column-a"), two.Locate("#column-b"))
	assert.ErrorIs(t, err, harness.ErrAction)
}

func TestAssertionTimeoutReportsLastObservation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/javascript_alerts")

	err := harness.Assert(ctx, s.Locate("#result"), harness.ContainsText("never"), 100*time.Millisecond)
	var ate *harness.AssertionTimeoutError
	require.ErrorAs(t, err, &ate)
	assert.Equal(t, "", ate.LastObserved)
	assert.Equal(t, 100*time.Millisecond, ate.Timeout)
	assert.Equal(t, `css=#result`, ate.Locator)
	assert.Contains(t, err.Error(), `containing text "never"`)

	err = harness.Assert(ctx, s.Locate(".figure"), harness.HasCount(3), 100*time.Millisecond)
	require.ErrorAs(t, err, &ate)
	assert.Equal(t, 0, ate.LastObserved)
}

func TestAssertValue(t *testing.T) {
	ctx := context.Background()
	calls := 0
	get := func(context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("not yet")
		}
		return "/users/1", nil
	}
	require.NoError(t, harness.AssertValue(ctx, get, harness.Equals("/users/1"), time.Second))

	err := harness.AssertValue(ctx, func(context.Context) (any, error) { return 7, nil }, harness.NotValue(harness.Equals(7)), 50*time.Millisecond)
	var ate *harness.AssertionTimeoutError
	require.ErrorAs(t, err, &ate)
	assert.Equal(t, 7, ate.LastObserved)
}

func TestAssertionPollsUntilTheDeadline(t *testing.T) {
	ctx := context.Background()
	b := fakebrowser.New(demosite.NewFakeSite())
	opts := fastOptions()
	opts.Timeouts.PollInterval = 200 * time.Millisecond
	ctrl := harness.NewController(b, opts, zap.NewNop())
	t.Cleanup(func() {
		_ = ctrl.Close()
		_ = b.Close()
	})
	s, err := ctrl.Open(ctx, origin+"/checkboxes")
	require.NoError(t, err)

	t.Run("timeout shorter than the interval", func(t *testing.T) {
		start := time.Now()
		err := harness.Assert(ctx, s.Locate("#never"), harness.IsVisible(), 80*time.Millisecond)
		var ate *harness.AssertionTimeoutError
		require.ErrorAs(t, err, &ate)
		assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	})

	t.Run("last check at the deadline", func(t *testing.T) {
		start := time.Now()
		calls := 0
		get := func(context.Context) (any, error) {
			calls++
			return time.Since(start) >= 60*time.Millisecond, nil
		}
		require.NoError(t, ctrl.AssertValue(ctx, get, harness.Equals(true), 100*time.Millisecond))
		assert.Equal(t, 2, calls, "one check up front, one at the deadline")
	})
}

func TestControllerAssertValueUsesConfiguredTimeouts(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	start := time.Now()
	err := f.ctrl.AssertValue(ctx, func(context.Context) (any, error) { return "a.jpg a.jpg", nil }, harness.Occurrences("a.jpg", 1), 0)
	var ate *harness.AssertionTimeoutError
	require.ErrorAs(t, err, &ate)
	assert.Equal(t, 300*time.Millisecond, ate.Timeout, "zero falls back to timeouts.assertion")
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, err.Error(), `containing "a.jpg" 1 time(s)`)

	require.NoError(t, f.ctrl.AssertValue(ctx, func(context.Context) (any, error) { return "a.jpg", nil }, harness.Occurrences("a.jpg", 1), 0))
}

func TestClosedSessionRejectsWork(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.open(t, "/checkboxes")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Locate("input").Click(ctx), harness.ErrSessionClosed)
	assert.ErrorIs(t, s.Navigate(ctx, origin+"/hovers"), harness.ErrSessionClosed)
	_, err := s.ExpectDialog(harness.DialogExpectation{})
	assert.ErrorIs(t, err, harness.ErrSessionClosed)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&harness.NavigationError{URL: "x", Err: errors.New("boom")}, "navigation"},
		{&harness.ActionError{Action: "click"}, "action"},
		{&harness.InvalidFileError{Path: "x"}, "invalid_file"},
		{&harness.DialogNotHandledError{}, "dialog_not_handled"},
		{&harness.DialogMismatchError{}, "dialog_mismatch"},
		{&harness.PopupTimeoutError{}, "popup_timeout"},
		{&harness.AssertionTimeoutError{}, "assertion_timeout"},
		{fmt.Errorf("%w: inner", harness.ErrScenarioTimeout), "timeout"},
		{fmt.Errorf("%w: boom", harness.ErrScenarioPanic), "panic"},
		{context.Canceled, "canceled"},
		{errors.New("other"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, harness.Classify(tt.err), "%v", tt.err)
	}
}
