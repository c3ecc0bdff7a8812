package harness_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/browser/fakebrowser"
	"github.com/xkilldash9x/lancet/internal/harness"
	"github.com/xkilldash9x/lancet/internal/testing/demosite"
)

// Whatever sequence of check and uncheck calls runs, each checkbox ends in
// the state of the last call made on it.
func TestCheckboxConvergence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		b := fakebrowser.New(demosite.NewFakeSite())
		ctrl := harness.NewController(b, fastOptions(), zap.NewNop())
		defer func() {
			_ = ctrl.Close()
			_ = b.Close()
		}()

		s, err := ctrl.Open(ctx, origin+"/checkboxes")
		if err != nil {
			rt.Fatalf("open: %v", err)
		}

		want := []bool{false, true}
		ops := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 12).Draw(rt, "ops")
		for _, op := range ops {
			idx, check := op/2, op%2 == 0
			box := s.Locate(`input[type="checkbox"]`, idx)
			if check {
				err = box.Check(ctx)
			} else {
				err = box.Uncheck(ctx)
			}
			if err != nil {
				rt.Fatalf("op %d: %v", op, err)
			}
			want[idx] = check
		}

		for idx, checked := range want {
			p := harness.IsChecked()
			if !checked {
				p = harness.Not(p)
			}
			if err := harness.Assert(ctx, s.Locate(`input[type="checkbox"]`, idx), p, 50*time.Millisecond); err != nil {
				rt.Fatalf("checkbox %d: %v", idx, err)
			}
		}
	})
}

// Each registration answers exactly one dialog: with n registrations and m
// triggers, the first min(n, m) dialogs are handled and anything beyond is
// reported, in either direction.
func TestDialogRegistrationsAnswerExactlyOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		b := fakebrowser.New(demosite.NewFakeSite())
		ctrl := harness.NewController(b, fastOptions(), zap.NewNop())
		defer func() { _ = b.Close() }()

		s, err := ctrl.Open(ctx, origin+"/javascript_alerts")
		if err != nil {
			rt.Fatalf("open: %v", err)
		}

		registrations := rapid.IntRange(0, 3).Draw(rt, "registrations")
		triggers := rapid.IntRange(0, 3).Draw(rt, "triggers")

		pending := make([]*harness.PendingDialog, registrations)
		for i := range pending {
			pending[i], err = s.ExpectDialog(harness.DialogExpectation{Type: browser.DialogConfirm, Action: harness.DialogAccept})
			if err != nil {
				rt.Fatalf("expect: %v", err)
			}
		}

		button := s.GetByRole("button", "Click for JS Confirm")
		for i := 0; i < triggers; i++ {
			err := button.Click(ctx)
			handled := i < registrations
			if handled && err != nil {
				rt.Fatalf("trigger %d should be handled: %v", i, err)
			}
			if !handled && !isDialogNotHandled(err) {
				rt.Fatalf("trigger %d should be unhandled, got %v", i, err)
			}
		}

		for i, pd := range pending {
			if got, want := pd.Consumed(), i < triggers; got != want {
				rt.Fatalf("registration %d consumed=%v, want %v", i, got, want)
			}
		}

		closeErr := ctrl.Close()
		if registrations > triggers && !isDialogNotHandled(closeErr) {
			rt.Fatalf("unconsumed registrations must be reported, got %v", closeErr)
		}
		if registrations <= triggers && closeErr != nil {
			rt.Fatalf("unexpected teardown error: %v", closeErr)
		}
	})
}

func isDialogNotHandled(err error) bool {
	return errors.Is(err, harness.ErrDialogNotHandled)
}

// Derived locators keep their parent's index and render the query they poll.
func TestLocatorStringMatchesQuery(t *testing.T) {
	b := fakebrowser.New(demosite.NewFakeSite())
	ctrl := harness.NewController(b, fastOptions(), zap.NewNop())
	t.Cleanup(func() {
		_ = ctrl.Close()
		_ = b.Close()
	})
	s, err := ctrl.Open(context.Background(), origin+"/hovers")
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		i := rapid.IntRange(-3, 2).Draw(rt, "figure")
		l := s.Locate(".figure", i).Locator("h5")
		require.Equal(rt, l.Query().String(), l.String())
		require.Len(rt, l.Query(), 2)
		require.Equal(rt, i, *l.Query()[0].Nth)
	})
}
