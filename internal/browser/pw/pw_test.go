package pw_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/browser/pw"
	"github.com/xkilldash9x/lancet/internal/testing/demosite"
)

// Playwright needs its driver and engines on disk, which CI images rarely
// carry, so these run only when LANCET_PLAYWRIGHT names an engine.
func launch(t *testing.T) (*pw.Browser, string) {
	t.Helper()
	engine := os.Getenv("LANCET_PLAYWRIGHT")
	if engine == "" || testing.Short() {
		t.Skip("set LANCET_PLAYWRIGHT=chromium|firefox|webkit to run playwright tests")
	}
	srv := demosite.NewServer()
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	b, err := pw.Launch(ctx, pw.Options{Engine: engine, Headless: true, Width: 1280, Height: 720}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, srv.URL
}

func open(t *testing.T, b *pw.Browser, url string) browser.Page {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p, err := b.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, url))
	return p
}

func TestCheckboxAndHover(t *testing.T) {
	b, base := launch(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p := open(t, b, base+"/checkboxes")
	box := browser.CSS(`input[type="checkbox"]`).Nth(1)
	require.NoError(t, p.SetChecked(ctx, box, false))
	st, err := p.Inspect(ctx, box)
	require.NoError(t, err)
	assert.False(t, st.Checked)

	// The mark attribute must not outlive the action.
	st, err = p.Inspect(ctx, browser.CSS("["+browser.MarkAttribute+"]"))
	require.NoError(t, err)
	assert.Zero(t, st.Count)

	h := open(t, b, base+"/hovers")
	require.NoError(t, h.Hover(ctx, browser.CSS(".figure").Nth(2)))
	st, err = h.Inspect(ctx, browser.CSS(".figure").Nth(2).With(browser.Step{Kind: browser.StepCSS, Selector: ".figcaption"}))
	require.NoError(t, err)
	assert.True(t, st.Visible)
}

func TestConfirmDismissed(t *testing.T) {
	b, base := launch(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p := open(t, b, base+"/javascript_alerts")

	seen := make(chan string, 1)
	p.OnDialog(func(d browser.Dialog) {
		seen <- d.Message()
		_ = d.Dismiss()
	})
	require.NoError(t, p.Click(ctx, browser.Query{{Kind: browser.StepRole, Role: "button", Name: "Click for JS Confirm"}}))
	select {
	case msg := <-seen:
		assert.Equal(t, "I am a JS Confirm", msg)
	case <-time.After(10 * time.Second):
		t.Fatal("dialog was not delivered")
	}
	assert.Eventually(t, func() bool {
		st, err := p.Inspect(ctx, browser.CSS("#result"))
		return err == nil && st.Text == "You clicked: Cancel"
	}, 10*time.Second, 100*time.Millisecond)
}

func TestPopupAndNotFound(t *testing.T) {
	b, base := launch(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p := open(t, b, base+"/windows")

	err := p.Click(ctx, browser.CSS("#missing"))
	assert.ErrorIs(t, err, browser.ErrElementNotFound)

	popups := make(chan browser.Page, 1)
	p.OnPopup(func(pp browser.Page) { popups <- pp })
	require.NoError(t, p.Click(ctx, browser.Query{{Kind: browser.StepText, Name: "Click Here"}}))
	select {
	case pp := <-popups:
		assert.Eventually(t, func() bool {
			st, err := pp.Inspect(ctx, browser.CSS("h3"))
			return err == nil && st.Text == "New Window"
		}, 10*time.Second, 100*time.Millisecond)
		require.NoError(t, pp.Close())
		_, err := pp.Inspect(ctx, browser.CSS("h3"))
		assert.ErrorIs(t, err, browser.ErrPageClosed)
	case <-time.After(15 * time.Second):
		t.Fatal("popup was not delivered")
	}
}
