package fakebrowser_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/browser/fakebrowser"
	"github.com/xkilldash9x/lancet/internal/testing/demosite"
)

func newPage(t *testing.T, path string) (*fakebrowser.Browser, browser.Page) {
	t.Helper()
	b := fakebrowser.New(demosite.NewFakeSite())
	t.Cleanup(func() { _ = b.Close() })

	p, err := b.NewPage(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Navigate(context.Background(), fakebrowser.DefaultOrigin+path))
	return b, p
}

func TestNavigate(t *testing.T) {
	ctx := context.Background()
	_, p := newPage(t, "/checkboxes")
	assert.Equal(t, "http://fake.test/checkboxes", p.URL())

	err := p.Navigate(ctx, "/does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestInspectAndResolve(t *testing.T) {
	ctx := context.Background()
	_, p := newPage(t, "/hovers")

	figures, err := p.Inspect(ctx, browser.CSS(".figure"))
	require.NoError(t, err)
	assert.Equal(t, 3, figures.Count)

	caption, err := p.Inspect(ctx, browser.CSS(".figure").Nth(1).With(browser.Step{Kind: browser.StepCSS, Selector: ".figcaption"}))
	require.NoError(t, err)
	assert.Equal(t, 1, caption.Count)
	assert.False(t, caption.Visible, "captions are hidden until hovered")
	assert.Contains(t, caption.Text, "name: user2")

	last, err := p.Inspect(ctx, browser.CSS(".figure h5").Nth(-1))
	require.NoError(t, err)
	assert.Equal(t, "name: user3", last.Text)

	missing, err := p.Inspect(ctx, browser.CSS(".figure").Nth(7))
	require.NoError(t, err)
	assert.False(t, missing.Found())
}

func TestRoleAndTextSteps(t *testing.T) {
	ctx := context.Background()
	_, p := newPage(t, "/javascript_alerts")

	st, err := p.Inspect(ctx, browser.Query{{Kind: browser.StepRole, Role: "button", Name: "click for js confirm"}})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Count)
	assert.Equal(t, "Click for JS Confirm", st.Text)

	st, err = p.Inspect(ctx, browser.Query{{Kind: browser.StepRole, Role: "button", Name: "Click for JS", Exact: true}})
	require.NoError(t, err)
	assert.Zero(t, st.Count, "exact names must match fully")

	st, err = p.Inspect(ctx, browser.Query{{Kind: browser.StepText, Name: "Result:"}})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Count)
}

func TestClickTogglesCheckbox(t *testing.T) {
	ctx := context.Background()
	_, p := newPage(t, "/checkboxes")
	first := browser.CSS(`input[type="checkbox"]`).Nth(0)

	require.NoError(t, p.Click(ctx, first))
	st, err := p.Inspect(ctx, first)
	require.NoError(t, err)
	assert.True(t, st.Checked)

	require.NoError(t, p.SetChecked(ctx, first, true))
	st, _ = p.Inspect(ctx, first)
	assert.True(t, st.Checked, "SetChecked is a no-op when already in state")

	require.NoError(t, p.SetChecked(ctx, first, false))
	st, _ = p.Inspect(ctx, first)
	assert.False(t, st.Checked)
}

func TestDialogsAreAnsweredByHandler(t *testing.T) {
	ctx := context.Background()
	_, p := newPage(t, "/javascript_alerts")

	seen := make(chan browser.DialogType, 1)
	p.OnDialog(func(d browser.Dialog) {
		seen <- d.Type()
		_ = d.Accept("Input test")
	})

	require.NoError(t, p.Click(ctx, browser.Query{{Kind: browser.StepRole, Role: "button", Name: "Click for JS Prompt"}}))
	assert.Equal(t, browser.DialogPrompt, <-seen)

	st, err := p.Inspect(ctx, browser.CSS("#result"))
	require.NoError(t, err)
	assert.Equal(t, "You entered: Input test", st.Text)
}

func TestDialogWithoutHandlerIsDismissed(t *testing.T) {
	ctx := context.Background()
	b, p := newPage(t, "/javascript_alerts")

	require.NoError(t, p.Click(ctx, browser.CSS(`button[onclick="jsConfirm()"]`)))
	st, err := p.Inspect(ctx, browser.CSS("#result"))
	require.NoError(t, err)
	assert.Equal(t, "You clicked: Cancel", st.Text)
	assert.Contains(t, b.Ops(), `dialog confirm "I am a JS Confirm"`)
}

func TestPopupOpensNewPage(t *testing.T) {
	ctx := context.Background()
	b, p := newPage(t, "/windows")

	popups := make(chan browser.Page, 1)
	p.OnPopup(func(pp browser.Page) { popups <- pp })

	require.NoError(t, p.Click(ctx, browser.Query{{Kind: browser.StepText, Name: "Click Here"}}))

	select {
	case pp := <-popups:
		st, err := pp.Inspect(ctx, browser.CSS("h3"))
		require.NoError(t, err)
		assert.Equal(t, "New Window", st.Text)
		assert.Equal(t, 2, b.OpenPages())
		require.NoError(t, pp.Close())
		require.NoError(t, pp.Close(), "close is idempotent")
		assert.Equal(t, 1, b.OpenPages())
	case <-time.After(time.Second):
		t.Fatal("popup was not delivered")
	}

	// The opener still shows the original document.
	st, err := p.Inspect(ctx, browser.CSS("h3"))
	require.NoError(t, err)
	assert.Equal(t, "Opening a new window", st.Text)
}

func TestDragSwapsColumns(t *testing.T) {
	ctx := context.Background()
	_, p := newPage(t, "/drag_and_drop")
	a, bq := browser.CSS("#column-a"), browser.CSS("#column-b")

	require.NoError(t, p.DispatchDrag(ctx, a, bq))
	stA, _ := p.Inspect(ctx, a)
	stB, _ := p.Inspect(ctx, bq)
	assert.Equal(t, "B", stA.Text)
	assert.Equal(t, "A", stB.Text)
}

func TestUploadFlow(t *testing.T) {
	ctx := context.Background()
	_, p := newPage(t, "/upload")

	require.NoError(t, p.SetInputFiles(ctx, browser.CSS("#file-upload"), []string{"/tmp/fixtures/jpg500kb.jpg"}))
	require.NoError(t, p.Click(ctx, browser.CSS("#file-submit")))

	st, err := p.Inspect(ctx, browser.CSS("#uploaded-files"))
	require.NoError(t, err)
	assert.True(t, st.Visible)
	assert.Equal(t, "jpg500kb.jpg", st.Text)

	err = p.SetInputFiles(ctx, browser.CSS("h3"), []string{"x"})
	require.Error(t, err)
}

func TestClosedPageRejectsOperations(t *testing.T) {
	ctx := context.Background()
	_, p := newPage(t, "/checkboxes")
	require.NoError(t, p.Close())

	_, err := p.Inspect(ctx, browser.CSS("input"))
	assert.ErrorIs(t, err, browser.ErrPageClosed)
	assert.ErrorIs(t, p.Click(ctx, browser.CSS("input")), browser.ErrPageClosed)
}
