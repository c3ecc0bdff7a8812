package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
)

const dialogAnswerTimeout = 5 * time.Second

// Page is one Chromium tab.
type Page struct {
	browser  *Browser
	ctx      context.Context
	cancel   context.CancelFunc
	targetID target.ID
	logger   *zap.Logger

	mu     sync.Mutex
	url    string
	closed bool

	hmu      sync.Mutex
	onDialog func(browser.Dialog)
	onPopup  func(browser.Page)
}

var _ browser.Page = (*Page)(nil)

func (p *Page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// run executes actions bounded by both the tab's lifetime and ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.isClosed() {
		return browser.ErrPageClosed
	}
	runCtx, cancel := browser.CombineContext(p.ctx, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && p.isClosed() {
		return browser.ErrPageClosed
	}
	return err
}

// eval applies the shared resolver script and decodes its result into out.
func (p *Page) eval(ctx context.Context, req browser.ScriptRequest, out any) error {
	expr, err := browser.Expression(req)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.Evaluate(expr, out))
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.isClosed() {
		return browser.ErrPageClosed
	}
	runCtx, cancel := browser.CombineContext(p.ctx, ctx)
	defer cancel()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return err
	}
	if resp != nil && resp.Status >= 400 {
		return fmt.Errorf("server responded %d %s", resp.Status, resp.StatusText)
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Inspect(ctx context.Context, q browser.Query) (browser.ElementState, error) {
	var st browser.ElementState
	err := p.eval(ctx, browser.ScriptRequest{Op: browser.OpInspect, Query: q}, &st)
	return st, err
}

func (p *Page) Attribute(ctx context.Context, q browser.Query, name string) (string, bool, error) {
	var res browser.AttributeResult
	if err := p.eval(ctx, browser.ScriptRequest{Op: browser.OpAttribute, Query: q, Name: name}, &res); err != nil {
		return "", false, err
	}
	if !res.Found {
		return "", false, browser.ErrElementNotFound
	}
	return res.Value, res.Present, nil
}

// point scrolls the target into view and returns its center.
func (p *Page) point(ctx context.Context, q browser.Query) (float64, float64, error) {
	var res browser.PointResult
	if err := p.eval(ctx, browser.ScriptRequest{Op: browser.OpPoint, Query: q}, &res); err != nil {
		return 0, 0, err
	}
	if !res.Found {
		return 0, 0, browser.ErrElementNotFound
	}
	return res.X, res.Y, nil
}

func (p *Page) Click(ctx context.Context, q browser.Query) error {
	x, y, err := p.point(ctx, q)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.MouseClickXY(x, y))
}

func (p *Page) Hover(ctx context.Context, q browser.Query) error {
	x, y, err := p.point(ctx, q)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y))
}

func (p *Page) SetChecked(ctx context.Context, q browser.Query, checked bool) error {
	st, err := p.Inspect(ctx, q)
	if err != nil {
		return err
	}
	if !st.Found() {
		return browser.ErrElementNotFound
	}
	if st.Checked == checked {
		return nil
	}
	return p.Click(ctx, q)
}

func (p *Page) SetInputFiles(ctx context.Context, q browser.Query, paths []string) error {
	expr, err := browser.Expression(browser.ScriptRequest{Op: browser.OpElement, Query: q})
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exc, err := runtime.Evaluate(expr).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("resolver failed: %s", exc.Text)
		}
		if obj == nil || obj.ObjectID == "" {
			return browser.ErrElementNotFound
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()
		return dom.SetFileInputFiles(paths).WithObjectID(obj.ObjectID).Do(ctx)
	}))
}

func (p *Page) DispatchDrag(ctx context.Context, source, target browser.Query) error {
	var res browser.FoundResult
	if err := p.eval(ctx, browser.ScriptRequest{Op: browser.OpDrag, Query: source, Target: target}, &res); err != nil {
		return err
	}
	if !res.Found {
		return browser.ErrElementNotFound
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *Page) OnDialog(handler func(browser.Dialog)) {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	p.onDialog = handler
}

func (p *Page) OnPopup(handler func(browser.Page)) {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	p.onPopup = handler
}

func (p *Page) BringToFront(ctx context.Context) error {
	return p.run(ctx, cdppage.BringToFront())
}

// Close closes the tab and, for pages from NewPage, disposes their browser
// context. Safe to call more than once.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.browser.forget(p.targetID)
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// onTargetEvent runs on chromedp's event loop and must not block.
func (p *Page) onTargetEvent(ev any) {
	switch e := ev.(type) {
	case *cdppage.EventJavascriptDialogOpening:
		d := &dialog{
			page:         p,
			typ:          browser.DialogType(e.Type),
			message:      e.Message,
			defaultValue: e.DefaultPrompt,
		}
		go p.deliverDialog(d)
	case *cdppage.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			p.mu.Lock()
			p.url = e.Frame.URL + e.Frame.URLFragment
			p.mu.Unlock()
		}
	case *target.EventTargetDestroyed:
		if e.TargetID == p.targetID {
			p.mu.Lock()
			p.closed = true
			p.mu.Unlock()
			p.browser.forget(p.targetID)
		}
	}
}

func (p *Page) deliverDialog(d *dialog) {
	p.hmu.Lock()
	h := p.onDialog
	p.hmu.Unlock()
	if h == nil {
		if err := d.Dismiss(); err != nil {
			p.logger.Debug("Failed to dismiss unhandled dialog.", zap.Error(err))
		}
		return
	}
	h(d)
}

func (p *Page) deliverPopup(popup *Page) {
	p.hmu.Lock()
	h := p.onPopup
	p.hmu.Unlock()
	if h == nil {
		return
	}
	h(popup)
}

type dialog struct {
	page         *Page
	typ          browser.DialogType
	message      string
	defaultValue string
	answered     atomic.Bool
}

func (d *dialog) Type() browser.DialogType { return d.typ }
func (d *dialog) Message() string          { return d.message }
func (d *dialog) DefaultValue() string     { return d.defaultValue }

func (d *dialog) Accept(text string) error {
	if text == "" {
		text = d.defaultValue
	}
	return d.answer(cdppage.HandleJavaScriptDialog(true).WithPromptText(text))
}

func (d *dialog) Dismiss() error {
	return d.answer(cdppage.HandleJavaScriptDialog(false))
}

func (d *dialog) answer(action chromedp.Action) error {
	if !d.answered.CompareAndSwap(false, true) {
		return errors.New("dialog already handled")
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialogAnswerTimeout)
	defer cancel()
	return d.page.run(ctx, action)
}
