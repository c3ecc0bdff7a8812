package pw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/lancet/internal/browser"
)

// Page wraps a playwright page.
type Page struct {
	browser *Browser
	page    playwright.Page
	owned   playwright.BrowserContext

	mu     sync.Mutex
	closed bool

	hmu      sync.Mutex
	onDialog func(browser.Dialog)
	onPopup  func(browser.Page)
}

var _ browser.Page = (*Page)(nil)

func (p *Page) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.page.IsClosed() {
		return browser.ErrPageClosed
	}
	return nil
}

// timeoutMs converts the ctx deadline into playwright's millisecond timeout.
// Zero means no limit.
func timeoutMs(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return playwright.Float(0)
	}
	ms := float64(time.Until(deadline).Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(ms)
}

// eval runs the shared resolver with req and decodes the result into out.
func (p *Page) eval(ctx context.Context, req browser.ScriptRequest, out any) error {
	if err := p.usable(ctx); err != nil {
		return err
	}
	arg, err := browser.ToArgument(req)
	if err != nil {
		return err
	}
	res, err := p.page.Evaluate(browser.ResolverSource, arg)
	if err != nil {
		if p.page.IsClosed() {
			return browser.ErrPageClosed
		}
		return err
	}
	return browser.DecodeResult(res, out)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.usable(ctx); err != nil {
		return err
	}
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeoutMs(ctx),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return err
	}
	if resp != nil && resp.Status() >= 400 {
		return fmt.Errorf("server responded %d %s", resp.Status(), resp.StatusText())
	}
	return nil
}

func (p *Page) URL() string { return p.page.URL() }

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

// withMarked tags the first match of q so playwright's own selector engine
// can address it, runs fn on that locator and removes the tag again.
func (p *Page) withMarked(ctx context.Context, q browser.Query, fn func(playwright.Locator) error) error {
	token := uuid.NewString()
	var res browser.FoundResult
	if err := p.eval(ctx, browser.ScriptRequest{Op: browser.OpMark, Query: q, Name: browser.MarkAttribute, Value: token}, &res); err != nil {
		return err
	}
	if !res.Found {
		return browser.ErrElementNotFound
	}
	defer func() {
		if p.page.IsClosed() {
			return
		}
		if arg, err := browser.ToArgument(browser.ScriptRequest{Op: browser.OpUnmark, Name: browser.MarkAttribute}); err == nil {
			_, _ = p.page.Evaluate(browser.ResolverSource, arg)
		}
	}()
	return fn(p.page.Locator(fmt.Sprintf("[%s=%q]", browser.MarkAttribute, token)))
}

func (p *Page) Click(ctx context.Context, q browser.Query) error {
	return p.withMarked(ctx, q, func(l playwright.Locator) error {
		return l.Click(playwright.LocatorClickOptions{Timeout: timeoutMs(ctx)})
	})
}

func (p *Page) Hover(ctx context.Context, q browser.Query) error {
	return p.withMarked(ctx, q, func(l playwright.Locator) error {
		return l.Hover(playwright.LocatorHoverOptions{Timeout: timeoutMs(ctx)})
	})
}

func (p *Page) SetChecked(ctx context.Context, q browser.Query, checked bool) error {
	return p.withMarked(ctx, q, func(l playwright.Locator) error {
		return l.SetChecked(checked, playwright.LocatorSetCheckedOptions{Timeout: timeoutMs(ctx)})
	})
}

func (p *Page) SetInputFiles(ctx context.Context, q browser.Query, paths []string) error {
	return p.withMarked(ctx, q, func(l playwright.Locator) error {
		return l.SetInputFiles(paths, playwright.LocatorSetInputFilesOptions{Timeout: timeoutMs(ctx)})
	})
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
	if err := p.usable(ctx); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{Timeout: timeoutMs(ctx)})
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if err := p.usable(ctx); err != nil {
		return "", err
	}
	return p.page.Content()
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
	if err := p.usable(ctx); err != nil {
		return err
	}
	return p.page.BringToFront()
}

// Close closes the page and the browser context it owns. Safe to call more
// than once.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.browser.forget(p)

	var errs []error
	if !p.page.IsClosed() {
		if err := p.page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.owned != nil {
		if err := p.owned.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Playwright waits for dialog listeners to answer, so answering on the
// event goroutine would stall the driver connection.
func (p *Page) handleDialog(d playwright.Dialog) {
	p.hmu.Lock()
	h := p.onDialog
	p.hmu.Unlock()
	wrapped := &dialog{d: d}
	if h == nil {
		go func() { _ = wrapped.Dismiss() }()
		return
	}
	go h(wrapped)
}

func (p *Page) handlePopup(page playwright.Page) {
	popup := p.browser.wrap(page, nil)
	p.hmu.Lock()
	h := p.onPopup
	p.hmu.Unlock()
	if h != nil {
		go h(popup)
	}
}

type dialog struct {
	d        playwright.Dialog
	answered atomic.Bool
}

func (d *dialog) Type() browser.DialogType { return browser.DialogType(d.d.Type()) }
func (d *dialog) Message() string          { return d.d.Message() }
func (d *dialog) DefaultValue() string     { return d.d.DefaultValue() }

func (d *dialog) Accept(text string) error {
	if !d.answered.CompareAndSwap(false, true) {
		return errors.New("dialog already handled")
	}
	if text == "" {
		return d.d.Accept()
	}
	return d.d.Accept(text)
}

func (d *dialog) Dismiss() error {
	if !d.answered.CompareAndSwap(false, true) {
		return errors.New("dialog already handled")
	}
	return d.d.Dismiss()
}
