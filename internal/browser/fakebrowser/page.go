package fakebrowser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/lancet/internal/browser"
)

// FilesAttribute holds the base names assigned through SetInputFiles,
// newline separated.
const FilesAttribute = "data-fake-files"

// Page is a fake tab rendering one goquery document.
type Page struct {
	browser *Browser

	mu     sync.Mutex
	url    string
	doc    *goquery.Document
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

// lock acquires the page for an operation and validates it is usable.
func (p *Page) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return browser.ErrPageClosed
	}
	return nil
}

// Navigate loads the site page at the path of rawURL.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.browser.record("navigate %s", rawURL)
	return p.load(rawURL)
}

// load must be called with p.mu held.
func (p *Page) load(rawURL string) error {
	base, err := url.Parse(p.url)
	if err != nil || p.url == "about:blank" {
		base, _ = url.Parse(DefaultOrigin + "/")
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	target := base.ResolveReference(ref)

	html, ok := p.browser.site.html(target.Path)
	if !ok {
		return fmt.Errorf("navigation to %s failed: 404 Not Found", target)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", target, err)
	}
	p.doc = doc
	p.url = target.String()

	for _, b := range p.browser.site.handlersFor(EventLoad) {
		if b.selector != target.Path {
			continue
		}
		if err := b.handler(&Event{Type: EventLoad, Page: p, Doc: doc, Target: doc.Selection}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) document() (*goquery.Document, error) {
	if p.doc == nil {
		return nil, errors.New("no document loaded")
	}
	return p.doc, nil
}

func (p *Page) Inspect(ctx context.Context, q browser.Query) (browser.ElementState, error) {
	if err := p.lock(ctx); err != nil {
		return browser.ElementState{}, err
	}
	defer p.mu.Unlock()
	doc, err := p.document()
	if err != nil {
		return browser.ElementState{}, nil
	}
	return inspect(doc, q)
}

func (p *Page) Attribute(ctx context.Context, q browser.Query, name string) (string, bool, error) {
	if err := p.lock(ctx); err != nil {
		return "", false, err
	}
	defer p.mu.Unlock()
	target, err := p.first(q)
	if err != nil {
		return "", false, err
	}
	v, ok := target.Attr(name)
	return v, ok, nil
}

// first must be called with p.mu held.
func (p *Page) first(q browser.Query) (*goquery.Selection, error) {
	doc, err := p.document()
	if err != nil {
		return nil, browser.ErrElementNotFound
	}
	matches, err := resolve(doc, q)
	if err != nil {
		return nil, err
	}
	if matches.Length() == 0 {
		return nil, browser.ErrElementNotFound
	}
	return matches.First(), nil
}

// dispatch runs the handlers bound to ev for target and reports whether the
// default action was prevented. Must be called with p.mu held.
func (p *Page) dispatch(ev EventType, target, source *goquery.Selection) (bool, error) {
	prevented := false
	for _, b := range p.browser.site.handlersFor(ev) {
		hit := target.Closest(b.selector)
		if hit.Length() == 0 {
			continue
		}
		e := &Event{Type: ev, Page: p, Doc: p.doc, Target: hit, Source: source}
		if err := b.handler(e); err != nil {
			return prevented, err
		}
		prevented = prevented || e.prevented
	}
	return prevented, nil
}

func (p *Page) Click(ctx context.Context, q browser.Query) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.browser.record("click %s", q)
	target, err := p.first(q)
	if err != nil {
		return err
	}
	return p.click(target)
}

// click must be called with p.mu held.
func (p *Page) click(target *goquery.Selection) error {
	prevented, err := p.dispatch(EventClick, target, nil)
	if err != nil || prevented {
		return err
	}

	if goquery.NodeName(target) == "input" && strings.EqualFold(target.AttrOr("type", ""), "checkbox") {
		if _, checked := target.Attr("checked"); checked {
			target.RemoveAttr("checked")
		} else {
			target.SetAttr("checked", "")
		}
		return nil
	}

	link := target.Closest("a[href]")
	if link.Length() == 0 {
		return nil
	}
	href := link.AttrOr("href", "")
	if link.AttrOr("target", "") == "_blank" {
		return p.openPopup(href)
	}
	return p.load(href)
}

func (p *Page) Hover(ctx context.Context, q browser.Query) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.browser.record("hover %s", q)
	target, err := p.first(q)
	if err != nil {
		return err
	}
	_, err = p.dispatch(EventHover, target, nil)
	return err
}

func (p *Page) SetChecked(ctx context.Context, q browser.Query, checked bool) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.browser.record("set_checked %s %t", q, checked)
	target, err := p.first(q)
	if err != nil {
		return err
	}
	if isChecked(target) == checked {
		return nil
	}
	return p.click(target)
}

func (p *Page) SetInputFiles(ctx context.Context, q browser.Query, paths []string) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.browser.record("set_input_files %s %d", q, len(paths))
	target, err := p.first(q)
	if err != nil {
		return err
	}
	if goquery.NodeName(target) != "input" || !strings.EqualFold(target.AttrOr("type", ""), "file") {
		return fmt.Errorf("element %s is not a file input", q)
	}
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = filepath.Base(path)
	}
	target.SetAttr(FilesAttribute, strings.Join(names, "\n"))
	return nil
}

func (p *Page) DispatchDrag(ctx context.Context, source, target browser.Query) error {
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.browser.record("drag %s -> %s", source, target)
	src, err := p.first(source)
	if err != nil {
		return err
	}
	dst, err := p.first(target)
	if err != nil {
		return err
	}
	_, err = p.dispatch(EventDrop, dst, src)
	return err
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.lock(ctx); err != nil {
		return nil, err
	}
	defer p.mu.Unlock()
	return append([]byte(nil), placeholderPNG...), nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if err := p.lock(ctx); err != nil {
		return "", err
	}
	defer p.mu.Unlock()
	doc, err := p.document()
	if err != nil {
		return "", nil
	}
	return doc.Html()
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
	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.mu.Unlock()
	p.browser.record("bring_to_front %s", p.url)
	return nil
}

// Close is idempotent.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.browser.record("close %s", p.url)
	}
	return nil
}

// openPopup must be called with p.mu held.
func (p *Page) openPopup(href string) error {
	base, _ := url.Parse(p.url)
	ref, err := url.Parse(href)
	if err != nil {
		return err
	}
	popup, err := p.browser.newPage()
	if err != nil {
		return err
	}
	popup.mu.Lock()
	err = popup.load(base.ResolveReference(ref).String())
	popup.mu.Unlock()
	if err != nil {
		return err
	}

	p.hmu.Lock()
	h := p.onPopup
	p.hmu.Unlock()
	if h != nil {
		go h(popup)
	}
	return nil
}

// runDialog shows a native dialog and blocks until it is answered or the
// browser's DialogWait elapses. Unhandled dialogs are dismissed.
func (p *Page) runDialog(typ browser.DialogType, message, defaultValue string) (bool, string) {
	p.browser.record("dialog %s %q", typ, message)

	p.hmu.Lock()
	h := p.onDialog
	p.hmu.Unlock()
	if h == nil {
		return false, ""
	}

	d := &dialog{typ: typ, message: message, defaultValue: defaultValue, answers: make(chan answer, 1)}
	go h(d)

	select {
	case a := <-d.answers:
		if a.accept && a.text == "" {
			a.text = defaultValue
		}
		return a.accept, a.text
	case <-time.After(p.browser.DialogWait):
		return false, ""
	}
}

// Alert shows an alert from inside a handler.
func (e *Event) Alert(message string) {
	e.Page.runDialog(browser.DialogAlert, message, "")
}

// Confirm shows a confirm dialog from inside a handler.
func (e *Event) Confirm(message string) bool {
	ok, _ := e.Page.runDialog(browser.DialogConfirm, message, "")
	return ok
}

// Prompt shows a prompt from inside a handler. ok is false when dismissed.
func (e *Event) Prompt(message, defaultValue string) (string, bool) {
	ok, text := e.Page.runDialog(browser.DialogPrompt, message, defaultValue)
	return text, ok
}

// Navigate replaces the current document from inside a handler.
func (e *Event) Navigate(href string) error {
	if err := e.Page.load(href); err != nil {
		return err
	}
	e.Doc = e.Page.doc
	return nil
}

// OpenPopup opens href in a new tab from inside a handler.
func (e *Event) OpenPopup(href string) error {
	return e.Page.openPopup(href)
}

// UploadedFiles returns the base names assigned to a file input.
func UploadedFiles(sel *goquery.Selection) []string {
	v := sel.AttrOr(FilesAttribute, "")
	if v == "" {
		return nil
	}
	return strings.Split(v, "\n")
}

type answer struct {
	accept bool
	text   string
}

type dialog struct {
	typ          browser.DialogType
	message      string
	defaultValue string
	answers      chan answer
}

func (d *dialog) Type() browser.DialogType { return d.typ }
func (d *dialog) Message() string          { return d.message }
func (d *dialog) DefaultValue() string     { return d.defaultValue }

func (d *dialog) Accept(text string) error { return d.answer(answer{accept: true, text: text}) }
func (d *dialog) Dismiss() error           { return d.answer(answer{}) }

func (d *dialog) answer(a answer) error {
	select {
	case d.answers <- a:
		return nil
	default:
		return errors.New("dialog already handled")
	}
}
