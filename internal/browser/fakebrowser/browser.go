package fakebrowser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/xkilldash9x/lancet/internal/browser"
)

// DefaultOrigin is the origin fake pages pretend to be served from.
const DefaultOrigin = "http://fake.test"

// Browser hands out fake pages that all render the same Site.
type Browser struct {
	site *Site

	// DialogWait bounds how long a page waits for a dialog handler to answer
	// before dismissing the dialog itself.
	DialogWait time.Duration

	mu     sync.Mutex
	pages  []*Page
	ops    []string
	closed bool
}

var _ browser.Browser = (*Browser)(nil)

// New creates a fake browser serving site.
func New(site *Site) *Browser {
	return &Browser{site: site, DialogWait: 2 * time.Second}
}

// NewPage opens a blank page.
func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.newPage()
}

func (b *Browser) newPage() (*Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("browser closed")
	}
	p := &Page{browser: b, url: "about:blank"}
	b.pages = append(b.pages, p)
	return p, nil
}

// Close closes every page and rejects further pages.
func (b *Browser) Close() error {
	b.mu.Lock()
	pages := append([]*Page(nil), b.pages...)
	b.closed = true
	b.mu.Unlock()

	for _, p := range pages {
		_ = p.Close()
	}
	return nil
}

// OpenPages counts pages that were created and not closed yet.
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	pages := append([]*Page(nil), b.pages...)
	b.mu.Unlock()

	n := 0
	for _, p := range pages {
		if !p.isClosed() {
			n++
		}
	}
	return n
}

// Ops returns the operations performed so far, in order, as "verb detail".
func (b *Browser) Ops() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ops...)
}

func (b *Browser) record(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, fmt.Sprintf(format, args...))
}

var placeholderPNG = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}()
