// Package cdp drives Chromium over the DevTools protocol with chromedp.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
)

const shutdownTimeout = 15 * time.Second

// Options configures the Chromium process.
type Options struct {
	Headless bool
	ExecPath string
	// Args are extra command line switches, with or without leading dashes,
	// optionally as key=value.
	Args   []string
	Width  int
	Height int
}

// Browser is one Chromium process. Every page gets its own browser context.
type Browser struct {
	logger *zap.Logger
	opts   Options

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	pages  map[target.ID]*Page
	closed bool
}

var _ browser.Browser = (*Browser)(nil)

// Launch starts Chromium. ctx bounds the startup only; the process lives
// until Close.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	// The allocator must not inherit ctx: chromedp kills the process when the
	// context of the first Run ends.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	b := &Browser{
		logger:        logger,
		opts:          opts,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		pages:         make(map[target.ID]*Page),
	}

	if err := start(ctx, browserCtx, discoverTargets()); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}
	chromedp.ListenBrowser(browserCtx, b.onBrowserEvent)

	logger.Info("Chromium launched.", zap.Bool("headless", opts.Headless))
	return b, nil
}

// execOptions builds the allocator flags.
func execOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("enable-automation", true),
	}
	if opts.Headless {
		out = append(out, chromedp.Headless)
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.Width > 0 && opts.Height > 0 {
		out = append(out, chromedp.WindowSize(opts.Width, opts.Height))
	}
	for _, arg := range opts.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if found {
			out = append(out, chromedp.Flag(key, value))
		} else {
			out = append(out, chromedp.Flag(key, true))
		}
	}
	return out
}

// discoverTargets turns on target events at the browser level so popups are
// reported with their opener.
func discoverTargets() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		return target.SetDiscoverTargets(true).Do(cdpproto.WithExecutor(ctx, c.Browser))
	})
}

// start performs the first Run on c, which allocates the browser or tab.
// That Run must use c itself, so ctx is honored by abandoning the wait
// rather than by deriving from it.
func start(ctx context.Context, c context.Context, actions ...chromedp.Action) error {
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(c, actions...) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewPage opens a tab in a fresh browser context.
func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, errors.New("browser closed")
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	p, err := b.attach(ctx, tabCtx, cancel, "about:blank")
	if err != nil {
		return nil, err
	}
	if b.opts.Width > 0 && b.opts.Height > 0 {
		if err := p.run(ctx, chromedp.EmulateViewport(int64(b.opts.Width), int64(b.opts.Height))); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}
	return p, nil
}

// attach starts tabCtx and wires its listeners.
func (b *Browser) attach(ctx context.Context, tabCtx context.Context, cancel context.CancelFunc, url string) (*Page, error) {
	if err := start(ctx, tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	c := chromedp.FromContext(tabCtx)
	p := &Page{
		browser:  b,
		ctx:      tabCtx,
		cancel:   cancel,
		targetID: c.Target.TargetID,
		url:      url,
		logger:   b.logger.With(zap.String("target", string(c.Target.TargetID))),
	}
	chromedp.ListenTarget(tabCtx, p.onTargetEvent)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = p.Close()
		return nil, errors.New("browser closed")
	}
	b.pages[p.targetID] = p
	b.mu.Unlock()
	return p, nil
}

func (b *Browser) forget(id target.ID) {
	b.mu.Lock()
	delete(b.pages, id)
	b.mu.Unlock()
}

// onBrowserEvent runs on chromedp's event loop and must not block.
func (b *Browser) onBrowserEvent(ev any) {
	e, ok := ev.(*target.EventTargetCreated)
	if !ok || e.TargetInfo == nil || e.TargetInfo.Type != "page" || e.TargetInfo.OpenerID == "" {
		return
	}
	b.mu.Lock()
	opener := b.pages[e.TargetInfo.OpenerID]
	b.mu.Unlock()
	if opener == nil {
		return
	}
	info := *e.TargetInfo
	go b.adoptPopup(opener, info)
}

func (b *Browser) adoptPopup(opener *Page, info target.Info) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx, chromedp.WithTargetID(info.TargetID))
	p, err := b.attach(ctx, tabCtx, tabCancel, info.URL)
	if err != nil {
		b.logger.Warn("Failed to attach to popup.", zap.String("target", string(info.TargetID)), zap.Error(err))
		return
	}
	b.logger.Debug("Popup attached.", zap.String("target", string(info.TargetID)), zap.String("opener", string(opener.targetID)))
	opener.deliverPopup(p)
}

// Close closes every page and then the browser process.
func (b *Browser) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pages := make([]*Page, 0, len(b.pages))
	for _, p := range b.pages {
		pages = append(pages, p)
	}
	b.mu.Unlock()

	for _, p := range pages {
		_ = p.Close()
	}

	// chromedp.Cancel blocks until the process exits.
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(b.browserCtx) }()

	var err error
	select {
	case err = <-done:
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	case <-time.After(shutdownTimeout):
		err = fmt.Errorf("chromium did not exit within %s", shutdownTimeout)
	}
	b.browserCancel()
	b.allocCancel()
	b.logger.Info("Chromium closed.")
	return err
}
