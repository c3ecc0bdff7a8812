// Package pw drives Chromium, Firefox and WebKit through playwright-go.
package pw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
)

const (
	installTimeout = 5 * time.Minute
	launchTimeout  = 60 * time.Second
)

// Engines playwright can launch.
const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"
)

// Options configures the launched engine.
type Options struct {
	Engine   string
	Headless bool
	ExecPath string
	Args     []string
	Width    int
	Height   int
	// Install downloads the driver and the engine before launching.
	Install bool
}

// Browser is one launched engine behind a playwright driver process.
type Browser struct {
	logger  *zap.Logger
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser

	mu     sync.Mutex
	pages  map[*Page]struct{}
	closed bool
}

var _ browser.Browser = (*Browser)(nil)

// Install downloads the playwright driver and the given engines.
func Install(ctx context.Context, engines []string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Verifying Playwright browser installation...", zap.Strings("engines", engines))
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	// Install blocks without a context.
	errc := make(chan error, 1)
	go func() {
		if err := playwright.Install(&playwright.RunOptions{Browsers: engines}); err != nil {
			errc <- fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

// Launch starts the driver and the configured engine.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("playwright")
	if opts.Engine == "" {
		opts.Engine = Chromium
	}

	if opts.Install {
		if err := Install(ctx, []string{opts.Engine}, logger); err != nil {
			return nil, err
		}
	}

	type launched struct {
		pw      *playwright.Playwright
		browser playwright.Browser
		err     error
	}
	done := make(chan launched, 1)
	go func() {
		pw, err := playwright.Run()
		if err != nil {
			done <- launched{err: fmt.Errorf("failed to start playwright driver: %w", err)}
			return
		}
		bt, err := browserType(pw, opts.Engine)
		if err != nil {
			_ = pw.Stop()
			done <- launched{err: err}
			return
		}
		b, err := bt.Launch(launchOptions(opts))
		if err != nil {
			_ = pw.Stop()
			done <- launched{err: fmt.Errorf("failed to launch %s: %w", opts.Engine, err)}
			return
		}
		done <- launched{pw: pw, browser: b}
	}()

	select {
	case l := <-done:
		if l.err != nil {
			return nil, l.err
		}
		logger.Info("Browser launched.", zap.String("engine", opts.Engine), zap.String("version", l.browser.Version()))
		return &Browser{logger: logger, opts: opts, pw: l.pw, browser: l.browser, pages: make(map[*Page]struct{})}, nil
	case <-ctx.Done():
		// Reap whatever the launch goroutine eventually produces.
		go func() {
			if l := <-done; l.err == nil {
				_ = l.browser.Close()
				_ = l.pw.Stop()
			}
		}()
		return nil, fmt.Errorf("timeout launching %s: %w", opts.Engine, ctx.Err())
	}
}

func browserType(pw *playwright.Playwright, engine string) (playwright.BrowserType, error) {
	switch engine {
	case Chromium:
		return pw.Chromium, nil
	case Firefox:
		return pw.Firefox, nil
	case WebKit:
		return pw.WebKit, nil
	}
	return nil, fmt.Errorf("unknown engine %q", engine)
}

func launchOptions(opts Options) playwright.BrowserTypeLaunchOptions {
	lo := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Timeout:  playwright.Float(float64(launchTimeout.Milliseconds())),
	}
	if opts.ExecPath != "" {
		lo.ExecutablePath = playwright.String(opts.ExecPath)
	}

	// Chromium switches for containers; other engines reject them.
	var args []string
	if opts.Engine == Chromium {
		args = []string{
			"--disable-gpu",
			"--no-sandbox",
			"--disable-dev-shm-usage",
		}
	}
	lo.Args = append(args, opts.Args...)
	return lo
}

// NewPage opens a page in a new browser context.
func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, errors.New("browser closed")
	}

	var ctxOpts playwright.BrowserNewContextOptions
	if b.opts.Width > 0 && b.opts.Height > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: b.opts.Width, Height: b.opts.Height}
	}
	bctx, err := b.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return b.wrap(page, bctx), nil
}

// wrap tracks page. owned is the context to dispose with the page, nil for
// popups which share their opener's.
func (b *Browser) wrap(page playwright.Page, owned playwright.BrowserContext) *Page {
	p := &Page{browser: b, page: page, owned: owned}
	page.OnDialog(p.handleDialog)
	page.OnPopup(p.handlePopup)

	b.mu.Lock()
	b.pages[p] = struct{}{}
	b.mu.Unlock()
	return p
}

func (b *Browser) forget(p *Page) {
	b.mu.Lock()
	delete(b.pages, p)
	b.mu.Unlock()
}

// Close closes every page, the engine and the driver.
func (b *Browser) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pages := make([]*Page, 0, len(b.pages))
	for p := range b.pages {
		pages = append(pages, p)
	}
	b.mu.Unlock()

	for _, p := range pages {
		_ = p.Close()
	}

	var errs []error
	if err := b.browser.Close(); err != nil {
		b.logger.Error("Failed to close browser instance.", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}
	if err := b.pw.Stop(); err != nil {
		b.logger.Error("Failed to stop Playwright driver.", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to stop playwright driver: %w", err))
	}
	b.logger.Info("Browser shutdown complete.")
	return errors.Join(errs...)
}
