// Package launcher starts the browser transport named by configuration.
package launcher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/browser/cdp"
	"github.com/xkilldash9x/lancet/internal/browser/pw"
	"github.com/xkilldash9x/lancet/internal/config"
)

// Launch validates cfg and starts the matching transport.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Browser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Driver) {
	case config.DriverChromedp:
		b, err := cdp.Launch(ctx, CDPOptions(cfg), logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.DriverPlaywright:
		b, err := pw.Launch(ctx, PlaywrightOptions(cfg), logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
}

// CDPOptions maps cfg onto the chromedp transport.
func CDPOptions(cfg config.BrowserConfig) cdp.Options {
	return cdp.Options{
		Headless: cfg.Headless,
		ExecPath: cfg.ExecPath,
		Args:     cfg.Args,
		Width:    cfg.Viewport.Width,
		Height:   cfg.Viewport.Height,
	}
}

// PlaywrightOptions maps cfg onto the playwright transport.
func PlaywrightOptions(cfg config.BrowserConfig) pw.Options {
	return pw.Options{
		Engine:   strings.ToLower(cfg.Engine),
		Headless: cfg.Headless,
		ExecPath: cfg.ExecPath,
		Args:     cfg.Args,
		Width:    cfg.Viewport.Width,
		Height:   cfg.Viewport.Height,
		Install:  cfg.Install,
	}
}
