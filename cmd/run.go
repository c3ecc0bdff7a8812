package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/artifacts"
	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/fixtures"
	"github.com/xkilldash9x/lancet/internal/harness"
	"github.com/xkilldash9x/lancet/internal/metrics"
	"github.com/xkilldash9x/lancet/internal/observability"
	"github.com/xkilldash9x/lancet/internal/reporting"
	"github.com/xkilldash9x/lancet/internal/scenarios"
	"github.com/xkilldash9x/lancet/internal/suite"
)

type runOptions struct {
	suites  []string
	format  string
	output  string
	noStore bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run [scenario patterns...]",
		Short: "Run built-in or suite scenarios against a site",
		Long: `Runs scenarios in a real browser and reports the outcome of each one.
Patterns select scenarios by name or glob, for example "upload/*". With no
pattern every scenario runs. Use --suite to run scenarios from YAML files
instead of the built-in catalog.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindFlags(cmd, map[string]string{
				"base-url":     "runner.base_url",
				"concurrency":  "runner.concurrency",
				"fail-fast":    "runner.fail_fast",
				"fixtures-dir": "runner.fixtures_dir",
				"driver":       "browser.driver",
				"engine":       "browser.engine",
				"headless":     "browser.headless",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			return runScenarios(cmd, a.deps, cfg, args, opts, observability.GetLogger())
		},
	}

	f := runCmd.Flags()
	f.StringSliceVarP(&opts.suites, "suite", "s", nil, "YAML suite files to run instead of the built-in catalog")
	f.StringVarP(&opts.format, "format", "f", reporting.FormatText, "Report format: text, json, junit or sarif")
	f.StringVarP(&opts.output, "output", "o", "", "Report file path. Defaults to stdout.")
	f.BoolVar(&opts.noStore, "no-store", false, "Do not save the run to the database even if one is configured")
	addOverrideFlags(f)
	return runCmd
}

// addOverrideFlags declares the flags bound onto config keys in PreRunE.
func addOverrideFlags(f *pflag.FlagSet) {
	f.String("base-url", "", "Base URL of the site under test")
	f.IntP("concurrency", "j", 0, "Number of scenarios run in parallel")
	f.Bool("fail-fast", false, "Skip remaining scenarios after the first failure")
	f.String("fixtures-dir", "", "Directory holding the upload fixtures")
	f.String("driver", "", "Automation driver: chromedp or playwright")
	f.String("engine", "", "Browser engine: chromium, firefox or webkit")
	f.Bool("headless", true, "Run the browser without a window")
}

// selectScenarios resolves what to run from suites or the catalog.
func selectScenarios(cfg *config.Config, suites, patterns []string) ([]harness.Scenario, error) {
	var all []harness.Scenario
	if len(suites) == 0 {
		all = scenarios.Catalog(scenarios.Params{
			BaseURL:     cfg.Runner().BaseURL,
			FixturesDir: cfg.Runner().FixturesDir,
		})
	} else {
		for _, path := range suites {
			f, err := suite.Load(path)
			if err != nil {
				return nil, err
			}
			all = append(all, f.Compile(cfg.Runner().BaseURL)...)
		}
	}
	return scenarios.Select(all, patterns)
}

func runScenarios(cmd *cobra.Command, deps dependencies, cfg *config.Config, patterns []string, opts runOptions, logger *zap.Logger) error {
	ctx := cmd.Context()

	// Reject a bad format before spending time in the browser.
	if !slices.Contains(reporting.Formats, opts.format) {
		return fmt.Errorf("unsupported output format: %s", opts.format)
	}

	selected, err := selectScenarios(cfg, opts.suites, patterns)
	if err != nil {
		return err
	}
	warnMissingFixtures(cfg, selected, logger)

	bcfg := cfg.Browser()
	if bcfg.Install && strings.EqualFold(bcfg.Driver, config.DriverPlaywright) {
		if err := deps.install(ctx, []string{bcfg.Engine}, logger); err != nil {
			return err
		}
	}

	b, err := deps.launch(ctx, bcfg, logger)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("Failed to close browser cleanly.", zap.Error(err))
		}
	}()

	sink, err := artifacts.FromConfig(ctx, cfg.Artifacts(), logger)
	if err != nil {
		return err
	}
	recorder := metrics.New(logger)

	runner := harness.NewRunner(b, harness.RunnerConfig{
		Concurrency:     cfg.Runner().Concurrency,
		ScenarioTimeout: cfg.Runner().ScenarioTimeout,
		FailFast:        cfg.Runner().FailFast,
		Controller:      harness.Options{Timeouts: harness.TimeoutsFromConfig(cfg.Timeouts())},
		Driver:          bcfg.Driver,
		Engine:          bcfg.Engine,
		BaseURL:         cfg.Runner().BaseURL,
	}, logger, harness.WithArtifactSink(sink), harness.WithRecorder(recorder))

	logger.Info("Starting run.",
		zap.Int("scenarios", len(selected)),
		zap.String("driver", bcfg.Driver),
		zap.String("engine", bcfg.Engine),
		zap.String("base_url", cfg.Runner().BaseURL),
	)
	result := runner.Run(ctx, selected)
	passed, failed, skipped := result.Counts()
	logger.Info("Run finished.",
		zap.String("run_id", result.ID),
		zap.Int("passed", passed),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Duration("duration", result.Duration),
	)

	if err := writeReport(logger, result, opts.format, opts.output, cmd); err != nil {
		return err
	}

	// History and metrics use a fresh context so an interrupted run is still recorded.
	persistCtx := context.WithoutCancel(ctx)
	if cfg.Database().URL != "" && !opts.noStore {
		if err := saveRun(persistCtx, deps.stores, cfg.Database(), result, logger); err != nil {
			logger.Warn("Failed to save run history.", zap.Error(err))
		}
	}
	if err := recorder.Push(persistCtx, cfg.Metrics().PushgatewayURL, cfg.Metrics().Job, result.ID); err != nil {
		logger.Warn("Failed to push metrics.", zap.Error(err))
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if !result.Passed() {
		return fmt.Errorf("%w: %d of %d (run %s)", ErrScenariosFailed, failed, len(result.Results), result.ID)
	}
	return nil
}

func saveRun(ctx context.Context, provider storeProvider, db config.DatabaseConfig, run *harness.RunResult, logger *zap.Logger) error {
	s, cleanup, err := provider.Create(ctx, db, logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if err := s.SaveRun(ctx, run); err != nil {
		return err
	}
	logger.Info("Run saved.", zap.String("run_id", run.ID))
	return nil
}

// warnMissingFixtures points at `lancet fixtures` when upload scenarios
// would fail for lack of files.
func warnMissingFixtures(cfg *config.Config, selected []harness.Scenario, logger *zap.Logger) {
	uploads := false
	for _, sc := range selected {
		if strings.HasPrefix(sc.Name, "upload/") {
			uploads = true
			break
		}
	}
	if !uploads {
		return
	}
	missing, err := fixtures.Missing(cfg.Runner().FixturesDir)
	if err != nil {
		logger.Debug("Could not check fixtures.", zap.Error(err))
		return
	}
	if len(missing) > 0 {
		logger.Warn("Upload fixtures are missing; run `lancet fixtures` first.",
			zap.String("dir", cfg.Runner().FixturesDir),
			zap.Strings("missing", missing),
		)
	}
}
