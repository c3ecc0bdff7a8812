package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/harness"
	"github.com/xkilldash9x/lancet/internal/observability"
	"github.com/xkilldash9x/lancet/internal/reporting"
	"github.com/xkilldash9x/lancet/internal/store"
)

// RunStore is the slice of the run history the commands use.
type RunStore interface {
	SaveRun(ctx context.Context, run *harness.RunResult) error
	GetRun(ctx context.Context, id string) (*harness.RunResult, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

// storeProvider opens the run history. Tests inject an in-memory one.
type storeProvider interface {
	// Create returns the store and a cleanup function releasing its resources.
	Create(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (RunStore, func(), error)
}

type defaultStoreProvider struct{}

// NewStoreProvider returns the PostgreSQL backed provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to PostgreSQL and makes sure the schema exists.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (RunStore, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (LANCET_DATABASE_URL)")
	}
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return s, cleanup, nil
}

func newReportCmd(a *app) *cobra.Command {
	var runID, outputPath, format string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Render a stored run in any report format",
		Long: `Loads a run from the run history database by id and renders it as text,
json, junit or sarif, to a file or to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			return runReport(cmd.Context(), observability.GetLogger(), cfg.Database(), runID, outputPath, format, a.deps.stores, cmd)
		},
	}
	reportCmd.Flags().StringVar(&runID, "run-id", "", "ID of the run to render (required)")
	_ = reportCmd.MarkFlagRequired("run-id")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. Defaults to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", reporting.FormatText, "Report format: text, json, junit or sarif.")
	return reportCmd
}

func runReport(
	ctx context.Context,
	logger *zap.Logger,
	db config.DatabaseConfig,
	runID, outputPath, format string,
	provider storeProvider,
	cmd *cobra.Command,
) error {
	s, cleanup, err := provider.Create(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	return writeReport(logger, run, format, outputPath, cmd)
}

// writeReport renders run to outputPath, or to the command's stdout when
// outputPath is empty.
func writeReport(logger *zap.Logger, run *harness.RunResult, format, outputPath string, cmd *cobra.Command) error {
	var (
		reporter reporting.Reporter
		err      error
	)
	if outputPath == "" || outputPath == "stdout" {
		reporter, err = reporting.NewWriter(format, nopCloser{cmd.OutOrStdout()}, Version, logger)
	} else {
		reporter, err = reporting.New(format, outputPath, Version, logger)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	if err := reporter.Write(run); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to finish report: %w", err)
	}
	if outputPath != "" && outputPath != "stdout" {
		logger.Info("Report written.", zap.String("path", outputPath), zap.String("format", format))
	}
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
