package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/fixtures"
	"github.com/xkilldash9x/lancet/internal/observability"
)

func newFixturesCmd(a *app) *cobra.Command {
	var force bool

	fixturesCmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Generate the files used by the upload scenarios",
		Long: `Writes every upload fixture into runner.fixtures_dir. Existing files are
kept unless --force is given.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindFlags(cmd, map[string]string{"dir": "runner.fixtures_dir"})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			dir := cfg.Runner().FixturesDir
			written, err := fixtures.Generate(dir, force, logger)
			if err != nil {
				return err
			}
			logger.Info("Fixtures ready.", zap.String("dir", dir), zap.Int("written", len(written)))
			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	fixturesCmd.Flags().String("dir", "", "Target directory (defaults to runner.fixtures_dir)")
	fixturesCmd.Flags().BoolVar(&force, "force", false, "Overwrite existing fixtures")
	return fixturesCmd
}
