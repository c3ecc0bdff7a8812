package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/lancet/internal/observability"
)

func newListCmd(a *app) *cobra.Command {
	var (
		suites []string
		runs   bool
		limit  int
	)

	listCmd := &cobra.Command{
		Use:   "list [scenario patterns...]",
		Short: "List available scenarios, or stored runs with --runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if runs {
				logger := observability.GetLogger()
				s, cleanup, err := a.deps.stores.Create(cmd.Context(), cfg.Database(), logger)
				if err != nil {
					return fmt.Errorf("failed to initialize store: %w", err)
				}
				if cleanup != nil {
					defer cleanup()
				}
				summaries, err := s.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "RUN\tSTARTED\tDRIVER\tENGINE\tPASSED\tFAILED\tSKIPPED\tDURATION")
				for _, r := range summaries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
						r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.Driver, r.Engine,
						r.Passed, r.Failed, r.Skipped, r.Duration.Round(time.Millisecond))
				}
				return nil
			}

			selected, err := selectScenarios(cfg, suites, args)
			if err != nil {
				return err
			}
			for _, sc := range selected {
				desc := sc.Description
				if len(sc.Tags) > 0 {
					desc = strings.TrimSpace(desc + " [" + strings.Join(sc.Tags, ",") + "]")
				}
				fmt.Fprintf(w, "%s\t%s\n", sc.Name, desc)
			}
			return nil
		},
	}
	listCmd.Flags().StringSliceVarP(&suites, "suite", "s", nil, "List scenarios from YAML suite files")
	listCmd.Flags().BoolVar(&runs, "runs", false, "List runs from the run history database")
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs listed with --runs")
	return listCmd
}
