package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/observability"
)

func newInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "install [engines...]",
		Short:     "Install the Playwright driver and browsers",
		Long:      `Downloads the Playwright driver and the named engines. With no argument, chromium, firefox and webkit are installed.`,
		ValidArgs: []string{config.EngineChromium, config.EngineFirefox, config.EngineWebKit},
		Args:      cobra.OnlyValidArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engines := args
			if len(engines) == 0 {
				engines = []string{config.EngineChromium, config.EngineFirefox, config.EngineWebKit}
			}
			return a.deps.install(cmd.Context(), engines, observability.GetLogger())
		},
	}
}
