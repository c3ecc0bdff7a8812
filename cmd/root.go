package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/browser/launcher"
	"github.com/xkilldash9x/lancet/internal/browser/pw"
	"github.com/xkilldash9x/lancet/internal/config"
	"github.com/xkilldash9x/lancet/internal/observability"
)

const envPrefix = "LANCET"

// ErrScenariosFailed is returned by `lancet run` when at least one scenario failed.
var ErrScenariosFailed = errors.New("one or more scenarios failed")

// dependencies are the side-effecting collaborators of the commands.
// Tests replace them with in-memory versions.
type dependencies struct {
	launch  func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (browser.Browser, error)
	install func(ctx context.Context, engines []string, logger *zap.Logger) error
	stores  storeProvider
}

func defaultDependencies() dependencies {
	return dependencies{
		launch:  launcher.Launch,
		install: pw.Install,
		stores:  NewStoreProvider(),
	}
}

// app carries the state shared by one command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
	deps    dependencies
}

// NewRootCommand builds a fresh command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultDependencies())
}

func newRootCommand(deps dependencies) *cobra.Command {
	a := &app{v: viper.New(), deps: deps}
	config.SetDefaults(a.v)

	rootCmd := &cobra.Command{
		Use:           "lancet",
		Short:         "lancet drives real browsers through end to end interaction scenarios.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initializeConfig(); err != nil {
				return err
			}
			var lc config.LoggerConfig
			if err := a.v.UnmarshalKey("logger", &lc); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "lancet"})
				return fmt.Errorf("failed to unmarshal logger config: %w", err)
			}
			observability.InitializeLogger(lc)
			observability.GetLogger().Debug("Starting lancet", zap.String("version", Version))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./lancet.yaml or ~/.lancet/lancet.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newFixturesCmd(a),
		newReportCmd(a),
		newInstallCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// initializeConfig reads the config file, if any, and environment overrides.
func (a *app) initializeConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		if home, err := homedir.Expand("~/.lancet"); err == nil {
			a.v.AddConfigPath(filepath.Clean(home))
		}
		a.v.SetConfigName("lancet")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// config resolves the final configuration once flags are bound.
func (a *app) config() (*config.Config, error) {
	return config.NewConfigFromViper(a.v)
}

// bindFlags maps flag names to config keys. Unset flags leave the
// config file, environment and defaults in charge.
func (a *app) bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the root command with a signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logger := observability.GetLogger()
		switch {
		case errors.Is(err, context.Canceled):
			logger.Warn("Command canceled.")
		case errors.Is(err, ErrScenariosFailed):
			// Already reported.
		default:
			logger.Error("Command execution failed", zap.Error(err))
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	observability.Sync()
	return err
}
