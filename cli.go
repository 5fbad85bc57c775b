package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/style-hub/style-hub/internal/app"
	"github.com/style-hub/style-hub/internal/config"
	"github.com/style-hub/style-hub/internal/logging"
	"github.com/style-hub/style-hub/internal/version"
)

// configEnv names the environment variable consulted when --config is unset.
const configEnv = "STYLE_HUB_CONFIG"

// cliOptions collects the persistent flags shared by every command.
type cliOptions struct {
	configFlag string
}

// configPath resolves --config, then STYLE_HUB_CONFIG. Empty means defaults
// plus environment overrides.
func (o *cliOptions) configPath() string {
	if o.configFlag != "" {
		return o.configFlag
	}
	return os.Getenv(configEnv)
}

func (o *cliOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openApp loads config, builds the logger (logging to console when no log
// file is set) and wires the components. The store is seeded on first use.
func (o *cliOptions) openApp(cmd *cobra.Command, console io.Writer) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.InitLoggerWithConsole(cfg.Global, console)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.SeedDefaults(cmd.Context()); err != nil {
		// The store stays usable; a later write simply replaces the list.
		logger.WithError(err).WithFields(logging.BaseFields("seed_defaults", o.configPath())).Warn("seed failed")
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "style-hub",
		Short:         "Share style configurations and cached style documents between local tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Full(),
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	root.PersistentFlags().StringVar(&opts.configFlag, "config", "", "config file path (overrides "+configEnv+")")

	root.AddCommand(
		newServeCmd(opts),
		newListCmd(opts),
		newAddCmd(opts),
		newEditCmd(opts),
		newRemoveCmd(opts),
		newSelectCmd(opts),
		newShowCmd(opts),
		newExportCmd(opts),
		newRefreshCmd(opts),
		newWatchCmd(opts),
		newCacheCmd(opts),
		newCheckConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// exactArgs wraps cobra.ExactArgs so argument count problems exit with 2.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err: err}
		}
		return nil
	}
}

func newCheckConfigCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and exit",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.InitLoggerWithConsole(cfg.Global, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			fields := logging.BaseFields("check_config", opts.configPath())
			fields["state_dir"] = cfg.Global.StateDir
			fields["cache_dir"] = cfg.Global.CacheDir
			fields["seeds"] = len(cfg.SeedConfigurations())
			fields["result"] = "ok"
			logger.WithFields(fields).Info("config valid")
			fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}
