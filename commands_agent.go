package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/style-hub/style-hub/internal/app"
	"github.com/style-hub/style-hub/internal/logging"
	"github.com/style-hub/style-hub/internal/server"
	"github.com/style-hub/style-hub/internal/server/routes"
	"github.com/style-hub/style-hub/internal/version"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent: keep documents fresh and serve the local API",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(cmd.Context(), a, opts.configPath())
		},
	}
}

// serve runs until ctx is cancelled. Startup order is notifier, scheduler,
// then HTTP, so the API never answers before change tracking is live.
func serve(ctx context.Context, a *app.App, configPath string) error {
	logger := a.Logger
	g := a.Config.Global

	if pruned, err := a.Cache.PruneLeases(g.LeaseMaxAge.DurationValue()); err != nil {
		logger.WithError(err).WithField("action", "lease_prune").Warn("lease prune failed")
	} else if pruned > 0 {
		logger.WithFields(logrus.Fields{"action": "lease_prune", "pruned": pruned}).Info("stale leases removed")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Notifier.Start(ctx); err != nil {
		return fmt.Errorf("start notifier: %w", err)
	}
	unsubscribe := a.Notifier.Subscribe(func(func()) {
		a.Scheduler.OnChange(ctx)
	})
	defer unsubscribe()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		_ = a.Scheduler.Run(ctx)
	}()

	httpApp, err := server.NewApp(server.AppOptions{Logger: logger})
	if err != nil {
		return err
	}
	leases := server.NewLeaseTable(a.Cache)
	routes.RegisterPreferenceRoutes(httpApp, a.Preferences, logger)
	routes.RegisterCacheRoutes(httpApp, a.Cache, a.Scheduler, leases, logger)

	fields := logging.BaseFields("startup", configPath)
	fields["listen"] = g.ListenAddr()
	fields["state_dir"] = g.StateDir
	fields["cache_dir"] = g.CacheDir
	fields["refresh_interval"] = g.RefreshInterval.DurationValue().String()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("agent starting")

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- httpApp.Listen(g.ListenAddr(), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	var result error
	select {
	case <-ctx.Done():
	case err := <-listenErr:
		if err != nil {
			result = fmt.Errorf("http server: %w", err)
		}
	}
	cancel()

	if err := httpApp.ShutdownWithTimeout(5 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).WithField("action", "shutdown").Warn("http shutdown")
	}
	released := leases.ReleaseAll()
	<-schedulerDone

	logger.WithFields(logrus.Fields{
		"action":          "shutdown",
		"leases_released": released,
	}).Info("agent stopped")
	return result
}

func newRefreshCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Download every configured document now",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.Scheduler.RefreshNow(cmd.Context())
			out := cmd.OutOrStdout()
			for _, res := range report.Results {
				if res.Err != nil {
					fmt.Fprintf(out, "failed  %s: %v\n", res.Identity, res.Err)
					continue
				}
				fmt.Fprintf(out, "ok      %s\n", res.Identity)
			}
			if failed := report.Failed(); failed > 0 {
				return fmt.Errorf("%d of %d documents failed to refresh", failed, len(report.Results))
			}
			return nil
		},
	}
}

func newWatchCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the selection every time the shared preferences change",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.Notifier.Start(ctx); err != nil {
				return fmt.Errorf("start notifier: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s\n", a.Notifier.Path())
			unsubscribe := a.Notifier.Subscribe(func(func()) {
				stamp := time.Now().Format(time.RFC3339)
				if selected, ok := a.Preferences.Selected(ctx); ok {
					fmt.Fprintf(out, "%s changed: selected %q\n", stamp, selected.Name)
					return
				}
				fmt.Fprintf(out, "%s changed: no selection\n", stamp)
			})
			defer unsubscribe()

			<-ctx.Done()
			return nil
		},
	}
}
