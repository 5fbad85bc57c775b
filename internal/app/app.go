// Package app assembles the style-hub components from a loaded config. Both
// the agent and every CLI command build one App so they share the exact same
// directory layout.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/style-hub/style-hub/internal/cache"
	"github.com/style-hub/style-hub/internal/config"
	"github.com/style-hub/style-hub/internal/notify"
	"github.com/style-hub/style-hub/internal/preferences"
	"github.com/style-hub/style-hub/internal/refresh"
)

const (
	preferencesDirName = "preferences"
	notifyDirName      = "notify"
	lockDirName        = ".locks"
)

// App owns the wired components.
type App struct {
	Config      *config.Config
	Logger      *logrus.Logger
	Cache       *cache.Cache
	Notifier    *notify.Notifier
	Preferences *preferences.Store
	Scheduler   *refresh.Scheduler
}

// New wires every component. Nothing is started; call Notifier.Start or
// Scheduler.Run as needed.
func New(cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	g := cfg.Global

	stateFiles, err := cache.NewFileStore(filepath.Join(g.StateDir, lockDirName))
	if err != nil {
		return nil, fmt.Errorf("state directory: %w", err)
	}
	backend, err := preferences.NewFileBackend(filepath.Join(g.StateDir, preferencesDirName), stateFiles)
	if err != nil {
		return nil, err
	}

	notifier, err := notify.New(notify.Options{
		Dir:      filepath.Join(g.StateDir, notifyDirName),
		Debounce: g.NotifyDebounce.DurationValue(),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	fetcher := cache.NewHTTPFetcher(cache.NewHTTPClient(g.FetchTimeout.DurationValue()), g.UserAgent)
	downloads, err := cache.New(cache.Options{
		Root:        g.CacheDir,
		Fetcher:     fetcher,
		Logger:      logger,
		Concurrency: g.FetchConcurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("cache directory: %w", err)
	}

	prefs := preferences.New(backend, notifier, logger)
	scheduler := refresh.New(refresh.Options{
		Cache:       downloads,
		Source:      prefs,
		Interval:    g.RefreshInterval.DurationValue(),
		Concurrency: g.FetchConcurrency,
		Logger:      logger,
	})

	return &App{
		Config:      cfg,
		Logger:      logger,
		Cache:       downloads,
		Notifier:    notifier,
		Preferences: prefs,
		Scheduler:   scheduler,
	}, nil
}

// SeedDefaults writes the configured seed records into a store that has never
// been written.
func (a *App) SeedDefaults(ctx context.Context) error {
	seeded, err := a.Preferences.SeedDefaults(ctx, a.Config.SeedConfigurations())
	if err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}
	if seeded {
		a.Logger.WithField("action", "seed_defaults").Debug("seeded default configurations")
	}
	return nil
}

// Close stops the notifier, so no subscriber can schedule another download,
// and then waits for background downloads.
func (a *App) Close() error {
	err := a.Notifier.Close()
	a.Cache.Wait()
	return err
}
