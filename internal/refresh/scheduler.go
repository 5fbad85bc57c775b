// Package refresh keeps the download cache current for every identity named
// by the stored configurations.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/style-hub/style-hub/internal/styles"
)

const (
	// DefaultInterval is the period between scheduled refresh rounds.
	DefaultInterval = time.Hour

	defaultConcurrency = 4
)

// Options configures a Scheduler.
type Options struct {
	Cache       Cache
	Source      Source
	Interval    time.Duration
	Concurrency int
	Logger      *logrus.Logger
}

// Scheduler refreshes cached documents at startup, on a fixed interval and
// when a configuration change introduces new identities.
type Scheduler struct {
	cache       Cache
	source      Source
	interval    time.Duration
	concurrency int
	logger      *logrus.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns a Scheduler.
func New(opts Options) *Scheduler {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Scheduler{
		cache:       opts.Cache,
		source:      opts.Source,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger,
		seen:        make(map[string]struct{}),
	}
}

// Run refreshes everything immediately and then once per interval until ctx
// is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.RefreshAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RefreshAll(ctx)
		}
	}
}

// RefreshAll schedules a background refresh of every distinct identity and
// returns how many were scheduled.
func (s *Scheduler) RefreshAll(ctx context.Context) int {
	ids := styles.Identities(s.source.Configurations(ctx))

	s.mu.Lock()
	for _, id := range ids {
		s.seen[id] = struct{}{}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.cache.EnsureFresh(id)
	}
	s.logger.WithFields(logrus.Fields{
		"action":     "refresh_all",
		"identities": len(ids),
	}).Debug("refresh_scheduled")
	return len(ids)
}

// OnChange schedules refreshes for identities not seen before, so a newly
// added configuration is usable without waiting for the next round.
func (s *Scheduler) OnChange(ctx context.Context) int {
	ids := styles.Identities(s.source.Configurations(ctx))

	s.mu.Lock()
	fresh := ids[:0]
	for _, id := range ids {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	s.mu.Unlock()

	for _, id := range fresh {
		s.cache.EnsureFresh(id)
	}
	if len(fresh) > 0 {
		s.logger.WithFields(logrus.Fields{
			"action":     "refresh_on_change",
			"identities": len(fresh),
		}).Debug("refresh_scheduled")
	}
	return len(fresh)
}

// Result is the outcome of refreshing one identity.
type Result struct {
	Identity string
	Err      error
}

// Report lists per-identity outcomes in configuration order.
type Report struct {
	Results []Result
}

// Failed counts identities that could not be refreshed.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Err joins every failure, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Identity, res.Err))
		}
	}
	return errors.Join(errs...)
}

// RefreshNow refreshes every identity and waits for all of them. One failure
// does not stop the others.
func (s *Scheduler) RefreshNow(ctx context.Context) Report {
	ids := styles.Identities(s.source.Configurations(ctx))
	results := make([]Result, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = Result{Identity: id, Err: s.cache.Refresh(gctx, id)}
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	for _, id := range ids {
		s.seen[id] = struct{}{}
	}
	s.mu.Unlock()

	report := Report{Results: results}
	s.logger.WithFields(logrus.Fields{
		"action":     "refresh_now",
		"identities": len(ids),
		"failed":     report.Failed(),
	}).Info("refresh_completed")
	return report
}
