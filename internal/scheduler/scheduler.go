// Package scheduler drives periodic rediscovery. A single loop asks
// the store for due sites each tick and fans the discoverer out over
// them with bounded concurrency. The scheduler holds no per-site
// state; dueness is derived entirely from sites.last_processed and
// process_interval_hours.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schemascout/schemascout/internal/discover"
	"github.com/schemascout/schemascout/internal/storage"
)

const (
	// DefaultInterval is the tick length when none is configured.
	DefaultInterval = 60 * time.Second

	// DefaultConcurrency bounds simultaneous discovery passes per tick.
	DefaultConcurrency = 5
)

// SiteDiscoverer runs one discovery pass for a site.
// *discover.Discoverer satisfies it.
type SiteDiscoverer interface {
	Site(ctx context.Context, siteURL, userID string) (*discover.Result, error)
}

// TickStats summarizes one scheduler tick.
type TickStats struct {
	Due       int `json:"due"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Queued    int `json:"queued"`
}

// Scheduler periodically rediscovers every due site.
type Scheduler struct {
	store       storage.Store
	disc        SiteDiscoverer
	interval    time.Duration
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// New builds a Scheduler. Non-positive interval or concurrency fall
// back to the defaults.
func New(store storage.Store, disc SiteDiscoverer, interval time.Duration, concurrency int, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:       store,
		disc:        disc,
		interval:    interval,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// Run ticks immediately and then on every interval until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "concurrency", s.concurrency)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one scheduling round: query due sites across all users and
// discover each, at most `concurrency` at a time. The tick waits for
// every pass to finish and never fails as a whole; per-site errors are
// logged and counted.
func (s *Scheduler) Tick(ctx context.Context) TickStats {
	sites, err := s.store.DueSites(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("due sites query failed", "error", err)
		return TickStats{}
	}
	stats := TickStats{Due: len(sites)}
	if len(sites) == 0 {
		return stats
	}
	s.logger.Info("processing due sites", "count", len(sites))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, site := range sites {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Debug("discovering site", "site", site.SiteURL, "user", site.UserID)
			res, err := s.disc.Site(ctx, site.SiteURL, site.UserID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				s.logger.Warn("site discovery failed",
					"site", site.SiteURL, "user", site.UserID, "error", err)
				return nil
			}
			stats.Succeeded++
			stats.Queued += res.FilesQueued
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("tick complete",
		"due", stats.Due, "succeeded", stats.Succeeded,
		"failed", stats.Failed, "queued", stats.Queued)
	return stats
}
