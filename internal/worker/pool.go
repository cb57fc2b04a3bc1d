package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool runs a set of workers against one queue and aggregates their
// status for the status endpoint.
type Pool struct {
	hostname  string
	startedAt time.Time
	workers   []*Worker
	logger    *slog.Logger
}

// NewPool builds n workers sharing deps. Worker ids are derived from
// the hostname so multi-instance deployments stay distinguishable.
func NewPool(n int, deps Deps, opts Options, logger *slog.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}

	p := &Pool{
		hostname:  host,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
	for i := 1; i <= n; i++ {
		p.workers = append(p.workers, New(fmt.Sprintf("%s-%d", host, i), deps, opts, logger))
	}
	return p
}

// Workers returns the pool's workers.
func (p *Pool) Workers() []*Worker {
	return p.workers
}

// Run drives every worker until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("worker pool starting", "workers", len(p.workers))
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error { return w.Run(ctx) })
	}
	return g.Wait()
}

// RunOnce lets every worker settle at most one message, then returns.
func (p *Pool) RunOnce(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error { return w.RunOnce(ctx) })
	}
	return g.Wait()
}

// PoolSnapshot aggregates every worker's state for /status.
type PoolSnapshot struct {
	WorkerID           string     `json:"worker_id"`
	StartedAt          time.Time  `json:"started_at"`
	Status             string     `json:"status"`
	TotalJobsProcessed int64      `json:"total_jobs_processed"`
	TotalJobsFailed    int64      `json:"total_jobs_failed"`
	Workers            []Snapshot `json:"workers"`
}

// Snapshot reports the pool's aggregate state. The pool counts as
// processing while any worker is.
func (p *Pool) Snapshot() PoolSnapshot {
	ps := PoolSnapshot{
		WorkerID:  p.hostname,
		StartedAt: p.startedAt,
		Status:    StateIdle,
	}
	for _, w := range p.workers {
		s := w.Status()
		ps.Workers = append(ps.Workers, s)
		ps.TotalJobsProcessed += s.TotalJobsProcessed
		ps.TotalJobsFailed += s.TotalJobsFailed
		if s.Status == StateProcessing {
			ps.Status = StateProcessing
		}
	}
	return ps
}
