package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/discover"
	"github.com/schemascout/schemascout/internal/scheduler"
	"github.com/schemascout/schemascout/internal/telemetry"
	"github.com/schemascout/schemascout/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, the worker pool, and the status endpoint",
	Long: `Run the full pipeline in one process: the scheduler rediscovers due
sites on every tick, the worker pool drains the job queue, and the
status endpoint serves /status and /healthz.

Examples:
  # Defaults: sqlite store, file queue, 4 workers, status on :8080
  scout serve

  # Heavier crawl
  scout serve --workers 16 --interval 30`,
	Run: func(cmd *cobra.Command, args []string) {
		applyLoopFlags(cmd)
		cfg, err := config.Load()
		if err != nil {
			FatalError("%v", err)
		}

		store, err := openStore(rootCtx, cfg)
		if err != nil {
			FatalError("%v", err)
		}
		defer func() { _ = store.Close() }()

		q, err := openQueue(rootCtx, cfg)
		if err != nil {
			FatalError("%v", err)
		}
		defer func() { _ = q.Close() }()
		if err := q.Provision(rootCtx); err != nil {
			FatalError("provision queue: %v", err)
		}

		ix, err := openIndexer(rootCtx, cfg)
		if err != nil {
			FatalError("%v", err)
		}

		opts, closeLogs, err := workerOptions(cfg)
		if err != nil {
			FatalError("%v", err)
		}
		defer closeLogs()

		disc := telemetry.WrapDiscoverer(discover.New(store, q, logger))
		sched := scheduler.New(store, disc, cfg.SchedulerInterval, cfg.DiscoveryConcurrency, logger)
		pool := worker.NewPool(cfg.WorkerCount, worker.Deps{Store: store, Queue: q, Indexer: ix}, opts, logger)

		logger.Info("serve starting",
			"workers", cfg.WorkerCount,
			"scheduler_interval", cfg.SchedulerInterval,
			"status_addr", cfg.StatusAddr)

		g, ctx := errgroup.WithContext(rootCtx)
		g.Go(func() error { return sched.Run(ctx) })
		g.Go(func() error { return pool.Run(ctx) })
		g.Go(func() error { return worker.ServeStatus(ctx, cfg.StatusAddr, pool, logger) })

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			FatalError("%v", err)
		}
		logger.Info("shutdown complete")
	},
}

// applyLoopFlags pushes explicitly-set loop flags into the config layer
// so they override file and environment values.
func applyLoopFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("workers") {
		n, _ := cmd.Flags().GetInt("workers")
		config.Set("worker_count", n)
	}
	if cmd.Flags().Changed("interval") {
		n, _ := cmd.Flags().GetInt("interval")
		config.Set("scheduler_interval", n)
	}
	if cmd.Flags().Changed("concurrency") {
		n, _ := cmd.Flags().GetInt("concurrency")
		config.Set("discovery_concurrency", n)
	}
	if cmd.Flags().Changed("status-addr") {
		addr, _ := cmd.Flags().GetString("status-addr")
		config.Set("status_addr", addr)
	}
	if cmd.Flags().Changed("nack-on-index-failure") {
		b, _ := cmd.Flags().GetBool("nack-on-index-failure")
		config.Set("index_failure_nack", b)
	}
}

func init() {
	serveCmd.Flags().Int("workers", 0, "Worker goroutines (default: WORKER_COUNT)")
	serveCmd.Flags().Int("interval", 0, "Scheduler tick in seconds (default: SCHEDULER_INTERVAL)")
	serveCmd.Flags().Int("concurrency", 0, "Discovery fan-out per tick (default: DISCOVERY_CONCURRENCY)")
	serveCmd.Flags().String("status-addr", "", "Status endpoint listen address (default: STATUS_ADDR)")
	serveCmd.Flags().Bool("nack-on-index-failure", false, "Return jobs to the queue when an index write fails")

	rootCmd.AddCommand(serveCmd)
}
