package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run worker loops without the scheduler",
	Long: `Drain the job queue. Workers are stateless and idempotent, so any
number of processes may share one queue; discovery keeps running
elsewhere (scout serve or scout scheduler).

Examples:
  # Loop with the configured worker count
  scout worker

  # Two workers in this process
  scout worker --count 2

  # Settle at most one message per worker, then exit
  scout worker --once`,
	Run: func(cmd *cobra.Command, args []string) {
		applyLoopFlags(cmd)
		if cmd.Flags().Changed("count") {
			n, _ := cmd.Flags().GetInt("count")
			config.Set("worker_count", n)
		}
		once, _ := cmd.Flags().GetBool("once")

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

		ix, err := openIndexer(rootCtx, cfg)
		if err != nil {
			FatalError("%v", err)
		}

		opts, closeLogs, err := workerOptions(cfg)
		if err != nil {
			FatalError("%v", err)
		}
		defer closeLogs()

		pool := worker.NewPool(cfg.WorkerCount, worker.Deps{Store: store, Queue: q, Indexer: ix}, opts, logger)

		if once {
			if err := pool.RunOnce(rootCtx); err != nil {
				FatalError("%v", err)
			}
			return
		}

		g, ctx := errgroup.WithContext(rootCtx)
		g.Go(func() error { return pool.Run(ctx) })
		g.Go(func() error { return worker.ServeStatus(ctx, cfg.StatusAddr, pool, logger) })
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			FatalError("%v", err)
		}
		logger.Info("shutdown complete")
	},
}

func init() {
	workerCmd.Flags().Int("count", 0, "Worker goroutines (default: WORKER_COUNT)")
	workerCmd.Flags().Bool("once", false, "Settle at most one message per worker, then exit")
	workerCmd.Flags().String("status-addr", "", "Status endpoint listen address (default: STATUS_ADDR)")
	workerCmd.Flags().Bool("nack-on-index-failure", false, "Return jobs to the queue when an index write fails")

	rootCmd.AddCommand(workerCmd)
}
