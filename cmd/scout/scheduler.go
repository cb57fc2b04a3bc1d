package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/discover"
	"github.com/schemascout/schemascout/internal/scheduler"
	"github.com/schemascout/schemascout/internal/telemetry"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the discovery scheduler without workers",
	Long: `Tick on the configured interval and rediscover every due site.
Queued jobs are drained by scout worker processes elsewhere.`,
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

		disc := telemetry.WrapDiscoverer(discover.New(store, q, logger))
		sched := scheduler.New(store, disc, cfg.SchedulerInterval, cfg.DiscoveryConcurrency, logger)

		if err := sched.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			FatalError("%v", err)
		}
		logger.Info("shutdown complete")
	},
}

func init() {
	schedulerCmd.Flags().Int("interval", 0, "Scheduler tick in seconds (default: SCHEDULER_INTERVAL)")
	schedulerCmd.Flags().Int("concurrency", 0, "Discovery fan-out per tick (default: DISCOVERY_CONCURRENCY)")

	rootCmd.AddCommand(schedulerCmd)
}
