package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemascout/schemascout/internal/config"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the job queue",
}

var queueProvisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the configured queue resource",
	Long: `Create the backing queue (directory, service-bus queue, or storage
queue). Idempotent; an existing queue is left untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		q, err := openQueue(rootCtx, cfg)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		defer func() { _ = q.Close() }()

		if err := q.Provision(rootCtx); err != nil {
			FatalErrorRespectJSON("provision: %v", err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"queue_type": cfg.QueueType, "status": "provisioned"})
			return
		}
		fmt.Printf("Queue provisioned (%s)\n", cfg.QueueType)
	},
}

func init() {
	queueCmd.AddCommand(queueProvisionCmd)
	rootCmd.AddCommand(queueCmd)
}
