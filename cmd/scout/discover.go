package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/discover"
	"github.com/schemascout/schemascout/internal/telemetry"
	"github.com/schemascout/schemascout/internal/types"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [site]",
	Short: "Run one discovery pass for a site",
	Long: `Locate the site's schema maps, reconcile the files they announce,
and queue a job per change. The same code path the scheduler runs,
detached from any tick.

Examples:
  scout discover example.com --user google:1234
  scout discover shop.example.com/catalog --user google:1234 --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		site := types.NormalizeSiteURL(args[0])

		cfg, err := config.Load()
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		store, err := openStore(rootCtx, cfg)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		defer func() { _ = store.Close() }()

		q, err := openQueue(rootCtx, cfg)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		defer func() { _ = q.Close() }()
		if err := q.Provision(rootCtx); err != nil {
			FatalErrorRespectJSON("provision queue: %v", err)
		}

		disc := telemetry.WrapDiscoverer(discover.New(store, q, logger))
		res, err := disc.Site(rootCtx, site, userID)
		if err != nil {
			FatalErrorRespectJSON("discover %s: %v", site, err)
		}

		if jsonOutput {
			outputJSON(res)
			return
		}
		fmt.Printf("Discovered %s: %d map(s), %d file(s) added, %d queued, %d removed\n",
			site, res.Maps, res.FilesAdded, res.FilesQueued, res.FilesRemoved)
	},
}

func init() {
	discoverCmd.Flags().String("user", "", "Tenant user id (required)")
	_ = discoverCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(discoverCmd)
}
