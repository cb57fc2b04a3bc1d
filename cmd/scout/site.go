package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/queue"
	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/types"
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Manage monitored sites",
	Long: `Manage the sites the crawler monitors. Site URLs are normalized
(scheme and leading www. stripped) before they become storage keys.`,
}

var siteAddCmd = &cobra.Command{
	Use:   "add [site]",
	Short: "Register a site for a user",
	Long: `Register a site. The next scheduler tick discovers it; adding an
already-registered site keeps its interval and history.

Examples:
  scout site add example.com --user google:1234
  scout site add example.com --user google:1234 --interval 12`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		interval, _ := cmd.Flags().GetInt("interval")
		site := types.NormalizeSiteURL(args[0])

		store := mustOpenStore()
		defer func() { _ = store.Close() }()

		if err := store.AddSite(rootCtx, site, userID, interval); err != nil {
			FatalErrorRespectJSON("add site %s: %v", site, err)
		}
		row, err := store.GetSite(rootCtx, site, userID)
		if err != nil {
			FatalErrorRespectJSON("read back site %s: %v", site, err)
		}

		if jsonOutput {
			outputJSON(row)
			return
		}
		fmt.Printf("Added %s for %s (every %dh)\n", row.SiteURL, row.UserID, row.ProcessIntervalHours)
	},
}

var siteRemoveCmd = &cobra.Command{
	Use:   "remove [site]",
	Short: "Remove a site and drain its files",
	Long: `Queue a removal job for every file of the site, then delete the
site row. Workers drain each file's ids and clear the search index
before the file rows disappear, so the index never holds documents
the store has forgotten.`,
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

		if _, err := store.GetSite(rootCtx, site, userID); err != nil {
			FatalErrorRespectJSON("site %s: %v", site, err)
		}

		q, err := openQueue(rootCtx, cfg)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		defer func() { _ = q.Close() }()
		if err := q.Provision(rootCtx); err != nil {
			FatalErrorRespectJSON("provision queue: %v", err)
		}

		files, err := store.ListSiteFiles(rootCtx, site, userID)
		if err != nil {
			FatalErrorRespectJSON("list files of %s: %v", site, err)
		}
		// Drain jobs must all be queued before the site row goes away;
		// on a partial failure the site is kept and the command can be
		// re-run (removal jobs are idempotent).
		for _, f := range files {
			job := types.NewJob(types.JobProcessRemovedFile, userID, site, f.FileURL)
			if err := queue.SendJob(rootCtx, q, job); err != nil {
				FatalErrorRespectJSON("queue removal of %s: %v (site kept, re-run to retry)", f.FileURL, err)
			}
		}

		if err := store.RemoveSite(rootCtx, site, userID); err != nil {
			FatalErrorRespectJSON("remove site %s: %v", site, err)
		}

		if jsonOutput {
			outputJSON(map[string]any{"site_url": site, "user_id": userID, "files_queued": len(files)})
			return
		}
		fmt.Printf("Removed %s for %s, %d file removal job(s) queued\n", site, userID, len(files))
	},
}

var siteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored sites",
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")

		store := mustOpenStore()
		defer func() { _ = store.Close() }()

		sites, err := store.ListSites(rootCtx, userID)
		if err != nil {
			FatalErrorRespectJSON("list sites: %v", err)
		}
		if sites == nil {
			sites = make([]*types.Site, 0)
		}

		if jsonOutput {
			outputJSON(sites)
			return
		}
		if len(sites) == 0 {
			fmt.Println("No sites registered")
			return
		}
		for _, s := range sites {
			last := "never"
			if s.LastProcessed != nil {
				last = s.LastProcessed.Format(time.RFC3339)
			}
			active := ""
			if !s.IsActive {
				active = " (inactive)"
			}
			fmt.Printf("%s  user=%s  every %dh  last=%s%s\n",
				s.SiteURL, s.UserID, s.ProcessIntervalHours, last, active)
		}
	},
}

var siteStatusCmd = &cobra.Command{
	Use:   "status [site]",
	Short: "Show a site's crawl rollup",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		site := types.NormalizeSiteURL(args[0])

		store := mustOpenStore()
		defer func() { _ = store.Close() }()

		st, err := store.SiteStatus(rootCtx, site, userID)
		if err != nil {
			FatalErrorRespectJSON("status of %s: %v", site, err)
		}

		if jsonOutput {
			outputJSON(st)
			return
		}
		fmt.Printf("Site:           %s\n", st.SiteURL)
		fmt.Printf("User:           %s\n", st.UserID)
		fmt.Printf("Interval:       %dh\n", st.ProcessIntervalHours)
		fmt.Printf("Last processed: %s\n", timeOrNever(st.LastProcessed))
		fmt.Printf("Files:          %d\n", st.FileCount)
		fmt.Printf("Items:          %d\n", st.TotalItems)
		fmt.Printf("Last read:      %s\n", timeOrNever(st.LastReadTime))
		fmt.Printf("Errors:         %d\n", st.ErrorCount)
	},
}

var siteAddFileCmd = &cobra.Command{
	Use:   "add-file [site] [file-url]",
	Short: "Register a payload file by hand",
	Long: `Register a payload file outside any schema map and queue it for
immediate processing. Manual files are never tombstoned by
discovery; remove the site to drop them.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetString("user")
		site := types.NormalizeSiteURL(args[0])
		fileURL := args[1]

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

		if err := store.AddManualFile(rootCtx, site, userID, fileURL); err != nil {
			FatalErrorRespectJSON("add file %s: %v", fileURL, err)
		}

		job := types.NewJob(types.JobProcessFile, userID, site, fileURL)
		job.SchemaMap = types.ManualSchemaMap
		if err := queue.SendJob(rootCtx, q, job); err != nil {
			FatalErrorRespectJSON("queue %s: %v (file registered, next discovery will not pick it up; re-run to queue)", fileURL, err)
		}

		if jsonOutput {
			outputJSON(map[string]any{"site_url": site, "user_id": userID, "file_url": fileURL, "queued": true})
			return
		}
		fmt.Printf("Added %s and queued it for processing\n", fileURL)
	},
}

// mustOpenStore loads config and opens the store, exiting on failure.
// Commands that also need the queue open both explicitly instead.
func mustOpenStore() storage.Store {
	cfg, err := config.Load()
	if err != nil {
		FatalErrorRespectJSON("%v", err)
	}
	store, err := openStore(rootCtx, cfg)
	if err != nil {
		FatalErrorRespectJSON("%v", err)
	}
	return store
}

func timeOrNever(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func init() {
	for _, c := range []*cobra.Command{siteAddCmd, siteRemoveCmd, siteStatusCmd, siteAddFileCmd} {
		c.Flags().String("user", "", "Tenant user id (required)")
		_ = c.MarkFlagRequired("user")
	}
	siteListCmd.Flags().String("user", "", "Only this user's sites (default: all users)")
	siteAddCmd.Flags().Int("interval", types.DefaultProcessIntervalHours, "Crawl interval in hours")

	siteCmd.AddCommand(siteAddCmd)
	siteCmd.AddCommand(siteRemoveCmd)
	siteCmd.AddCommand(siteListCmd)
	siteCmd.AddCommand(siteStatusCmd)
	siteCmd.AddCommand(siteAddFileCmd)

	rootCmd.AddCommand(siteCmd)
}
