package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemascout/schemascout/internal/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the search index",
}

var indexEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create the search index if it does not exist",
	Long: `Create the search index with the vector field schema. Idempotent;
an existing index is left untouched. Requires AZURE_SEARCH_ENDPOINT
and AZURE_SEARCH_KEY.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if cfg.SearchEndpoint == "" || cfg.SearchKey == "" {
			FatalErrorRespectJSON("search service not configured (set AZURE_SEARCH_ENDPOINT and AZURE_SEARCH_KEY)")
		}

		// The indexer factory ensures the index as part of construction.
		if _, err := openIndexer(rootCtx, cfg); err != nil {
			FatalErrorRespectJSON("ensure index: %v", err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"index": cfg.SearchIndex, "status": "ensured"})
			return
		}
		fmt.Printf("Index %s ensured\n", cfg.SearchIndex)
	},
}

func init() {
	indexCmd.AddCommand(indexEnsureCmd)
	rootCmd.AddCommand(indexCmd)
}
