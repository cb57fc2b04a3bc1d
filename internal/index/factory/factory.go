// Package factory assembles the configured Indexer.
package factory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/index"
	"github.com/schemascout/schemascout/internal/index/azsearch"
	"github.com/schemascout/schemascout/internal/index/embed"
)

// New builds an Indexer from cfg and ensures the index exists. With no
// search credentials it returns a Stub so the rest of the pipeline
// still converges; with search but no embedding credentials the real
// index is fed zero vectors.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (index.Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SearchEndpoint == "" || cfg.SearchKey == "" {
		return index.NewStub(logger), nil
	}

	var embedder index.Embedder = index.ZeroEmbedder{}
	if cfg.OpenAIEndpoint != "" && cfg.OpenAIKey != "" {
		e, err := embed.New(embed.Config{
			Endpoint:   cfg.OpenAIEndpoint,
			Key:        cfg.OpenAIKey,
			Deployment: cfg.EmbeddingDeployment,
		})
		if err != nil {
			return nil, fmt.Errorf("index factory: %w", err)
		}
		embedder = e
	} else {
		logger.Warn("embedding deployment not configured, indexing with zero vectors")
	}

	client, err := azsearch.New(azsearch.Config{
		Endpoint:  cfg.SearchEndpoint,
		Key:       cfg.SearchKey,
		IndexName: cfg.SearchIndex,
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("index factory: %w", err)
	}
	if err := client.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("index factory: %w", err)
	}
	return client, nil
}
