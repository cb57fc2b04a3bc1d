package main

import (
	"context"
	"fmt"

	"github.com/schemascout/schemascout/internal/config"
	"github.com/schemascout/schemascout/internal/index"
	indexfactory "github.com/schemascout/schemascout/internal/index/factory"
	"github.com/schemascout/schemascout/internal/jsonl"
	"github.com/schemascout/schemascout/internal/queue"
	queuefactory "github.com/schemascout/schemascout/internal/queue/factory"
	"github.com/schemascout/schemascout/internal/storage"
	storagefactory "github.com/schemascout/schemascout/internal/storage/factory"
	"github.com/schemascout/schemascout/internal/telemetry"
	"github.com/schemascout/schemascout/internal/worker"
)

// openStore builds the configured storage backend, instrumented when
// telemetry is enabled.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	store, err := storagefactory.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return telemetry.WrapStorage(store), nil
}

// openQueue builds the configured queue backend (journal included when
// configured), instrumented when telemetry is enabled.
func openQueue(ctx context.Context, cfg *config.Config) (queue.Queue, error) {
	q, err := queuefactory.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	return telemetry.WrapQueue(q), nil
}

// openIndexer builds the configured Indexer, instrumented when
// telemetry is enabled. Without search credentials this is the stub.
func openIndexer(ctx context.Context, cfg *config.Config) (index.Indexer, error) {
	ix, err := indexfactory.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open indexer: %w", err)
	}
	return telemetry.WrapIndexer(ix), nil
}

// workerOptions materializes worker policy and audit log writers from
// the loaded config. The returned closer releases the log files.
func workerOptions(cfg *config.Config) (worker.Options, func(), error) {
	opts := worker.Options{NackOnIndexFailure: cfg.NackOnIndexFailure}

	var writers []*jsonl.Writer
	closeAll := func() {
		for _, w := range writers {
			_ = w.Close()
		}
	}

	if cfg.FetchLogFile != "" {
		w, err := jsonl.NewWriter(cfg.FetchLogFile)
		if err != nil {
			return opts, closeAll, fmt.Errorf("open fetch log: %w", err)
		}
		writers = append(writers, w)
		opts.FetchLog = w
	}
	if cfg.IndexLogFile != "" {
		w, err := jsonl.NewWriter(cfg.IndexLogFile)
		if err != nil {
			closeAll()
			return opts, func() {}, fmt.Errorf("open index log: %w", err)
		}
		writers = append(writers, w)
		opts.IndexLog = w
	}
	return opts, closeAll, nil
}
