// Package index defines the search index surface of the pipeline.
//
// The index mirrors the ids table: the worker stages an add when an
// @id gains its first reference and a delete when the last reference
// goes away. Implementations live in subpackages; Stub stands in when
// no search service is configured.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// EmbeddingDims is the vector size of the index's embedding field.
const EmbeddingDims = 1536

// MaxBatch is the most documents an Indexer accepts in one round trip.
// Callers staging large deletes flush at this size.
const MaxBatch = 100

// Item is one extracted object staged for indexing.
type Item struct {
	ID     string
	Site   string
	Object map[string]any
}

// Indexer maintains the search index that shadows the ids table.
// Batch calls are all-or-nothing per chunk; callers treat a returned
// error as "the index may be behind" and rely on a later crawl cycle
// to reconcile.
type Indexer interface {
	// EnsureIndex creates the index definition if it does not exist.
	EnsureIndex(ctx context.Context) error
	// AddBatch embeds and uploads the given items.
	AddBatch(ctx context.Context, items []Item) error
	// DeleteBatch removes the documents for the given @ids.
	DeleteBatch(ctx context.Context, ids []string) error
}

// BatchError reports which chunk of a batched index call failed.
// Everything before BatchStart was accepted; the ids table is not
// reverted, so the next crawl cycle retries the same diff.
type BatchError struct {
	BatchStart int
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("index batch starting at %d: %v", e.BatchStart, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Embedder turns texts into fixed-size vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ZeroEmbedder returns all-zero vectors. It keeps the pipeline moving
// when no embedding deployment is configured.
type ZeroEmbedder struct{}

func (ZeroEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, EmbeddingDims)
	}
	return out, nil
}

// Stub is an Indexer that drops every request. It is returned when
// search credentials are not configured, so crawling and the ids
// table keep converging while nothing reaches a remote index.
type Stub struct {
	logger *slog.Logger
	once   sync.Once
}

// NewStub returns a Stub that logs what it drops.
func NewStub(logger *slog.Logger) *Stub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stub{logger: logger}
}

func (s *Stub) warn() {
	s.once.Do(func() {
		s.logger.Warn("search index not configured, index operations are dropped")
	})
}

func (s *Stub) EnsureIndex(context.Context) error {
	s.warn()
	return nil
}

func (s *Stub) AddBatch(_ context.Context, items []Item) error {
	s.warn()
	s.logger.Warn("dropping index add batch", "items", len(items))
	return nil
}

func (s *Stub) DeleteBatch(_ context.Context, ids []string) error {
	s.warn()
	s.logger.Warn("dropping index delete batch", "ids", len(ids))
	return nil
}
