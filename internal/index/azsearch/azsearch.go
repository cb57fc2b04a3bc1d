// Package azsearch maintains a vector index in an Azure AI Search
// service. The data plane has no official Go SDK, so this is a thin
// typed client on the azcore pipeline: the pipeline contributes
// retries, telemetry, and the api-key credential policy.
package azsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/schemascout/schemascout/internal/index"
)

const apiVersion = "2023-11-01"

// Config locates the search service and index.
type Config struct {
	Endpoint  string
	Key       string
	IndexName string

	// InsecureAllowHTTP permits sending the api-key over plain HTTP.
	// Only tests against local servers set this.
	InsecureAllowHTTP bool
}

// Client implements index.Indexer against one search index.
type Client struct {
	pl       runtime.Pipeline
	endpoint string
	name     string
	embedder index.Embedder
	logger   *slog.Logger
}

// New builds a Client. The embedder supplies vectors for AddBatch.
func New(cfg Config, embedder index.Embedder, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Key == "" {
		return nil, errors.New("azsearch: endpoint and key are required")
	}
	if cfg.IndexName == "" {
		return nil, errors.New("azsearch: index name is required")
	}
	if embedder == nil {
		return nil, errors.New("azsearch: embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	keyPolicy := runtime.NewKeyCredentialPolicy(
		azcore.NewKeyCredential(cfg.Key),
		"api-key",
		&runtime.KeyCredentialPolicyOptions{InsecureAllowCredentialWithHTTP: cfg.InsecureAllowHTTP},
	)
	pl := runtime.NewPipeline("azsearch", "v0.1.0", runtime.PipelineOptions{
		PerRetry: []policy.Policy{keyPolicy},
	}, &policy.ClientOptions{})
	return &Client{
		pl:       pl,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		name:     cfg.IndexName,
		embedder: embedder,
		logger:   logger,
	}, nil
}

func (c *Client) url(parts ...string) string {
	return runtime.JoinPaths(c.endpoint, parts...) + "?api-version=" + apiVersion
}

type indexField struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Key        bool   `json:"key,omitempty"`
	Searchable bool   `json:"searchable"`
	Dimensions int    `json:"dimensions,omitempty"`
	Profile    string `json:"vectorSearchProfile,omitempty"`
}

type vectorProfile struct {
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
}

type vectorAlgorithm struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type vectorSearch struct {
	Profiles   []vectorProfile   `json:"profiles"`
	Algorithms []vectorAlgorithm `json:"algorithms"`
}

type indexDefinition struct {
	Name         string       `json:"name"`
	Fields       []indexField `json:"fields"`
	VectorSearch vectorSearch `json:"vectorSearch"`
}

// EnsureIndex creates or updates the index definition. PUT is
// idempotent, so no existence probe is needed.
func (c *Client) EnsureIndex(ctx context.Context) error {
	def := indexDefinition{
		Name: c.name,
		Fields: []indexField{
			{Name: "id", Type: "Edm.String", Key: true},
			{Name: "url", Type: "Edm.String", Searchable: true},
			{Name: "site", Type: "Edm.String", Searchable: true},
			{Name: "type", Type: "Edm.String", Searchable: true},
			{Name: "content", Type: "Edm.String", Searchable: true},
			{Name: "timestamp", Type: "Edm.DateTimeOffset"},
			{
				Name:       "embedding",
				Type:       "Collection(Edm.Single)",
				Searchable: true,
				Dimensions: index.EmbeddingDims,
				Profile:    "default",
			},
		},
		VectorSearch: vectorSearch{
			Profiles:   []vectorProfile{{Name: "default", Algorithm: "hnsw"}},
			Algorithms: []vectorAlgorithm{{Name: "hnsw", Kind: "hnsw"}},
		},
	}
	req, err := runtime.NewRequest(ctx, http.MethodPut, c.url("indexes", url.PathEscape(c.name)))
	if err != nil {
		return fmt.Errorf("azsearch: build request: %w", err)
	}
	if err := runtime.MarshalAsJSON(req, def); err != nil {
		return fmt.Errorf("azsearch: encode index definition: %w", err)
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return fmt.Errorf("azsearch: ensure index %s: %w", c.name, err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent) {
		return fmt.Errorf("azsearch: ensure index %s: %w", c.name, runtime.NewResponseError(resp))
	}
	c.logger.Debug("search index ensured", "index", c.name)
	return nil
}

// indexAction is one document plus its @search.action verb. Embedding
// keeps the document fields at the top level of the JSON object.
type indexAction struct {
	index.Document
	Action string `json:"@search.action"`
}

type deleteAction struct {
	ID     string `json:"id"`
	Action string `json:"@search.action"`
}

type batchResult struct {
	Value []struct {
		Key          string `json:"key"`
		Status       bool   `json:"status"`
		ErrorMessage string `json:"errorMessage"`
		StatusCode   int    `json:"statusCode"`
	} `json:"value"`
}

// AddBatch embeds the items and uploads their documents in chunks.
func (c *Client) AddBatch(ctx context.Context, items []index.Item) error {
	if len(items) == 0 {
		return nil
	}
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = index.EmbedText(it.Object)
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("azsearch: embed %d items: %w", len(items), err)
	}
	if len(vectors) != len(items) {
		return fmt.Errorf("azsearch: got %d vectors for %d items", len(vectors), len(items))
	}
	actions := make([]indexAction, len(items))
	for i, it := range items {
		actions[i] = indexAction{
			Document: index.BuildDocument(it.ID, it.Site, it.Object, vectors[i]),
			Action:   "mergeOrUpload",
		}
	}
	for start := 0; start < len(actions); start += index.MaxBatch {
		end := min(start+index.MaxBatch, len(actions))
		if err := c.push(ctx, actions[start:end], end-start); err != nil {
			return &index.BatchError{BatchStart: start, Err: err}
		}
		c.logger.Debug("uploaded index batch", "index", c.name, "documents", end-start)
	}
	return nil
}

// DeleteBatch removes the documents for the given @ids in chunks.
func (c *Client) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	actions := make([]deleteAction, len(ids))
	for i, id := range ids {
		actions[i] = deleteAction{ID: index.DocKey(id), Action: "delete"}
	}
	for start := 0; start < len(actions); start += index.MaxBatch {
		end := min(start+index.MaxBatch, len(actions))
		if err := c.push(ctx, actions[start:end], end-start); err != nil {
			return &index.BatchError{BatchStart: start, Err: err}
		}
		c.logger.Debug("deleted index batch", "index", c.name, "documents", end-start)
	}
	return nil
}

// push sends one chunk of actions to the docs/index endpoint. A 207
// means some documents failed; those are surfaced as an error so the
// caller can record the miss.
func (c *Client) push(ctx context.Context, value any, n int) error {
	req, err := runtime.NewRequest(ctx, http.MethodPost, c.url("indexes", url.PathEscape(c.name), "docs", "index"))
	if err != nil {
		return fmt.Errorf("azsearch: build request: %w", err)
	}
	if err := runtime.MarshalAsJSON(req, map[string]any{"value": value}); err != nil {
		return fmt.Errorf("azsearch: encode batch: %w", err)
	}
	resp, err := c.pl.Do(req)
	if err != nil {
		return fmt.Errorf("azsearch: index batch: %w", err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK, http.StatusMultiStatus) {
		return fmt.Errorf("azsearch: index batch: %w", runtime.NewResponseError(resp))
	}
	var result batchResult
	if err := runtime.UnmarshalAsJSON(resp, &result); err != nil {
		return fmt.Errorf("azsearch: decode batch result: %w", err)
	}
	var failed []string
	for _, r := range result.Value {
		if !r.Status {
			failed = append(failed, fmt.Sprintf("%s (%d: %s)", r.Key, r.StatusCode, r.ErrorMessage))
		}
	}
	if len(failed) > 0 {
		shown := failed
		if len(shown) > 5 {
			shown = append(shown[:5:5], "...")
		}
		return fmt.Errorf("azsearch: %d of %d documents failed: %s", len(failed), n, strings.Join(shown, ", "))
	}
	return nil
}
