// Package embed generates embedding vectors through an Azure OpenAI
// deployment.
package embed

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// MaxChars caps the text sent per embedding request. Longer texts are
// cut, not rejected.
const MaxChars = 20000

// Config locates the embedding deployment.
type Config struct {
	Endpoint   string
	Key        string
	Deployment string
}

// Client calls a single Azure OpenAI embedding deployment.
type Client struct {
	client     *azopenai.Client
	deployment string
}

// New builds a Client. Endpoint, key, and deployment are all required.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Key == "" {
		return nil, errors.New("embed: endpoint and key are required")
	}
	if cfg.Deployment == "" {
		return nil, errors.New("embed: deployment name is required")
	}
	client, err := azopenai.NewClientWithKeyCredential(cfg.Endpoint, azcore.NewKeyCredential(cfg.Key), nil)
	if err != nil {
		return nil, fmt.Errorf("embed: create client: %w", err)
	}
	return &Client{client: client, deployment: cfg.Deployment}, nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = truncate(t, MaxChars)
	}
	resp, err := c.client.GetEmbeddings(ctx, azopenai.EmbeddingsOptions{
		Input:          input,
		DeploymentName: &c.deployment,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for pos, d := range resp.Data {
		i := pos
		if d.Index != nil {
			i = int(*d.Index)
		}
		if i < 0 || i >= len(out) {
			return nil, fmt.Errorf("embed: vector index %d out of range", i)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
