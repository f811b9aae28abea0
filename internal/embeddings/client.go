package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL       = "https://openrouter.ai/api/v1"
	defaultBatchSize     = 100
	defaultMaxConcurrent = 5
	defaultTimeout       = 30 * time.Second
)

// ErrEmptyEmbedding is returned when the API leaves an input without a vector
var ErrEmptyEmbedding = errors.New("empty embedding")

// Client generates embeddings through an OpenAI-compatible API
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	model         string
	batchSize     int
	maxConcurrent int
}

// ClientOption configures the Client
type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithBatchSize sets how many texts go into one request
func WithBatchSize(size int) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.batchSize = size
		}
	}
}

// WithMaxConcurrent caps in-flight requests
func WithMaxConcurrent(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxConcurrent = n
		}
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:       defaultBaseURL,
		apiKey:        apiKey,
		model:         DefaultModel,
		batchSize:     defaultBatchSize,
		maxConcurrent: defaultMaxConcurrent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Dimension returns the vector size of the configured model
func (c *Client) Dimension() int {
	return Dimension(c.model)
}

// EmbedTexts embeds texts in batches. Results are in input order. The first
// failing batch cancels the rest.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)

	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.embedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("batch at %d: %w", start, err)
			}
			copy(results[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	results, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	jsonBody, err := json.Marshal(embeddingRequest{
		Model: c.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	// the API may return data out of order
	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, e := range embeddings {
		if len(e) == 0 {
			return nil, fmt.Errorf("input %d: %w", i, ErrEmptyEmbedding)
		}
	}

	return embeddings, nil
}
