package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/todmy/beauty-analyzer/internal/logger"
)

// Cache stores embeddings by key
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, embedding []float32) error

	// GetMulti returns only the keys that were found
	GetMulti(ctx context.Context, keys []string) (map[string][]float32, error)
	SetMulti(ctx context.Context, embeddings map[string][]float32) error
}

// GenerateCacheKey creates a cache key from model and text
func GenerateCacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model + ":" + text))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// CachedClient wraps a Client with caching. Cache failures are logged and
// never fail a request.
type CachedClient struct {
	client *Client
	cache  Cache
	log    *logger.Logger
}

func NewCachedClient(client *Client, cache Cache, log *logger.Logger) *CachedClient {
	if cache == nil {
		cache = NoOpCache{}
	}
	return &CachedClient{
		client: client,
		cache:  cache,
		log:    logger.OrNop(log).With("component", "embeddings"),
	}
}

func (c *CachedClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = GenerateCacheKey(c.client.Model(), text)
	}

	cached, err := c.cache.GetMulti(ctx, keys)
	if err != nil {
		c.log.Warn("embedding cache read failed", "error", err)
		cached = make(map[string][]float32)
	}

	var missTexts []string
	var missIdx []int
	seen := make(map[string]bool)
	for i, key := range keys {
		if _, ok := cached[key]; ok || seen[key] {
			continue
		}
		seen[key] = true
		missTexts = append(missTexts, texts[i])
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fresh, err := c.client.EmbedTexts(ctx, missTexts)
		if err != nil {
			return nil, err
		}

		toCache := make(map[string][]float32, len(fresh))
		for i, idx := range missIdx {
			toCache[keys[idx]] = fresh[i]
			cached[keys[idx]] = fresh[i]
		}
		if err := c.cache.SetMulti(ctx, toCache); err != nil {
			c.log.Warn("embedding cache write failed", "error", err)
		}
		c.log.Debug("embedded texts", "requested", len(texts), "fetched", len(missTexts))
	}

	results := make([][]float32, len(texts))
	for i, key := range keys {
		results[i] = cached[key]
	}
	return results, nil
}

func (c *CachedClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	results, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (c *CachedClient) Dimension() int {
	return c.client.Dimension()
}

// NoOpCache is a cache that doesn't cache anything
type NoOpCache struct{}

func (NoOpCache) Get(context.Context, string) ([]float32, bool, error) {
	return nil, false, nil
}

func (NoOpCache) Set(context.Context, string, []float32) error {
	return nil
}

func (NoOpCache) GetMulti(context.Context, []string) (map[string][]float32, error) {
	return make(map[string][]float32), nil
}

func (NoOpCache) SetMulti(context.Context, map[string][]float32) error {
	return nil
}

// MemoryCache keeps embeddings for the life of the process
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string][]float32
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string][]float32)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = embedding
	return nil
}

func (m *MemoryCache) GetMulti(_ context.Context, keys []string) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]float32, len(keys))
	for _, k := range keys {
		if v, ok := m.items[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryCache) SetMulti(_ context.Context, embeddings map[string][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range embeddings {
		m.items[k] = v
	}
	return nil
}
