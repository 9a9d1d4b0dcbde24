package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/glinthq/onboardrag/internal/errors"
)

// DefaultCacheSize bounds the query-embedding cache.
const DefaultCacheSize = 1000

// QueryCache memoizes single-query embeddings so repeated questions skip
// the model client entirely. Keys are content hashes, not raw queries, to
// keep memory bounded and user text out of the cache keys.
type QueryCache struct {
	client Client
	cache  *lru.Cache[string, []float32]
}

// NewQueryCache creates a caching wrapper around the client.
func NewQueryCache(client Client, size int) (*QueryCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, errors.Internal("create embedding cache", err)
	}
	return &QueryCache{client: client, cache: cache}, nil
}

// Embed returns the cached vector for text, embedding and caching on miss.
// Returned slices are shared; callers must not mutate them.
func (q *QueryCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := q.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := q.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	q.cache.Add(key, vec)
	return vec, nil
}

// Dimensions returns the provider's embedding dimensionality.
func (q *QueryCache) Dimensions() int {
	return q.client.Dimensions()
}

// Len reports the number of cached entries.
func (q *QueryCache) Len() int {
	return q.cache.Len()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

var _ Client = (*QueryCache)(nil)
