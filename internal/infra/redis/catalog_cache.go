package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-gateway/internal/domain"
)

const catalogKey = "quiz:catalog"

// CatalogLoader fetches the quiz catalog from its source (the backend).
type CatalogLoader interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// CatalogCache keeps the serialized catalog in Redis so multiple gateway
// instances share one backend fetch per TTL window.
type CatalogCache struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogCache(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	if quizzes, ok := c.fromCache(ctx); ok {
		return quizzes, nil
	}

	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		// re-check in case another goroutine filled it
		if quizzes, ok := c.fromCache(ctx); ok {
			return quizzes, nil
		}

		quizzes, err := c.loader.ListQuizzes(ctx)
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(quizzes); err == nil {
			// best-effort: a failed cache write only costs the next fetch
			_ = c.client.Set(ctx, catalogKey, raw, c.ttlWithJitter()).Err()
		}
		return quizzes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Quiz), nil
}

func (c *CatalogCache) fromCache(ctx context.Context) ([]domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		return nil, false
	}
	var quizzes []domain.Quiz
	if err := json.Unmarshal(raw, &quizzes); err != nil {
		return nil, false
	}
	return quizzes, true
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
