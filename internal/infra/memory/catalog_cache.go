package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-gateway/internal/domain"
)

// CatalogLoader fetches the quiz catalog from its source (the backend).
type CatalogLoader interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// CatalogCache caches the catalog with TTL to avoid re-fetching on every
// view mount. Concurrent misses collapse into one backend call.
type CatalogCache struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cached    []domain.Quiz
	expiresAt time.Time
}

func NewCatalogCache(loader CatalogLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	now := c.clock()

	c.mu.RLock()
	if c.cached != nil && c.expiresAt.After(now) {
		quizzes := c.cached
		c.mu.RUnlock()
		return quizzes, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.cached != nil && c.expiresAt.After(now) {
			quizzes := c.cached
			c.mu.RUnlock()
			return quizzes, nil
		}
		c.mu.RUnlock()

		quizzes, err := c.loader.ListQuizzes(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cached = quizzes
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return quizzes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Quiz), nil
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader serves a fixed quiz list (tests and demos).
type StaticCatalogLoader struct {
	quizzes []domain.Quiz
}

func NewStaticCatalogLoader(quizzes []domain.Quiz) *StaticCatalogLoader {
	return &StaticCatalogLoader{quizzes: quizzes}
}

func (l *StaticCatalogLoader) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	return l.quizzes, nil
}
