package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"quiz-gateway/internal/domain"
)

type countingLoader struct {
	mu      sync.Mutex
	quizzes []domain.Quiz
	err     error
	calls   int
}

func (l *countingLoader) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.quizzes, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCatalogCacheFillsRedisOnMiss(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{quizzes: []domain.Quiz{{ID: "quiz-1", Title: "Go Basics"}}}
	cache := NewCatalogCache(client, loader, time.Minute)

	quizzes, err := cache.ListQuizzes(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0].ID != "quiz-1" {
		t.Fatalf("unexpected quizzes %+v", quizzes)
	}
	if !mr.Exists(catalogKey) {
		t.Fatalf("expected cached catalog under %q", catalogKey)
	}
	ttl := mr.TTL(catalogKey)
	if ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected TTL %v", ttl)
	}
}

func TestCatalogCacheServesFromRedis(t *testing.T) {
	_, client := newTestRedis(t)
	loader := &countingLoader{quizzes: []domain.Quiz{{ID: "quiz-1"}}}
	cache := NewCatalogCache(client, loader, time.Minute)

	for i := 0; i < 4; i++ {
		if _, err := cache.ListQuizzes(context.Background()); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if got := loader.count(); got != 1 {
		t.Fatalf("expected one backend load, got %d", got)
	}

	// a second cache instance against the same redis shares the entry
	other := NewCatalogCache(client, loader, time.Minute)
	if _, err := other.ListQuizzes(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := loader.count(); got != 1 {
		t.Fatalf("instances must share the cached catalog, got %d loads", got)
	}
}

func TestCatalogCacheReloadsAfterRedisExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{quizzes: []domain.Quiz{{ID: "quiz-1"}}}
	cache := NewCatalogCache(client, loader, time.Minute)

	if _, err := cache.ListQuizzes(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.ListQuizzes(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := loader.count(); got != 2 {
		t.Fatalf("expected reload after expiry, got %d loads", got)
	}
}

func TestCatalogCachePropagatesLoaderError(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{err: errors.New("backend down")}
	cache := NewCatalogCache(client, loader, time.Minute)

	if _, err := cache.ListQuizzes(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if mr.Exists(catalogKey) {
		t.Fatalf("a failed load must not be cached")
	}
}

func TestCatalogCacheIgnoresCorruptEntry(t *testing.T) {
	mr, client := newTestRedis(t)
	loader := &countingLoader{quizzes: []domain.Quiz{{ID: "quiz-1"}}}
	cache := NewCatalogCache(client, loader, time.Minute)

	mr.Set(catalogKey, "{not json")
	quizzes, err := cache.ListQuizzes(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quizzes) != 1 {
		t.Fatalf("corrupt entry must fall through to the loader, got %+v", quizzes)
	}

	raw, err := mr.Get(catalogKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var cached []domain.Quiz
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		t.Fatalf("rewritten entry must be valid JSON: %v", err)
	}
}
