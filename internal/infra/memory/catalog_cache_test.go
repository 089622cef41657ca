package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

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

func testCatalog() []domain.Quiz {
	return []domain.Quiz{{ID: "quiz-1", Title: "Go Basics"}}
}

func TestCatalogCacheServesFromCacheWithinTTL(t *testing.T) {
	loader := &countingLoader{quizzes: testCatalog()}
	cache := NewCatalogCache(loader, time.Minute)

	for i := 0; i < 5; i++ {
		quizzes, err := cache.ListQuizzes(context.Background())
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(quizzes) != 1 || quizzes[0].ID != "quiz-1" {
			t.Fatalf("unexpected quizzes %+v", quizzes)
		}
	}
	if got := loader.count(); got != 1 {
		t.Fatalf("expected a single load within TTL, got %d", got)
	}
}

func TestCatalogCacheReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{quizzes: testCatalog()}
	cache := NewCatalogCache(loader, time.Minute)

	now := time.Now()
	cache.clock = func() time.Time { return now }

	if _, err := cache.ListQuizzes(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	// jitter extends the TTL by at most 10%
	now = now.Add(2 * time.Minute)
	if _, err := cache.ListQuizzes(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := loader.count(); got != 2 {
		t.Fatalf("expected reload after expiry, got %d loads", got)
	}
}

func TestCatalogCacheDoesNotCacheFailures(t *testing.T) {
	loader := &countingLoader{err: errors.New("backend down")}
	cache := NewCatalogCache(loader, time.Minute)

	if _, err := cache.ListQuizzes(context.Background()); err == nil {
		t.Fatalf("expected error")
	}

	loader.mu.Lock()
	loader.err = nil
	loader.quizzes = testCatalog()
	loader.mu.Unlock()

	quizzes, err := cache.ListQuizzes(context.Background())
	if err != nil {
		t.Fatalf("list after recovery: %v", err)
	}
	if len(quizzes) != 1 {
		t.Fatalf("expected recovered catalog, got %+v", quizzes)
	}
	if got := loader.count(); got != 2 {
		t.Fatalf("expected retry after failure, got %d loads", got)
	}
}

func TestCatalogCacheCollapsesConcurrentMisses(t *testing.T) {
	loader := &countingLoader{quizzes: testCatalog()}
	cache := NewCatalogCache(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.ListQuizzes(context.Background()); err != nil {
				t.Errorf("list: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := loader.count(); got != 1 {
		t.Fatalf("concurrent misses must collapse into one load, got %d", got)
	}
}

func TestStaticCatalogLoader(t *testing.T) {
	loader := NewStaticCatalogLoader(testCatalog())
	quizzes, err := loader.ListQuizzes(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0].ID != "quiz-1" {
		t.Fatalf("unexpected quizzes %+v", quizzes)
	}
}
