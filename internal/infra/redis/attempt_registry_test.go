package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quiz-gateway/internal/app"
	"quiz-gateway/internal/domain"
	redisinfra "quiz-gateway/internal/infra/redis"
)

type noopBackend struct{}

func (noopBackend) StartAttempt(_ context.Context, _, quizID string) (string, error) {
	return "attempt-" + quizID, nil
}

func (noopBackend) SubmitAttempt(_ context.Context, _ string, _ map[string]string) (int, error) {
	return 0, nil
}

func (noopBackend) CheckTime(_ context.Context, _ string) (bool, error) { return false, nil }

func (noopBackend) AutoSubmit(_ context.Context, _ string) error { return nil }

type staticLoader struct{ quizzes []domain.Quiz }

func (l staticLoader) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	return l.quizzes, nil
}

func newRegistryService(t *testing.T) (*miniredis.Miniredis, *redisinfra.AttemptRegistry, *app.AttemptService) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry := redisinfra.NewAttemptRegistry(client, time.Hour)
	loader := staticLoader{quizzes: []domain.Quiz{
		{ID: "quiz-1", Title: "One", Questions: []domain.Question{
			{ID: "q1", Options: []domain.Option{{ID: "o1", Correct: true}}},
		}},
	}}
	catalog := app.NewCatalog(loader, zap.NewNop())
	if err := catalog.Refresh(context.Background()); err != nil {
		t.Fatalf("catalog refresh: %v", err)
	}
	svc := app.NewAttemptService(noopBackend{}, catalog, registry, zap.NewNop())
	svc.SetIntervals(time.Hour, time.Hour)
	return mr, registry, svc
}

func TestRegistryMarksLivenessInRedis(t *testing.T) {
	mr, registry, svc := newRegistryService(t)

	if _, err := svc.Start(context.Background(), "u1", "quiz-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	attempt, ok := registry.Get("u1")
	if !ok {
		t.Fatalf("expected registered attempt")
	}

	got, err := mr.Get("quiz:attempt:u1")
	if err != nil {
		t.Fatalf("liveness key: %v", err)
	}
	if got != attempt.Token() {
		t.Fatalf("liveness value must be the instance token, got %q", got)
	}
	if ttl := mr.TTL("quiz:attempt:u1"); ttl != time.Hour {
		t.Fatalf("unexpected TTL %v", ttl)
	}
}

func TestRegistryClearsLivenessOnRemove(t *testing.T) {
	mr, registry, svc := newRegistryService(t)

	if _, err := svc.Start(context.Background(), "u1", "quiz-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	attempt, _ := registry.Get("u1")

	if registry.Remove("u1", "not-the-token") {
		t.Fatalf("stale token must not remove")
	}
	if !mr.Exists("quiz:attempt:u1") {
		t.Fatalf("liveness key must survive a stale removal")
	}

	if !registry.Remove("u1", attempt.Token()) {
		t.Fatalf("matching token must remove")
	}
	if mr.Exists("quiz:attempt:u1") {
		t.Fatalf("liveness key must be cleared")
	}
	if _, ok := registry.Get("u1"); ok {
		t.Fatalf("expected empty registry")
	}
}

func TestRegistryAbandonClearsLiveness(t *testing.T) {
	mr, _, svc := newRegistryService(t)

	if _, err := svc.Start(context.Background(), "u1", "quiz-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Abandon("u1")
	if mr.Exists("quiz:attempt:u1") {
		t.Fatalf("abandon must clear the liveness marker")
	}
}
