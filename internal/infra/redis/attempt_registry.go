package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-gateway/internal/app"
)

// AttemptRegistry is a Redis-aware implementation of app.AttemptRegistry.
// Notes:
//   - Attempts themselves stay in-process; their timer runners and
//     subscriber channels cannot be serialized.
//   - Redis marks attempt liveness per user with the instance token as the
//     value, so an operator can see which gateway instance owns a user's
//     attempt and stale entries age out with the TTL.
type AttemptRegistry struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptRegistry(client *redis.Client, ttl time.Duration) *AttemptRegistry {
	return &AttemptRegistry{
		client:   client,
		ttl:      ttl,
		attempts: make(map[string]*app.Attempt),
	}
}

func (r *AttemptRegistry) Put(userID string, attempt *app.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[userID] = attempt
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(userID), attempt.Token(), r.ttl).Err()
}

func (r *AttemptRegistry) Get(userID string) (*app.Attempt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempt, ok := r.attempts[userID]
	return attempt, ok
}

func (r *AttemptRegistry) Remove(userID, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[userID]
	if !ok || attempt.Token() != token {
		return false
	}
	delete(r.attempts, userID)
	_ = r.client.Del(context.Background(), r.key(userID)).Err()
	return true
}

func (r *AttemptRegistry) key(userID string) string {
	return "quiz:attempt:" + userID
}
