package memory

import (
	"sync"

	"quiz-gateway/internal/app"
)

// AttemptRegistry is an in-memory implementation of app.AttemptRegistry,
// keyed by user: each user has at most one live attempt.
type AttemptRegistry struct {
	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptRegistry() *AttemptRegistry {
	return &AttemptRegistry{
		attempts: make(map[string]*app.Attempt),
	}
}

func (r *AttemptRegistry) Put(userID string, attempt *app.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[userID] = attempt
}

func (r *AttemptRegistry) Get(userID string) (*app.Attempt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempt, ok := r.attempts[userID]
	return attempt, ok
}

// Remove drops the user's attempt only when the token matches, so a caller
// holding a replaced attempt cannot evict the newer one.
func (r *AttemptRegistry) Remove(userID, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt, ok := r.attempts[userID]
	if !ok || attempt.Token() != token {
		return false
	}
	delete(r.attempts, userID)
	return true
}
