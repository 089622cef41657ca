package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"quiz-gateway/internal/domain"
)

// CatalogProvider serves quiz content, usually through a TTL cache in front
// of the backend (see internal/infra).
type CatalogProvider interface {
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// Catalog exposes the loading/error/ready tri-state of the quiz list. A
// failed load keeps the view usable; Refresh retries.
type Catalog struct {
	provider CatalogProvider
	log      *zap.Logger

	mu      sync.RWMutex
	state   domain.CatalogState
	quizzes []domain.Quiz
	lastErr string
}

func NewCatalog(provider CatalogProvider, log *zap.Logger) *Catalog {
	return &Catalog{
		provider: provider,
		log:      log,
		state:    domain.CatalogLoading,
	}
}

// Refresh fetches the catalog. On failure the previous quizzes (if any) are
// kept so a transient error does not blank the view.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.state = domain.CatalogLoading
	c.mu.Unlock()

	quizzes, err := c.provider.ListQuizzes(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = domain.CatalogError
		c.lastErr = userMessage(err)
		c.log.Warn("catalog load failed", zap.Error(err))
		return err
	}
	c.state = domain.CatalogReady
	c.quizzes = quizzes
	c.lastErr = ""
	c.log.Info("catalog loaded", zap.Int("quizzes", len(quizzes)))
	return nil
}

// State reports the tri-state plus the current quiz list and, when failed,
// the user-facing error message.
func (c *Catalog) State() (domain.CatalogState, []domain.Quiz, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quizzes := make([]domain.Quiz, len(c.quizzes))
	copy(quizzes, c.quizzes)
	return c.state, quizzes, c.lastErr
}

// Quiz looks up a catalog entry by ID.
func (c *Catalog) Quiz(quizID string) (domain.Quiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != domain.CatalogReady {
		return domain.Quiz{}, domain.ErrCatalogUnavailable
	}
	for _, quiz := range c.quizzes {
		if quiz.ID == quizID {
			return quiz, nil
		}
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
