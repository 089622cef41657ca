package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"quiz-gateway/internal/backend"
	"quiz-gateway/internal/domain"
)

// Backend is the slice of the external quiz service the attempt machine
// needs. The backend is the scoring and timekeeping authority; this layer
// only anticipates and reconciles its answers.
type Backend interface {
	StartAttempt(ctx context.Context, userID, quizID string) (string, error)
	SubmitAttempt(ctx context.Context, attemptID string, answers map[string]string) (int, error)
	CheckTime(ctx context.Context, attemptID string) (bool, error)
	AutoSubmit(ctx context.Context, attemptID string) error
}

// AttemptRegistry tracks the live attempt per user (in-memory, Redis, etc).
type AttemptRegistry interface {
	Put(userID string, attempt *Attempt)
	Get(userID string) (*Attempt, bool)
	// Remove drops the user's attempt only if it still carries token,
	// so a stale caller cannot evict a newer attempt.
	Remove(userID, token string) bool
}

// AttemptService orchestrates the full lifecycle of quiz attempts and
// mediates every backend call related to them.
type AttemptService struct {
	backend  Backend
	catalog  *Catalog
	registry AttemptRegistry
	log      *zap.Logger

	tickEvery time.Duration
	pollEvery time.Duration
}

func NewAttemptService(b Backend, catalog *Catalog, registry AttemptRegistry, log *zap.Logger) *AttemptService {
	return &AttemptService{
		backend:   b,
		catalog:   catalog,
		registry:  registry,
		log:       log,
		tickEvery: time.Second,
		pollEvery: 10 * time.Second,
	}
}

// SetIntervals overrides the local tick and server poll cadence.
func (s *AttemptService) SetIntervals(tick, poll time.Duration) {
	if tick > 0 {
		s.tickEvery = tick
	}
	if poll > 0 {
		s.pollEvery = poll
	}
}

// Start opens an attempt against the backend. On failure no attempt is
// created and the caller stays on the catalog view. The timer runner starts
// only after the backend confirmed the attempt.
func (s *AttemptService) Start(ctx context.Context, userID, quizID string) (domain.AttemptSnapshot, error) {
	quiz, err := s.catalog.Quiz(quizID)
	if err != nil {
		return domain.AttemptSnapshot{}, err
	}
	// question access indexes unconditionally; an empty quiz must never
	// become an attempt
	if len(quiz.Questions) == 0 {
		return domain.AttemptSnapshot{}, domain.ErrQuizEmpty
	}

	// Starting replaces any live attempt wholesale.
	if prev, ok := s.registry.Get(userID); ok {
		s.discard(prev)
	}

	attemptID, err := s.backend.StartAttempt(ctx, userID, quizID)
	if err != nil {
		s.log.Warn("start attempt failed",
			zap.String("userId", userID),
			zap.String("quizId", quizID),
			zap.Error(err))
		return domain.AttemptSnapshot{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	attempt := newAttempt(userID, attemptID, quiz, cancel)
	s.registry.Put(userID, attempt)
	go s.run(runCtx, attempt)

	s.log.Info("attempt started",
		zap.String("userId", userID),
		zap.String("quizId", quizID),
		zap.String("attemptId", attemptID),
		zap.Int("timeLimit", quiz.TimeLimitSeconds))
	return attempt.Snapshot(), nil
}

// Select records an option for a question. Local only; submission is batched.
func (s *AttemptService) Select(userID, questionID, optionID string) (domain.AttemptSnapshot, error) {
	attempt, ok := s.registry.Get(userID)
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrAttemptNotFound
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()
	if attempt.status != domain.StatusActive {
		return attempt.snapshotLocked(), domain.ErrAttemptNotActive
	}
	question, ok := attempt.questionLocked(questionID)
	if !ok {
		return attempt.snapshotLocked(), domain.ErrQuestionNotFound
	}
	if !hasOption(question, optionID) {
		return attempt.snapshotLocked(), domain.ErrOptionNotFound
	}
	attempt.answers.selectOption(questionID, optionID)
	return attempt.broadcastLocked(), nil
}

// Advance moves to the next question, or submits when the current question
// is the last one. This is the only path from the last question to
// submission.
func (s *AttemptService) Advance(ctx context.Context, userID string) (domain.AttemptSnapshot, error) {
	attempt, ok := s.registry.Get(userID)
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrAttemptNotFound
	}

	attempt.mu.Lock()
	if attempt.status != domain.StatusActive {
		snap := attempt.snapshotLocked()
		attempt.mu.Unlock()
		return snap, domain.ErrAttemptNotActive
	}
	if attempt.submitInFlight {
		snap := attempt.snapshotLocked()
		attempt.mu.Unlock()
		return snap, domain.ErrSubmitInFlight
	}
	current := attempt.quiz.Questions[attempt.current]
	if _, answered := attempt.answers.get(current.ID); !answered {
		snap := attempt.snapshotLocked()
		attempt.mu.Unlock()
		return snap, domain.ErrNoSelection
	}
	if attempt.current < len(attempt.quiz.Questions)-1 {
		attempt.current++
		snap := attempt.broadcastLocked()
		attempt.mu.Unlock()
		return snap, nil
	}
	attempt.mu.Unlock()

	return s.Submit(ctx, userID)
}

// Submit sends the answer payload to the backend. On failure the attempt
// stays Active with its answers intact so the user can retry.
func (s *AttemptService) Submit(ctx context.Context, userID string) (domain.AttemptSnapshot, error) {
	attempt, ok := s.registry.Get(userID)
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrAttemptNotFound
	}

	attempt.mu.Lock()
	if attempt.status != domain.StatusActive {
		snap := attempt.snapshotLocked()
		attempt.mu.Unlock()
		return snap, domain.ErrAttemptNotActive
	}
	if attempt.submitInFlight {
		snap := attempt.snapshotLocked()
		attempt.mu.Unlock()
		return snap, domain.ErrSubmitInFlight
	}
	attempt.submitInFlight = true
	payload := attempt.answers.payload()
	attemptID, token := attempt.id, attempt.token
	attempt.broadcastLocked()
	attempt.mu.Unlock()

	score, err := s.backend.SubmitAttempt(ctx, attemptID, payload)

	attempt.mu.Lock()
	defer attempt.mu.Unlock()
	attempt.submitInFlight = false
	if !s.isLive(attempt) || attempt.token != token {
		// attempt was abandoned or replaced while the call was in flight
		return attempt.snapshotLocked(), domain.ErrAttemptNotFound
	}
	if attempt.status != domain.StatusActive {
		// expiry won the race; its path owns the outcome
		return attempt.snapshotLocked(), nil
	}
	if err != nil {
		attempt.lastError = userMessage(err)
		s.log.Warn("submit failed",
			zap.String("attemptId", attemptID),
			zap.Error(err))
		return attempt.broadcastLocked(), err
	}
	attempt.status = domain.StatusSubmitted
	attempt.score = score
	attempt.lastError = ""
	attempt.teardownTimersLocked()
	s.log.Info("attempt submitted",
		zap.String("attemptId", attemptID),
		zap.Int("score", score),
		zap.Int("answered", attempt.answers.answered()))
	return attempt.broadcastLocked(), nil
}

// Abandon discards the user's attempt unconditionally. No backend call is
// made; all timers stop and late responses for the attempt are dropped.
func (s *AttemptService) Abandon(userID string) {
	attempt, ok := s.registry.Get(userID)
	if !ok {
		return
	}
	s.discard(attempt)
	s.log.Info("attempt abandoned",
		zap.String("userId", userID),
		zap.String("attemptId", attempt.id))
}

// DismissTimeUp acknowledges the time's-up notice, letting the shell move to
// the review screen. Only valid after an expiry-forced submission.
func (s *AttemptService) DismissTimeUp(userID string) (domain.AttemptSnapshot, error) {
	attempt, ok := s.registry.Get(userID)
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrAttemptNotFound
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()
	if attempt.status != domain.StatusSubmitted || !attempt.expiredByTimeout {
		return attempt.snapshotLocked(), domain.ErrNotExpired
	}
	attempt.timeUpAcked = true
	return attempt.broadcastLocked(), nil
}

// RetryAutoSubmit re-runs the forfeiture call after a failed auto-submit.
// Retrying is a user action; the attempt must not be silently stranded.
func (s *AttemptService) RetryAutoSubmit(ctx context.Context, userID string) (domain.AttemptSnapshot, error) {
	attempt, ok := s.registry.Get(userID)
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrAttemptNotFound
	}

	attempt.mu.Lock()
	status := attempt.status
	attempt.mu.Unlock()
	if status != domain.StatusExpired {
		return attempt.Snapshot(), domain.ErrNotExpired
	}

	err := s.autoSubmit(ctx, attempt)
	return attempt.Snapshot(), err
}

// Snapshot returns the current render-ready view of the user's attempt.
func (s *AttemptService) Snapshot(userID string) (domain.AttemptSnapshot, error) {
	attempt, ok := s.registry.Get(userID)
	if !ok {
		return domain.AttemptSnapshot{}, domain.ErrAttemptNotFound
	}
	return attempt.Snapshot(), nil
}

// Subscribe streams snapshot updates for the user's live attempt. The
// channel closes when the attempt is discarded.
func (s *AttemptService) Subscribe(userID string) (<-chan domain.AttemptSnapshot, func(), error) {
	attempt, ok := s.registry.Get(userID)
	if !ok {
		return nil, nil, domain.ErrAttemptNotFound
	}
	ch, cancel := attempt.subscribe()
	return ch, cancel, nil
}

// Review builds the reconciled per-question account of a finished attempt.
func (s *AttemptService) Review(userID string) (domain.Review, error) {
	attempt, ok := s.registry.Get(userID)
	if !ok {
		return domain.Review{}, domain.ErrAttemptNotFound
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()
	if attempt.status != domain.StatusSubmitted {
		return domain.Review{}, domain.ErrNotFinished
	}
	return buildReviewLocked(attempt), nil
}

// autoSubmit performs the forfeiture call for an expired attempt. Guarded so
// concurrent triggers collapse into one call.
func (s *AttemptService) autoSubmit(ctx context.Context, attempt *Attempt) error {
	attempt.mu.Lock()
	if attempt.status != domain.StatusExpired || attempt.autoSubmitInFlight {
		attempt.mu.Unlock()
		return nil
	}
	attempt.autoSubmitInFlight = true
	attemptID, token := attempt.id, attempt.token
	attempt.broadcastLocked()
	attempt.mu.Unlock()

	err := s.backend.AutoSubmit(ctx, attemptID)

	attempt.mu.Lock()
	defer attempt.mu.Unlock()
	attempt.autoSubmitInFlight = false
	if !s.isLive(attempt) || attempt.token != token {
		return nil
	}
	if err != nil {
		attempt.lastError = userMessage(err)
		s.log.Warn("auto-submit failed",
			zap.String("attemptId", attemptID),
			zap.Error(err))
		attempt.broadcastLocked()
		return err
	}
	// expiry forfeits the attempt: the score is zero by policy
	attempt.status = domain.StatusSubmitted
	attempt.score = 0
	attempt.expiredByTimeout = true
	attempt.lastError = ""
	s.log.Info("attempt auto-submitted after expiry", zap.String("attemptId", attemptID))
	attempt.broadcastLocked()
	return nil
}

func (s *AttemptService) discard(attempt *Attempt) {
	attempt.mu.Lock()
	attempt.teardownLocked()
	attempt.mu.Unlock()
	s.registry.Remove(attempt.userID, attempt.token)
}

// isLive reports whether the attempt is still the user's registered one.
// Responses for replaced or abandoned attempts must be discarded.
func (s *AttemptService) isLive(attempt *Attempt) bool {
	live, ok := s.registry.Get(attempt.userID)
	return ok && live.token == attempt.token
}

func hasOption(q domain.Question, optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// userMessage translates transport failures into something the shell can
// show; raw backend messages pass through.
func userMessage(err error) string {
	var apiErr *backend.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "the quiz service took too long to respond, please retry"
	}
	return "could not reach the quiz service, please retry"
}
