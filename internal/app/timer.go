package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"quiz-gateway/internal/domain"
)

// run is the per-attempt timer runner: a local 1s tick and, for timed
// quizzes, a server time-check poll. Both stop when the attempt's context is
// cancelled, which happens on every exit from Active. The poll call is made
// synchronously inside the loop so cycles never overlap.
func (s *AttemptService) run(ctx context.Context, attempt *Attempt) {
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	var poll <-chan time.Time
	if attempt.limit > 0 {
		pollTicker := time.NewTicker(s.pollEvery)
		defer pollTicker.Stop()
		poll = pollTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(attempt)
		case <-poll:
			s.pollTimeCheck(ctx, attempt)
		}
	}
}

// tick advances the local clock by one second and fires local expiry the
// instant remaining time reaches zero. It does not wait for the server.
func (s *AttemptService) tick(attempt *Attempt) {
	attempt.mu.Lock()
	if attempt.status != domain.StatusActive || attempt.expiryFired {
		attempt.mu.Unlock()
		return
	}
	attempt.elapsed++
	expired := attempt.limit > 0 && attempt.elapsed >= attempt.limit
	attempt.broadcastLocked()
	attempt.mu.Unlock()

	if expired {
		s.expire(attempt, "local")
	}
}

// pollTimeCheck asks the backend whether it independently considers the
// attempt's time exceeded, covering clock drift and suspended tabs. Failures
// are transient and never user-facing; the next cycle retries.
func (s *AttemptService) pollTimeCheck(ctx context.Context, attempt *Attempt) {
	attempt.mu.Lock()
	if attempt.status != domain.StatusActive || attempt.limit <= 0 {
		attempt.mu.Unlock()
		return
	}
	attemptID := attempt.id
	attempt.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.pollEvery)
	defer cancel()
	exceeded, err := s.backend.CheckTime(callCtx, attemptID)
	if err != nil {
		s.log.Debug("check-time poll failed",
			zap.String("attemptId", attemptID),
			zap.Error(err))
		return
	}
	if !exceeded {
		return
	}
	if !s.isLive(attempt) {
		// late answer for a discarded attempt
		return
	}
	s.expire(attempt, "server")
}

// expire is the idempotent expiry routine: first trigger wins, any later
// trigger is a no-op. It stops the timers, marks the attempt Expired and
// hands off to the auto-submit call, which forfeits the attempt server-side.
func (s *AttemptService) expire(attempt *Attempt, source string) {
	attempt.mu.Lock()
	if attempt.expiryFired || attempt.status != domain.StatusActive {
		attempt.mu.Unlock()
		return
	}
	attempt.expiryFired = true
	attempt.status = domain.StatusExpired
	attempt.teardownTimersLocked()
	attempt.broadcastLocked()
	attempt.mu.Unlock()

	s.log.Info("attempt expired",
		zap.String("attemptId", attempt.id),
		zap.String("trigger", source))

	// the runner context is being torn down; the forfeiture call gets its own
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = s.autoSubmit(ctx, attempt)
}
