package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"quiz-gateway/internal/domain"
)

// Attempt is one student's run through a quiz. All state is owned here and
// mutated only through AttemptService operations, which keeps the legal
// transitions centralized. The token identifies this in-memory instance so
// that responses arriving after the attempt was replaced or abandoned can be
// recognized as stale and discarded.
type Attempt struct {
	mu sync.Mutex

	token  string
	id     string
	userID string
	quiz   domain.Quiz

	status  domain.AttemptStatus
	current int
	answers *answerSet
	elapsed int
	limit   int
	score   int

	expiryFired        bool
	expiredByTimeout   bool
	timeUpAcked        bool
	submitInFlight     bool
	autoSubmitInFlight bool
	lastError          string

	cancel      context.CancelFunc
	subscribers map[chan domain.AttemptSnapshot]struct{}
}

func newAttempt(userID, attemptID string, quiz domain.Quiz, cancel context.CancelFunc) *Attempt {
	return &Attempt{
		token:       uuid.NewString(),
		id:          attemptID,
		userID:      userID,
		quiz:        quiz,
		status:      domain.StatusActive,
		answers:     newAnswerSet(),
		limit:       quiz.TimeLimitSeconds,
		cancel:      cancel,
		subscribers: make(map[chan domain.AttemptSnapshot]struct{}),
	}
}

// Token identifies this attempt instance for stale-response guards.
func (a *Attempt) Token() string {
	return a.token
}

// UserID reports the attempt owner.
func (a *Attempt) UserID() string {
	return a.userID
}

// Snapshot returns a render-ready view of the attempt.
func (a *Attempt) Snapshot() domain.AttemptSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Attempt) snapshotLocked() domain.AttemptSnapshot {
	snap := domain.AttemptSnapshot{
		AttemptID:        a.id,
		QuizID:           a.quiz.ID,
		QuizTitle:        a.quiz.Title,
		Status:           a.status,
		Phase:            a.phaseLocked(),
		QuestionIndex:    a.current,
		QuestionCount:    len(a.quiz.Questions),
		ElapsedSeconds:   a.elapsed,
		ElapsedDisplay:   formatClock(a.elapsed),
		TimeLimitSeconds: a.limit,
		RemainingSeconds: a.remainingLocked(),
		Score:            a.score,
		Busy:             a.submitInFlight || a.autoSubmitInFlight,
		LastError:        a.lastError,
	}
	if a.status == domain.StatusActive && a.current < len(a.quiz.Questions) {
		q := a.quiz.Questions[a.current]
		snap.Question = &q
		if optionID, ok := a.answers.get(q.ID); ok {
			snap.SelectedOptionID = optionID
		}
	}
	return snap
}

func (a *Attempt) phaseLocked() domain.Phase {
	switch a.status {
	case domain.StatusActive:
		return domain.PhaseActive
	case domain.StatusExpired:
		return domain.PhaseTimeUp
	case domain.StatusSubmitted:
		if a.expiredByTimeout && !a.timeUpAcked {
			return domain.PhaseTimeUp
		}
		return domain.PhaseReview
	default:
		return domain.PhaseExplore
	}
}

// remainingLocked clamps at zero; the countdown must never display negative.
func (a *Attempt) remainingLocked() int {
	if a.limit <= 0 {
		return 0
	}
	remaining := a.limit - a.elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (a *Attempt) questionLocked(questionID string) (domain.Question, bool) {
	for _, q := range a.quiz.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return domain.Question{}, false
}

// subscribe registers a snapshot listener. The caller must invoke the
// returned cancel function to avoid leaks.
func (a *Attempt) subscribe() (<-chan domain.AttemptSnapshot, func()) {
	ch := make(chan domain.AttemptSnapshot, 8)

	// the send happens under the lock so a concurrent teardown cannot close
	// ch first; the fresh buffered channel never blocks here
	a.mu.Lock()
	a.subscribers[ch] = struct{}{}
	ch <- a.snapshotLocked()
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if _, ok := a.subscribers[ch]; ok {
			delete(a.subscribers, ch)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *Attempt) broadcastLocked() domain.AttemptSnapshot {
	snap := a.snapshotLocked()
	for ch := range a.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the oldest update so a slow shell never blocks the attempt
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

// teardownTimersLocked stops the tick/poll runner. Called on every exit path
// from Active; subscribers stay open so the shell still sees the terminal
// snapshots.
func (a *Attempt) teardownTimersLocked() {
	if a.cancel != nil {
		a.cancel()
	}
}

// teardownLocked stops the runner and closes all listeners. Used when the
// attempt is discarded outright.
func (a *Attempt) teardownLocked() {
	a.teardownTimersLocked()
	for ch := range a.subscribers {
		delete(a.subscribers, ch)
		close(ch)
	}
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
