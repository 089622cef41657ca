package domain

import "errors"

var (
	// ErrQuizNotFound indicates the requested quiz is not in the catalog.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizEmpty rejects attempts on quizzes with no questions.
	ErrQuizEmpty = errors.New("quiz has no questions")
	// ErrAttemptNotFound is returned when a user has no live attempt.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptNotActive guards mutations against terminal attempts.
	ErrAttemptNotActive = errors.New("attempt is not active")
	// ErrQuestionNotFound indicates a selected question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates the option does not belong to the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrNoSelection blocks advancing past an unanswered question.
	ErrNoSelection = errors.New("current question has no selection")
	// ErrSubmitInFlight rejects a second submit while one is pending.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrNotExpired rejects an auto-submit retry on a non-expired attempt.
	ErrNotExpired = errors.New("attempt has not expired")
	// ErrNotFinished guards review building against unfinished attempts.
	ErrNotFinished = errors.New("attempt is not finished")
	// ErrCatalogUnavailable is returned while the catalog is loading or failed.
	ErrCatalogUnavailable = errors.New("quiz catalog unavailable")
)
