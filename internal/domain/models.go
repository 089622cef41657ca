package domain

// Difficulty labels a quiz for catalog display.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Option represents a possible answer for a question. Correct is only
// trustworthy once it arrived embedded in backend quiz data.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Quiz is an immutable catalog entry with embedded questions.
// TimeLimitSeconds of zero means the quiz is untimed.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         string     `json:"category"`
	Difficulty       Difficulty `json:"difficulty"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"`
	Icon             string     `json:"icon"`
	Color            string     `json:"color"`
	Questions        []Question `json:"questions"`
}

// EstimatedSeconds reports the expected duration shown on catalog cards:
// the explicit limit when one exists, otherwise 30s per question.
func (q Quiz) EstimatedSeconds() int {
	if q.TimeLimitSeconds > 0 {
		return q.TimeLimitSeconds
	}
	return len(q.Questions) * 30
}

// AttemptStatus enumerates the attempt lifecycle.
// Legal transitions: NotStarted -> Active -> {Submitted | Expired -> Submitted}.
type AttemptStatus string

const (
	StatusNotStarted AttemptStatus = "not_started"
	StatusActive     AttemptStatus = "active"
	StatusExpired    AttemptStatus = "expired"
	StatusSubmitted  AttemptStatus = "submitted"
)

// Phase is the coarse view the presentational shell switches on.
type Phase string

const (
	PhaseExplore Phase = "explore"
	PhaseActive  Phase = "active"
	PhaseTimeUp  Phase = "timeup"
	PhaseReview  Phase = "review"
)

// AttemptSnapshot is a render-ready, immutable view of an attempt.
type AttemptSnapshot struct {
	AttemptID        string        `json:"attemptId"`
	QuizID           string        `json:"quizId"`
	QuizTitle        string        `json:"quizTitle"`
	Status           AttemptStatus `json:"status"`
	Phase            Phase         `json:"phase"`
	QuestionIndex    int           `json:"questionIndex"`
	QuestionCount    int           `json:"questionCount"`
	Question         *Question     `json:"question,omitempty"`
	SelectedOptionID string        `json:"selectedOptionId,omitempty"`
	ElapsedSeconds   int           `json:"elapsedSeconds"`
	ElapsedDisplay   string        `json:"elapsedDisplay"`
	TimeLimitSeconds int           `json:"timeLimitSeconds"`
	RemainingSeconds int           `json:"remainingSeconds"`
	Score            int           `json:"score"`
	Busy             bool          `json:"busy"`
	LastError        string        `json:"lastError,omitempty"`
}

// ReviewQuestion is the per-question reconciliation row.
type ReviewQuestion struct {
	QuestionID      string `json:"questionId"`
	Text            string `json:"text"`
	Answered        bool   `json:"answered"`
	Correct         bool   `json:"correct"`
	SelectedText    string `json:"selectedText"`
	CorrectOptionID string `json:"correctOptionId"`
	CorrectText     string `json:"correctText"`
}

// Review is the server-grounded account of a completed attempt. Questions is
// nil when the attempt expired; that path gets a single explanatory message.
type Review struct {
	QuizID         string           `json:"quizId"`
	QuizTitle      string           `json:"quizTitle"`
	Score          int              `json:"score"`
	Total          int              `json:"total"`
	Expired        bool             `json:"expired"`
	Tier           ResultTier       `json:"tier"`
	Message        string           `json:"message"`
	ElapsedSeconds int              `json:"elapsedSeconds"`
	ElapsedDisplay string           `json:"elapsedDisplay"`
	Questions      []ReviewQuestion `json:"questions,omitempty"`
}

// ResultTier bands the aggregate outcome for display.
type ResultTier string

const (
	TierPerfect      ResultTier = "perfect"
	TierGood         ResultTier = "good"
	TierKeepLearning ResultTier = "keep_learning"
)

// CatalogState is the loader tri-state.
type CatalogState string

const (
	CatalogLoading CatalogState = "loading"
	CatalogReady   CatalogState = "ready"
	CatalogError   CatalogState = "error"
)
