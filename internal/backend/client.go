package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quiz-gateway/internal/domain"
	"go.uber.org/zap"
)

// Client talks to the external quiz persistence backend. The backend owns all
// durable state and is the scoring authority; this client only transports.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Error is a non-success response from the backend, carrying its message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("backend: unexpected status %d", e.Status)
}

// StartAttempt asks the backend to open an attempt and returns its ID.
func (c *Client) StartAttempt(ctx context.Context, userID, quizID string) (string, error) {
	q := url.Values{"userId": {userID}, "quizId": {quizID}}
	var resp struct {
		AttemptID string `json:"attemptId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/quiz-attempts/start?"+q.Encode(), nil, &resp); err != nil {
		return "", fmt.Errorf("start attempt: %w", err)
	}
	if resp.AttemptID == "" {
		return "", fmt.Errorf("start attempt: backend returned empty attempt id")
	}
	return resp.AttemptID, nil
}

// SubmitAttempt sends the answered question->option mapping and returns the
// server-declared count of correct answers.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID string, answers map[string]string) (int, error) {
	body := struct {
		Answers map[string]string `json:"answers"`
	}{Answers: answers}
	var resp struct {
		CorrectAnswers int `json:"correctAnswers"`
	}
	path := "/quiz-attempts/" + url.PathEscape(attemptID) + "/submit"
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return 0, fmt.Errorf("submit attempt: %w", err)
	}
	return resp.CorrectAnswers, nil
}

// CheckTime asks whether the server independently considers the attempt's
// time exceeded.
func (c *Client) CheckTime(ctx context.Context, attemptID string) (bool, error) {
	var resp struct {
		TimeExceeded bool `json:"timeExceeded"`
	}
	path := "/quiz-attempts/" + url.PathEscape(attemptID) + "/check-time"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, fmt.Errorf("check time: %w", err)
	}
	return resp.TimeExceeded, nil
}

// AutoSubmit forfeits an expired attempt. The backend forces a zero score
// regardless of response detail.
func (c *Client) AutoSubmit(ctx context.Context, attemptID string) error {
	path := "/quiz-attempts/" + url.PathEscape(attemptID) + "/auto-submit"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("auto-submit: %w", err)
	}
	return nil
}

// ListQuizzes fetches the catalog with embedded questions and options.
// Polymorphic option shapes are normalized here; nothing past this boundary
// branches on shape.
func (c *Client) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var wire []wireQuiz
	if err := c.doJSON(ctx, http.MethodGet, "/quizzes", nil, &wire); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	quizzes := make([]domain.Quiz, 0, len(wire))
	for _, w := range wire {
		quizzes = append(quizzes, w.toDomain())
	}
	return quizzes, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		c.log.Debug("backend call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

// flexID tolerates IDs arriving as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type wireQuiz struct {
	ID          flexID         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Difficulty  string         `json:"difficulty"`
	TimeLimit   int            `json:"timeLimit"`
	Icon        string         `json:"icon"`
	Color       string         `json:"color"`
	Questions   []wireQuestion `json:"questions"`
}

type wireQuestion struct {
	ID      flexID       `json:"id"`
	Text    string       `json:"text"`
	Options []wireOption `json:"options"`
}

// wireOption accepts either the canonical {id,text,correct} object or a bare
// display string, as older backend payloads ship.
type wireOption struct {
	ID      flexID `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

func (o *wireOption) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = wireOption{Text: s}
		return nil
	}
	type plain wireOption
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = wireOption(p)
	return nil
}

func (w wireQuiz) toDomain() domain.Quiz {
	quiz := domain.Quiz{
		ID:               string(w.ID),
		Title:            w.Title,
		Description:      w.Description,
		Category:         w.Category,
		Difficulty:       normalizeDifficulty(w.Difficulty),
		TimeLimitSeconds: w.TimeLimit,
		Icon:             w.Icon,
		Color:            w.Color,
		Questions:        make([]domain.Question, 0, len(w.Questions)),
	}
	for _, q := range w.Questions {
		question := domain.Question{
			ID:      string(q.ID),
			Text:    q.Text,
			Options: make([]domain.Option, 0, len(q.Options)),
		}
		for i, opt := range q.Options {
			id := string(opt.ID)
			if id == "" {
				// bare-string options carry no ID; position is the identity
				id = "opt-" + strconv.Itoa(i+1)
			}
			question.Options = append(question.Options, domain.Option{
				ID:      id,
				Text:    opt.Text,
				Correct: opt.Correct,
			})
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz
}

func normalizeDifficulty(raw string) domain.Difficulty {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "beginner", "easy":
		return domain.DifficultyBeginner
	case "intermediate", "medium":
		return domain.DifficultyIntermediate
	case "advanced", "hard":
		return domain.DifficultyAdvanced
	default:
		return domain.Difficulty(strings.ToLower(strings.TrimSpace(raw)))
	}
}
