package app

// answerSet holds the student's working answers for one attempt.
// Not safe for concurrent use; callers hold the attempt lock.
type answerSet struct {
	chosen map[string]string
}

func newAnswerSet() *answerSet {
	return &answerSet{chosen: make(map[string]string)}
}

// selectOption records the choice for a question. Last write wins.
func (s *answerSet) selectOption(questionID, optionID string) {
	s.chosen[questionID] = optionID
}

func (s *answerSet) get(questionID string) (string, bool) {
	optionID, ok := s.chosen[questionID]
	return optionID, ok
}

// payload builds the submission mapping, restricted to answered questions.
// Unanswered questions are simply absent; the backend treats them as
// incorrect.
func (s *answerSet) payload() map[string]string {
	out := make(map[string]string, len(s.chosen))
	for questionID, optionID := range s.chosen {
		out[questionID] = optionID
	}
	return out
}

func (s *answerSet) answered() int {
	return len(s.chosen)
}
