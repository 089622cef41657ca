package app

import "quiz-gateway/internal/domain"

const expiredMessage = "Time is up. The attempt was submitted automatically and scored 0."

// buildReviewLocked reconciles the student's recorded selections with the
// server-asserted correctness flags on the quiz's options. Correctness is
// never re-derived client-side: the flag on the selected option is the truth.
// An expired attempt gets no per-question breakdown, only the aggregate
// message; that simplification is part of the contract.
func buildReviewLocked(a *Attempt) domain.Review {
	review := domain.Review{
		QuizID:         a.quiz.ID,
		QuizTitle:      a.quiz.Title,
		Score:          a.score,
		Total:          len(a.quiz.Questions),
		Expired:        a.expiredByTimeout,
		ElapsedSeconds: a.elapsed,
		ElapsedDisplay: formatClock(a.elapsed),
	}

	if a.expiredByTimeout {
		review.Tier = domain.TierKeepLearning
		review.Message = expiredMessage
		return review
	}

	review.Tier = tierFor(a.score, len(a.quiz.Questions))
	review.Message = tierMessage(review.Tier)
	review.Questions = make([]domain.ReviewQuestion, 0, len(a.quiz.Questions))
	for _, question := range a.quiz.Questions {
		row := domain.ReviewQuestion{
			QuestionID: question.ID,
			Text:       question.Text,
		}
		if correct, ok := correctOption(question); ok {
			row.CorrectOptionID = correct.ID
			row.CorrectText = correct.Text
		}
		if selectedID, ok := a.answers.get(question.ID); ok {
			row.Answered = true
			for _, opt := range question.Options {
				if opt.ID == selectedID {
					row.SelectedText = opt.Text
					row.Correct = opt.Correct
					break
				}
			}
		}
		review.Questions = append(review.Questions, row)
	}
	return review
}

func correctOption(q domain.Question) (domain.Option, bool) {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt, true
		}
	}
	return domain.Option{}, false
}

// tierFor bands the aggregate outcome: perfect, half-or-more, below half.
// Display only, not safety-critical.
func tierFor(score, total int) domain.ResultTier {
	switch {
	case total > 0 && score == total:
		return domain.TierPerfect
	case score*2 >= total:
		return domain.TierGood
	default:
		return domain.TierKeepLearning
	}
}

func tierMessage(tier domain.ResultTier) string {
	switch tier {
	case domain.TierPerfect:
		return "Perfect score!"
	case domain.TierGood:
		return "Good work!"
	default:
		return "Keep learning!"
	}
}
