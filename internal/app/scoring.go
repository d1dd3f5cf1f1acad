package app

import (
	"fmt"

	"trivia-engine/internal/domain"
)

// Score grades answers (question id -> chosen key) against questions.
// Missing and UNANSWERED answers count as wrong; answers for questions outside
// the set or with keys other than A-D are rejected. Details follow question order.
func Score(questions []domain.Question, answers map[string]string) (domain.Score, error) {
	if len(questions) == 0 {
		return domain.Score{}, fmt.Errorf("no questions to score: %w", domain.ErrInvalidSubmission)
	}

	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	for questionID, key := range answers {
		if _, ok := byID[questionID]; !ok {
			return domain.Score{}, fmt.Errorf("question %s is not part of this quiz: %w", questionID, domain.ErrInvalidSubmission)
		}
		if key != domain.Unanswered && !domain.IsOptionKey(key) {
			return domain.Score{}, fmt.Errorf("question %s: unknown option %q: %w", questionID, key, domain.ErrInvalidSubmission)
		}
	}

	correct := 0
	details := make([]domain.QuestionResult, 0, len(questions))
	for _, q := range questions {
		key, ok := answers[q.ID]
		right := ok && key == q.CorrectKey
		if right {
			correct++
		}
		details = append(details, domain.QuestionResult{QuestionID: q.ID, Correct: right})
	}
	total := len(questions)
	return domain.Score{
		CorrectCount: correct,
		Total:        total,
		Percentage:   100 * float64(correct) / float64(total),
		Details:      details,
	}, nil
}
