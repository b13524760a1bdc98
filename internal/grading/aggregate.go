package grading

import (
	"github.com/english-exercises-hub/exercises-service/internal/models"
)

// SubmissionResult is the rolled-up outcome of grading every question of an
// exercise. Score and TotalQuestions count scoring units: a multiple choice
// question is one unit, a fill blank question is one unit per blank, so the
// denominator is not the number of authored questions.
type SubmissionResult struct {
	Corrections    []models.CorrectionResult
	Score          int
	TotalQuestions int
}

// AggregateSubmission grades a full answer set against the exercise's
// question list. Answers are keyed by models.AnswerKey (q_<index>); a missing
// key grades as an empty answer. The call is deterministic and side-effect
// free; repeated calls with the same inputs produce identical corrections.
func AggregateSubmission(items []models.ExerciseItem, answers map[string]models.Answer) SubmissionResult {
	corrections := make([]models.CorrectionResult, 0, len(items))
	score := 0
	units := 0

	for i, item := range items {
		answer := answers[models.AnswerKey(i)]
		result := Grade(item, answer)

		corrections = append(corrections, models.CorrectionResult{
			QuestionIndex: i,
			Question:      item.Prompt,
			UserAnswer:    storedAnswer(item, answer),
			IsCorrect:     result.IsCorrect,
			CorrectAnswer: result.CorrectAnswer,
			Explanation:   result.Explanation,
			BlankResults:  result.BlankResults,
			Score:         result.Score,
		})

		if len(result.BlankResults) > 0 {
			for _, blank := range result.BlankResults {
				units++
				if blank.IsCorrect {
					score++
				}
			}
		} else {
			units++
			if result.IsCorrect {
				score++
			}
		}
	}

	return SubmissionResult{
		Corrections:    corrections,
		Score:          score,
		TotalQuestions: units,
	}
}

// storedAnswer is the string form of the answer kept inside the correction
// record: the option id for single answers, the serialized blank map for fill
// blank answers, so review can re-parse it without the original payload.
func storedAnswer(item models.ExerciseItem, answer models.Answer) string {
	if item.Type == models.FillBlank || answer.IsBlanks {
		return string(models.Answer{Blanks: answer.BlanksOrEmpty(), IsBlanks: true}.Raw())
	}
	return answer.Single
}
