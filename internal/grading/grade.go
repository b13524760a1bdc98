// Package grading implements the answer-correction core: scoring a single
// question, aggregating a whole submission, and re-rendering stored
// corrections for review and export. Everything in this package is pure;
// persistence and transport live in services and handlers.
package grading

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/english-exercises-hub/exercises-service/internal/models"
)

// GradeResult is the verdict for one question. CorrectAnswer is display text:
// the correct option's text for multiple choice, the serialized blanks map for
// fill blank. Score is the human-readable "<correct>/<total>" blank count,
// set only for fill blank questions.
type GradeResult struct {
	IsCorrect     bool
	CorrectAnswer string
	Explanation   string
	BlankResults  []models.BlankResult
	Score         string
}

// Grade scores one question against the learner's answer. It is total over
// its inputs: malformed content, empty answers and unknown question types all
// resolve to an incorrect verdict, never an error.
func Grade(item models.ExerciseItem, answer models.Answer) GradeResult {
	switch item.Type {
	case models.MultipleChoice:
		return gradeMultipleChoice(item, answer)
	case models.FillBlank:
		return gradeFillBlank(item, answer)
	default:
		// Unknown and container types are not gradable.
		return GradeResult{IsCorrect: false, CorrectAnswer: ""}
	}
}

func gradeMultipleChoice(item models.ExerciseItem, answer models.Answer) GradeResult {
	content, err := item.MultipleChoiceContent()
	if err != nil {
		return GradeResult{IsCorrect: false, CorrectAnswer: ""}
	}

	// The answer is the selected option's id, never its text. Any option
	// flagged correct matches; the first one supplies the display text.
	correctIDs := content.CorrectOptionIDs()
	first := content.FirstCorrectOption()

	correctText := ""
	if first != nil {
		correctText = first.Text
	}

	selected := strings.TrimSpace(answer.Single)
	return GradeResult{
		IsCorrect:     selected != "" && correctIDs[selected],
		CorrectAnswer: correctText,
		Explanation:   content.Explanation,
	}
}

func gradeFillBlank(item models.ExerciseItem, answer models.Answer) GradeResult {
	content, err := item.FillBlankContent()
	if err != nil {
		return GradeResult{IsCorrect: false, CorrectAnswer: ""}
	}

	userAnswers := answer.BlanksOrEmpty()

	correctCount := 0
	results := make([]models.BlankResult, 0, len(content.Blanks))
	for _, key := range sortedBlankKeys(content.Blanks) {
		accepted := content.Blanks[key]
		userRaw := userAnswers[key]
		ok := blankMatches(accepted, userRaw, content.CaseSensitive)
		if ok {
			correctCount++
		}
		results = append(results, models.BlankResult{
			Blank:          key,
			UserAnswer:     userRaw,
			CorrectAnswers: accepted,
			IsCorrect:      ok,
		})
	}

	// One wrong or missing blank fails the whole question; per-blank results
	// stay around so the aggregate can still award the rest.
	total := len(results)
	return GradeResult{
		IsCorrect:     total > 0 && correctCount == total,
		CorrectAnswer: serializeBlanks(content.Blanks),
		Explanation:   content.Explanation,
		BlankResults:  results,
		Score:         fmt.Sprintf("%d/%d", correctCount, total),
	}
}

// blankMatches applies the single comparison rule shared by grading and the
// review formatter: trim the user's answer, then test literal equality against
// each accepted answer, lower-casing both sides when case-insensitive.
func blankMatches(accepted []string, userRaw string, caseSensitive bool) bool {
	user := strings.TrimSpace(userRaw)
	for _, want := range accepted {
		if caseSensitive {
			if want == user {
				return true
			}
		} else if strings.ToLower(want) == strings.ToLower(user) {
			return true
		}
	}
	return false
}

// sortedBlankKeys fixes an iteration order so repeated grading of the same
// inputs yields identical correction records.
func sortedBlankKeys(blanks map[string][]string) []string {
	keys := make([]string, 0, len(blanks))
	for k := range blanks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func serializeBlanks(blanks map[string][]string) string {
	b, err := json.Marshal(blanks)
	if err != nil {
		return "{}"
	}
	return string(b)
}
