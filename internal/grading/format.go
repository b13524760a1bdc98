package grading

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/english-exercises-hub/exercises-service/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// PromptSpan is one segment of a rendered prompt. Answer spans are the
// {{token}} placeholders, emphasized by every consumer; plain spans pass
// through literally. The split is purely lexical, with no nesting.
type PromptSpan struct {
	Text     string `json:"text"`
	IsAnswer bool   `json:"isAnswer"`
}

// ParsePrompt splits a prompt on {{token}} placeholders. Token inner text is
// trimmed; unmatched braces stay literal.
func ParsePrompt(prompt string) []PromptSpan {
	spans := []PromptSpan{}
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(prompt, -1) {
		if m[0] > last {
			spans = append(spans, PromptSpan{Text: prompt[last:m[0]]})
		}
		spans = append(spans, PromptSpan{Text: strings.TrimSpace(prompt[m[2]:m[3]]), IsAnswer: true})
		last = m[1]
	}
	if last < len(prompt) {
		spans = append(spans, PromptSpan{Text: prompt[last:]})
	}
	return spans
}

// RenderableOption is one multiple choice option prepared for review display.
type RenderableOption struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
	IsUserPick bool   `json:"isUserPick"`
}

// RenderableBlank is one fill blank slot prepared for review display, with
// correctness recomputed from the stored raw strings.
type RenderableBlank struct {
	Blank          string   `json:"blank"`
	UserAnswer     string   `json:"userAnswer"`
	CorrectAnswers []string `json:"correctAnswers"`
	IsCorrect      bool     `json:"isCorrect"`
}

// RenderableCorrection is one question of a stored correction array turned
// into a display-ready structure. The results page and the export path both
// consume this, so verdicts and explanation text cannot diverge between them.
type RenderableCorrection struct {
	QuestionIndex int                `json:"questionIndex"`
	PromptSpans   []PromptSpan       `json:"promptSpans"`
	IsCorrect     bool               `json:"isCorrect"`
	UserAnswer    string             `json:"userAnswer"`
	CorrectAnswer string             `json:"correctAnswer"`
	Explanation   string             `json:"explanation,omitempty"`
	Score         string             `json:"score,omitempty"`
	Options       []RenderableOption `json:"options,omitempty"`
	Blanks        []RenderableBlank  `json:"blanks,omitempty"`
}

// FormatCorrections turns a persisted correction array back into renderable
// structures, consulting the original question list for option and blank
// metadata. Fill blank correctness is re-derived from the stored answer blobs
// with the same comparison rule the engine applied at grading time; the
// cached per-blank booleans are not trusted.
func FormatCorrections(corrections []models.CorrectionResult, items []models.ExerciseItem) []RenderableCorrection {
	out := make([]RenderableCorrection, 0, len(corrections))
	for _, c := range corrections {
		rc := RenderableCorrection{
			QuestionIndex: c.QuestionIndex,
			PromptSpans:   ParsePrompt(c.Question),
			IsCorrect:     c.IsCorrect,
			UserAnswer:    c.UserAnswer,
			CorrectAnswer: c.CorrectAnswer,
			Explanation:   c.Explanation,
			Score:         c.Score,
		}

		var item *models.ExerciseItem
		if c.QuestionIndex >= 0 && c.QuestionIndex < len(items) {
			item = &items[c.QuestionIndex]
		}

		if item != nil {
			switch item.Type {
			case models.MultipleChoice:
				rc.Options = formatOptions(item, c.UserAnswer)
			case models.FillBlank:
				rc.Blanks = formatBlanks(item, c)
			}
		}

		out = append(out, rc)
	}
	return out
}

func formatOptions(item *models.ExerciseItem, userAnswer string) []RenderableOption {
	content, err := item.MultipleChoiceContent()
	if err != nil {
		return nil
	}
	opts := make([]RenderableOption, 0, len(content.Options))
	for _, opt := range content.Options {
		opts = append(opts, RenderableOption{
			ID:         opt.ID,
			Text:       opt.Text,
			IsCorrect:  opt.Correct,
			IsUserPick: opt.ID == userAnswer,
		})
	}
	return opts
}

func formatBlanks(item *models.ExerciseItem, c models.CorrectionResult) []RenderableBlank {
	content, err := item.FillBlankContent()
	if err != nil {
		return nil
	}

	userAnswers := map[string]string{}
	if err := json.Unmarshal([]byte(c.UserAnswer), &userAnswers); err != nil {
		userAnswers = map[string]string{}
	}

	acceptedByBlank := map[string][]string{}
	if err := json.Unmarshal([]byte(c.CorrectAnswer), &acceptedByBlank); err != nil {
		acceptedByBlank = map[string][]string{}
	}

	blanks := make([]RenderableBlank, 0, len(acceptedByBlank))
	for _, key := range sortedBlankKeys(acceptedByBlank) {
		accepted := acceptedByBlank[key]
		userRaw := userAnswers[key]
		blanks = append(blanks, RenderableBlank{
			Blank:          key,
			UserAnswer:     userRaw,
			CorrectAnswers: accepted,
			IsCorrect:      blankMatches(accepted, userRaw, content.CaseSensitive),
		})
	}
	return blanks
}
