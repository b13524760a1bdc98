package validator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/english-exercises-hub/exercises-service/internal/models"
)

// SchemaMismatchError reports an exercise item whose declared type and
// content payload disagree. It is surfaced at authoring time; grading never
// raises it and instead degrades to an incorrect verdict.
type SchemaMismatchError struct {
	Index  int
	Type   models.QuestionType
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("question %d (%s): %s", e.Index+1, e.Type, e.Reason)
}

func newSchemaMismatch(index int, qt models.QuestionType, format string, args ...interface{}) error {
	return &SchemaMismatchError{Index: index, Type: qt, Reason: fmt.Sprintf(format, args...)}
}

// MinPromptLength matches the authoring form constraint.
const MinPromptLength = 5

var placeholderPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// ItemValidator handles exercise-item structural validation
type ItemValidator struct{}

// NewItemValidator creates a new item validator
func NewItemValidator() *ItemValidator {
	return &ItemValidator{}
}

// ValidateItem checks one question: prompt length, a known type, and strict
// agreement between the declared type and the content payload shape.
func (v *ItemValidator) ValidateItem(index int, item *models.ExerciseItem) error {
	if len(strings.TrimSpace(item.Prompt)) < MinPromptLength {
		return newSchemaMismatch(index, item.Type, "prompt must be at least %d characters", MinPromptLength)
	}

	switch item.Type {
	case models.MultipleChoice:
		return v.validateMultipleChoice(index, item)
	case models.FillBlank:
		return v.validateFillBlank(index, item)
	case models.ImportWord:
		// Containers are flattened before a book is stored; one surviving
		// here is an authoring bug.
		return newSchemaMismatch(index, item.Type, "import_word must be expanded before storage")
	default:
		return newSchemaMismatch(index, item.Type, "unknown question type")
	}
}

// ValidateItems validates a book's full question list.
func (v *ItemValidator) ValidateItems(items []models.ExerciseItem) error {
	if len(items) == 0 {
		return fmt.Errorf("exercise must have at least 1 question")
	}
	for i := range items {
		if err := v.ValidateItem(i, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *ItemValidator) validateMultipleChoice(index int, item *models.ExerciseItem) error {
	var content models.MultipleChoiceContent
	if err := json.Unmarshal(item.Content, &content); err != nil {
		return newSchemaMismatch(index, item.Type, "content does not match multiple_choice schema")
	}
	if len(content.Options) < 2 {
		return newSchemaMismatch(index, item.Type, "must have at least 2 options")
	}

	correctCount := 0
	seen := make(map[string]bool, len(content.Options))
	for _, opt := range content.Options {
		if opt.ID == "" || opt.Text == "" {
			return newSchemaMismatch(index, item.Type, "options must have both id and text")
		}
		if seen[opt.ID] {
			return newSchemaMismatch(index, item.Type, "duplicate option id %q", opt.ID)
		}
		seen[opt.ID] = true
		if opt.Correct {
			correctCount++
		}
	}

	if correctCount == 0 {
		return newSchemaMismatch(index, item.Type, "must have at least 1 correct option")
	}
	if correctCount > 1 && !content.AllowMultiple {
		return newSchemaMismatch(index, item.Type, "multiple correct options require allowMultiple")
	}

	return nil
}

func (v *ItemValidator) validateFillBlank(index int, item *models.ExerciseItem) error {
	var content models.FillBlankContent
	if err := json.Unmarshal(item.Content, &content); err != nil {
		return newSchemaMismatch(index, item.Type, "content does not match fill_blank schema")
	}
	if content.Text == "" {
		return newSchemaMismatch(index, item.Type, "text is required")
	}
	if len(content.Blanks) == 0 {
		return newSchemaMismatch(index, item.Type, "must have at least 1 blank")
	}

	for key, accepted := range content.Blanks {
		if len(accepted) == 0 {
			return newSchemaMismatch(index, item.Type, "blank %q must have at least 1 accepted answer", key)
		}
		for _, answer := range accepted {
			if strings.TrimSpace(answer) == "" {
				return newSchemaMismatch(index, item.Type, "blank %q has an empty accepted answer", key)
			}
		}
	}

	// Placeholders and blank keys must be a bijection: an unmatched
	// {{token}} would render as literal text, an unreferenced key would be
	// graded invisibly.
	inText := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(content.Text, -1) {
		inText[strings.TrimSpace(m[1])] = true
	}
	for key := range content.Blanks {
		if !inText[key] {
			return newSchemaMismatch(index, item.Type, "blank %q has no {{%s}} placeholder in text", key, key)
		}
	}
	for token := range inText {
		if _, ok := content.Blanks[token]; !ok {
			return newSchemaMismatch(index, item.Type, "placeholder {{%s}} has no blank definition", token)
		}
	}

	return nil
}
