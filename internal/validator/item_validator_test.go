package validator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/english-exercises-hub/exercises-service/internal/models"
)

func mcItem(t *testing.T, prompt string, content models.MultipleChoiceContent) models.ExerciseItem {
	t.Helper()
	raw, err := json.Marshal(content)
	require.NoError(t, err)
	return models.ExerciseItem{ID: "q1", Type: models.MultipleChoice, Prompt: prompt, Content: raw}
}

func fbItem(t *testing.T, prompt string, content models.FillBlankContent) models.ExerciseItem {
	t.Helper()
	raw, err := json.Marshal(content)
	require.NoError(t, err)
	return models.ExerciseItem{ID: "q1", Type: models.FillBlank, Prompt: prompt, Content: raw}
}

func TestValidateItem_MultipleChoice(t *testing.T) {
	v := NewItemValidator()

	tests := []struct {
		name    string
		item    models.ExerciseItem
		wantErr string
	}{
		{
			name: "valid single answer",
			item: mcItem(t, "Choose the correct verb form", models.MultipleChoiceContent{
				Options: []models.Option{
					{ID: "a", Text: "goes", Correct: true},
					{ID: "b", Text: "go"},
				},
			}),
		},
		{
			name: "valid multiple answers with allowMultiple",
			item: mcItem(t, "Select all the nouns", models.MultipleChoiceContent{
				Options: []models.Option{
					{ID: "a", Text: "house", Correct: true},
					{ID: "b", Text: "run"},
					{ID: "c", Text: "city", Correct: true},
				},
				AllowMultiple: true,
			}),
		},
		{
			name: "prompt too short",
			item: mcItem(t, "Why?", models.MultipleChoiceContent{
				Options: []models.Option{
					{ID: "a", Text: "goes", Correct: true},
					{ID: "b", Text: "go"},
				},
			}),
			wantErr: "prompt must be at least 5 characters",
		},
		{
			name: "single option",
			item: mcItem(t, "Choose the correct verb form", models.MultipleChoiceContent{
				Options: []models.Option{{ID: "a", Text: "goes", Correct: true}},
			}),
			wantErr: "at least 2 options",
		},
		{
			name: "no correct option",
			item: mcItem(t, "Choose the correct verb form", models.MultipleChoiceContent{
				Options: []models.Option{
					{ID: "a", Text: "goes"},
					{ID: "b", Text: "go"},
				},
			}),
			wantErr: "at least 1 correct option",
		},
		{
			name: "two correct options without allowMultiple",
			item: mcItem(t, "Choose the correct verb form", models.MultipleChoiceContent{
				Options: []models.Option{
					{ID: "a", Text: "goes", Correct: true},
					{ID: "b", Text: "go", Correct: true},
				},
			}),
			wantErr: "require allowMultiple",
		},
		{
			name: "duplicate option id",
			item: mcItem(t, "Choose the correct verb form", models.MultipleChoiceContent{
				Options: []models.Option{
					{ID: "a", Text: "goes", Correct: true},
					{ID: "a", Text: "go"},
				},
			}),
			wantErr: `duplicate option id "a"`,
		},
		{
			name: "option missing text",
			item: mcItem(t, "Choose the correct verb form", models.MultipleChoiceContent{
				Options: []models.Option{
					{ID: "a", Text: "goes", Correct: true},
					{ID: "b", Text: ""},
				},
			}),
			wantErr: "both id and text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateItem(0, &tt.item)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateItem_FillBlank(t *testing.T) {
	v := NewItemValidator()

	tests := []struct {
		name    string
		item    models.ExerciseItem
		wantErr string
	}{
		{
			name: "valid two blanks",
			item: fbItem(t, "Complete the sentence", models.FillBlankContent{
				Text: "She {{verb}} to school every {{noun}}.",
				Blanks: map[string][]string{
					"verb": {"goes", "walks"},
					"noun": {"day"},
				},
			}),
		},
		{
			name: "no blanks",
			item: fbItem(t, "Complete the sentence", models.FillBlankContent{
				Text:   "She goes to school.",
				Blanks: map[string][]string{},
			}),
			wantErr: "at least 1 blank",
		},
		{
			name: "blank with no accepted answers",
			item: fbItem(t, "Complete the sentence", models.FillBlankContent{
				Text:   "She {{verb}} to school.",
				Blanks: map[string][]string{"verb": {}},
			}),
			wantErr: `blank "verb" must have at least 1 accepted answer`,
		},
		{
			name: "blank with whitespace answer",
			item: fbItem(t, "Complete the sentence", models.FillBlankContent{
				Text:   "She {{verb}} to school.",
				Blanks: map[string][]string{"verb": {"  "}},
			}),
			wantErr: "empty accepted answer",
		},
		{
			name: "blank without placeholder",
			item: fbItem(t, "Complete the sentence", models.FillBlankContent{
				Text: "She {{verb}} to school.",
				Blanks: map[string][]string{
					"verb": {"goes"},
					"noun": {"day"},
				},
			}),
			wantErr: `blank "noun" has no {{noun}} placeholder`,
		},
		{
			name: "placeholder without blank",
			item: fbItem(t, "Complete the sentence", models.FillBlankContent{
				Text:   "She {{verb}} to {{place}}.",
				Blanks: map[string][]string{"verb": {"goes"}},
			}),
			wantErr: "placeholder {{place}} has no blank definition",
		},
		{
			name: "placeholder token is trimmed before matching",
			item: fbItem(t, "Complete the sentence", models.FillBlankContent{
				Text:   "She {{ verb }} to school.",
				Blanks: map[string][]string{"verb": {"goes"}},
			}),
		},
		{
			name: "empty text",
			item: fbItem(t, "Complete the sentence", models.FillBlankContent{
				Text:   "",
				Blanks: map[string][]string{"verb": {"goes"}},
			}),
			wantErr: "text is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateItem(0, &tt.item)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateItem_TypeContentMismatch(t *testing.T) {
	v := NewItemValidator()

	item := models.ExerciseItem{
		ID:      "q1",
		Type:    models.MultipleChoice,
		Prompt:  "Choose the correct verb form",
		Content: json.RawMessage(`"not an object"`),
	}
	err := v.ValidateItem(2, &item)
	require.Error(t, err)

	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Index)
	assert.Contains(t, err.Error(), "question 3")
}

func TestValidateItems(t *testing.T) {
	v := NewItemValidator()

	t.Run("empty book rejected", func(t *testing.T) {
		err := v.ValidateItems(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 1 question")
	})

	t.Run("unexpanded import container rejected", func(t *testing.T) {
		items := []models.ExerciseItem{
			{ID: "q1", Type: models.ImportWord, Prompt: "Imported exercises", Content: json.RawMessage(`{}`)},
		}
		err := v.ValidateItems(items)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expanded before storage")
	})

	t.Run("reports index of failing question", func(t *testing.T) {
		items := []models.ExerciseItem{
			mcItem(t, "Choose the correct verb form", models.MultipleChoiceContent{
				Options: []models.Option{
					{ID: "a", Text: "goes", Correct: true},
					{ID: "b", Text: "go"},
				},
			}),
			mcItem(t, "Choose the correct verb form", models.MultipleChoiceContent{
				Options: []models.Option{{ID: "a", Text: "goes", Correct: true}},
			}),
		}
		err := v.ValidateItems(items)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question 2")
	})
}
