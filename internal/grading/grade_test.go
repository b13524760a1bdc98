package grading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/english-exercises-hub/exercises-service/internal/models"
)

func mcItem(t *testing.T, content models.MultipleChoiceContent) models.ExerciseItem {
	t.Helper()
	raw, err := json.Marshal(content)
	require.NoError(t, err)
	return models.ExerciseItem{Type: models.MultipleChoice, Prompt: "What is the capital of Germany?", Content: raw}
}

func fbItem(t *testing.T, content models.FillBlankContent) models.ExerciseItem {
	t.Helper()
	raw, err := json.Marshal(content)
	require.NoError(t, err)
	return models.ExerciseItem{Type: models.FillBlank, Prompt: content.Text, Content: raw}
}

func capitalQuestion(t *testing.T) models.ExerciseItem {
	return mcItem(t, models.MultipleChoiceContent{
		Options: []models.Option{
			{ID: "a", Text: "Paris", Correct: false},
			{ID: "b", Text: "Berlin", Correct: true},
		},
		Explanation: "Berlin is the capital of Germany.",
	})
}

func TestGrade_MultipleChoice(t *testing.T) {
	tests := []struct {
		name        string
		answer      string
		wantCorrect bool
	}{
		{name: "correct option id", answer: "b", wantCorrect: true},
		{name: "wrong option id", answer: "a", wantCorrect: false},
		{name: "option text not accepted", answer: "Berlin", wantCorrect: false},
		{name: "empty answer", answer: "", wantCorrect: false},
		{name: "unknown id", answer: "z", wantCorrect: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(capitalQuestion(t), models.Answer{Single: tc.answer})
			assert.Equal(t, tc.wantCorrect, got.IsCorrect)
			assert.Equal(t, "Berlin", got.CorrectAnswer, "display answer is the option text")
			assert.Equal(t, "Berlin is the capital of Germany.", got.Explanation)
			assert.Empty(t, got.BlankResults)
		})
	}
}

func TestGrade_MultipleChoice_NoCorrectOption(t *testing.T) {
	item := mcItem(t, models.MultipleChoiceContent{
		Options: []models.Option{
			{ID: "a", Text: "Paris"},
			{ID: "b", Text: "Berlin"},
		},
	})

	for _, answer := range []string{"a", "b", ""} {
		got := Grade(item, models.Answer{Single: answer})
		assert.False(t, got.IsCorrect)
		assert.Equal(t, "", got.CorrectAnswer)
	}
}

func TestGrade_MultipleChoice_MultipleCorrectTolerated(t *testing.T) {
	// Should not happen per the authoring invariant, but the engine accepts
	// any flagged id and displays the first one's text.
	item := mcItem(t, models.MultipleChoiceContent{
		Options: []models.Option{
			{ID: "a", Text: "go", Correct: true},
			{ID: "b", Text: "goes", Correct: true},
			{ID: "c", Text: "gone"},
		},
	})

	assert.True(t, Grade(item, models.Answer{Single: "a"}).IsCorrect)
	assert.True(t, Grade(item, models.Answer{Single: "b"}).IsCorrect)
	assert.False(t, Grade(item, models.Answer{Single: "c"}).IsCorrect)
	assert.Equal(t, "go", Grade(item, models.Answer{Single: "c"}).CorrectAnswer)
}

func TestGrade_FillBlank_CaseInsensitive(t *testing.T) {
	item := fbItem(t, models.FillBlankContent{
		Text:   "She {{verb}} to school.",
		Blanks: map[string][]string{"verb": {"go", "goes"}},
	})

	got := Grade(item, models.Answer{Blanks: map[string]string{"verb": "GOES"}, IsBlanks: true})
	assert.True(t, got.IsCorrect)
	assert.Equal(t, "1/1", got.Score)
	require.Len(t, got.BlankResults, 1)
	assert.True(t, got.BlankResults[0].IsCorrect)
	assert.Equal(t, "GOES", got.BlankResults[0].UserAnswer)
}

func TestGrade_FillBlank_CaseSensitive(t *testing.T) {
	item := fbItem(t, models.FillBlankContent{
		Text:          "{{name}} lives here.",
		Blanks:        map[string][]string{"name": {"Anna"}},
		CaseSensitive: true,
	})

	assert.True(t, Grade(item, models.Answer{Blanks: map[string]string{"name": "Anna"}, IsBlanks: true}).IsCorrect)
	assert.False(t, Grade(item, models.Answer{Blanks: map[string]string{"name": "anna"}, IsBlanks: true}).IsCorrect)
}

func TestGrade_FillBlank_AllOrNothing(t *testing.T) {
	item := fbItem(t, models.FillBlankContent{
		Text:   "The {{a}} chased the {{b}}.",
		Blanks: map[string][]string{"a": {"cat"}, "b": {"dog"}},
	})

	got := Grade(item, models.Answer{Blanks: map[string]string{"a": "cat"}, IsBlanks: true})
	assert.False(t, got.IsCorrect, "missing blank fails the question")
	assert.Equal(t, "1/2", got.Score)
	require.Len(t, got.BlankResults, 2)
	assert.True(t, got.BlankResults[0].IsCorrect)
	assert.False(t, got.BlankResults[1].IsCorrect)
	assert.Equal(t, "", got.BlankResults[1].UserAnswer)
}

func TestGrade_FillBlank_TrimsAndIgnoresUnknownKeys(t *testing.T) {
	item := fbItem(t, models.FillBlankContent{
		Text:   "I {{verb}} tea.",
		Blanks: map[string][]string{"verb": {"drink"}},
	})

	got := Grade(item, models.Answer{
		Blanks:   map[string]string{"verb": "  drink ", "extra": "ignored"},
		IsBlanks: true,
	})
	assert.True(t, got.IsCorrect)
	require.Len(t, got.BlankResults, 1, "keys not declared in blanks are ignored")
}

func TestGrade_FillBlank_MalformedPayloadTreatedAsEmpty(t *testing.T) {
	item := fbItem(t, models.FillBlankContent{
		Text:   "A {{a}} and a {{b}}.",
		Blanks: map[string][]string{"a": {"cat"}, "b": {"dog"}},
	})

	got := Grade(item, models.Answer{Single: "not json"})
	assert.False(t, got.IsCorrect)
	assert.Equal(t, "0/2", got.Score)
	for _, blank := range got.BlankResults {
		assert.False(t, blank.IsCorrect)
	}
}

func TestGrade_FillBlank_JSONStringPayload(t *testing.T) {
	item := fbItem(t, models.FillBlankContent{
		Text:   "She {{verb}} fast.",
		Blanks: map[string][]string{"verb": {"runs"}},
	})

	// Clients may submit the blank map pre-serialized as a string.
	got := Grade(item, models.Answer{Single: `{"verb":"runs"}`})
	assert.True(t, got.IsCorrect)
}

func TestGrade_UnknownTypeFallsThrough(t *testing.T) {
	item := models.ExerciseItem{
		Type:    models.QuestionType("essay"),
		Prompt:  "Describe your weekend.",
		Content: json.RawMessage(`{}`),
	}

	got := Grade(item, models.Answer{Single: "anything"})
	assert.False(t, got.IsCorrect)
	assert.Equal(t, "", got.CorrectAnswer)
}

func TestGrade_MalformedContentNeverPanics(t *testing.T) {
	items := []models.ExerciseItem{
		{Type: models.MultipleChoice, Prompt: "broken", Content: json.RawMessage(`{"options": "nope"}`)},
		{Type: models.FillBlank, Prompt: "broken", Content: json.RawMessage(`[1,2,3]`)},
		{Type: models.MultipleChoice, Prompt: "broken", Content: nil},
	}
	for _, item := range items {
		got := Grade(item, models.Answer{Single: "x"})
		assert.False(t, got.IsCorrect)
	}
}

func TestGrade_Idempotent(t *testing.T) {
	item := fbItem(t, models.FillBlankContent{
		Text:   "{{a}} {{b}} {{c}}",
		Blanks: map[string][]string{"a": {"x"}, "b": {"y"}, "c": {"z"}},
	})
	answer := models.Answer{Blanks: map[string]string{"a": "x", "c": "wrong"}, IsBlanks: true}

	first := Grade(item, answer)
	second := Grade(item, answer)
	assert.Equal(t, first, second)
}
