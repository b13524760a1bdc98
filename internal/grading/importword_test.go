package grading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/english-exercises-hub/exercises-service/internal/models"
)

func TestParseMultipleChoiceText(t *testing.T) {
	text := `1. What is the past of "go"?
a) goed
b) went *
c) gone

2. Which one is a fruit?
a) carrot
b) apple (correct)
`

	items := ParseMultipleChoiceText(text)
	require.Len(t, items, 2)

	first, err := items[0].MultipleChoiceContent()
	require.NoError(t, err)
	assert.Equal(t, `What is the past of "go"?`, items[0].Prompt)
	require.Len(t, first.Options, 3)
	assert.Equal(t, "went", first.Options[1].Text, "correct marker stripped from text")
	assert.True(t, first.Options[1].Correct)
	assert.False(t, first.Options[0].Correct)
	assert.NotEmpty(t, first.Options[0].ID)

	second, err := items[1].MultipleChoiceContent()
	require.NoError(t, err)
	require.Len(t, second.Options, 2)
	assert.Equal(t, "apple", second.Options[1].Text)
	assert.True(t, second.Options[1].Correct)
}

func TestParseMultipleChoiceText_QuestionMarkStartsQuestion(t *testing.T) {
	text := "Is water wet?\na) yes *\nb) no"

	items := ParseMultipleChoiceText(text)
	require.Len(t, items, 1)
	assert.Equal(t, "Is water wet?", items[0].Prompt)
}

func TestParseFillBlankText(t *testing.T) {
	text := "1. She ___ to school every day. Answers: goes\n\nThe sky is ___. Answers: blue"

	items := ParseFillBlankText(text)
	require.Len(t, items, 2)

	first, err := items[0].FillBlankContent()
	require.NoError(t, err)
	assert.Equal(t, "She {{goes}} to school every day.", first.Text)
	assert.Equal(t, []string{"goes"}, first.Blanks["goes"])
	assert.False(t, first.CaseSensitive)

	second, err := items[1].FillBlankContent()
	require.NoError(t, err)
	assert.Equal(t, "The sky is {{blue}}.", second.Text)
}

func TestParseFillBlankText_MultiWordAnswerSlug(t *testing.T) {
	text := "They ___ yesterday. Answers: did not go"

	items := ParseFillBlankText(text)
	require.Len(t, items, 1)

	content, err := items[0].FillBlankContent()
	require.NoError(t, err)
	assert.Equal(t, "They {{did-not-go}} yesterday.", content.Text)
	assert.Equal(t, []string{"did not go"}, content.Blanks["did-not-go"])
}

func TestParseFillBlankText_NoAnswersLine(t *testing.T) {
	items := ParseFillBlankText("Fill this ___ please.")
	require.Len(t, items, 1)

	content, err := items[0].FillBlankContent()
	require.NoError(t, err)
	assert.Contains(t, content.Text, "{{word1}}")
	assert.Equal(t, []string{""}, content.Blanks["word1"])
}

func TestFlattenItems(t *testing.T) {
	nestedMC := capitalQuestion(t)
	nestedFB := fbItem(t, models.FillBlankContent{
		Text:   "{{a}}",
		Blanks: map[string][]string{"a": {"x"}},
	})

	iwContent, err := json.Marshal(models.ImportWordContent{
		RawText:         "pasted text",
		ParsedExercises: []models.ExerciseItem{nestedMC, nestedFB},
	})
	require.NoError(t, err)

	items := []models.ExerciseItem{
		fbItem(t, models.FillBlankContent{Text: "{{k}}", Blanks: map[string][]string{"k": {"v"}}}),
		{Type: models.ImportWord, Prompt: "Imported block", Content: iwContent},
	}

	flat := FlattenItems(items)
	require.Len(t, flat, 3)
	assert.Equal(t, models.FillBlank, flat[0].Type)
	assert.Equal(t, models.MultipleChoice, flat[1].Type)
	assert.Equal(t, models.FillBlank, flat[2].Type)
	for _, item := range flat {
		assert.NotEqual(t, models.ImportWord, item.Type, "containers never survive flattening")
	}
}

func TestFlattenItems_MalformedContainerDropped(t *testing.T) {
	items := []models.ExerciseItem{
		{Type: models.ImportWord, Prompt: "broken", Content: json.RawMessage(`"not an object"`)},
		capitalQuestion(t),
	}

	flat := FlattenItems(items)
	require.Len(t, flat, 1)
	assert.Equal(t, models.MultipleChoice, flat[0].Type)
}
