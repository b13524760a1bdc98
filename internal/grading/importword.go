package grading

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/english-exercises-hub/exercises-service/internal/models"
)

var (
	numberedLinePattern = regexp.MustCompile(`^\d+\.`)
	optionLinePattern   = regexp.MustCompile(`^(?i)[a-d]\)`)
	correctMarkPattern  = regexp.MustCompile(`(?i)\*|\(correct\)|\(correta\)`)
	blankRunPattern     = regexp.MustCompile(`_+`)
	answerLinePattern   = regexp.MustCompile(`(?i)(?:respostas?|answers?|r):\s*(.+)`)
	exerciseSplitter    = regexp.MustCompile(`\d+\.|\n\n`)
	slugInvalidPattern  = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashRunPattern  = regexp.MustCompile(`-+`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// FlattenItems expands every import_word container into its parsed question
// sequence, in place of the container, leaving other items untouched. A book
// never stores an import_word item; flattening happens before validation.
func FlattenItems(items []models.ExerciseItem) []models.ExerciseItem {
	out := make([]models.ExerciseItem, 0, len(items))
	for _, item := range items {
		if item.Type != models.ImportWord {
			out = append(out, item)
			continue
		}
		content, err := item.DecodeContent()
		if err != nil {
			continue
		}
		iw := content.(*models.ImportWordContent)
		for _, nested := range iw.ParsedExercises {
			if nested.Type == models.ImportWord {
				// No recursive containers.
				continue
			}
			out = append(out, nested)
		}
	}
	return out
}

// ParseMultipleChoiceText parses pasted document text into multiple choice
// items. A question starts at a numbered line ("1.") or a line ending in "?";
// options are "a)".."d)" lines, with "*" or "(correct)" flagging the right
// one.
func ParseMultipleChoiceText(text string) []models.ExerciseItem {
	items := []models.ExerciseItem{}
	var current *mcDraft

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		isQuestion := numberedLinePattern.MatchString(trimmed) ||
			(strings.HasSuffix(trimmed, "?") && !optionLinePattern.MatchString(trimmed))

		switch {
		case isQuestion:
			if current != nil {
				items = append(items, current.build())
			}
			current = &mcDraft{prompt: strings.TrimSpace(numberedLinePattern.ReplaceAllString(trimmed, ""))}
		case optionLinePattern.MatchString(trimmed) && current != nil:
			optionText := strings.TrimSpace(trimmed[2:])
			correct := correctMarkPattern.MatchString(optionText)
			clean := strings.TrimSpace(correctMarkPattern.ReplaceAllString(optionText, ""))
			current.options = append(current.options, models.Option{
				ID:      uuid.NewString(),
				Text:    clean,
				Correct: correct,
			})
		}
	}
	if current != nil {
		items = append(items, current.build())
	}
	return items
}

type mcDraft struct {
	prompt  string
	options []models.Option
}

func (d *mcDraft) build() models.ExerciseItem {
	content, _ := json.Marshal(models.MultipleChoiceContent{
		Options:       d.options,
		AllowMultiple: false,
	})
	return models.ExerciseItem{
		Type:    models.MultipleChoice,
		Prompt:  d.prompt,
		Content: content,
	}
}

// ParseFillBlankText parses pasted text into fill blank items. Exercises are
// split on numbering or blank lines; an "Answers: a, b" trailer names the
// accepted answers, and each "___" run becomes a {{key}} placeholder keyed by
// the slug of its answer.
func ParseFillBlankText(text string) []models.ExerciseItem {
	items := []models.ExerciseItem{}
	for _, chunk := range exerciseSplitter.Split(text, -1) {
		clean := strings.TrimSpace(chunk)
		if clean == "" {
			continue
		}

		var answers []string
		if m := answerLinePattern.FindStringSubmatch(clean); m != nil {
			for _, a := range strings.Split(m[1], ",") {
				if a = strings.TrimSpace(a); a != "" {
					answers = append(answers, a)
				}
			}
			clean = strings.TrimSpace(answerLinePattern.ReplaceAllString(clean, ""))
		}

		blankIndex := 0
		blanks := map[string][]string{}
		processed := blankRunPattern.ReplaceAllStringFunc(clean, func(string) string {
			key := "word" + strconv.Itoa(blankIndex+1)
			if blankIndex < len(answers) {
				if slug := blankSlug(answers[blankIndex]); slug != "" {
					key = slug
				}
				blanks[key] = []string{answers[blankIndex]}
			} else {
				blanks[key] = []string{""}
			}
			blankIndex++
			return "{{" + key + "}}"
		})

		content, _ := json.Marshal(models.FillBlankContent{
			Text:          processed,
			Blanks:        blanks,
			CaseSensitive: false,
		})
		items = append(items, models.ExerciseItem{
			Type:    models.FillBlank,
			Prompt:  processed,
			Content: content,
		})
	}
	return items
}

func blankSlug(answer string) string {
	s := strings.ToLower(answer)
	s = whitespacePattern.ReplaceAllString(s, "-")
	s = slugInvalidPattern.ReplaceAllString(s, "")
	s = slugDashRunPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
