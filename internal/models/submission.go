package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// AnswerKey builds the answer-map key for the question at the given position.
// The q_<index> convention (0-based, stable for the life of the exercise) is
// the contract between clients and the grader.
func AnswerKey(index int) string {
	return fmt.Sprintf("q_%d", index)
}

// Answer is the learner's raw answer for one question, decided at the API
// boundary: a single option id for multiple choice, or a blank-key map for
// fill blank. A malformed blank payload decodes to an empty map rather than
// failing; grading must stay total over client input.
type Answer struct {
	Single string
	Blanks map[string]string
	// IsBlanks reports which variant was submitted.
	IsBlanks bool
}

// DecodeAnswer interprets a raw submitted value. JSON objects become the
// Blanks variant; strings that themselves parse as a JSON object are treated
// the same (clients serialize blank maps before submitting); anything else is
// the Single variant.
func DecodeAnswer(raw json.RawMessage) Answer {
	if len(raw) == 0 {
		return Answer{}
	}

	var m map[string]string
	if err := json.Unmarshal(raw, &m); err == nil {
		return Answer{Blanks: m, IsBlanks: true}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Answer{}
	}
	return Answer{Single: s}
}

// BlanksOrEmpty returns the blank map for either variant: the Blanks map as
// is, or the Single string parsed as JSON, falling back to an empty map when
// the parse fails.
func (a Answer) BlanksOrEmpty() map[string]string {
	if a.IsBlanks {
		if a.Blanks == nil {
			return map[string]string{}
		}
		return a.Blanks
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(a.Single), &m); err != nil || m == nil {
		return map[string]string{}
	}
	return m
}

// Raw serializes the answer back to the submitted wire form for persistence.
func (a Answer) Raw() json.RawMessage {
	if a.IsBlanks {
		b, err := json.Marshal(a.Blanks)
		if err != nil {
			return json.RawMessage(`{}`)
		}
		return b
	}
	b, _ := json.Marshal(a.Single)
	return b
}

// BlankResult is the verdict for one blank of a fill blank question.
type BlankResult struct {
	Blank          string   `json:"blank"`
	UserAnswer     string   `json:"userAnswer"`
	CorrectAnswers []string `json:"correctAnswers"`
	IsCorrect      bool     `json:"isCorrect"`
}

// CorrectionResult is the persisted grading verdict for one question.
// Question carries the prompt so stored corrections render without the
// original exercise. For fill blank questions CorrectAnswer is the
// JSON-serialized blanks map and BlankResults holds per-blank verdicts.
type CorrectionResult struct {
	QuestionIndex int           `json:"questionIndex"`
	Question      string        `json:"question"`
	UserAnswer    string        `json:"userAnswer"`
	IsCorrect     bool          `json:"isCorrect"`
	CorrectAnswer string        `json:"correctAnswer"`
	Explanation   string        `json:"explanation,omitempty"`
	BlankResults  []BlankResult `json:"blankResults,omitempty"`
	Score         string        `json:"score,omitempty"`
}

// Submission is one graded attempt of a student at an exercise. Rows are
// append-only: answers are kept raw as submitted and corrections are stored,
// never recomputed, so historical results survive grading changes.
type Submission struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	ExerciseID string `json:"exercise_id" gorm:"not null;size:36;index:idx_submissions_exercise_student"`
	StudentID  string `json:"student_id" gorm:"not null;size:36;index:idx_submissions_exercise_student"`

	Answers     datatypes.JSON                         `json:"answers" gorm:"type:jsonb"`
	Corrections datatypes.JSONType[[]CorrectionResult] `json:"corrections" gorm:"type:jsonb"`

	// Score and TotalQuestions count scoring units, not authored questions:
	// each fill blank slot is one unit.
	Score          int `json:"score" gorm:"not null"`
	TotalQuestions int `json:"total_questions" gorm:"not null"`

	// Attempt is this student's 1-based submission sequence for the exercise.
	Attempt int `json:"attempt" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`

	Exercise Exercise `json:"exercise" gorm:"foreignKey:ExerciseID"`
	Student  User     `json:"student" gorm:"foreignKey:StudentID"`
}

func (Submission) TableName() string {
	return "submissions"
}

// Percentage returns the rounded-down score percentage, 0 for an empty
// denominator.
func (s *Submission) Percentage() int {
	if s.TotalQuestions == 0 {
		return 0
	}
	return s.Score * 100 / s.TotalQuestions
}

// PassThreshold is the display-only pass mark.
const PassThreshold = 70

// Passed reports whether the submission meets the display pass mark.
func (s *Submission) Passed() bool {
	return s.Percentage() >= PassThreshold
}
