package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	FillBlank      QuestionType = "fill_blank"
	ImportWord     QuestionType = "import_word"
)

type ExerciseDifficulty string

const (
	DifficultyEasy   ExerciseDifficulty = "easy"
	DifficultyMedium ExerciseDifficulty = "medium"
	DifficultyHard   ExerciseDifficulty = "hard"
)

// Option is one selectable answer of a multiple choice question.
type Option struct {
	ID      string `json:"id" validate:"required"`
	Text    string `json:"text" validate:"required"`
	Correct bool   `json:"correct"`
}

type MultipleChoiceContent struct {
	Options       []Option `json:"options" validate:"required,min=2,dive"`
	AllowMultiple bool     `json:"allowMultiple"`
	Explanation   string   `json:"explanation"`
}

// FirstCorrectOption returns the first option flagged correct, or nil when the
// author marked none. With multiple flagged options the first one wins for
// display; correctness checks still accept any of them.
func (c *MultipleChoiceContent) FirstCorrectOption() *Option {
	for i := range c.Options {
		if c.Options[i].Correct {
			return &c.Options[i]
		}
	}
	return nil
}

// CorrectOptionIDs returns the ids of every option flagged correct.
func (c *MultipleChoiceContent) CorrectOptionIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, opt := range c.Options {
		if opt.Correct {
			ids[opt.ID] = true
		}
	}
	return ids
}

type FillBlankContent struct {
	// Text carries {{blankKey}} placeholder tokens.
	Text          string              `json:"text" validate:"required"`
	Blanks        map[string][]string `json:"blanks" validate:"required,min=1"`
	CaseSensitive bool                `json:"caseSensitive"`
	Explanation   string              `json:"explanation"`
}

// ImportWordContent is an authoring container: its parsed exercises are
// flattened into the book before storage and it is never graded directly.
type ImportWordContent struct {
	RawText         string         `json:"rawText"`
	ParsedExercises []ExerciseItem `json:"parsedExercises"`
}

// ExerciseItem is one question of an exercise book. Content is a tagged union
// keyed by Type; DecodeContent gives the typed variant.
type ExerciseItem struct {
	ID      string          `json:"id,omitempty"`
	Type    QuestionType    `json:"type" validate:"required,question_type"`
	Prompt  string          `json:"prompt" validate:"required,min=5"`
	Content json.RawMessage `json:"content" validate:"required"`
}

// DecodeContent unmarshals Content into the struct matching Type. The switch
// is exhaustive over the known question types; an unknown type is an error for
// callers that need typed content (the scoring engine treats it as ungradable
// instead).
func (it *ExerciseItem) DecodeContent() (interface{}, error) {
	switch it.Type {
	case MultipleChoice:
		var c MultipleChoiceContent
		if err := json.Unmarshal(it.Content, &c); err != nil {
			return nil, fmt.Errorf("invalid multiple choice content: %w", err)
		}
		return &c, nil
	case FillBlank:
		var c FillBlankContent
		if err := json.Unmarshal(it.Content, &c); err != nil {
			return nil, fmt.Errorf("invalid fill blank content: %w", err)
		}
		return &c, nil
	case ImportWord:
		var c ImportWordContent
		if err := json.Unmarshal(it.Content, &c); err != nil {
			return nil, fmt.Errorf("invalid import word content: %w", err)
		}
		return &c, nil
	default:
		return nil, fmt.Errorf("unknown question type: %s", it.Type)
	}
}

// MultipleChoiceContent decodes the content as multiple choice, failing when
// the item is of another type.
func (it *ExerciseItem) MultipleChoiceContent() (*MultipleChoiceContent, error) {
	if it.Type != MultipleChoice {
		return nil, fmt.Errorf("item is %s, not %s", it.Type, MultipleChoice)
	}
	c, err := it.DecodeContent()
	if err != nil {
		return nil, err
	}
	return c.(*MultipleChoiceContent), nil
}

// FillBlankContent decodes the content as fill blank, failing when the item is
// of another type.
func (it *ExerciseItem) FillBlankContent() (*FillBlankContent, error) {
	if it.Type != FillBlank {
		return nil, fmt.Errorf("item is %s, not %s", it.Type, FillBlank)
	}
	c, err := it.DecodeContent()
	if err != nil {
		return nil, err
	}
	return c.(*FillBlankContent), nil
}

// Exercise is a teacher-authored exercise book: an ordered question list plus
// targeting metadata. Items are stored as a JSON column; their order is the
// grading contract (answer keys are q_<index>, 0-based) and must never be
// reordered once a submission exists.
type Exercise struct {
	ID          string  `json:"id" gorm:"primaryKey;size:36"`
	Title       string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`

	Items datatypes.JSONType[[]ExerciseItem] `json:"exercises" gorm:"column:exercises;type:jsonb"`

	Difficulty  ExerciseDifficulty `json:"difficulty" gorm:"not null" validate:"required,difficulty_level"`
	Level       string             `json:"level" gorm:"size:20;index"`
	Tags        datatypes.JSON     `json:"tags" gorm:"type:jsonb"`
	IsGeneral   bool               `json:"is_general" gorm:"default:true"`
	IsPublished bool               `json:"is_published" gorm:"default:false;index"`

	TeacherID string         `json:"teacher_id" gorm:"not null;size:36;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Teacher User `json:"teacher" gorm:"foreignKey:TeacherID"`

	// Computed, not stored.
	SubmissionCount int `json:"submission_count" gorm:"-"`
}

func (Exercise) TableName() string {
	return "exercises"
}

// QuestionList returns the decoded question list.
func (e *Exercise) QuestionList() []ExerciseItem {
	return e.Items.Data()
}

// StudentExerciseAccess links one student to one non-general exercise. A
// student sees a teacher's targeted exercise only through an active
// assignment; general exercises need none. One row per (exercise, student)
// pair, deactivated rather than deleted on revoke.
type StudentExerciseAccess struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	ExerciseID string `json:"exercise_id" gorm:"not null;size:36;uniqueIndex:idx_access_exercise_student"`
	StudentID  string `json:"student_id" gorm:"not null;size:36;index;uniqueIndex:idx_access_exercise_student"`
	AssignedBy string `json:"assigned_by" gorm:"not null;size:36"`

	DueDate  *time.Time `json:"due_date"`
	IsActive bool       `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Exercise *Exercise `json:"exercise,omitempty" gorm:"foreignKey:ExerciseID"`
	Student  *User     `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (StudentExerciseAccess) TableName() string {
	return "student_exercise_accesses"
}
