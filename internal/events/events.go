package events

import (
	"time"
)

type EventType string

const (
	EventExercisePublished   EventType = "exercise.published"
	EventExerciseUnpublished EventType = "exercise.unpublished"
	EventSubmissionGraded    EventType = "submission.graded"
	EventStudentLinkIssued   EventType = "student.link_issued"
)

// Event is the envelope shared by every published event.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const (
	eventSource  = "exercises-service"
	eventVersion = "1.0"
)

type ExercisePublishedEvent struct {
	ExerciseID    string `json:"exercise_id"`
	ExerciseTitle string `json:"exercise_title"`
	TeacherID     string `json:"teacher_id"`
	Level         string `json:"level"`
	IsGeneral     bool   `json:"is_general"`
	QuestionCount int    `json:"question_count"`
}

type SubmissionGradedEvent struct {
	SubmissionID  string    `json:"submission_id"`
	ExerciseID    string    `json:"exercise_id"`
	ExerciseTitle string    `json:"exercise_title"`
	StudentID     string    `json:"student_id"`
	Score         int       `json:"score"`
	TotalUnits    int       `json:"total_units"`
	Percentage    int       `json:"percentage"`
	Passed        bool      `json:"passed"`
	Attempt       int       `json:"attempt"`
	GradedAt      time.Time `json:"graded_at"`
}

type StudentLinkIssuedEvent struct {
	StudentID string     `json:"student_id"`
	TeacherID string     `json:"teacher_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IssuedAt  time.Time  `json:"issued_at"`
}

// NewEvent wraps a payload in the standard envelope.
func NewEvent(id string, eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        id,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}
