package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/english-exercises-hub/exercises-service/internal/events"
	"github.com/english-exercises-hub/exercises-service/internal/grading"
	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
	"github.com/english-exercises-hub/exercises-service/internal/utils"
)

// ===== REQUEST/RESPONSE TYPES =====

// SubmitRequest carries the raw answer map keyed by q_<index>. Values are kept
// raw here; the grader decides per question how to interpret them.
type SubmitRequest struct {
	Answers map[string]json.RawMessage `json:"answers" validate:"required"`
}

type SubmissionResponse struct {
	ID             string                    `json:"id"`
	ExerciseID     string                    `json:"exercise_id"`
	ExerciseTitle  string                    `json:"exercise_title,omitempty"`
	StudentID      string                    `json:"student_id"`
	Score          int                       `json:"score"`
	TotalQuestions int                       `json:"total_questions"`
	Percentage     int                       `json:"percentage"`
	Passed         bool                      `json:"passed"`
	Attempt        int                       `json:"attempt"`
	Corrections    []models.CorrectionResult `json:"corrections"`
	CreatedAt      time.Time                 `json:"created_at"`
}

// SubmissionDetailResponse adds render-ready corrections for the results page.
type SubmissionDetailResponse struct {
	SubmissionResponse
	Rendered []grading.RenderableCorrection `json:"rendered"`
}

type SubmissionListResponse struct {
	Submissions []*SubmissionResponse `json:"submissions"`
	Total       int64                 `json:"total"`
	Limit       int                   `json:"limit"`
	Offset      int                   `json:"offset"`
}

// ===== SERVICE INTERFACE =====

type SubmissionService interface {
	Submit(ctx context.Context, exerciseID string, req *SubmitRequest, student *models.User) (*SubmissionResponse, error)
	GetByID(ctx context.Context, id string, user *models.User) (*SubmissionDetailResponse, error)
	List(ctx context.Context, filters repositories.SubmissionFilters, user *models.User) (*SubmissionListResponse, error)
	GetAttempts(ctx context.Context, exerciseID string, student *models.User) ([]*SubmissionResponse, error)
}

type submissionService struct {
	submissions repositories.SubmissionRepository
	exercises   repositories.ExerciseRepository
	access      repositories.ExerciseAccessRepository
	publisher   events.Publisher
	logger      utils.Logger
}

func NewSubmissionService(
	submissions repositories.SubmissionRepository,
	exercises repositories.ExerciseRepository,
	access repositories.ExerciseAccessRepository,
	publisher events.Publisher,
	logger utils.Logger,
) SubmissionService {
	return &submissionService{
		submissions: submissions,
		exercises:   exercises,
		access:      access,
		publisher:   publisher,
		logger:      logger,
	}
}

// Submit grades the student's answers and stores the attempt. Corrections are
// computed once, here; the stored verdicts are what every later read returns,
// even if the exercise or the grader changes afterwards.
func (s *submissionService) Submit(ctx context.Context, exerciseID string, req *SubmitRequest, student *models.User) (*SubmissionResponse, error) {
	s.logger.InfoContext(ctx, "grading submission", "exercise_id", exerciseID, "student_id", student.ID)

	if student.Role != models.RoleStudent {
		return nil, NewPermissionError(student.ID, exerciseID, "submission", "create", "only students can submit")
	}

	exercise, err := s.exercises.GetByID(ctx, exerciseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExerciseNotFound
		}
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}
	if !exercise.IsPublished {
		return nil, ErrExerciseNotPublished
	}
	if !exercise.IsGeneral {
		// Targeted exercises are reachable only through an active assignment.
		assigned, err := s.access.IsAssigned(ctx, exerciseID, student.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check assignment: %w", err)
		}
		if !assigned {
			return nil, NewPermissionError(student.ID, exerciseID, "exercise", "submit", "not assigned to this student")
		}
	}

	answers := make(map[string]models.Answer, len(req.Answers))
	for key, raw := range req.Answers {
		answers[key] = models.DecodeAnswer(raw)
	}

	result := grading.AggregateSubmission(exercise.QuestionList(), answers)

	rawAnswers, err := json.Marshal(req.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize answers: %w", err)
	}

	submission := &models.Submission{
		ID:             uuid.New().String(),
		ExerciseID:     exerciseID,
		StudentID:      student.ID,
		Answers:        datatypes.JSON(rawAnswers),
		Corrections:    datatypes.NewJSONType(result.Corrections),
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
	}

	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}

	s.publishGraded(ctx, submission, exercise)

	s.logger.InfoContext(ctx, "submission graded",
		"submission_id", submission.ID,
		"score", submission.Score,
		"total", submission.TotalQuestions,
		"attempt", submission.Attempt)

	response := buildSubmissionResponse(submission)
	response.ExerciseTitle = exercise.Title
	return response, nil
}

func (s *submissionService) GetByID(ctx context.Context, id string, user *models.User) (*SubmissionDetailResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	if err := s.canView(submission, user); err != nil {
		return nil, err
	}

	response := buildSubmissionResponse(submission)
	response.ExerciseTitle = submission.Exercise.Title

	return &SubmissionDetailResponse{
		SubmissionResponse: *response,
		Rendered:           grading.FormatCorrections(submission.Corrections.Data(), submission.Exercise.QuestionList()),
	}, nil
}

func (s *submissionService) List(ctx context.Context, filters repositories.SubmissionFilters, user *models.User) (*SubmissionListResponse, error) {
	switch user.Role {
	case models.RoleStudent:
		// Students only ever see their own attempts.
		filters.StudentID = &user.ID
	case models.RoleTeacher:
		if filters.ExerciseID != nil {
			owner, err := s.exercises.IsOwner(ctx, *filters.ExerciseID, user.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check ownership: %w", err)
			}
			if !owner {
				return nil, NewPermissionError(user.ID, *filters.ExerciseID, "submission", "list", "not exercise owner")
			}
		} else if filters.StudentID == nil {
			return nil, NewPermissionError(user.ID, "", "submission", "list", "exercise or student filter required")
		}
	case models.RoleAdmin:
		// No restriction.
	}

	submissions, total, err := s.submissions.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	responses := make([]*SubmissionResponse, len(submissions))
	for i, sub := range submissions {
		responses[i] = buildSubmissionResponse(sub)
		responses[i].ExerciseTitle = sub.Exercise.Title
	}

	return &SubmissionListResponse{
		Submissions: responses,
		Total:       total,
		Limit:       filters.Limit,
		Offset:      filters.Offset,
	}, nil
}

// GetAttempts returns the student's own attempt history for one exercise,
// oldest first.
func (s *submissionService) GetAttempts(ctx context.Context, exerciseID string, student *models.User) ([]*SubmissionResponse, error) {
	submissions, err := s.submissions.GetByExerciseAndStudent(ctx, exerciseID, student.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}

	responses := make([]*SubmissionResponse, len(submissions))
	for i, sub := range submissions {
		responses[i] = buildSubmissionResponse(sub)
	}
	return responses, nil
}

// ===== HELPERS =====

func (s *submissionService) canView(submission *models.Submission, user *models.User) error {
	switch user.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if submission.StudentID == user.ID {
			return nil
		}
	case models.RoleTeacher:
		if submission.Exercise.TeacherID == user.ID {
			return nil
		}
	}
	return NewPermissionError(user.ID, submission.ID, "submission", "read", "not owner")
}

func (s *submissionService) publishGraded(ctx context.Context, submission *models.Submission, exercise *models.Exercise) {
	if s.publisher == nil {
		return
	}

	event := events.NewEvent(uuid.New().String(), events.EventSubmissionGraded, &events.SubmissionGradedEvent{
		SubmissionID:  submission.ID,
		ExerciseID:    exercise.ID,
		ExerciseTitle: exercise.Title,
		StudentID:     submission.StudentID,
		Score:         submission.Score,
		TotalUnits:    submission.TotalQuestions,
		Percentage:    submission.Percentage(),
		Passed:        submission.Passed(),
		Attempt:       submission.Attempt,
		GradedAt:      submission.CreatedAt,
	})

	if err := s.publisher.Publish(ctx, event); err != nil {
		// The submission is already stored; a publish failure must not fail
		// the request.
		s.logger.LogError(err, "failed to publish submission.graded event", "submission_id", submission.ID)
	}
}

func buildSubmissionResponse(submission *models.Submission) *SubmissionResponse {
	return &SubmissionResponse{
		ID:             submission.ID,
		ExerciseID:     submission.ExerciseID,
		StudentID:      submission.StudentID,
		Score:          submission.Score,
		TotalQuestions: submission.TotalQuestions,
		Percentage:     submission.Percentage(),
		Passed:         submission.Passed(),
		Attempt:        submission.Attempt,
		Corrections:    submission.Corrections.Data(),
		CreatedAt:      submission.CreatedAt,
	}
}
