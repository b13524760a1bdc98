package services

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
	"github.com/english-exercises-hub/exercises-service/internal/utils"
)

// ===== SERVICE INTERFACE =====

type ExportService interface {
	// ExportExerciseResults builds an xlsx workbook with every submission of
	// one exercise.
	ExportExerciseResults(ctx context.Context, exerciseID string, user *models.User) ([]byte, error)
	// ExportStudentResults builds an xlsx workbook with one student's full
	// submission history.
	ExportStudentResults(ctx context.Context, studentID string, user *models.User) ([]byte, error)
}

type exportService struct {
	submissions repositories.SubmissionRepository
	exercises   repositories.ExerciseRepository
	users       repositories.UserRepository
	logger      utils.Logger
}

func NewExportService(
	submissions repositories.SubmissionRepository,
	exercises repositories.ExerciseRepository,
	users repositories.UserRepository,
	logger utils.Logger,
) ExportService {
	return &exportService{
		submissions: submissions,
		exercises:   exercises,
		users:       users,
		logger:      logger,
	}
}

func (s *exportService) ExportExerciseResults(ctx context.Context, exerciseID string, user *models.User) ([]byte, error) {
	exercise, err := s.exercises.GetByID(ctx, exerciseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExerciseNotFound
		}
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}

	if user.Role != models.RoleAdmin && exercise.TeacherID != user.ID {
		return nil, NewPermissionError(user.ID, exerciseID, "exercise", "export results", "not owner")
	}

	submissions, _, err := s.submissions.List(ctx, repositories.SubmissionFilters{
		ExerciseID: &exerciseID,
		Limit:      maxExportRows,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}

	s.logger.InfoContext(ctx, "exporting exercise results",
		"exercise_id", exerciseID, "submissions", len(submissions))

	return writeResultsWorkbook(exercise.Title, submissions, true)
}

func (s *exportService) ExportStudentResults(ctx context.Context, studentID string, user *models.User) ([]byte, error) {
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	switch user.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if student.TeacherID == nil || *student.TeacherID != user.ID {
			return nil, NewPermissionError(user.ID, studentID, "student", "export results", "not this teacher's student")
		}
	default:
		return nil, NewPermissionError(user.ID, studentID, "student", "export results", "insufficient role")
	}

	submissions, _, err := s.submissions.List(ctx, repositories.SubmissionFilters{
		StudentID: &studentID,
		Limit:     maxExportRows,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get submissions: %w", err)
	}

	return writeResultsWorkbook(student.FullName, submissions, false)
}

// ===== WORKBOOK BUILDING =====

const maxExportRows = 10000

func writeResultsWorkbook(title string, submissions []*models.Submission, perExercise bool) ([]byte, error) {
	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	f.SetCellValue(sheetName, "A1", title)

	var headers []string
	if perExercise {
		headers = []string{
			"Student", "Attempt", "Score", "Total", "Percentage", "Result", "Submitted At",
		}
	} else {
		headers = []string{
			"Exercise", "Attempt", "Score", "Total", "Percentage", "Result", "Submitted At",
		}
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%c2", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, submission := range submissions {
		first := submission.Student.FullName
		if !perExercise {
			first = submission.Exercise.Title
		}

		result := "Fail"
		if submission.Passed() {
			result = "Pass"
		}

		row := []interface{}{
			first,
			submission.Attempt,
			submission.Score,
			submission.TotalQuestions,
			fmt.Sprintf("%d%%", submission.Percentage()),
			result,
			submission.CreatedAt.Format("2006-01-02 15:04:05"),
		}

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+3)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
