package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/english-exercises-hub/exercises-service/internal/events"
	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
)

func publishedExercise(t *testing.T) *models.Exercise {
	t.Helper()
	return &models.Exercise{
		ID:          "ex-1",
		Title:       "Present Simple Practice",
		TeacherID:   "teacher-1",
		IsPublished: true,
		IsGeneral:   true,
		Items: datatypes.NewJSONType([]models.ExerciseItem{
			mcTestItem(t, "Choose the correct verb form", "a"),
			fbTestItem(t, "Complete the sentence"),
		}),
	}
}

func TestSubmissionService_Submit(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	exRepo := new(MockExerciseRepository)
	publisher := events.NewMockPublisher()
	svc := NewSubmissionService(subRepo, exRepo, new(MockExerciseAccessRepository), publisher, testLogger())

	exRepo.On("GetByID", mock.Anything, "ex-1").Return(publishedExercise(t), nil)

	var stored *models.Submission
	subRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Submission")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*models.Submission)
			stored.Attempt = 1
		}).
		Return(nil)

	req := &SubmitRequest{
		Answers: map[string]json.RawMessage{
			"q_0": json.RawMessage(`"a"`),
			"q_1": json.RawMessage(`{"verb":"goes"}`),
		},
	}

	resp, err := svc.Submit(context.Background(), "ex-1", req, studentUser())
	require.NoError(t, err)

	// One multiple choice unit plus one blank unit, both correct.
	assert.Equal(t, 2, resp.Score)
	assert.Equal(t, 2, resp.TotalQuestions)
	assert.Equal(t, 100, resp.Percentage)
	assert.True(t, resp.Passed)
	assert.Equal(t, 1, resp.Attempt)
	assert.Len(t, resp.Corrections, 2)

	require.NotNil(t, stored)
	assert.Equal(t, "student-1", stored.StudentID)
	assert.Len(t, stored.Corrections.Data(), 2)

	require.Len(t, publisher.Events, 1)
	assert.Equal(t, events.EventSubmissionGraded, publisher.Events[0].Type)
	payload := publisher.Events[0].Data.(*events.SubmissionGradedEvent)
	assert.Equal(t, 2, payload.Score)
	assert.True(t, payload.Passed)
}

func TestSubmissionService_Submit_PartialAndWrong(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	exRepo := new(MockExerciseRepository)
	svc := NewSubmissionService(subRepo, exRepo, new(MockExerciseAccessRepository), events.NewMockPublisher(), testLogger())

	exRepo.On("GetByID", mock.Anything, "ex-1").Return(publishedExercise(t), nil)
	subRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Submission")).Return(nil)

	req := &SubmitRequest{
		Answers: map[string]json.RawMessage{
			"q_0": json.RawMessage(`"b"`),
			"q_1": json.RawMessage(`{"verb":"walked"}`),
		},
	}

	resp, err := svc.Submit(context.Background(), "ex-1", req, studentUser())
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Score)
	assert.Equal(t, 2, resp.TotalQuestions)
	assert.False(t, resp.Passed)
}

func TestSubmissionService_Submit_EmptyAnswers(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	exRepo := new(MockExerciseRepository)
	svc := NewSubmissionService(subRepo, exRepo, new(MockExerciseAccessRepository), events.NewMockPublisher(), testLogger())

	exRepo.On("GetByID", mock.Anything, "ex-1").Return(publishedExercise(t), nil)
	subRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Submission")).Return(nil)

	resp, err := svc.Submit(context.Background(), "ex-1", &SubmitRequest{Answers: map[string]json.RawMessage{}}, studentUser())
	require.NoError(t, err)

	// An empty submission still grades to 0 over the full unit count.
	assert.Equal(t, 0, resp.Score)
	assert.Equal(t, 2, resp.TotalQuestions)
	assert.Len(t, resp.Corrections, 2)
}

func TestSubmissionService_Submit_Unpublished(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	exRepo := new(MockExerciseRepository)
	svc := NewSubmissionService(subRepo, exRepo, new(MockExerciseAccessRepository), events.NewMockPublisher(), testLogger())

	draft := publishedExercise(t)
	draft.IsPublished = false
	exRepo.On("GetByID", mock.Anything, "ex-1").Return(draft, nil)

	_, err := svc.Submit(context.Background(), "ex-1", &SubmitRequest{Answers: map[string]json.RawMessage{}}, studentUser())
	assert.ErrorIs(t, err, ErrExerciseNotPublished)
	subRepo.AssertNotCalled(t, "Create")
}

func TestSubmissionService_Submit_TeacherRejected(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	exRepo := new(MockExerciseRepository)
	svc := NewSubmissionService(subRepo, exRepo, new(MockExerciseAccessRepository), events.NewMockPublisher(), testLogger())

	_, err := svc.Submit(context.Background(), "ex-1", &SubmitRequest{Answers: map[string]json.RawMessage{}}, teacherUser())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
}

func TestSubmissionService_Submit_TargetedRequiresAssignment(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	exRepo := new(MockExerciseRepository)
	accessRepo := new(MockExerciseAccessRepository)
	svc := NewSubmissionService(subRepo, exRepo, accessRepo, events.NewMockPublisher(), testLogger())

	exercise := publishedExercise(t)
	exercise.IsGeneral = false
	exRepo.On("GetByID", mock.Anything, "ex-1").Return(exercise, nil)
	accessRepo.On("IsAssigned", mock.Anything, "ex-1", "student-1").Return(false, nil)

	_, err := svc.Submit(context.Background(), "ex-1", &SubmitRequest{Answers: map[string]json.RawMessage{}}, studentUser())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	subRepo.AssertNotCalled(t, "Create")
}

func TestSubmissionService_Submit_AssignedStudent(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	exRepo := new(MockExerciseRepository)
	accessRepo := new(MockExerciseAccessRepository)
	svc := NewSubmissionService(subRepo, exRepo, accessRepo, events.NewMockPublisher(), testLogger())

	exercise := publishedExercise(t)
	exercise.IsGeneral = false
	exRepo.On("GetByID", mock.Anything, "ex-1").Return(exercise, nil)
	accessRepo.On("IsAssigned", mock.Anything, "ex-1", "student-1").Return(true, nil)
	subRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.Submission")).Return(nil)

	resp, err := svc.Submit(context.Background(), "ex-1", &SubmitRequest{
		Answers: map[string]json.RawMessage{"q_0": json.RawMessage(`"a"`)},
	}, studentUser())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.TotalQuestions)
	accessRepo.AssertExpectations(t)
}

func TestSubmissionService_GetByID_AccessControl(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	exRepo := new(MockExerciseRepository)
	svc := NewSubmissionService(subRepo, exRepo, new(MockExerciseAccessRepository), events.NewMockPublisher(), testLogger())

	submission := &models.Submission{
		ID:         "sub-1",
		ExerciseID: "ex-1",
		StudentID:  "student-1",
		Exercise:   *publishedExercise(t),
		Corrections: datatypes.NewJSONType([]models.CorrectionResult{
			{QuestionIndex: 0, Question: "Choose the correct verb form", UserAnswer: "a", IsCorrect: true, CorrectAnswer: "goes"},
		}),
		Score:          1,
		TotalQuestions: 1,
		Attempt:        1,
	}
	subRepo.On("GetByID", mock.Anything, "sub-1").Return(submission, nil)

	t.Run("owning student sees rendered corrections", func(t *testing.T) {
		resp, err := svc.GetByID(context.Background(), "sub-1", studentUser())
		require.NoError(t, err)
		assert.Len(t, resp.Rendered, 1)
		assert.True(t, resp.Rendered[0].IsCorrect)
	})

	t.Run("exercise owner may view", func(t *testing.T) {
		_, err := svc.GetByID(context.Background(), "sub-1", teacherUser())
		assert.NoError(t, err)
	})

	t.Run("other student rejected", func(t *testing.T) {
		other := studentUser()
		other.ID = "student-2"
		_, err := svc.GetByID(context.Background(), "sub-1", other)
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))
	})
}

func TestSubmissionService_List_StudentScoped(t *testing.T) {
	subRepo := new(MockSubmissionRepository)
	exRepo := new(MockExerciseRepository)
	svc := NewSubmissionService(subRepo, exRepo, new(MockExerciseAccessRepository), events.NewMockPublisher(), testLogger())

	student := studentUser()

	// The student filter must be forced to the caller's own id regardless of
	// what the request asked for.
	subRepo.On("List", mock.Anything, mock.MatchedBy(func(f repositories.SubmissionFilters) bool {
		return f.StudentID != nil && *f.StudentID == student.ID
	})).Return([]*models.Submission{}, int64(0), nil)

	otherStudent := "student-2"
	_, err := svc.List(context.Background(), repositories.SubmissionFilters{StudentID: &otherStudent}, student)
	require.NoError(t, err)
	subRepo.AssertExpectations(t)
}
