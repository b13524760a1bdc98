package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
)

// MockExerciseRepository is a mock implementation of ExerciseRepository
type MockExerciseRepository struct {
	mock.Mock
}

func (m *MockExerciseRepository) Create(ctx context.Context, exercise *models.Exercise) error {
	args := m.Called(ctx, exercise)
	return args.Error(0)
}

func (m *MockExerciseRepository) GetByID(ctx context.Context, id string) (*models.Exercise, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Exercise), args.Error(1)
}

func (m *MockExerciseRepository) Update(ctx context.Context, exercise *models.Exercise) error {
	args := m.Called(ctx, exercise)
	return args.Error(0)
}

func (m *MockExerciseRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockExerciseRepository) List(ctx context.Context, filters repositories.ExerciseFilters) ([]*models.Exercise, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Exercise), args.Get(1).(int64), args.Error(2)
}

func (m *MockExerciseRepository) ListForStudent(ctx context.Context, student *models.User, filters repositories.ExerciseFilters) ([]*models.Exercise, int64, error) {
	args := m.Called(ctx, student, filters)
	return args.Get(0).([]*models.Exercise), args.Get(1).(int64), args.Error(2)
}

func (m *MockExerciseRepository) SetPublished(ctx context.Context, id string, published bool) error {
	args := m.Called(ctx, id, published)
	return args.Error(0)
}

func (m *MockExerciseRepository) IsOwner(ctx context.Context, exerciseID, teacherID string) (bool, error) {
	args := m.Called(ctx, exerciseID, teacherID)
	return args.Bool(0), args.Error(1)
}

func (m *MockExerciseRepository) HasSubmissions(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockExerciseRepository) CountSubmissions(ctx context.Context, ids []string) (map[string]int, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockExerciseRepository) GetStats(ctx context.Context, id string) (*repositories.ExerciseStats, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.ExerciseStats), args.Error(1)
}

func (m *MockExerciseRepository) GetTeacherStats(ctx context.Context, teacherID string) (*repositories.TeacherStats, error) {
	args := m.Called(ctx, teacherID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.TeacherStats), args.Error(1)
}

// MockSubmissionRepository is a mock implementation of SubmissionRepository
type MockSubmissionRepository struct {
	mock.Mock
}

func (m *MockSubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

func (m *MockSubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Submission), args.Error(1)
}

func (m *MockSubmissionRepository) List(ctx context.Context, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Submission), args.Get(1).(int64), args.Error(2)
}

func (m *MockSubmissionRepository) GetByExerciseAndStudent(ctx context.Context, exerciseID, studentID string) ([]*models.Submission, error) {
	args := m.Called(ctx, exerciseID, studentID)
	return args.Get(0).([]*models.Submission), args.Error(1)
}

func (m *MockSubmissionRepository) CountByExerciseAndStudent(ctx context.Context, exerciseID, studentID string) (int64, error) {
	args := m.Called(ctx, exerciseID, studentID)
	return args.Get(0).(int64), args.Error(1)
}

// MockExerciseAccessRepository is a mock implementation of ExerciseAccessRepository
type MockExerciseAccessRepository struct {
	mock.Mock
}

func (m *MockExerciseAccessRepository) Assign(ctx context.Context, accesses []*models.StudentExerciseAccess) (int, error) {
	args := m.Called(ctx, accesses)
	return args.Int(0), args.Error(1)
}

func (m *MockExerciseAccessRepository) Revoke(ctx context.Context, exerciseID, studentID string) error {
	args := m.Called(ctx, exerciseID, studentID)
	return args.Error(0)
}

func (m *MockExerciseAccessRepository) IsAssigned(ctx context.Context, exerciseID, studentID string) (bool, error) {
	args := m.Called(ctx, exerciseID, studentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockExerciseAccessRepository) ListByExercise(ctx context.Context, exerciseID string) ([]*models.StudentExerciseAccess, error) {
	args := m.Called(ctx, exerciseID)
	return args.Get(0).([]*models.StudentExerciseAccess), args.Error(1)
}

func (m *MockExerciseAccessRepository) ListByStudent(ctx context.Context, studentID string) ([]*models.StudentExerciseAccess, error) {
	args := m.Called(ctx, studentID)
	return args.Get(0).([]*models.StudentExerciseAccess), args.Error(1)
}

// MockCacheService is a mock implementation of cache.CacheService
type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) DeletePattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) GetStudentsByTeacher(ctx context.Context, teacherID string) ([]*models.User, error) {
	args := m.Called(ctx, teacherID)
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) CountByRole(ctx context.Context) (map[models.UserRole]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[models.UserRole]int64), args.Error(1)
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockStudentTokenRepository is a mock implementation of StudentTokenRepository
type MockStudentTokenRepository struct {
	mock.Mock
}

func (m *MockStudentTokenRepository) Upsert(ctx context.Context, token *models.StudentToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockStudentTokenRepository) GetByToken(ctx context.Context, token string) (*models.StudentToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StudentToken), args.Error(1)
}

func (m *MockStudentTokenRepository) GetByStudent(ctx context.Context, studentID string) (*models.StudentToken, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StudentToken), args.Error(1)
}

func (m *MockStudentTokenRepository) DeleteByStudent(ctx context.Context, studentID string) error {
	args := m.Called(ctx, studentID)
	return args.Error(0)
}
