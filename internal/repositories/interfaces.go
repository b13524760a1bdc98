package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/english-exercises-hub/exercises-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExerciseFilters struct {
	Difficulty  *models.ExerciseDifficulty `json:"difficulty"`
	Level       *string                    `json:"level"`
	IsGeneral   *bool                      `json:"is_general"`
	IsPublished *bool                      `json:"is_published"`
	TeacherID   *string                    `json:"teacher_id"`
	Search      string                     `json:"search"`
	Limit       int                        `json:"limit"`
	Offset      int                        `json:"offset"`
	SortBy      string                     `json:"sort_by"`    // "created_at", "title", "difficulty"
	SortOrder   string                     `json:"sort_order"` // "asc", "desc"
}

type SubmissionFilters struct {
	ExerciseID *string    `json:"exercise_id"`
	StudentID  *string    `json:"student_id"`
	DateFrom   *time.Time `json:"date_from"`
	DateTo     *time.Time `json:"date_to"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
}

type UserFilters struct {
	Role      *models.UserRole   `json:"role"`
	Status    *models.UserStatus `json:"status"`
	TeacherID *string            `json:"teacher_id"`
	Search    string             `json:"search"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type ExerciseStats struct {
	TotalSubmissions int     `json:"total_submissions"`
	UniqueStudents   int     `json:"unique_students"`
	AveragePercent   float64 `json:"average_percent"`
	PassRate         float64 `json:"pass_rate"`
}

type TeacherStats struct {
	TotalExercises     int `json:"total_exercises"`
	PublishedExercises int `json:"published_exercises"`
	DraftExercises     int `json:"draft_exercises"`
	TotalStudents      int `json:"total_students"`
	TotalSubmissions   int `json:"total_submissions"`
}

// ===== REPOSITORY INTERFACES =====

type ExerciseRepository interface {
	Create(ctx context.Context, exercise *models.Exercise) error
	GetByID(ctx context.Context, id string) (*models.Exercise, error)
	Update(ctx context.Context, exercise *models.Exercise) error
	Delete(ctx context.Context, id string) error // soft delete

	List(ctx context.Context, filters ExerciseFilters) ([]*models.Exercise, int64, error)
	ListForStudent(ctx context.Context, student *models.User, filters ExerciseFilters) ([]*models.Exercise, int64, error)

	SetPublished(ctx context.Context, id string, published bool) error

	IsOwner(ctx context.Context, exerciseID, teacherID string) (bool, error)
	HasSubmissions(ctx context.Context, id string) (bool, error)
	CountSubmissions(ctx context.Context, ids []string) (map[string]int, error)

	GetStats(ctx context.Context, id string) (*ExerciseStats, error)
	GetTeacherStats(ctx context.Context, teacherID string) (*TeacherStats, error)
}

// SubmissionRepository is append-only: graded attempts are never updated or
// deleted so historical results stay stable.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)

	List(ctx context.Context, filters SubmissionFilters) ([]*models.Submission, int64, error)
	GetByExerciseAndStudent(ctx context.Context, exerciseID, studentID string) ([]*models.Submission, error)
	CountByExerciseAndStudent(ctx context.Context, exerciseID, studentID string) (int64, error)
}

// ExerciseAccessRepository manages per-student exercise assignments. Assign
// skips pairs that already exist and reports how many rows it actually
// created; revoking deactivates the row so the assignment history survives.
type ExerciseAccessRepository interface {
	Assign(ctx context.Context, accesses []*models.StudentExerciseAccess) (int, error)
	Revoke(ctx context.Context, exerciseID, studentID string) error

	IsAssigned(ctx context.Context, exerciseID, studentID string) (bool, error)
	ListByExercise(ctx context.Context, exerciseID string) ([]*models.StudentExerciseAccess, error)
	ListByStudent(ctx context.Context, studentID string) ([]*models.StudentExerciseAccess, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error // soft delete

	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)
	GetStudentsByTeacher(ctx context.Context, teacherID string) ([]*models.User, error)
	CountByRole(ctx context.Context) (map[models.UserRole]int64, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type StudentTokenRepository interface {
	Upsert(ctx context.Context, token *models.StudentToken) error
	GetByToken(ctx context.Context, token string) (*models.StudentToken, error)
	GetByStudent(ctx context.Context, studentID string) (*models.StudentToken, error)
	DeleteByStudent(ctx context.Context, studentID string) error
}

// IsNotFoundError reports whether err is the database's missing-row error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
