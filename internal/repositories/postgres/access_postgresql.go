package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
)

type ExerciseAccessPostgreSQL struct {
	db *gorm.DB
}

func NewExerciseAccessPostgreSQL(db *gorm.DB) repositories.ExerciseAccessRepository {
	return &ExerciseAccessPostgreSQL{db: db}
}

// Assign inserts the given assignments, silently skipping (exercise, student)
// pairs that already exist. The returned count is the number of rows actually
// created.
func (r *ExerciseAccessPostgreSQL) Assign(ctx context.Context, accesses []*models.StudentExerciseAccess) (int, error) {
	if len(accesses) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "exercise_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		Create(accesses)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to assign students: %w", result.Error)
	}

	return int(result.RowsAffected), nil
}

func (r *ExerciseAccessPostgreSQL) Revoke(ctx context.Context, exerciseID, studentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.StudentExerciseAccess{}).
		Where("exercise_id = ? AND student_id = ?", exerciseID, studentID).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		}).Error
}

func (r *ExerciseAccessPostgreSQL) IsAssigned(ctx context.Context, exerciseID, studentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StudentExerciseAccess{}).
		Where("exercise_id = ? AND student_id = ? AND is_active = ?", exerciseID, studentID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *ExerciseAccessPostgreSQL) ListByExercise(ctx context.Context, exerciseID string) ([]*models.StudentExerciseAccess, error) {
	var accesses []*models.StudentExerciseAccess
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("exercise_id = ?", exerciseID).
		Order("created_at ASC").
		Find(&accesses).Error
	return accesses, err
}

func (r *ExerciseAccessPostgreSQL) ListByStudent(ctx context.Context, studentID string) ([]*models.StudentExerciseAccess, error) {
	var accesses []*models.StudentExerciseAccess
	err := r.db.WithContext(ctx).
		Preload("Exercise").
		Where("student_id = ? AND is_active = ?", studentID, true).
		Order("created_at ASC").
		Find(&accesses).Error
	return accesses, err
}
