package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db *gorm.DB
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{db: db}
}

// Create inserts a graded attempt, assigning the attempt number inside the
// transaction so two concurrent submissions from the same student cannot share
// one.
func (r *SubmissionPostgreSQL) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var previous int64
		err := tx.Model(&models.Submission{}).
			Where("exercise_id = ? AND student_id = ?", submission.ExerciseID, submission.StudentID).
			Count(&previous).Error
		if err != nil {
			return fmt.Errorf("failed to count previous attempts: %w", err)
		}

		submission.Attempt = int(previous) + 1
		if err := tx.Create(submission).Error; err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		return nil
	})
}

func (r *SubmissionPostgreSQL) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Exercise").
		Preload("Student").
		Where("id = ?", id).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *SubmissionPostgreSQL) List(ctx context.Context, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{})

	if filters.ExerciseID != nil {
		query = query.Where("exercise_id = ?", *filters.ExerciseID)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPaginationAndSort(query, "created_at", "desc", filters.Limit, filters.Offset)

	var submissions []*models.Submission
	err := query.Preload("Exercise").Preload("Student").Find(&submissions).Error
	if err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

func (r *SubmissionPostgreSQL) GetByExerciseAndStudent(ctx context.Context, exerciseID, studentID string) ([]*models.Submission, error) {
	var submissions []*models.Submission
	err := r.db.WithContext(ctx).
		Where("exercise_id = ? AND student_id = ?", exerciseID, studentID).
		Order("attempt ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *SubmissionPostgreSQL) CountByExerciseAndStudent(ctx context.Context, exerciseID, studentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("exercise_id = ? AND student_id = ?", exerciseID, studentID).
		Count(&count).Error
	return count, err
}
