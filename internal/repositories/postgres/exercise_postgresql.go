package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
)

type ExercisePostgreSQL struct {
	db *gorm.DB
}

func NewExercisePostgreSQL(db *gorm.DB) repositories.ExerciseRepository {
	return &ExercisePostgreSQL{db: db}
}

func (r *ExercisePostgreSQL) Create(ctx context.Context, exercise *models.Exercise) error {
	if err := r.db.WithContext(ctx).Create(exercise).Error; err != nil {
		return fmt.Errorf("failed to create exercise: %w", err)
	}
	return nil
}

func (r *ExercisePostgreSQL) GetByID(ctx context.Context, id string) (*models.Exercise, error) {
	var exercise models.Exercise
	err := r.db.WithContext(ctx).
		Preload("Teacher").
		Where("id = ?", id).
		First(&exercise).Error
	if err != nil {
		return nil, err
	}

	counts, err := r.CountSubmissions(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	exercise.SubmissionCount = counts[id]

	return &exercise, nil
}

func (r *ExercisePostgreSQL) Update(ctx context.Context, exercise *models.Exercise) error {
	exercise.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(exercise).Error; err != nil {
		return fmt.Errorf("failed to update exercise: %w", err)
	}
	return nil
}

func (r *ExercisePostgreSQL) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Exercise{}).Error
}

func (r *ExercisePostgreSQL) List(ctx context.Context, filters repositories.ExerciseFilters) ([]*models.Exercise, int64, error) {
	query := r.applyFilters(r.db.WithContext(ctx).Model(&models.Exercise{}), filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var exercises []*models.Exercise
	if err := query.Preload("Teacher").Find(&exercises).Error; err != nil {
		return nil, 0, err
	}

	if err := r.attachSubmissionCounts(ctx, exercises); err != nil {
		return nil, 0, err
	}

	return exercises, total, nil
}

// ListForStudent returns the published exercises visible to one student:
// general exercises matching the student's level plus everything explicitly
// assigned to the student through an active access row.
func (r *ExercisePostgreSQL) ListForStudent(ctx context.Context, student *models.User, filters repositories.ExerciseFilters) ([]*models.Exercise, int64, error) {
	published := true
	filters.IsPublished = &published

	query := r.applyFilters(r.db.WithContext(ctx).Model(&models.Exercise{}), filters)

	assigned := r.db.Model(&models.StudentExerciseAccess{}).
		Select("exercise_id").
		Where("student_id = ? AND is_active = ?", student.ID, true)
	query = query.Where("(is_general = ? AND (level = ? OR level = '')) OR id IN (?)",
		true, student.Level, assigned)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var exercises []*models.Exercise
	if err := query.Preload("Teacher").Find(&exercises).Error; err != nil {
		return nil, 0, err
	}

	if err := r.attachSubmissionCounts(ctx, exercises); err != nil {
		return nil, 0, err
	}

	return exercises, total, nil
}

func (r *ExercisePostgreSQL) SetPublished(ctx context.Context, id string, published bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Exercise{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_published": published,
			"updated_at":   time.Now(),
		}).Error
}

func (r *ExercisePostgreSQL) IsOwner(ctx context.Context, exerciseID, teacherID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Exercise{}).
		Where("id = ? AND teacher_id = ?", exerciseID, teacherID).
		Count(&count).Error
	return count > 0, err
}

func (r *ExercisePostgreSQL) HasSubmissions(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("exercise_id = ?", id).
		Count(&count).Error
	return count > 0, err
}

func (r *ExercisePostgreSQL) CountSubmissions(ctx context.Context, ids []string) (map[string]int, error) {
	counts := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	type row struct {
		ExerciseID string
		Count      int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("exercise_id, COUNT(*) as count").
		Where("exercise_id IN ?", ids).
		Group("exercise_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.ExerciseID] = row.Count
	}
	return counts, nil
}

func (r *ExercisePostgreSQL) GetStats(ctx context.Context, id string) (*repositories.ExerciseStats, error) {
	stats := &repositories.ExerciseStats{}

	var total, uniqueStudents int64
	err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("COUNT(*), COUNT(DISTINCT student_id)").
		Where("exercise_id = ?", id).
		Row().
		Scan(&total, &uniqueStudents)
	if err != nil {
		return nil, err
	}

	stats.TotalSubmissions = int(total)
	stats.UniqueStudents = int(uniqueStudents)

	if total > 0 {
		var avgPercent float64
		var passed int64
		err = r.db.WithContext(ctx).
			Model(&models.Submission{}).
			Select("AVG(CASE WHEN total_questions > 0 THEN score * 100.0 / total_questions ELSE 0 END), "+
				"SUM(CASE WHEN total_questions > 0 AND score * 100 / total_questions >= ? THEN 1 ELSE 0 END)",
				models.PassThreshold).
			Where("exercise_id = ?", id).
			Row().
			Scan(&avgPercent, &passed)
		if err != nil {
			return nil, err
		}
		stats.AveragePercent = avgPercent
		stats.PassRate = float64(passed) / float64(total) * 100
	}

	return stats, nil
}

func (r *ExercisePostgreSQL) GetTeacherStats(ctx context.Context, teacherID string) (*repositories.TeacherStats, error) {
	stats := &repositories.TeacherStats{}

	var total, published int64
	err := r.db.WithContext(ctx).
		Model(&models.Exercise{}).
		Select("COUNT(*), SUM(CASE WHEN is_published THEN 1 ELSE 0 END)").
		Where("teacher_id = ?", teacherID).
		Row().
		Scan(&total, &published)
	if err != nil {
		return nil, err
	}
	stats.TotalExercises = int(total)
	stats.PublishedExercises = int(published)
	stats.DraftExercises = int(total - published)

	var students int64
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("teacher_id = ? AND role = ?", teacherID, models.RoleStudent).
		Count(&students).Error; err != nil {
		return nil, err
	}
	stats.TotalStudents = int(students)

	var submissions int64
	err = r.db.WithContext(ctx).
		Table("submissions s").
		Joins("JOIN exercises e ON s.exercise_id = e.id").
		Where("e.teacher_id = ?", teacherID).
		Count(&submissions).Error
	if err != nil {
		return nil, err
	}
	stats.TotalSubmissions = int(submissions)

	return stats, nil
}

func (r *ExercisePostgreSQL) applyFilters(query *gorm.DB, filters repositories.ExerciseFilters) *gorm.DB {
	if filters.Difficulty != nil {
		query = query.Where("difficulty = ?", *filters.Difficulty)
	}
	if filters.Level != nil {
		query = query.Where("level = ?", *filters.Level)
	}
	if filters.IsGeneral != nil {
		query = query.Where("is_general = ?", *filters.IsGeneral)
	}
	if filters.IsPublished != nil {
		query = query.Where("is_published = ?", *filters.IsPublished)
	}
	if filters.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filters.TeacherID)
	}
	if filters.Search != "" {
		pattern := fmt.Sprintf("%%%s%%", filters.Search)
		query = query.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	return query
}

func (r *ExercisePostgreSQL) attachSubmissionCounts(ctx context.Context, exercises []*models.Exercise) error {
	if len(exercises) == 0 {
		return nil
	}
	ids := make([]string, len(exercises))
	for i, e := range exercises {
		ids[i] = e.ID
	}
	counts, err := r.CountSubmissions(ctx, ids)
	if err != nil {
		return err
	}
	for _, e := range exercises {
		e.SubmissionCount = counts[e.ID]
	}
	return nil
}
