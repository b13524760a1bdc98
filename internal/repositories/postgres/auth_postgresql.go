package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (r *SessionPostgreSQL) Create(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionPostgreSQL) GetByID(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionPostgreSQL) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Session{}).Error
}

func (r *SessionPostgreSQL) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

type StudentTokenPostgreSQL struct {
	db *gorm.DB
}

func NewStudentTokenPostgreSQL(db *gorm.DB) repositories.StudentTokenRepository {
	return &StudentTokenPostgreSQL{db: db}
}

// Upsert replaces the student's existing magic-link token; each student has at
// most one live token.
func (r *StudentTokenPostgreSQL) Upsert(ctx context.Context, token *models.StudentToken) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "created_at"}),
		}).
		Create(token).Error
}

func (r *StudentTokenPostgreSQL) GetByToken(ctx context.Context, token string) (*models.StudentToken, error) {
	var record models.StudentToken
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("token = ?", token).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *StudentTokenPostgreSQL) GetByStudent(ctx context.Context, studentID string) (*models.StudentToken, error) {
	var record models.StudentToken
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *StudentTokenPostgreSQL) DeleteByStudent(ctx context.Context, studentID string) error {
	return r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Delete(&models.StudentToken{}).Error
}
