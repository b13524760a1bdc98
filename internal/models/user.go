package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

type User struct {
	ID       string   `json:"id" gorm:"primaryKey;size:36"`
	FullName string   `json:"full_name" gorm:"not null;size:100" validate:"required,min=2,max=100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255" validate:"required,email"`
	Role     UserRole `json:"role" gorm:"not null;index" validate:"required,user_role"`

	// Password is null for magic-link-only students.
	PasswordHash *string `json:"-" gorm:"size:100"`

	// Student placement. Level is empty for admins and teachers.
	Level     string `json:"level" gorm:"size:20"`
	IsGeneral bool   `json:"is_general" gorm:"default:true"`

	// Students belong to exactly one teacher; null for admins and teachers.
	TeacherID *string `json:"teacher_id" gorm:"size:36;index"`

	Status    UserStatus     `json:"status" gorm:"default:active" validate:"omitempty,oneof=active inactive"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// StudentToken backs the passwordless magic-link flow. One token per student.
type StudentToken struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	StudentID string     `json:"student_id" gorm:"uniqueIndex;not null;size:36"`
	Token     string     `json:"token" gorm:"uniqueIndex;not null;size:64"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`

	Student User `json:"student" gorm:"foreignKey:StudentID"`
}

func (StudentToken) TableName() string {
	return "student_tokens"
}

type Session struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"not null;size:36;index"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`

	User User `json:"user" gorm:"foreignKey:UserID"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
