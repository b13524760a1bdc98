package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
	"github.com/english-exercises-hub/exercises-service/internal/utils"
	"github.com/english-exercises-hub/exercises-service/internal/validator"
)

// ===== REQUEST/RESPONSE TYPES =====

type CreateUserRequest struct {
	FullName string          `json:"full_name" validate:"required,min=2,max=100"`
	Email    string          `json:"email" validate:"required,email"`
	Role     models.UserRole `json:"role" validate:"required,user_role"`

	// Password is required for admins and teachers; students authenticate
	// through magic links and may have none.
	Password string `json:"password" validate:"omitempty,min=8,max=72"`

	Level     string  `json:"level" validate:"omitempty,max=20"`
	IsGeneral *bool   `json:"is_general"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,uuid"`
}

type UpdateUserRequest struct {
	FullName *string            `json:"full_name" validate:"omitempty,min=2,max=100"`
	Email    *string            `json:"email" validate:"omitempty,email"`
	Password *string            `json:"password" validate:"omitempty,min=8,max=72"`
	Level    *string            `json:"level" validate:"omitempty,max=20"`
	Status   *models.UserStatus `json:"status" validate:"omitempty,oneof=active inactive"`

	IsGeneral *bool   `json:"is_general"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,uuid"`
}

type UserListResponse struct {
	Users  []*models.User `json:"users"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type RoleCounts struct {
	Admins   int64 `json:"admins"`
	Teachers int64 `json:"teachers"`
	Students int64 `json:"students"`
}

// ===== SERVICE INTERFACE =====

type UserService interface {
	Create(ctx context.Context, req *CreateUserRequest, actor *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string, actor *models.User) (*models.User, error)
	Update(ctx context.Context, id string, req *UpdateUserRequest, actor *models.User) (*models.User, error)
	Delete(ctx context.Context, id string, actor *models.User) error

	List(ctx context.Context, filters repositories.UserFilters, actor *models.User) (*UserListResponse, error)
	GetStudents(ctx context.Context, teacher *models.User) ([]*models.User, error)
	GetRoleCounts(ctx context.Context, actor *models.User) (*RoleCounts, error)
}

type userService struct {
	users     repositories.UserRepository
	logger    utils.Logger
	validator *validator.Validator
}

func NewUserService(users repositories.UserRepository, logger utils.Logger, v *validator.Validator) UserService {
	return &userService{
		users:     users,
		logger:    logger,
		validator: v,
	}
}

// ===== OPERATIONS =====

// Create registers a user. Admins can create anyone; teachers can only create
// students attached to themselves.
func (s *userService) Create(ctx context.Context, req *CreateUserRequest, actor *models.User) (*models.User, error) {
	s.logger.InfoContext(ctx, "creating user", "actor_id", actor.ID, "role", req.Role)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.canCreate(req, actor); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	if req.Role != models.RoleStudent && req.Password == "" {
		return nil, NewValidationError("password", "password is required for this role", nil)
	}

	user := &models.User{
		ID:       uuid.New().String(),
		FullName: req.FullName,
		Email:    req.Email,
		Role:     req.Role,
		Level:    req.Level,
		Status:   models.UserActive,
	}

	if req.Password != "" {
		hash, err := hashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash
	}

	if req.Role == models.RoleStudent {
		user.IsGeneral = true
		if req.IsGeneral != nil {
			user.IsGeneral = *req.IsGeneral
		}
		if actor.Role == models.RoleTeacher {
			user.TeacherID = &actor.ID
		} else {
			user.TeacherID = req.TeacherID
		}
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id string, actor *models.User) (*models.User, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(user, actor); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Update(ctx context.Context, id string, req *UpdateUserRequest, actor *models.User) (*models.User, error) {
	s.logger.InfoContext(ctx, "updating user", "user_id", id, "actor_id", actor.ID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canManage(user, actor, "update"); err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != user.Email {
		if _, err := s.users.GetByEmail(ctx, *req.Email); err == nil {
			return nil, ErrEmailTaken
		} else if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		user.Email = *req.Email
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = &hash
	}
	if req.Level != nil {
		user.Level = *req.Level
	}
	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.IsGeneral != nil {
		user.IsGeneral = *req.IsGeneral
	}
	if req.TeacherID != nil && actor.Role == models.RoleAdmin {
		user.TeacherID = req.TeacherID
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

func (s *userService) Delete(ctx context.Context, id string, actor *models.User) error {
	s.logger.InfoContext(ctx, "deleting user", "user_id", id, "actor_id", actor.ID)

	if id == actor.ID {
		return NewBusinessRuleError("self_delete", "users cannot delete their own account", nil)
	}

	user, err := s.getUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.canManage(user, actor, "delete"); err != nil {
		return err
	}

	return s.users.Delete(ctx, id)
}

func (s *userService) List(ctx context.Context, filters repositories.UserFilters, actor *models.User) (*UserListResponse, error) {
	switch actor.Role {
	case models.RoleAdmin:
		// No restriction.
	case models.RoleTeacher:
		// Teachers only list their own students.
		role := models.RoleStudent
		filters.Role = &role
		filters.TeacherID = &actor.ID
	default:
		return nil, NewPermissionError(actor.ID, "", "user", "list", "insufficient role")
	}

	users, total, err := s.users.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return &UserListResponse{
		Users:  users,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}

func (s *userService) GetStudents(ctx context.Context, teacher *models.User) ([]*models.User, error) {
	students, err := s.users.GetStudentsByTeacher(ctx, teacher.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get students: %w", err)
	}
	return students, nil
}

func (s *userService) GetRoleCounts(ctx context.Context, actor *models.User) (*RoleCounts, error) {
	if actor.Role != models.RoleAdmin {
		return nil, NewPermissionError(actor.ID, "", "user", "count", "admin only")
	}

	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	return &RoleCounts{
		Admins:   counts[models.RoleAdmin],
		Teachers: counts[models.RoleTeacher],
		Students: counts[models.RoleStudent],
	}, nil
}

// ===== HELPERS =====

func (s *userService) getUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *userService) canCreate(req *CreateUserRequest, actor *models.User) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if req.Role == models.RoleStudent {
			return nil
		}
	}
	return NewPermissionError(actor.ID, "", "user", "create", "insufficient role")
}

func (s *userService) canView(user *models.User, actor *models.User) error {
	if actor.Role == models.RoleAdmin || actor.ID == user.ID {
		return nil
	}
	if actor.Role == models.RoleTeacher && user.TeacherID != nil && *user.TeacherID == actor.ID {
		return nil
	}
	return NewPermissionError(actor.ID, user.ID, "user", "read", "not visible to this user")
}

func (s *userService) canManage(user *models.User, actor *models.User, action string) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.Role == models.RoleTeacher && user.Role == models.RoleStudent &&
		user.TeacherID != nil && *user.TeacherID == actor.ID {
		return nil
	}
	return NewPermissionError(actor.ID, user.ID, "user", action, "insufficient role")
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
