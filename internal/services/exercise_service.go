package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/english-exercises-hub/exercises-service/internal/cache"
	"github.com/english-exercises-hub/exercises-service/internal/grading"
	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
	"github.com/english-exercises-hub/exercises-service/internal/utils"
	"github.com/english-exercises-hub/exercises-service/internal/validator"
)

// statsCacheTTL bounds how stale cached exercise statistics can get; new
// submissions show up in stats after at most this long.
const statsCacheTTL = 5 * time.Minute

// ===== REQUEST/RESPONSE TYPES =====

type CreateExerciseRequest struct {
	Title       string                `json:"title" validate:"required,min=1,max=200"`
	Description *string               `json:"description" validate:"omitempty,max=1000"`
	Items       []models.ExerciseItem `json:"exercises" validate:"required,min=1,dive"`

	Difficulty models.ExerciseDifficulty `json:"difficulty" validate:"required,difficulty_level"`
	Level      string                    `json:"level" validate:"omitempty,max=20"`
	Tags       []string                  `json:"tags"`
	IsGeneral  *bool                     `json:"is_general"`
}

type UpdateExerciseRequest struct {
	Title       *string               `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string               `json:"description" validate:"omitempty,max=1000"`
	Items       []models.ExerciseItem `json:"exercises" validate:"omitempty,min=1,dive"`

	Difficulty *models.ExerciseDifficulty `json:"difficulty" validate:"omitempty,difficulty_level"`
	Level      *string                    `json:"level" validate:"omitempty,max=20"`
	Tags       []string                   `json:"tags"`
	IsGeneral  *bool                      `json:"is_general"`
}

type ExerciseResponse struct {
	*models.Exercise
	QuestionCount int `json:"question_count"`
}

type ExerciseListResponse struct {
	Exercises []*ExerciseResponse `json:"exercises"`
	Total     int64               `json:"total"`
	Limit     int                 `json:"limit"`
	Offset    int                 `json:"offset"`
}

type AssignStudentsRequest struct {
	StudentIDs []string   `json:"student_ids" validate:"required,min=1,dive,required"`
	DueDate    *time.Time `json:"due_date"`
}

// AssignStudentsResponse reports how many assignments were newly created;
// students already holding the exercise are counted in Total but not Assigned.
type AssignStudentsResponse struct {
	Assigned int `json:"assigned"`
	Total    int `json:"total"`
}

type AssignmentResponse struct {
	StudentID   string     `json:"student_id"`
	StudentName string     `json:"student_name,omitempty"`
	AssignedBy  string     `json:"assigned_by"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	IsActive    bool       `json:"is_active"`
	AssignedAt  time.Time  `json:"assigned_at"`
	Attempts    int64      `json:"attempts"`
}

// ===== SERVICE INTERFACE =====

type ExerciseService interface {
	Create(ctx context.Context, req *CreateExerciseRequest, teacher *models.User) (*ExerciseResponse, error)
	GetByID(ctx context.Context, id string, user *models.User) (*ExerciseResponse, error)
	Update(ctx context.Context, id string, req *UpdateExerciseRequest, user *models.User) (*ExerciseResponse, error)
	Delete(ctx context.Context, id string, user *models.User) error

	List(ctx context.Context, filters repositories.ExerciseFilters, user *models.User) (*ExerciseListResponse, error)

	SetPublished(ctx context.Context, id string, published bool, user *models.User) (*ExerciseResponse, error)
	Duplicate(ctx context.Context, id string, user *models.User) (*ExerciseResponse, error)

	AssignStudents(ctx context.Context, exerciseID string, req *AssignStudentsRequest, user *models.User) (*AssignStudentsResponse, error)
	ListAssignments(ctx context.Context, exerciseID string, user *models.User) ([]*AssignmentResponse, error)
	RevokeAssignment(ctx context.Context, exerciseID, studentID string, user *models.User) error

	GetStats(ctx context.Context, id string, user *models.User) (*repositories.ExerciseStats, error)
	GetTeacherStats(ctx context.Context, teacherID string, user *models.User) (*repositories.TeacherStats, error)
}

type exerciseService struct {
	exercises   repositories.ExerciseRepository
	access      repositories.ExerciseAccessRepository
	users       repositories.UserRepository
	submissions repositories.SubmissionRepository
	cache       cache.CacheService
	logger      utils.Logger
	validator   *validator.Validator
}

func NewExerciseService(
	exercises repositories.ExerciseRepository,
	access repositories.ExerciseAccessRepository,
	users repositories.UserRepository,
	submissions repositories.SubmissionRepository,
	cacheService cache.CacheService,
	logger utils.Logger,
	v *validator.Validator,
) ExerciseService {
	return &exerciseService{
		exercises:   exercises,
		access:      access,
		users:       users,
		submissions: submissions,
		cache:       cacheService,
		logger:      logger,
		validator:   v,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *exerciseService) Create(ctx context.Context, req *CreateExerciseRequest, teacher *models.User) (*ExerciseResponse, error) {
	s.logger.InfoContext(ctx, "creating exercise", "teacher_id", teacher.ID, "title", req.Title)

	if teacher.Role != models.RoleTeacher && teacher.Role != models.RoleAdmin {
		return nil, NewPermissionError(teacher.ID, "", "exercise", "create", "only teachers can author exercises")
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	items, err := s.prepareItems(req.Items)
	if err != nil {
		return nil, err
	}

	exercise := &models.Exercise{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Items:       datatypes.NewJSONType(items),
		Difficulty:  req.Difficulty,
		Level:       req.Level,
		Tags:        marshalTags(req.Tags),
		IsGeneral:   true,
		IsPublished: false,
		TeacherID:   teacher.ID,
	}
	if req.IsGeneral != nil {
		exercise.IsGeneral = *req.IsGeneral
	}

	if err := s.exercises.Create(ctx, exercise); err != nil {
		return nil, fmt.Errorf("failed to create exercise: %w", err)
	}

	s.logger.InfoContext(ctx, "exercise created", "exercise_id", exercise.ID, "questions", len(items))
	return buildExerciseResponse(exercise), nil
}

func (s *exerciseService) GetByID(ctx context.Context, id string, user *models.User) (*ExerciseResponse, error) {
	exercise, err := s.getExercise(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.canView(ctx, exercise, user); err != nil {
		return nil, err
	}

	return buildExerciseResponse(exercise), nil
}

// Update rewrites an exercise in place. A modified exercise always returns to
// draft so the teacher reviews it before students see the new version, and an
// exercise with submissions is frozen: its question list is the grading
// contract for the stored attempts.
func (s *exerciseService) Update(ctx context.Context, id string, req *UpdateExerciseRequest, user *models.User) (*ExerciseResponse, error) {
	s.logger.InfoContext(ctx, "updating exercise", "exercise_id", id, "user_id", user.ID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exercise, err := s.getExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canManage(ctx, exercise, user, "update"); err != nil {
		return nil, err
	}

	hasSubmissions, err := s.exercises.HasSubmissions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check submissions: %w", err)
	}
	if hasSubmissions {
		return nil, ErrExerciseHasSubmissions
	}

	if req.Title != nil {
		exercise.Title = *req.Title
	}
	if req.Description != nil {
		exercise.Description = req.Description
	}
	if req.Difficulty != nil {
		exercise.Difficulty = *req.Difficulty
	}
	if req.Level != nil {
		exercise.Level = *req.Level
	}
	if req.Tags != nil {
		exercise.Tags = marshalTags(req.Tags)
	}
	if req.IsGeneral != nil {
		exercise.IsGeneral = *req.IsGeneral
	}
	if req.Items != nil {
		items, err := s.prepareItems(req.Items)
		if err != nil {
			return nil, err
		}
		exercise.Items = datatypes.NewJSONType(items)
	}

	exercise.IsPublished = false

	if err := s.exercises.Update(ctx, exercise); err != nil {
		return nil, fmt.Errorf("failed to update exercise: %w", err)
	}

	s.invalidateCache(ctx, id)

	return buildExerciseResponse(exercise), nil
}

func (s *exerciseService) Delete(ctx context.Context, id string, user *models.User) error {
	s.logger.InfoContext(ctx, "deleting exercise", "exercise_id", id, "user_id", user.ID)

	exercise, err := s.getExercise(ctx, id)
	if err != nil {
		return err
	}
	if err := s.canManage(ctx, exercise, user, "delete"); err != nil {
		return err
	}

	hasSubmissions, err := s.exercises.HasSubmissions(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check submissions: %w", err)
	}
	if hasSubmissions {
		return ErrExerciseHasSubmissions
	}

	if err := s.exercises.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *exerciseService) List(ctx context.Context, filters repositories.ExerciseFilters, user *models.User) (*ExerciseListResponse, error) {
	var (
		exercises []*models.Exercise
		total     int64
		err       error
	)

	switch user.Role {
	case models.RoleStudent:
		exercises, total, err = s.exercises.ListForStudent(ctx, user, filters)
	case models.RoleTeacher:
		// Teachers browse their own catalogue, drafts included.
		filters.TeacherID = &user.ID
		exercises, total, err = s.exercises.List(ctx, filters)
	default:
		exercises, total, err = s.exercises.List(ctx, filters)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}

	responses := make([]*ExerciseResponse, len(exercises))
	for i, e := range exercises {
		responses[i] = buildExerciseResponse(e)
	}

	return &ExerciseListResponse{
		Exercises: responses,
		Total:     total,
		Limit:     filters.Limit,
		Offset:    filters.Offset,
	}, nil
}

// ===== PUBLISHING =====

func (s *exerciseService) SetPublished(ctx context.Context, id string, published bool, user *models.User) (*ExerciseResponse, error) {
	exercise, err := s.getExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canManage(ctx, exercise, user, "publish"); err != nil {
		return nil, err
	}

	if published {
		// A book must be publishable as a whole; re-check it in case it was
		// stored by an older build with laxer rules.
		if err := s.validator.Item().ValidateItems(exercise.QuestionList()); err != nil {
			return nil, err
		}
	}

	if err := s.exercises.SetPublished(ctx, id, published); err != nil {
		return nil, fmt.Errorf("failed to set published state: %w", err)
	}

	s.invalidateCache(ctx, id)

	exercise.IsPublished = published
	s.logger.InfoContext(ctx, "exercise publish state changed", "exercise_id", id, "published", published)
	return buildExerciseResponse(exercise), nil
}

// Duplicate copies an exercise into a fresh draft owned by the caller. The
// copy starts with no submissions, so a frozen exercise can be evolved by
// duplicating it.
func (s *exerciseService) Duplicate(ctx context.Context, id string, user *models.User) (*ExerciseResponse, error) {
	source, err := s.getExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, source, user); err != nil {
		return nil, err
	}
	if user.Role != models.RoleTeacher && user.Role != models.RoleAdmin {
		return nil, NewPermissionError(user.ID, id, "exercise", "duplicate", "only teachers can author exercises")
	}

	clone := &models.Exercise{
		ID:          uuid.New().String(),
		Title:       source.Title + " (Copy)",
		Description: source.Description,
		Items:       datatypes.NewJSONType(source.QuestionList()),
		Difficulty:  source.Difficulty,
		Level:       source.Level,
		Tags:        source.Tags,
		IsGeneral:   source.IsGeneral,
		IsPublished: false,
		TeacherID:   user.ID,
	}

	if err := s.exercises.Create(ctx, clone); err != nil {
		return nil, fmt.Errorf("failed to duplicate exercise: %w", err)
	}

	s.logger.InfoContext(ctx, "exercise duplicated", "source_id", id, "copy_id", clone.ID)
	return buildExerciseResponse(clone), nil
}

// ===== ASSIGNMENTS =====

// AssignStudents links a published exercise to the given students. Every
// student must exist, be a student, and (for teacher callers) belong to the
// caller; otherwise nothing is assigned. Already-assigned students are
// skipped, not errors.
func (s *exerciseService) AssignStudents(ctx context.Context, exerciseID string, req *AssignStudentsRequest, user *models.User) (*AssignStudentsResponse, error) {
	s.logger.InfoContext(ctx, "assigning exercise", "exercise_id", exerciseID, "user_id", user.ID, "students", len(req.StudentIDs))

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exercise, err := s.getExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if err := s.canManage(ctx, exercise, user, "assign"); err != nil {
		return nil, err
	}
	if !exercise.IsPublished {
		return nil, ErrExerciseNotPublished
	}

	accesses := make([]*models.StudentExerciseAccess, 0, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		if err := s.checkAssignable(ctx, studentID, user); err != nil {
			return nil, err
		}
		accesses = append(accesses, &models.StudentExerciseAccess{
			ID:         uuid.New().String(),
			ExerciseID: exerciseID,
			StudentID:  studentID,
			AssignedBy: user.ID,
			DueDate:    req.DueDate,
			IsActive:   true,
		})
	}

	created, err := s.access.Assign(ctx, accesses)
	if err != nil {
		return nil, fmt.Errorf("failed to assign students: %w", err)
	}

	s.logger.InfoContext(ctx, "exercise assigned", "exercise_id", exerciseID, "assigned", created, "requested", len(req.StudentIDs))
	return &AssignStudentsResponse{Assigned: created, Total: len(req.StudentIDs)}, nil
}

// ListAssignments returns the exercise's assignments with each student's
// attempt count so the teacher can see who has worked through it.
func (s *exerciseService) ListAssignments(ctx context.Context, exerciseID string, user *models.User) ([]*AssignmentResponse, error) {
	exercise, err := s.getExercise(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if err := s.canManage(ctx, exercise, user, "view assignments"); err != nil {
		return nil, err
	}

	accesses, err := s.access.ListByExercise(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	responses := make([]*AssignmentResponse, len(accesses))
	for i, a := range accesses {
		attempts, err := s.submissions.CountByExerciseAndStudent(ctx, exerciseID, a.StudentID)
		if err != nil {
			return nil, fmt.Errorf("failed to count attempts: %w", err)
		}
		resp := &AssignmentResponse{
			StudentID:  a.StudentID,
			AssignedBy: a.AssignedBy,
			DueDate:    a.DueDate,
			IsActive:   a.IsActive,
			AssignedAt: a.CreatedAt,
			Attempts:   attempts,
		}
		if a.Student != nil {
			resp.StudentName = a.Student.FullName
		}
		responses[i] = resp
	}
	return responses, nil
}

func (s *exerciseService) RevokeAssignment(ctx context.Context, exerciseID, studentID string, user *models.User) error {
	exercise, err := s.getExercise(ctx, exerciseID)
	if err != nil {
		return err
	}
	if err := s.canManage(ctx, exercise, user, "revoke assignment"); err != nil {
		return err
	}

	if err := s.access.Revoke(ctx, exerciseID, studentID); err != nil {
		return fmt.Errorf("failed to revoke assignment: %w", err)
	}

	s.logger.InfoContext(ctx, "assignment revoked", "exercise_id", exerciseID, "student_id", studentID)
	return nil
}

// ===== STATISTICS =====

func (s *exerciseService) GetStats(ctx context.Context, id string, user *models.User) (*repositories.ExerciseStats, error) {
	exercise, err := s.getExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canManage(ctx, exercise, user, "view stats"); err != nil {
		return nil, err
	}

	key := statsCacheKey(id)
	cached := &repositories.ExerciseStats{}
	if err := s.cache.Get(ctx, key, cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "stats cache read failed", "exercise_id", id, "error", err)
	}

	stats, err := s.exercises.GetStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get exercise stats: %w", err)
	}

	if err := s.cache.Set(ctx, key, stats, statsCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "stats cache write failed", "exercise_id", id, "error", err)
	}

	return stats, nil
}

func (s *exerciseService) GetTeacherStats(ctx context.Context, teacherID string, user *models.User) (*repositories.TeacherStats, error) {
	if user.Role != models.RoleAdmin && user.ID != teacherID {
		return nil, NewPermissionError(user.ID, teacherID, "teacher_stats", "read", "not own statistics")
	}
	if user.Role == models.RoleStudent {
		return nil, NewPermissionError(user.ID, teacherID, "teacher_stats", "read", "students have no teaching statistics")
	}

	stats, err := s.exercises.GetTeacherStats(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher stats: %w", err)
	}
	return stats, nil
}

// ===== HELPERS =====

func (s *exerciseService) getExercise(ctx context.Context, id string) (*models.Exercise, error) {
	exercise, err := s.exercises.GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExerciseNotFound
		}
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}
	return exercise, nil
}

// prepareItems flattens import containers, assigns question ids and validates
// the final book.
func (s *exerciseService) prepareItems(items []models.ExerciseItem) ([]models.ExerciseItem, error) {
	flattened := grading.FlattenItems(items)
	for i := range flattened {
		if flattened[i].ID == "" {
			flattened[i].ID = uuid.New().String()
		}
	}
	if err := s.validator.Item().ValidateItems(flattened); err != nil {
		return nil, err
	}
	return flattened, nil
}

// canView enforces student visibility: published general exercises are open,
// targeted exercises require an active assignment.
func (s *exerciseService) canView(ctx context.Context, exercise *models.Exercise, user *models.User) error {
	switch user.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		if exercise.TeacherID == user.ID || exercise.IsGeneral {
			return nil
		}
	case models.RoleStudent:
		if !exercise.IsPublished {
			return ErrExerciseNotPublished
		}
		if exercise.IsGeneral {
			return nil
		}
		assigned, err := s.access.IsAssigned(ctx, exercise.ID, user.ID)
		if err != nil {
			return fmt.Errorf("failed to check assignment: %w", err)
		}
		if assigned {
			return nil
		}
	}
	return NewPermissionError(user.ID, exercise.ID, "exercise", "read", "not visible to this user")
}

// checkAssignable verifies the target is a student the caller may assign to.
func (s *exerciseService) checkAssignable(ctx context.Context, studentID string, user *models.User) error {
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrStudentNotFound
		}
		return fmt.Errorf("failed to get student: %w", err)
	}
	if student.Role != models.RoleStudent {
		return ErrStudentNotFound
	}
	if user.Role == models.RoleTeacher && (student.TeacherID == nil || *student.TeacherID != user.ID) {
		return ErrStudentNotFound
	}
	return nil
}

func (s *exerciseService) invalidateCache(ctx context.Context, exerciseID string) {
	if err := s.cache.DeletePattern(ctx, "exercise:"+exerciseID+":*"); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed", "exercise_id", exerciseID, "error", err)
	}
}

func statsCacheKey(exerciseID string) string {
	return "exercise:" + exerciseID + ":stats"
}

func (s *exerciseService) canManage(ctx context.Context, exercise *models.Exercise, user *models.User, action string) error {
	if user.Role == models.RoleAdmin {
		return nil
	}
	if user.Role == models.RoleTeacher && exercise.TeacherID == user.ID {
		return nil
	}
	return NewPermissionError(user.ID, exercise.ID, "exercise", action, "not owner")
}

func buildExerciseResponse(exercise *models.Exercise) *ExerciseResponse {
	return &ExerciseResponse{
		Exercise:      exercise,
		QuestionCount: len(exercise.QuestionList()),
	}
}

func marshalTags(tags []string) datatypes.JSON {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return datatypes.JSON(`[]`)
	}
	return datatypes.JSON(raw)
}
