package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/english-exercises-hub/exercises-service/internal/cache"
	"github.com/english-exercises-hub/exercises-service/internal/events"
	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
	"github.com/english-exercises-hub/exercises-service/internal/utils"
)

// ===== REQUEST/RESPONSE TYPES =====

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	SessionID string       `json:"session_id"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type MagicLinkResponse struct {
	StudentID string     `json:"student_id"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ===== SERVICE INTERFACE =====

type AuthService interface {
	// Login authenticates with email and password (admins and teachers).
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	// LoginWithToken resolves a student magic-link token into a session.
	LoginWithToken(ctx context.Context, token string) (*LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error

	// ResolveSession returns the authenticated user for a session id.
	ResolveSession(ctx context.Context, sessionID string) (*models.User, error)

	// IssueMagicLink creates (or rotates) the student's access link.
	IssueMagicLink(ctx context.Context, studentID string, actor *models.User) (*MagicLinkResponse, error)
	GetMagicLink(ctx context.Context, studentID string, actor *models.User) (*MagicLinkResponse, error)
}

type AuthConfig struct {
	BaseURL      string
	SessionTTL   time.Duration
	MagicLinkTTL time.Duration
}

type authService struct {
	users     repositories.UserRepository
	sessions  repositories.SessionRepository
	tokens    repositories.StudentTokenRepository
	cache     cache.CacheService
	publisher events.Publisher
	logger    utils.Logger
	config    AuthConfig
}

func NewAuthService(
	users repositories.UserRepository,
	sessions repositories.SessionRepository,
	tokens repositories.StudentTokenRepository,
	cacheService cache.CacheService,
	publisher events.Publisher,
	logger utils.Logger,
	config AuthConfig,
) AuthService {
	return &authService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		cache:     cacheService,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// ===== AUTHENTICATION =====

func (s *authService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.Status != models.UserActive || user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.createSession(ctx, user)
}

func (s *authService) LoginWithToken(ctx context.Context, token string) (*LoginResponse, error) {
	record, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if record.ExpiresAt != nil && time.Now().After(*record.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	if record.Student.Status != models.UserActive {
		return nil, ErrTokenInvalid
	}

	return s.createSession(ctx, &record.Student)
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if err := s.cache.Delete(ctx, sessionCacheKey(sessionID)); err != nil {
		s.logger.Warn("failed to evict session from cache", "session_id", sessionID, "error", err)
	}
	return s.sessions.Delete(ctx, sessionID)
}

// ResolveSession consults the cache first; the database is the source of
// truth and repopulates the cache on a miss.
func (s *authService) ResolveSession(ctx context.Context, sessionID string) (*models.User, error) {
	var cached models.Session
	if err := s.cache.Get(ctx, sessionCacheKey(sessionID), &cached); err == nil {
		if cached.Expired(time.Now()) {
			return nil, ErrSessionExpired
		}
		return &cached.User, nil
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.Expired(time.Now()) {
		return nil, ErrSessionExpired
	}

	if err := s.cache.Set(ctx, sessionCacheKey(sessionID), session, time.Until(session.ExpiresAt)); err != nil {
		s.logger.Warn("failed to cache session", "session_id", sessionID, "error", err)
	}

	return &session.User, nil
}

// ===== MAGIC LINKS =====

func (s *authService) IssueMagicLink(ctx context.Context, studentID string, actor *models.User) (*MagicLinkResponse, error) {
	student, err := s.getStudent(ctx, studentID, actor)
	if err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if s.config.MagicLinkTTL > 0 {
		t := time.Now().Add(s.config.MagicLinkTTL)
		expiresAt = &t
	}

	record := &models.StudentToken{
		ID:        uuid.New().String(),
		StudentID: student.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if err := s.tokens.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	if s.publisher != nil {
		event := events.NewEvent(uuid.New().String(), events.EventStudentLinkIssued, &events.StudentLinkIssuedEvent{
			StudentID: student.ID,
			TeacherID: actor.ID,
			ExpiresAt: expiresAt,
			IssuedAt:  record.CreatedAt,
		})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.LogError(err, "failed to publish student.link_issued event", "student_id", student.ID)
		}
	}

	s.logger.InfoContext(ctx, "magic link issued", "student_id", student.ID, "actor_id", actor.ID)
	return &MagicLinkResponse{
		StudentID: student.ID,
		URL:       s.magicLinkURL(token),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *authService) GetMagicLink(ctx context.Context, studentID string, actor *models.User) (*MagicLinkResponse, error) {
	student, err := s.getStudent(ctx, studentID, actor)
	if err != nil {
		return nil, err
	}

	record, err := s.tokens.GetByStudent(ctx, student.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			// No link yet; mint one on first request.
			return s.IssueMagicLink(ctx, studentID, actor)
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return &MagicLinkResponse{
		StudentID: student.ID,
		URL:       s.magicLinkURL(record.Token),
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// ===== HELPERS =====

func (s *authService) createSession(ctx context.Context, user *models.User) (*LoginResponse, error) {
	session := &models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.config.SessionTTL),
		User:      *user,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.cache.Set(ctx, sessionCacheKey(session.ID), session, s.config.SessionTTL); err != nil {
		s.logger.Warn("failed to cache session", "session_id", session.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "session created", "user_id", user.ID, "role", user.Role)
	return &LoginResponse{
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
		User:      user,
	}, nil
}

func (s *authService) getStudent(ctx context.Context, studentID string, actor *models.User) (*models.User, error) {
	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student.Role != models.RoleStudent {
		return nil, ErrStudentNotFound
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		if student.TeacherID == nil || *student.TeacherID != actor.ID {
			return nil, NewPermissionError(actor.ID, studentID, "student", "issue link", "not this teacher's student")
		}
	default:
		return nil, NewPermissionError(actor.ID, studentID, "student", "issue link", "insufficient role")
	}

	return student, nil
}

func (s *authService) magicLinkURL(token string) string {
	return fmt.Sprintf("%s/access/%s", s.config.BaseURL, token)
}

func sessionCacheKey(sessionID string) string {
	return "session:" + sessionID
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
