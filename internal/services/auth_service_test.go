package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/english-exercises-hub/exercises-service/internal/cache"
	"github.com/english-exercises-hub/exercises-service/internal/events"
	"github.com/english-exercises-hub/exercises-service/internal/models"
)

func newAuthService(users *MockUserRepository, sessions *MockSessionRepository, tokens *MockStudentTokenRepository) AuthService {
	return NewAuthService(users, sessions, tokens, cache.NoopCache{}, events.NewMockPublisher(), testLogger(), AuthConfig{
		BaseURL:      "https://hub.example.com",
		SessionTTL:   24 * time.Hour,
		MagicLinkTTL: 0,
	})
}

func hashedUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	h := string(hash)
	return &models.User{
		ID:           "teacher-1",
		Email:        "maria@example.com",
		FullName:     "Maria Silva",
		Role:         models.RoleTeacher,
		Status:       models.UserActive,
		PasswordHash: &h,
	}
}

func TestAuthService_Login(t *testing.T) {
	users := new(MockUserRepository)
	sessions := new(MockSessionRepository)
	tokens := new(MockStudentTokenRepository)
	svc := newAuthService(users, sessions, tokens)

	user := hashedUser(t, "correct horse")
	users.On("GetByEmail", mock.Anything, "maria@example.com").Return(user, nil)
	sessions.On("Create", mock.Anything, mock.AnythingOfType("*models.Session")).Return(nil)

	resp, err := svc.Login(context.Background(), &LoginRequest{Email: "maria@example.com", Password: "correct horse"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "teacher-1", resp.User.ID)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	users := new(MockUserRepository)
	sessions := new(MockSessionRepository)
	svc := newAuthService(users, sessions, new(MockStudentTokenRepository))

	users.On("GetByEmail", mock.Anything, "maria@example.com").Return(hashedUser(t, "correct horse"), nil)

	_, err := svc.Login(context.Background(), &LoginRequest{Email: "maria@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	sessions.AssertNotCalled(t, "Create")
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	users := new(MockUserRepository)
	svc := newAuthService(users, new(MockSessionRepository), new(MockStudentTokenRepository))

	user := hashedUser(t, "correct horse")
	user.Status = models.UserInactive
	users.On("GetByEmail", mock.Anything, "maria@example.com").Return(user, nil)

	_, err := svc.Login(context.Background(), &LoginRequest{Email: "maria@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_LoginWithToken(t *testing.T) {
	users := new(MockUserRepository)
	sessions := new(MockSessionRepository)
	tokens := new(MockStudentTokenRepository)
	svc := newAuthService(users, sessions, tokens)

	record := &models.StudentToken{
		ID:        "tok-1",
		StudentID: "student-1",
		Token:     "abc123",
		Student:   *studentUser(),
	}
	record.Student.Status = models.UserActive
	tokens.On("GetByToken", mock.Anything, "abc123").Return(record, nil)
	sessions.On("Create", mock.Anything, mock.AnythingOfType("*models.Session")).Return(nil)

	resp, err := svc.LoginWithToken(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "student-1", resp.User.ID)
}

func TestAuthService_LoginWithToken_Expired(t *testing.T) {
	tokens := new(MockStudentTokenRepository)
	svc := newAuthService(new(MockUserRepository), new(MockSessionRepository), tokens)

	expired := time.Now().Add(-time.Hour)
	record := &models.StudentToken{
		StudentID: "student-1",
		Token:     "abc123",
		ExpiresAt: &expired,
		Student:   *studentUser(),
	}
	record.Student.Status = models.UserActive
	tokens.On("GetByToken", mock.Anything, "abc123").Return(record, nil)

	_, err := svc.LoginWithToken(context.Background(), "abc123")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAuthService_IssueMagicLink(t *testing.T) {
	users := new(MockUserRepository)
	tokens := new(MockStudentTokenRepository)
	svc := newAuthService(users, new(MockSessionRepository), tokens)

	student := studentUser()
	student.Status = models.UserActive
	users.On("GetByID", mock.Anything, "student-1").Return(student, nil)

	var stored *models.StudentToken
	tokens.On("Upsert", mock.Anything, mock.AnythingOfType("*models.StudentToken")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*models.StudentToken)
		}).
		Return(nil)

	resp, err := svc.IssueMagicLink(context.Background(), "student-1", teacherUser())
	require.NoError(t, err)

	require.NotNil(t, stored)
	assert.Len(t, stored.Token, 64, "tokens are 32 random bytes hex encoded")
	assert.Equal(t, "https://hub.example.com/access/"+stored.Token, resp.URL)
	assert.Nil(t, resp.ExpiresAt, "zero TTL means the link does not expire")
}

func TestAuthService_IssueMagicLink_OtherTeachersStudent(t *testing.T) {
	users := new(MockUserRepository)
	tokens := new(MockStudentTokenRepository)
	svc := newAuthService(users, new(MockSessionRepository), tokens)

	otherTeacher := "teacher-2"
	student := studentUser()
	student.TeacherID = &otherTeacher
	users.On("GetByID", mock.Anything, "student-1").Return(student, nil)

	_, err := svc.IssueMagicLink(context.Background(), "student-1", teacherUser())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	tokens.AssertNotCalled(t, "Upsert")
}

func TestAuthService_ResolveSession(t *testing.T) {
	sessions := new(MockSessionRepository)
	svc := newAuthService(new(MockUserRepository), sessions, new(MockStudentTokenRepository))

	t.Run("valid session", func(t *testing.T) {
		session := &models.Session{
			ID:        "sess-1",
			UserID:    "teacher-1",
			ExpiresAt: time.Now().Add(time.Hour),
			User:      *teacherUser(),
		}
		sessions.On("GetByID", mock.Anything, "sess-1").Return(session, nil).Once()

		user, err := svc.ResolveSession(context.Background(), "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "teacher-1", user.ID)
	})

	t.Run("expired session", func(t *testing.T) {
		session := &models.Session{
			ID:        "sess-2",
			ExpiresAt: time.Now().Add(-time.Minute),
			User:      *teacherUser(),
		}
		sessions.On("GetByID", mock.Anything, "sess-2").Return(session, nil).Once()

		_, err := svc.ResolveSession(context.Background(), "sess-2")
		assert.ErrorIs(t, err, ErrSessionExpired)
	})
}
