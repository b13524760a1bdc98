package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/services"
	"github.com/english-exercises-hub/exercises-service/internal/utils"
)

type HandlerManager struct {
	authService       services.AuthService
	authHandler       *AuthHandler
	exerciseHandler   *ExerciseHandler
	submissionHandler *SubmissionHandler
	userHandler       *UserHandler
}

type Services struct {
	Auth       services.AuthService
	Exercise   services.ExerciseService
	Submission services.SubmissionService
	User       services.UserService
	Export     services.ExportService
}

func NewHandlerManager(svcs Services, logger utils.Logger, secureCookies bool) *HandlerManager {
	return &HandlerManager{
		authService:       svcs.Auth,
		authHandler:       NewAuthHandler(svcs.Auth, logger, secureCookies),
		exerciseHandler:   NewExerciseHandler(svcs.Exercise, svcs.Export, logger),
		submissionHandler: NewSubmissionHandler(svcs.Submission, logger),
		userHandler:       NewUserHandler(svcs.User, svcs.Auth, svcs.Export, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	// Public auth routes
	router.POST("/api/v1/auth/login", hm.authHandler.Login)
	router.GET("/access/:token", hm.authHandler.AccessWithToken)

	v1 := router.Group("/api/v1")
	v1.Use(SessionAuth(hm.authService))
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/logout", hm.authHandler.Logout)
			auth.GET("/me", hm.authHandler.Me)
		}

		exercises := v1.Group("/exercises")
		{
			exercises.GET("", hm.exerciseHandler.ListExercises)
			exercises.GET("/:id", hm.exerciseHandler.GetExercise)

			// Student attempt routes
			exercises.POST("/:id/submissions", RequireRoles(models.RoleStudent), hm.submissionHandler.Submit)
			exercises.GET("/:id/submissions/mine", RequireRoles(models.RoleStudent), hm.submissionHandler.GetAttempts)

			// Authoring routes
			authoring := exercises.Group("", RequireRoles(models.RoleTeacher, models.RoleAdmin))
			{
				authoring.POST("", hm.exerciseHandler.CreateExercise)
				authoring.PUT("/:id", hm.exerciseHandler.UpdateExercise)
				authoring.DELETE("/:id", hm.exerciseHandler.DeleteExercise)
				authoring.POST("/:id/publish", hm.exerciseHandler.PublishExercise)
				authoring.POST("/:id/unpublish", hm.exerciseHandler.UnpublishExercise)
				authoring.POST("/:id/duplicate", hm.exerciseHandler.DuplicateExercise)
				authoring.GET("/:id/stats", hm.exerciseHandler.GetExerciseStats)
				authoring.GET("/:id/export", hm.exerciseHandler.ExportExerciseResults)

				authoring.POST("/:id/assignments", hm.exerciseHandler.AssignStudents)
				authoring.GET("/:id/assignments", hm.exerciseHandler.ListAssignments)
				authoring.DELETE("/:id/assignments/:studentId", hm.exerciseHandler.RevokeAssignment)
			}
		}

		submissions := v1.Group("/submissions")
		{
			submissions.GET("", hm.submissionHandler.ListSubmissions)
			submissions.GET("/:id", hm.submissionHandler.GetSubmission)
		}

		users := v1.Group("/users", RequireRoles(models.RoleTeacher, models.RoleAdmin))
		{
			users.POST("", hm.userHandler.CreateUser)
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/counts", hm.userHandler.GetRoleCounts)
			users.GET("/:id", hm.userHandler.GetUser)
			users.PUT("/:id", hm.userHandler.UpdateUser)
			users.DELETE("/:id", hm.userHandler.DeleteUser)

			users.POST("/:id/magic-link", hm.userHandler.IssueMagicLink)
			users.GET("/:id/magic-link", hm.userHandler.GetMagicLink)
			users.GET("/:id/export", hm.userHandler.ExportStudentResults)
		}

		teachers := v1.Group("/teachers", RequireRoles(models.RoleTeacher))
		{
			teachers.GET("/me/students", hm.userHandler.GetMyStudents)
			teachers.GET("/me/stats", hm.exerciseHandler.GetMyTeacherStats)
		}
	}
}

// HealthCheck reports service liveness
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
