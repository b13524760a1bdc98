package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/english-exercises-hub/exercises-service/internal/models"
	"github.com/english-exercises-hub/exercises-service/internal/repositories"
	"github.com/english-exercises-hub/exercises-service/internal/services"
	"github.com/english-exercises-hub/exercises-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	userService   services.UserService
	authService   services.AuthService
	exportService services.ExportService
}

func NewUserHandler(
	userService services.UserService,
	authService services.AuthService,
	exportService services.ExportService,
	logger utils.Logger,
) *UserHandler {
	return &UserHandler{
		BaseHandler:   NewBaseHandler(logger),
		userService:   userService,
		authService:   authService,
		exportService: exportService,
	}
}

// CreateUser registers a user (admins: any role; teachers: own students)
func (h *UserHandler) CreateUser(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req services.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	created, err := h.userService.Create(c.Request.Context(), &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// GetUser retrieves a user by ID
func (h *UserHandler) GetUser(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	found, err := h.userService.GetByID(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, found)
}

// UpdateUser updates profile, placement or status
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req services.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	updated, err := h.userService.Update(c.Request.Context(), id, &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteUser soft deletes a user
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	if err := h.userService.Delete(c.Request.Context(), id, user); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "User deleted"})
}

// ListUsers lists users with filters, scoped by role
func (h *UserHandler) ListUsers(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	filters := repositories.UserFilters{
		TeacherID: stringQuery(c, "teacher_id"),
		Search:    c.Query("search"),
		Limit:     parseIntQuery(c, "limit", 20),
		Offset:    parseIntQuery(c, "offset", 0),
	}
	if raw := c.Query("role"); raw != "" {
		role := models.UserRole(raw)
		filters.Role = &role
	}
	if raw := c.Query("status"); raw != "" {
		status := models.UserStatus(raw)
		filters.Status = &status
	}

	list, err := h.userService.List(c.Request.Context(), filters, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetMyStudents lists the calling teacher's students
func (h *UserHandler) GetMyStudents(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	students, err := h.userService.GetStudents(c.Request.Context(), user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, students)
}

// GetRoleCounts returns user totals per role
func (h *UserHandler) GetRoleCounts(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	counts, err := h.userService.GetRoleCounts(c.Request.Context(), user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

// IssueMagicLink rotates a student's passwordless access link
func (h *UserHandler) IssueMagicLink(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	link, err := h.authService.IssueMagicLink(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

// GetMagicLink fetches (or lazily creates) the student's access link
func (h *UserHandler) GetMagicLink(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	link, err := h.authService.GetMagicLink(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

// ExportStudentResults streams an xlsx workbook with the student's history
func (h *UserHandler) ExportStudentResults(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	workbook, err := h.exportService.ExportStudentResults(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("student-results-%s.xlsx", id)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}
