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

type ExerciseHandler struct {
	BaseHandler
	exerciseService services.ExerciseService
	exportService   services.ExportService
}

func NewExerciseHandler(
	exerciseService services.ExerciseService,
	exportService services.ExportService,
	logger utils.Logger,
) *ExerciseHandler {
	return &ExerciseHandler{
		BaseHandler:     NewBaseHandler(logger),
		exerciseService: exerciseService,
		exportService:   exportService,
	}
}

// CreateExercise creates a new exercise book as a draft
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req services.CreateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	exercise, err := h.exerciseService.Create(c.Request.Context(), &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exercise)
}

// GetExercise retrieves an exercise by ID
func (h *ExerciseHandler) GetExercise(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	exercise, err := h.exerciseService.GetByID(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exercise)
}

// ListExercises lists exercises visible to the caller with filters
func (h *ExerciseHandler) ListExercises(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	filters := repositories.ExerciseFilters{
		Level:       stringQuery(c, "level"),
		IsPublished: parseBoolQuery(c, "published"),
		IsGeneral:   parseBoolQuery(c, "general"),
		Search:      c.Query("search"),
		Limit:       parseIntQuery(c, "limit", 20),
		Offset:      parseIntQuery(c, "offset", 0),
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
	}
	if raw := c.Query("difficulty"); raw != "" {
		difficulty := models.ExerciseDifficulty(raw)
		filters.Difficulty = &difficulty
	}

	list, err := h.exerciseService.List(c.Request.Context(), filters, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// UpdateExercise updates an exercise, returning it to draft
func (h *ExerciseHandler) UpdateExercise(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req services.UpdateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	exercise, err := h.exerciseService.Update(c.Request.Context(), id, &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exercise)
}

// DeleteExercise deletes an exercise without submissions
func (h *ExerciseHandler) DeleteExercise(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	if err := h.exerciseService.Delete(c.Request.Context(), id, user); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exercise deleted"})
}

// PublishExercise makes an exercise visible to students
func (h *ExerciseHandler) PublishExercise(c *gin.Context) {
	h.setPublished(c, true)
}

// UnpublishExercise hides an exercise from students
func (h *ExerciseHandler) UnpublishExercise(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *ExerciseHandler) setPublished(c *gin.Context, published bool) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	exercise, err := h.exerciseService.SetPublished(c.Request.Context(), id, published, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exercise)
}

// DuplicateExercise copies an exercise into a fresh draft
func (h *ExerciseHandler) DuplicateExercise(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	exercise, err := h.exerciseService.Duplicate(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exercise)
}

// AssignStudents links a published exercise to a batch of students
func (h *ExerciseHandler) AssignStudents(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req services.AssignStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.exerciseService.AssignStudents(c.Request.Context(), id, &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListAssignments lists an exercise's assignments with attempt counts
func (h *ExerciseHandler) ListAssignments(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	assignments, err := h.exerciseService.ListAssignments(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

// RevokeAssignment deactivates one student's assignment
func (h *ExerciseHandler) RevokeAssignment(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	studentID := ParseStringIDParam(c, "studentId")
	if studentID == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	if err := h.exerciseService.RevokeAssignment(c.Request.Context(), id, studentID, user); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Assignment revoked"})
}

// GetMyTeacherStats returns the calling teacher's aggregate numbers
func (h *ExerciseHandler) GetMyTeacherStats(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	stats, err := h.exerciseService.GetTeacherStats(c.Request.Context(), user.ID, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetExerciseStats returns aggregate submission statistics
func (h *ExerciseHandler) GetExerciseStats(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	stats, err := h.exerciseService.GetStats(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportExerciseResults streams an xlsx workbook with every submission
func (h *ExerciseHandler) ExportExerciseResults(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	workbook, err := h.exportService.ExportExerciseResults(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("exercise-results-%s.xlsx", id)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}
