package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/english-exercises-hub/exercises-service/internal/repositories"
	"github.com/english-exercises-hub/exercises-service/internal/services"
	"github.com/english-exercises-hub/exercises-service/internal/utils"
)

type SubmissionHandler struct {
	BaseHandler
	submissionService services.SubmissionService
}

func NewSubmissionHandler(submissionService services.SubmissionService, logger utils.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:       NewBaseHandler(logger),
		submissionService: submissionService,
	}
}

// Submit grades the student's answers for an exercise and stores the attempt
func (h *SubmissionHandler) Submit(c *gin.Context) {
	exerciseID := ParseStringIDParam(c, "id")
	if exerciseID == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.submissionService.Submit(c.Request.Context(), exerciseID, &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetSubmission returns one stored attempt with render-ready corrections
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	submission, err := h.submissionService.GetByID(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// ListSubmissions lists attempts with filters, scoped by role
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	filters := repositories.SubmissionFilters{
		ExerciseID: stringQuery(c, "exercise_id"),
		StudentID:  stringQuery(c, "student_id"),
		Limit:      parseIntQuery(c, "limit", 20),
		Offset:     parseIntQuery(c, "offset", 0),
	}

	list, err := h.submissionService.List(c.Request.Context(), filters, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetAttempts returns the caller's attempt history for one exercise
func (h *SubmissionHandler) GetAttempts(c *gin.Context) {
	exerciseID := ParseStringIDParam(c, "id")
	if exerciseID == "" {
		return
	}
	user, ok := h.requireUser(c)
	if !ok {
		return
	}

	attempts, err := h.submissionService.GetAttempts(c.Request.Context(), exerciseID, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}
