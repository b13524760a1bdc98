package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/english-exercises-hub/exercises-service/internal/services"
	"github.com/english-exercises-hub/exercises-service/internal/utils"
)

type AuthHandler struct {
	BaseHandler
	authService services.AuthService
	secure      bool
}

func NewAuthHandler(authService services.AuthService, logger utils.Logger, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		authService: authService,
		secure:      secureCookies,
	}
}

// Login authenticates with email and password and sets the session cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.setSessionCookie(c, resp.SessionID, resp.ExpiresAt)
	c.JSON(http.StatusOK, resp)
}

// AccessWithToken resolves a student magic link into a session.
func (h *AuthHandler) AccessWithToken(c *gin.Context) {
	token := ParseStringIDParam(c, "token")
	if token == "" {
		return
	}

	resp, err := h.authService.LoginWithToken(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.setSessionCookie(c, resp.SessionID, resp.ExpiresAt)
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := sessionIDFromRequest(c)
	if sessionID != "" {
		if err := h.authService.Logout(c.Request.Context(), sessionID); err != nil {
			h.LogError(c, err, "logout failed")
		}
	}

	c.SetCookie(sessionCookieName, "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, SuccessResponse{Message: "Logged out"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := h.requireUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, sessionID string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetCookie(sessionCookieName, sessionID, maxAge, "/", "", h.secure, true)
}
