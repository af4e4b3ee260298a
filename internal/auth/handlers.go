package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthcard/healthcard-api/pkg/httperr"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/monitoring"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// Handlers contains HTTP handlers for account operations
type Handlers struct {
	service *Service
	tokens  *TokenManager
	logger  *logger.Logger
}

// NewHandlers creates new auth HTTP handlers
func NewHandlers(service *Service, tokens *TokenManager, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		tokens:  tokens,
		logger:  log,
	}
}

// RegisterRoutes registers auth routes with the router
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/auth")
	{
		group.POST("/register", h.Register)
		group.POST("/login", h.Login)
		group.POST("/logout", h.Logout)
		group.POST("/forgot-password", h.ForgotPassword)
		group.POST("/forgot-password/verify", h.VerifyResetCode)
		group.POST("/forgot-password/reset", h.ResetPassword)

		authed := group.Group("")
		authed.Use(Middleware(h.tokens))
		{
			authed.GET("/me", h.Me)
			authed.POST("/change-password", h.ChangePassword)
		}
	}
}

// Register handles account creation
func (h *Handlers) Register(c *gin.Context) {
	var req types.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Respond(c, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request format"))
		return
	}

	resp, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		monitoring.RecordAuthAttempt("register", false)
		httperr.Respond(c, err)
		return
	}

	monitoring.RecordAuthAttempt("register", true)
	c.JSON(http.StatusCreated, resp)
}

// Login handles authentication
func (h *Handlers) Login(c *gin.Context) {
	var creds types.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		httperr.Respond(c, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request format"))
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &creds)
	if err != nil {
		monitoring.RecordAuthAttempt("login", false)
		httperr.Respond(c, err)
		return
	}

	monitoring.RecordAuthAttempt("login", true)
	c.JSON(http.StatusOK, resp)
}

// Logout acknowledges a logout. Tokens are stateless; clients discard
// theirs and the server has nothing to revoke.
func (h *Handlers) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated account view
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.service.Me(c.Request.Context(), CallerID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePassword handles an authenticated password change
func (h *Handlers) ChangePassword(c *gin.Context) {
	var req types.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Respond(c, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request format"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), CallerID(c), &req); err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// ForgotPassword issues and mails a reset code. The response is the
// same whether or not the email has an account.
func (h *Handlers) ForgotPassword(c *gin.Context) {
	var req types.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Respond(c, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request format"))
		return
	}

	if err := h.service.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If that email has an account, a reset code has been sent"})
}

// VerifyResetCode checks the emailed reset code
func (h *Handlers) VerifyResetCode(c *gin.Context) {
	var req types.VerifyResetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Respond(c, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request format"))
		return
	}

	if err := h.service.VerifyResetCode(c.Request.Context(), &req); err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Code verified"})
}

// ResetPassword replaces the password after code verification
func (h *Handlers) ResetPassword(c *gin.Context) {
	var req types.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Respond(c, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request format"))
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), &req); err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}
