package visit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthcard/healthcard-api/internal/auth"
	"github.com/healthcard/healthcard-api/pkg/httperr"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// Handlers contains HTTP handlers for the doctor visit workflow
type Handlers struct {
	service *Service
	tokens  *auth.TokenManager
	logger  *logger.Logger
}

// NewHandlers creates new visit HTTP handlers
func NewHandlers(service *Service, tokens *auth.TokenManager, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		tokens:  tokens,
		logger:  log,
	}
}

// RegisterRoutes registers visit workflow routes with the router
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/doctor")
	group.Use(auth.Middleware(h.tokens), auth.RequireRole(types.RoleDoctor))
	{
		group.POST("/visit/request-otp", h.RequestOTP)
		group.POST("/visit/verify-otp", h.VerifyOTP)
		group.POST("/visit", h.AddRecord)
		group.GET("/patient/:healthCardId", h.GetPatient)
		group.PATCH("/patient/:healthCardId", h.UpdatePatient)
	}
}

// RequestOTP issues a visit code and mails it to the patient
func (h *Handlers) RequestOTP(c *gin.Context) {
	var req types.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondFailure(c, types.NewValidationError(types.ErrCodeInvalidInput, "healthCardId is required"))
		return
	}

	resp, err := h.service.RequestOTP(c.Request.Context(), auth.CallerID(c), &req)
	if err != nil {
		h.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyOTP checks the patient-relayed visit code
func (h *Handlers) VerifyOTP(c *gin.Context) {
	var req types.OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondFailure(c, types.NewValidationError(types.ErrCodeInvalidInput, "healthCardId and otp are required"))
		return
	}

	resp, err := h.service.VerifyOTP(c.Request.Context(), auth.CallerID(c), &req)
	if err != nil {
		h.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddRecord appends a visit record and returns the updated history
func (h *Handlers) AddRecord(c *gin.Context) {
	var req types.AddRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondFailure(c, types.NewValidationError(types.ErrCodeInvalidInput, "healthCardId and diagnosis are required"))
		return
	}

	history, err := h.service.AddRecord(c.Request.Context(), auth.CallerID(c), &req)
	if err != nil {
		h.respondFailure(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "history": history})
}

// GetPatient returns a patient profile and history by card or QR ID
func (h *Handlers) GetPatient(c *gin.Context) {
	view, err := h.service.GetPatient(c.Request.Context(), c.Param("healthCardId"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdatePatient applies a profile patch on behalf of a doctor
func (h *Handlers) UpdatePatient(c *gin.Context) {
	var patch types.PatientPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		httperr.Respond(c, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request format"))
		return
	}

	view, err := h.service.UpdatePatient(c.Request.Context(), auth.CallerID(c), c.Param("healthCardId"), &patch)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// respondFailure writes OTP endpoint errors in the {success, message}
// envelope the workflow clients expect, keeping the status mapping.
func (h *Handlers) respondFailure(c *gin.Context, err error) {
	appErr, ok := err.(*types.AppError)
	if !ok {
		c.JSON(http.StatusInternalServerError, types.OTPResponse{Success: false, Message: "Internal server error"})
		return
	}
	c.JSON(httperr.Status(appErr), types.OTPResponse{Success: false, Message: appErr.Message})
}
