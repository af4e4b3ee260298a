package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthcard/healthcard-api/internal/auth"
	"github.com/healthcard/healthcard-api/pkg/httperr"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// Handlers contains HTTP handlers for patient self-service
type Handlers struct {
	service *Service
	tokens  *auth.TokenManager
	logger  *logger.Logger
}

// NewHandlers creates new patient HTTP handlers
func NewHandlers(service *Service, tokens *auth.TokenManager, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		tokens:  tokens,
		logger:  log,
	}
}

// RegisterRoutes registers patient routes with the router
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/patient")
	group.Use(auth.Middleware(h.tokens), auth.RequireRole(types.RolePatient))
	{
		group.GET("/me", h.Me)
		group.PATCH("/me", h.UpdateMe)
	}
}

// Me returns the caller's own profile with history
func (h *Handlers) Me(c *gin.Context) {
	view, err := h.service.Me(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateMe applies a partial profile update
func (h *Handlers) UpdateMe(c *gin.Context) {
	var patch types.PatientPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		httperr.Respond(c, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request format"))
		return
	}

	view, err := h.service.UpdateMe(c.Request.Context(), auth.CallerID(c), &patch)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
