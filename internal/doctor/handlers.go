package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthcard/healthcard-api/internal/auth"
	"github.com/healthcard/healthcard-api/pkg/httperr"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// Handlers contains HTTP handlers for doctor self-service
type Handlers struct {
	service *Service
	tokens  *auth.TokenManager
	logger  *logger.Logger
}

// NewHandlers creates new doctor HTTP handlers
func NewHandlers(service *Service, tokens *auth.TokenManager, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		tokens:  tokens,
		logger:  log,
	}
}

// RegisterRoutes registers doctor profile routes with the router
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/doctor")
	group.Use(auth.Middleware(h.tokens), auth.RequireRole(types.RoleDoctor))
	{
		group.GET("/me", h.Me)
		group.PUT("/me", h.UpdateMe)
	}
}

// Me returns the caller's doctor profile
func (h *Handlers) Me(c *gin.Context) {
	doctor, err := h.service.Me(c.Request.Context(), auth.CallerID(c))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctor": doctor})
}

// UpdateMe applies a partial profile update
func (h *Handlers) UpdateMe(c *gin.Context) {
	var update types.DoctorUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		httperr.Respond(c, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid request format"))
		return
	}

	doctor, err := h.service.UpdateMe(c.Request.Context(), auth.CallerID(c), &update)
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctor": doctor})
}
