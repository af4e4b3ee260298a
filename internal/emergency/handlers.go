package emergency

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/healthcard/healthcard-api/pkg/httperr"
	"github.com/healthcard/healthcard-api/pkg/logger"
)

// Handlers contains HTTP handlers for the emergency lookup
type Handlers struct {
	service *Service
	logger  *logger.Logger
}

// NewHandlers creates new emergency HTTP handlers
func NewHandlers(service *Service, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers the emergency route. No auth middleware;
// this path must work for a responder holding nothing but the card.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/emergency/scan/:qrCodeId", h.Scan)
}

// Scan serves the first-responder projection for a card or QR ID
func (h *Handlers) Scan(c *gin.Context) {
	view, err := h.service.Scan(c.Request.Context(), c.Param("qrCodeId"))
	if err != nil {
		httperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
