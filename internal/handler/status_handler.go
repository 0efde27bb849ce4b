package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/servisfon/transfer-api/internal/service"
	"github.com/servisfon/transfer-api/pkg/response"
)

// StatusHandler serves the lifecycle-stage catalog.
type StatusHandler struct {
	service *service.TransferService
}

// NewStatusHandler constructs handler.
func NewStatusHandler(svc *service.TransferService) *StatusHandler {
	return &StatusHandler{service: svc}
}

// Catalog godoc
// @Summary Lifecycle stage catalog
// @Description Lists the five statuses in workflow order with labels, color tokens and successors
// @Tags Statuses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /statuses [get]
func (h *StatusHandler) Catalog(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.StatusCatalog(), nil)
}
