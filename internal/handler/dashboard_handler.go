package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/servisfon/transfer-api/internal/service"
	appErrors "github.com/servisfon/transfer-api/pkg/errors"
	"github.com/servisfon/transfer-api/pkg/response"
)

// DashboardHandler serves aggregated workload views.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Dashboard summary
// @Description Per-status counts over the caller's visible transfers
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), claims.ActingUser())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}
