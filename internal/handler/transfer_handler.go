package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/servisfon/transfer-api/internal/dto"
	"github.com/servisfon/transfer-api/internal/models"
	"github.com/servisfon/transfer-api/internal/service"
	appErrors "github.com/servisfon/transfer-api/pkg/errors"
	"github.com/servisfon/transfer-api/pkg/response"
)

// TransferHandler exposes the transfer workflow endpoints.
type TransferHandler struct {
	service *service.TransferService
	exports *service.ExportService
	metrics *service.MetricsService
}

// NewTransferHandler constructs handler.
func NewTransferHandler(svc *service.TransferService, exports *service.ExportService, metrics *service.MetricsService) *TransferHandler {
	return &TransferHandler{service: svc, exports: exports, metrics: metrics}
}

// Create godoc
// @Summary Register a new repair transfer
// @Description Registers a device handed in at the caller's branch, destined for the repair hub
// @Tags Transfers
// @Accept json
// @Produce json
// @Param payload body dto.CreateTransferRequest true "Transfer payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /transfers [post]
func (h *TransferHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transfer payload"))
		return
	}

	transfer, err := h.service.Create(c.Request.Context(), req, claims.ActingUser())
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTransferCreated()
	}
	response.Created(c, transfer)
}

// List godoc
// @Summary List visible transfers
// @Description Lists the caller's visible transfers, newest first
// @Tags Transfers
// @Produce json
// @Param search query string false "Search customer name, phone model or IMEI"
// @Param status query string false "Status filter"
// @Param branch query string false "Branch filter"
// @Param created_from query string false "Created on or after (YYYY-MM-DD)"
// @Param created_to query string false "Created on or before (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /transfers [get]
func (h *TransferHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	query := dto.TransferQuery{
		Search:      c.Query("search"),
		Status:      models.TransferStatus(c.Query("status")),
		Branch:      c.Query("branch"),
		CreatedFrom: c.Query("created_from"),
		CreatedTo:   c.Query("created_to"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			query.PageSize = size
		}
	}

	transfers, err := h.service.List(c.Request.Context(), query, claims.ActingUser())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, transfers, nil)
}

// Get godoc
// @Summary Get a transfer
// @Tags Transfers
// @Produce json
// @Param id path string true "Transfer ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transfers/{id} [get]
func (h *TransferHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	transfer, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.ActingUser())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, transfer, nil)
}

// UpdateStatus godoc
// @Summary Update transfer status
// @Description Applies a status transition and appends a ledger entry
// @Tags Transfers
// @Accept json
// @Produce json
// @Param id path string true "Transfer ID"
// @Param payload body dto.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transfers/{id}/status [patch]
func (h *TransferHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	transfer, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claims.ActingUser())
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordStatusTransition(transfer.Status)
	}
	response.JSON(c, http.StatusOK, transfer, nil)
}

// History godoc
// @Summary Status history
// @Description Returns the append-only status ledger, most recent entry first
// @Tags Transfers
// @Produce json
// @Param id path string true "Transfer ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transfers/{id}/history [get]
func (h *TransferHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entries, err := h.service.History(c.Request.Context(), c.Param("id"), claims.ActingUser())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// Slip godoc
// @Summary Printable handover slip
// @Description Renders an A5 PDF slip for one transfer and its status trail
// @Tags Transfers
// @Produce application/pdf
// @Param id path string true "Transfer ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /transfers/{id}/slip [get]
func (h *TransferHandler) Slip(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	actor := claims.ActingUser()

	transfer, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	history, err := h.service.History(c.Request.Context(), transfer.ID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.exports.Slip(transfer, history)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render slip"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"transfer-%s.pdf\"", transfer.ID))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", payload)
}
