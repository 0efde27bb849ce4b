package dto

import "github.com/servisfon/transfer-api/internal/models"

// ReportRequest queues an asynchronous export of the caller's visible
// transfers. Filters mirror TransferQuery.
type ReportRequest struct {
	Format      models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Search      string              `json:"search,omitempty"`
	Status      string              `json:"status,omitempty"`
	Branch      string              `json:"branch,omitempty"`
	CreatedFrom string              `json:"created_from,omitempty"`
	CreatedTo   string              `json:"created_to,omitempty"`
}

// ReportJobResponse acknowledges a queued job.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress and the download URL once done.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
