package dto

import (
	"github.com/servisfon/transfer-api/internal/models"
)

// CreateTransferRequest is the intake payload for a new transfer.
// Dates use the "2006-01-02" layout.
type CreateTransferRequest struct {
	CustomerName       string  `json:"customer_name" validate:"required"`
	PhoneModel         string  `json:"phone_model" validate:"required"`
	IMEI               string  `json:"imei" validate:"required"`
	Passcode           *string `json:"passcode,omitempty"`
	ProblemDescription string  `json:"problem_description" validate:"required"`
	StaffReceiveName   string  `json:"staff_receive_name" validate:"required"`
	DateFromBranch     string  `json:"date_from_branch" validate:"required"`
}

// UpdateStatusRequest advances (or rewinds) a transfer's lifecycle stage.
// The side fields are only consulted for the statuses that need them.
type UpdateStatusRequest struct {
	Status                string   `json:"status" validate:"required"`
	Remarks               string   `json:"remarks"`
	TechnicianReceiveName string   `json:"technician_receive_name,omitempty"`
	DateReceivedByTech    string   `json:"date_received_by_tech,omitempty"`
	DateRepairDone        string   `json:"date_repair_done,omitempty"`
	RepairCost            *float64 `json:"repair_cost,omitempty"`
}

// TransferQuery mirrors supported listing filters.
type TransferQuery struct {
	Search      string
	Status      models.TransferStatus
	Branch      string
	CreatedFrom string
	CreatedTo   string
	Page        int
	PageSize    int
}

// StatusInfo describes one lifecycle stage for the status catalog.
type StatusInfo struct {
	Status     models.TransferStatus  `json:"status"`
	Label      string                 `json:"label"`
	ColorClass string                 `json:"color_class"`
	Next       *models.TransferStatus `json:"next,omitempty"`
}

// DashboardSummary aggregates visible record counts per status.
type DashboardSummary struct {
	Total    int                           `json:"total"`
	ByStatus map[models.TransferStatus]int `json:"by_status"`
	Branches map[string]map[string]int     `json:"branches,omitempty"`
}
