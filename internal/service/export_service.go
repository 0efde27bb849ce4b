package service

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/servisfon/transfer-api/internal/models"
	"github.com/servisfon/transfer-api/pkg/export"
	"github.com/servisfon/transfer-api/pkg/storage"
)

// ExportService renders transfer datasets to files and signs download
// tokens for them.
type ExportService struct {
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		store:  store,
		signer: signer,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

var exportHeaders = []string{
	"ID", "Customer", "Phone Model", "IMEI", "From", "To",
	"Status", "Sent", "Received By Tech", "Repair Done", "Cost", "Updated By",
}

// Generate renders the transfers in the requested format, stores the file
// and returns the signed download token plus the relative file path.
func (s *ExportService) Generate(jobID string, format models.ReportFormat, transfers []models.TransferRecord) (token, relPath string, expiresAt time.Time, err error) {
	dataset := export.Dataset{Headers: exportHeaders, Records: make([][]string, 0, len(transfers))}
	for i := range transfers {
		dataset.Records = append(dataset.Records, transferRecord(&transfers[i]))
	}

	var payload []byte
	switch format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Transfer Records")
		relPath = fmt.Sprintf("%s.pdf", jobID)
	default:
		payload, err = s.csv.Render(dataset)
		relPath = fmt.Sprintf("%s.csv", jobID)
	}
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("render export: %w", err)
	}

	if _, err := s.store.Save(relPath, payload); err != nil {
		return "", "", time.Time{}, fmt.Errorf("store export: %w", err)
	}

	token, expiresAt, err = s.signer.Generate(jobID, relPath)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign export: %w", err)
	}
	return token, relPath, expiresAt, nil
}

// Slip renders a printable handover slip for one transfer and its ledger.
func (s *ExportService) Slip(transfer *models.TransferRecord, history []models.StatusLogEntry) ([]byte, error) {
	fields := []export.SlipField{
		{Label: "Transfer ID", Value: transfer.ID},
		{Label: "Customer", Value: transfer.CustomerName},
		{Label: "Phone Model", Value: transfer.PhoneModel},
		{Label: "IMEI", Value: transfer.IMEI},
		{Label: "Problem", Value: transfer.ProblemDescription},
		{Label: "Route", Value: fmt.Sprintf("%s -> %s", transfer.BranchFrom, transfer.BranchTo)},
		{Label: "Received From Customer", Value: transfer.DateFromBranch.Format("2006-01-02")},
		{Label: "Sent To Branch", Value: transfer.DateSentToBranch.Format("2006-01-02")},
		{Label: "Status", Value: transfer.Status.Label()},
	}
	if transfer.RepairCost != nil {
		fields = append(fields, export.SlipField{Label: "Repair Cost", Value: strconv.FormatFloat(*transfer.RepairCost, 'f', 2, 64)})
	}

	trail := make([]string, 0, len(history))
	for _, entry := range history {
		from := "-"
		if entry.OldStatus != nil {
			from = entry.OldStatus.Label()
		}
		trail = append(trail, fmt.Sprintf("%s  %s -> %s  by %s",
			entry.UpdatedAt.Format("2006-01-02 15:04"), from, entry.NewStatus.Label(), entry.UpdatedBy))
	}

	return s.pdf.RenderSlip(export.Slip{Title: "Repair Transfer Slip", Fields: fields, Trail: trail})
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle on a stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.store.Open(relPath)
}

// Cleanup removes export files older than ttl.
func (s *ExportService) Cleanup(ttl time.Duration) {
	deleted, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("export cleanup removed files", zap.Int("count", len(deleted)))
	}
}

// transferRecord builds one export record in exportHeaders order.
func transferRecord(t *models.TransferRecord) []string {
	var received, done, cost string
	if t.DateReceivedByTech != nil {
		received = t.DateReceivedByTech.Format("2006-01-02")
	}
	if t.DateRepairDone != nil {
		done = t.DateRepairDone.Format("2006-01-02")
	}
	if t.RepairCost != nil {
		cost = strconv.FormatFloat(*t.RepairCost, 'f', 2, 64)
	}
	return []string{
		t.ID,
		t.CustomerName,
		t.PhoneModel,
		t.IMEI,
		t.BranchFrom,
		t.BranchTo,
		t.Status.Label(),
		t.DateSentToBranch.Format("2006-01-02"),
		received,
		done,
		cost,
		t.UpdatedBy,
	}
}
