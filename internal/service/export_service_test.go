package service

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servisfon/transfer-api/internal/models"
	"github.com/servisfon/transfer-api/pkg/storage"
)

func newExportServiceForTest(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewExportService(store, signer, nil)
}

func exportSample() []models.TransferRecord {
	remarks := "Transfer created"
	return []models.TransferRecord{{
		ID:                 "tr-1",
		BranchFrom:         "Alam Sutera",
		BranchTo:           "HQ",
		CustomerName:       "Ibu Rina",
		PhoneModel:         "iPhone 13",
		IMEI:               "356938035643809",
		ProblemDescription: "Cracked screen",
		Status:             models.StatusPending,
		Remarks:            &remarks,
		UpdatedBy:          "Siti",
	}}
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc := newExportServiceForTest(t)

	token, relPath, expiresAt, err := svc.Generate("job-1", models.ReportFormatCSV, exportSample())
	require.NoError(t, err)
	assert.Equal(t, "job-1.csv", relPath)
	assert.False(t, expiresAt.IsZero())

	jobID, parsedPath, _, err := svc.ParseToken(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, relPath, parsedPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Ibu Rina")
	assert.Contains(t, string(content), "356938035643809")
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc := newExportServiceForTest(t)

	_, relPath, _, err := svc.Generate("job-2", models.ReportFormatPDF, exportSample())
	require.NoError(t, err)
	assert.Equal(t, "job-2.pdf", relPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	header := make([]byte, 5)
	_, err = file.Read(header)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(header, []byte("%PDF-")))
}

func TestExportServiceSlip(t *testing.T) {
	svc := newExportServiceForTest(t)

	transfer := exportSample()[0]
	oldStatus := models.StatusPending
	history := []models.StatusLogEntry{
		{TransferID: "tr-1", OldStatus: &oldStatus, NewStatus: models.StatusReceived, UpdatedBy: "Budi", UpdatedAt: time.Now()},
		{TransferID: "tr-1", NewStatus: models.StatusPending, UpdatedBy: "Siti", UpdatedAt: time.Now().Add(-time.Hour)},
	}

	payload, err := svc.Slip(&transfer, history)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF-")))
}
