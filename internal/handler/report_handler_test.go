package handler

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servisfon/transfer-api/internal/models"
	"github.com/servisfon/transfer-api/internal/repository"
	"github.com/servisfon/transfer-api/internal/service"
	"github.com/servisfon/transfer-api/pkg/jobs"
)

type stubReportStore struct {
	jobs map[string]*models.ReportJob
}

func (s *stubReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *stubReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if job, ok := s.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, os.ErrNotExist
}

func (s *stubReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	return nil
}

func (s *stubReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type stubDispatcher struct {
	enqueued []jobs.Job
}

func (s *stubDispatcher) Enqueue(job jobs.Job) error {
	s.enqueued = append(s.enqueued, job)
	return nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(jobID string, format models.ReportFormat, transfers []models.TransferRecord) (string, string, time.Time, error) {
	return "tok", jobID + ".csv", time.Now().Add(time.Hour), nil
}

func (stubGenerator) ParseToken(token string, allowExpired bool) (string, string, time.Time, error) {
	return "", "", time.Time{}, os.ErrInvalid
}

func (stubGenerator) Open(relPath string) (*os.File, error) {
	return nil, os.ErrNotExist
}

type stubLister struct{}

func (stubLister) List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRecord, error) {
	return nil, nil
}

func newTestReportHandler() (*ReportHandler, *stubReportStore, *stubDispatcher) {
	store := &stubReportStore{jobs: make(map[string]*models.ReportJob)}
	queue := &stubDispatcher{}
	svc := service.NewReportService(store, stubLister{}, queue, stubGenerator{}, nil)
	return NewReportHandler(svc), store, queue
}

func TestReportHandlerGenerateQueuesJob(t *testing.T) {
	handler, store, queue := newTestReportHandler()

	c, rec := testContext(t, http.MethodPost, "/reports/transfers", map[string]interface{}{
		"format": "csv",
	}, staffClaims())

	handler.Generate(c)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.enqueued, 1)
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, "Alam Sutera", job.Params.ScopeFrom)
	}
}

func TestReportHandlerGenerateRejectsBadFormat(t *testing.T) {
	handler, _, _ := newTestReportHandler()

	c, rec := testContext(t, http.MethodPost, "/reports/transfers", map[string]interface{}{
		"format": "xlsx",
	}, staffClaims())

	handler.Generate(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandlerStatusOwnJobOnly(t *testing.T) {
	handler, store, _ := newTestReportHandler()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued, CreatedBy: "someone-else"}

	c, rec := testContext(t, http.MethodGet, "/reports/job-1/status", nil, staffClaims())
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}

	handler.Status(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportHandlerDownloadRequiresToken(t *testing.T) {
	handler, _, _ := newTestReportHandler()

	c, rec := testContext(t, http.MethodGet, "/reports/download", nil, staffClaims())
	handler.Download(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandlerDownloadRejectsForgedToken(t *testing.T) {
	handler, _, _ := newTestReportHandler()

	c, rec := testContext(t, http.MethodGet, "/reports/download?token=forged", nil, staffClaims())
	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
