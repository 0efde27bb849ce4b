package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servisfon/transfer-api/internal/dto"
	"github.com/servisfon/transfer-api/internal/models"
	"github.com/servisfon/transfer-api/internal/repository"
	appErrors "github.com/servisfon/transfer-api/pkg/errors"
	"github.com/servisfon/transfer-api/pkg/jobs"
)

type mockReportStore struct {
	jobs map[string]*models.ReportJob
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{jobs: make(map[string]*models.ReportJob)}
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if job, ok := m.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, os.ErrNotExist
}

func (m *mockReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job := m.jobs[id]
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	queued := []models.ReportJob{}
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

type mockLister struct {
	transfers  []models.TransferRecord
	lastFilter models.TransferFilter
	err        error
}

func (m *mockLister) List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRecord, error) {
	m.lastFilter = filter
	return m.transfers, m.err
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockGenerator struct {
	token   string
	relPath string
	dir     string
	err     error
}

func (m *mockGenerator) Generate(jobID string, format models.ReportFormat, transfers []models.TransferRecord) (string, string, time.Time, error) {
	if m.err != nil {
		return "", "", time.Time{}, m.err
	}
	return m.token, m.relPath, time.Now().Add(time.Hour), nil
}

func (m *mockGenerator) ParseToken(token string, allowExpired bool) (string, string, time.Time, error) {
	if token != m.token {
		return "", "", time.Time{}, os.ErrInvalid
	}
	return "job-1", m.relPath, time.Now().Add(time.Hour), nil
}

func (m *mockGenerator) Open(relPath string) (*os.File, error) {
	return os.Open(filepath.Join(m.dir, relPath))
}

func newTestReportService(store *mockReportStore, lister *mockLister, queue *mockDispatcher, gen *mockGenerator) *ReportService {
	return NewReportService(store, lister, queue, gen, nil)
}

func TestReportServiceCreateJobFreezesScope(t *testing.T) {
	store := newMockReportStore()
	queue := &mockDispatcher{}
	svc := newTestReportService(store, &mockLister{}, queue, &mockGenerator{})

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{Format: models.ReportFormatCSV}, hqStaff())
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)

	job := store.jobs[resp.ID]
	assert.Equal(t, "Alam Sutera", job.Params.ScopeFrom)
	assert.Empty(t, job.Params.ScopeTo)
}

func TestReportServiceCreateJobRejectsUnknownFormat(t *testing.T) {
	svc := newTestReportService(newMockReportStore(), &mockLister{}, &mockDispatcher{}, &mockGenerator{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{Format: models.ReportFormat("xlsx")}, admin())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	store := newMockReportStore()
	queue := &mockDispatcher{err: os.ErrClosed}
	svc := newTestReportService(store, &mockLister{}, queue, &mockGenerator{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{Format: models.ReportFormatCSV}, admin())
	require.Error(t, err)

	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportServiceGetStatusHidesForeignJobs(t *testing.T) {
	store := newMockReportStore()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued, CreatedBy: "someone-else"}
	svc := newTestReportService(store, &mockLister{}, &mockDispatcher{}, &mockGenerator{})

	_, err := svc.GetStatus(context.Background(), "job-1", hqStaff())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	status, err := svc.GetStatus(context.Background(), "job-1", admin())
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, status.Status)
}

func TestReportServiceProcessFinishesJob(t *testing.T) {
	store := newMockReportStore()
	store.jobs["job-1"] = &models.ReportJob{
		ID:        "job-1",
		Status:    models.ReportStatusQueued,
		CreatedBy: "u-staff",
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV, ScopeFrom: "Alam Sutera"},
	}
	lister := &mockLister{transfers: []models.TransferRecord{{ID: "tr-1"}}}
	gen := &mockGenerator{token: "tok", relPath: "job-1.csv"}
	svc := newTestReportService(store, lister, &mockDispatcher{}, gen)

	require.NoError(t, svc.Process(context.Background(), jobs.Job{ID: "job-1"}))

	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Contains(t, *job.ResultURL, "token=tok")

	// Frozen scope drives the listing, not the processor's identity.
	assert.Equal(t, "Alam Sutera", lister.lastFilter.Scope.BranchFrom)
	assert.Equal(t, 500, lister.lastFilter.Limit)
}

func TestReportServiceProcessRenderFailure(t *testing.T) {
	store := newMockReportStore()
	store.jobs["job-1"] = &models.ReportJob{
		ID:     "job-1",
		Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	gen := &mockGenerator{err: os.ErrInvalid}
	svc := newTestReportService(store, &mockLister{}, &mockDispatcher{}, gen)

	require.Error(t, svc.Process(context.Background(), jobs.Job{ID: "job-1"}))

	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
}

func TestReportServiceResolveDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job-1.csv"), []byte("id\n"), 0o600))

	resultURL := "/api/v1/reports/download?token=tok"
	store := newMockReportStore()
	store.jobs["job-1"] = &models.ReportJob{
		ID:        "job-1",
		Status:    models.ReportStatusFinished,
		ResultURL: &resultURL,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	gen := &mockGenerator{token: "tok", relPath: "job-1.csv", dir: dir}
	svc := newTestReportService(store, &mockLister{}, &mockDispatcher{}, gen)

	download, err := svc.ResolveDownload(context.Background(), "tok")
	require.NoError(t, err)
	defer download.File.Close() //nolint:errcheck
	assert.Equal(t, "job-1.csv", download.Filename)
	assert.Equal(t, models.ReportFormatCSV, download.Format)

	_, err = svc.ResolveDownload(context.Background(), "forged")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	store := newMockReportStore()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued}
	store.jobs["job-2"] = &models.ReportJob{ID: "job-2", Status: models.ReportStatusFinished}
	queue := &mockDispatcher{}
	svc := newTestReportService(store, &mockLister{}, queue, &mockGenerator{})

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "job-1", queue.enqueued[0].ID)
}
