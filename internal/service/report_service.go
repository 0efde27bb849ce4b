package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/servisfon/transfer-api/internal/dto"
	"github.com/servisfon/transfer-api/internal/models"
	"github.com/servisfon/transfer-api/internal/repository"
	appErrors "github.com/servisfon/transfer-api/pkg/errors"
	"github.com/servisfon/transfer-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
}

type reportTransferLister interface {
	List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRecord, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type reportGenerator interface {
	Generate(jobID string, format models.ReportFormat, transfers []models.TransferRecord) (token, relPath string, expiresAt time.Time, err error)
	ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
	Open(relPath string) (*os.File, error)
}

// ReportService orchestrates asynchronous transfer exports.
type ReportService struct {
	repo      reportJobStore
	transfers reportTransferLister
	queue     jobDispatcher
	exporter  reportGenerator
	logger    *zap.Logger
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, transfers reportTransferLister, queue jobDispatcher, exporter reportGenerator, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:      repo,
		transfers: transfers,
		queue:     queue,
		exporter:  exporter,
		logger:    logger,
	}
}

// CreateJob validates the request, freezes the caller's visibility scope
// into the job params, persists the job and enqueues processing.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, actor *models.User) (*dto.ReportJobResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	format := req.Format
	if format != models.ReportFormatCSV && format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	params := models.ReportJobParams{
		Format: format,
		Search: strings.TrimSpace(req.Search),
		Branch: strings.TrimSpace(req.Branch),
	}
	if req.Status != "" {
		status, ok := models.ParseStatus(req.Status)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
		}
		params.Status = status
	}
	if req.CreatedFrom != "" {
		from, err := time.Parse(dateLayout, req.CreatedFrom)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "created_from must be a valid date (YYYY-MM-DD)")
		}
		params.DateFrom = &from
	}
	if req.CreatedTo != "" {
		to, err := time.Parse(dateLayout, req.CreatedTo)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "created_to must be a valid date (YYYY-MM-DD)")
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		params.DateTo = &end
	}
	scope := models.ScopeFor(actor)
	params.ScopeFrom = scope.BranchFrom
	params.ScopeTo = scope.BranchTo

	job := &models.ReportJob{
		Params:    params,
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.ID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "transfer_export"}); err != nil {
		status := models.ReportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients; non-admins only see their
// own jobs.
func (s *ReportService) GetStatus(ctx context.Context, id string, actor *models.User) (*dto.ReportStatusResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load report job")
	}
	if actor.Role != models.RoleAdmin && job.CreatedBy != actor.ID {
		return nil, appErrors.ErrNotFound
	}
	resp := &dto.ReportStatusResponse{
		ID:       job.ID,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates a token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load report job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// Process is the queue handler: it renders and stores one export job.
func (s *ReportService) Process(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.GetByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", queued.ID, err)
	}
	if job.Status == models.ReportStatusFinished {
		return nil
	}

	processing := models.ReportStatusProcessing
	progress := 10
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return fmt.Errorf("mark report job processing: %w", err)
	}

	filter := models.TransferFilter{
		Search:      job.Params.Search,
		Status:      job.Params.Status,
		Branch:      job.Params.Branch,
		CreatedFrom: job.Params.DateFrom,
		CreatedTo:   job.Params.DateTo,
		Scope: models.VisibilityScope{
			BranchFrom: job.Params.ScopeFrom,
			BranchTo:   job.Params.ScopeTo,
		},
		Limit: 500,
	}
	transfers, err := s.transfers.List(ctx, filter)
	if err != nil {
		s.failJob(ctx, job.ID, "failed to list transfers")
		return fmt.Errorf("list transfers for report %s: %w", job.ID, err)
	}

	token, _, _, err := s.exporter.Generate(job.ID, job.Params.Format, transfers)
	if err != nil {
		s.failJob(ctx, job.ID, "failed to render export")
		return fmt.Errorf("render report %s: %w", job.ID, err)
	}

	finished := models.ReportStatusFinished
	done := 100
	now := time.Now().UTC()
	resultURL := "/api/v1/reports/download?token=" + token
	if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:     &finished,
		Progress:   &done,
		ResultURL:  &resultURL,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("finish report job %s: %w", job.ID, err)
	}
	s.logger.Info("report job finished", zap.String("job_id", job.ID), zap.Int("rows", len(transfers)))
	return nil
}

// RecoverPendingJobs re-enqueues jobs left queued by a previous process.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to list queued report jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "transfer_export"}); err != nil {
			s.logger.Warn("failed to requeue report job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func (s *ReportService) failJob(ctx context.Context, id, message string) {
	failed := models.ReportStatusFailed
	progress := 100
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, repository.UpdateReportJobParams{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &message,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark report job failed", zap.String("job_id", id), zap.Error(err))
	}
}
