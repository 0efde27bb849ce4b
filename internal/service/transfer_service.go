package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/servisfon/transfer-api/internal/dto"
	"github.com/servisfon/transfer-api/internal/models"
	"github.com/servisfon/transfer-api/internal/repository"
	appErrors "github.com/servisfon/transfer-api/pkg/errors"
)

const (
	minIMEILength = 15
	dateLayout    = "2006-01-02"

	creationRemarks = "Transfer created"
)

type transferStore interface {
	Create(ctx context.Context, transfer *models.TransferRecord, entry *models.StatusLogEntry) error
	GetByID(ctx context.Context, id string) (*models.TransferRecord, error)
	List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRecord, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams, entry *models.StatusLogEntry) error
}

type statusLogStore interface {
	ListByTransfer(ctx context.Context, transferID string) ([]models.StatusLogEntry, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// TransferService orchestrates the transfer workflow: creation, status
// transitions, history and role-scoped listing.
type TransferService struct {
	repo      transferStore
	logs      statusLogStore
	audit     auditLogger
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	hubBranch string
	now       func() time.Time
}

// TransferServiceOption configures the service.
type TransferServiceOption func(*TransferService)

// WithTransferClock overrides the time source (tests).
func WithTransferClock(now func() time.Time) TransferServiceOption {
	return func(s *TransferService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCacheInvalidator registers a hook run after every successful write.
func WithCacheInvalidator(inv cacheInvalidator) TransferServiceOption {
	return func(s *TransferService) {
		s.cache = inv
	}
}

// NewTransferService constructs the service.
func NewTransferService(repo transferStore, logs statusLogStore, audit auditLogger, logger *zap.Logger, hubBranch string, opts ...TransferServiceOption) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hubBranch == "" {
		hubBranch = "HQ"
	}
	svc := &TransferService{
		repo:      repo,
		logs:      logs,
		audit:     audit,
		validator: validator.New(),
		logger:    logger,
		hubBranch: hubBranch,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create registers a new transfer for the acting user's branch, destined
// for the repair hub, and appends the creation ledger entry. Validation
// is all-or-nothing: nothing is written when any field is invalid.
func (s *TransferService) Create(ctx context.Context, req dto.CreateTransferRequest, actor *models.User) (*models.TransferRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}

	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.PhoneModel = strings.TrimSpace(req.PhoneModel)
	req.IMEI = strings.TrimSpace(req.IMEI)
	req.ProblemDescription = strings.TrimSpace(req.ProblemDescription)
	req.StaffReceiveName = strings.TrimSpace(req.StaffReceiveName)

	if req.CustomerName == "" || req.PhoneModel == "" || req.ProblemDescription == "" || req.StaffReceiveName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "required fields must not be blank")
	}
	if len(req.IMEI) < minIMEILength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "imei must be at least 15 characters")
	}
	dateFromBranch, err := time.Parse(dateLayout, strings.TrimSpace(req.DateFromBranch))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_from_branch must be a valid date (YYYY-MM-DD)")
	}

	now := s.now()
	remarks := creationRemarks
	transfer := &models.TransferRecord{
		ID:                 uuid.NewString(),
		BranchFrom:         actor.Branch,
		BranchTo:           s.hubBranch,
		CustomerName:       req.CustomerName,
		PhoneModel:         req.PhoneModel,
		IMEI:               req.IMEI,
		Passcode:           req.Passcode,
		ProblemDescription: req.ProblemDescription,
		StaffReceiveName:   req.StaffReceiveName,
		DateFromBranch:     dateFromBranch,
		StaffSendName:      actor.FullName,
		DateSentToBranch:   now.Truncate(24 * time.Hour),
		Status:             models.StatusPending,
		Remarks:            &remarks,
		UserID:             actor.ID,
		UpdatedBy:          actor.FullName,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	entry := &models.StatusLogEntry{
		TransferID: transfer.ID,
		OldStatus:  nil,
		NewStatus:  models.StatusPending,
		Remarks:    &remarks,
		UpdatedBy:  actor.FullName,
		UserID:     actor.ID,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, transfer, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to create transfer")
	}

	s.recordAudit(ctx, actor, models.AuditActionTransferCreate, transfer.ID, nil, transfer)
	s.invalidateCache(ctx)
	s.logger.Info("transfer created",
		zap.String("transfer_id", transfer.ID),
		zap.String("branch_from", transfer.BranchFrom),
		zap.String("branch_to", transfer.BranchTo),
	)
	return transfer, nil
}

// Get returns a transfer the actor is allowed to see. Records outside the
// actor's scope are reported as not found, indistinguishable from truly
// absent ones.
func (s *TransferService) Get(ctx context.Context, id string, actor *models.User) (*models.TransferRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	transfer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load transfer")
	}
	if !models.ScopeFor(actor).Allows(transfer) {
		return nil, appErrors.ErrNotFound
	}
	return transfer, nil
}

// UpdateStatus applies a status transition. The role/state write gate is
// checked against the record's pre-update status; the record mutation and
// the ledger append commit together.
func (s *TransferService) UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest, actor *models.User) (*models.TransferRecord, error) {
	transfer, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	newStatus, ok := models.ParseStatus(req.Status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status value")
	}
	if !CanTransition(actor.Role, transfer.Status) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not update this record")
	}

	now := s.now()
	params := repository.UpdateStatusParams{
		ID:        transfer.ID,
		Status:    newStatus,
		UpdatedBy: actor.FullName,
		UpdatedAt: now,
	}
	remarks := strings.TrimSpace(req.Remarks)
	if remarks != "" {
		params.Remarks = &remarks
	}

	switch newStatus {
	case models.StatusReceived:
		name := strings.TrimSpace(req.TechnicianReceiveName)
		if name == "" {
			name = actor.FullName
		}
		params.TechnicianReceiveName = &name
		received, err := parseDateOrToday(req.DateReceivedByTech, now)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date_received_by_tech must be a valid date (YYYY-MM-DD)")
		}
		params.DateReceivedByTech = &received
	case models.StatusDone:
		done, err := parseDateOrToday(req.DateRepairDone, now)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date_repair_done must be a valid date (YYYY-MM-DD)")
		}
		params.DateRepairDone = &done
		if req.RepairCost != nil {
			if *req.RepairCost < 0 {
				return nil, appErrors.Clone(appErrors.ErrValidation, "repair_cost must not be negative")
			}
			params.RepairCost = req.RepairCost
		}
	}

	oldStatus := transfer.Status
	entry := &models.StatusLogEntry{
		TransferID: transfer.ID,
		OldStatus:  &oldStatus,
		NewStatus:  newStatus,
		Remarks:    params.Remarks,
		UpdatedBy:  actor.FullName,
		UserID:     actor.ID,
		UpdatedAt:  now,
	}

	if err := s.repo.UpdateStatus(ctx, params, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to update transfer status")
	}

	updated, err := s.repo.GetByID(ctx, transfer.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to reload transfer")
	}

	s.recordAudit(ctx, actor, models.AuditActionStatusUpdate, transfer.ID, map[string]interface{}{"status": oldStatus}, map[string]interface{}{"status": newStatus})
	s.invalidateCache(ctx)
	s.logger.Info("transfer status updated",
		zap.String("transfer_id", transfer.ID),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(newStatus)),
		zap.String("updated_by", actor.FullName),
	)
	return updated, nil
}

// List returns the actor's visible transfers, newest-created first,
// narrowed by the optional filters.
func (s *TransferService) List(ctx context.Context, query dto.TransferQuery, actor *models.User) ([]models.TransferRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter, err := buildTransferFilter(query, actor)
	if err != nil {
		return nil, err
	}
	transfers, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to list transfers")
	}
	return transfers, nil
}

// History returns the status ledger for a visible transfer, most recent
// entry first.
func (s *TransferService) History(ctx context.Context, id string, actor *models.User) ([]models.StatusLogEntry, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	entries, err := s.logs.ListByTransfer(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load status history")
	}
	return entries, nil
}

// StatusCatalog lists the five lifecycle stages in order with their UI
// color tokens and successors.
func (s *TransferService) StatusCatalog() []dto.StatusInfo {
	catalog := make([]dto.StatusInfo, 0, len(models.StatusOrder))
	for _, status := range models.StatusOrder {
		info := dto.StatusInfo{
			Status:     status,
			Label:      status.Label(),
			ColorClass: models.ColorClass(status),
		}
		if next, ok := models.NextStatus(status); ok {
			info.Next = &next
		}
		catalog = append(catalog, info)
	}
	return catalog
}

func buildTransferFilter(query dto.TransferQuery, actor *models.User) (models.TransferFilter, error) {
	filter := models.TransferFilter{
		Search: strings.TrimSpace(query.Search),
		Branch: strings.TrimSpace(query.Branch),
		Scope:  models.ScopeFor(actor),
	}
	if query.Status != "" {
		status, ok := models.ParseStatus(string(query.Status))
		if !ok {
			return models.TransferFilter{}, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
		}
		filter.Status = status
	}
	if query.CreatedFrom != "" {
		from, err := time.Parse(dateLayout, query.CreatedFrom)
		if err != nil {
			return models.TransferFilter{}, appErrors.Clone(appErrors.ErrValidation, "created_from must be a valid date (YYYY-MM-DD)")
		}
		filter.CreatedFrom = &from
	}
	if query.CreatedTo != "" {
		to, err := time.Parse(dateLayout, query.CreatedTo)
		if err != nil {
			return models.TransferFilter{}, appErrors.Clone(appErrors.ErrValidation, "created_to must be a valid date (YYYY-MM-DD)")
		}
		// Inclusive upper bound: extend to the end of the day.
		end := to.Add(24*time.Hour - time.Nanosecond)
		filter.CreatedTo = &end
	}
	if query.PageSize > 0 {
		filter.Limit = query.PageSize
		if query.Page > 1 {
			filter.Offset = (query.Page - 1) * query.PageSize
		}
	}
	return filter, nil
}

func parseDateOrToday(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.Truncate(24 * time.Hour), nil
	}
	return time.Parse(dateLayout, raw)
}

func (s *TransferService) recordAudit(ctx context.Context, actor *models.User, action, resourceID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	oldJSON, _ := json.Marshal(oldValues)
	newJSON, _ := json.Marshal(newValues)
	log := &models.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		Resource:   "transfer",
		ResourceID: &resourceID,
		OldValues:  oldJSON,
		NewValues:  newJSON,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err))
	}
}

func (s *TransferService) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
