package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/servisfon/transfer-api/internal/dto"
	"github.com/servisfon/transfer-api/internal/models"
	"github.com/servisfon/transfer-api/internal/repository"
	appErrors "github.com/servisfon/transfer-api/pkg/errors"
)

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Update(ctx context.Context, id string, params repository.UpdateUserParams) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService manages role and branch assignments. Lazy provisioning
// gives every new user ADMIN at the hub; this is where admins demote
// them to HQ_STAFF or TECHNICIAN at their real branch.
type UserService struct {
	repo      userStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(repo userStore, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validator.New(), logger: logger}
}

// List returns users matching the query with pagination metadata.
func (s *UserService) List(ctx context.Context, query dto.UserQuery) ([]models.User, *models.Pagination, error) {
	filter := models.UserFilter{
		Branch:   query.Branch,
		Search:   query.Search,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Role != "" {
		role := models.UserRole(query.Role)
		filter.Role = &role
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update applies role/branch/active changes to a user.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actor *models.User) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if req.Role == nil && req.Branch == nil && req.Active == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}

	before, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to load user")
	}

	params := repository.UpdateUserParams{
		Role:      req.Role,
		Branch:    req.Branch,
		Active:    req.Active,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.repo.Update(ctx, id, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to update user")
	}

	after, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreUnavailable.Code, appErrors.ErrStoreUnavailable.Status, "failed to reload user")
	}

	if actor != nil {
		if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actor.ID,
			Action:     models.AuditActionUserUpdate,
			Resource:   "user",
			ResourceID: &id,
		}); err != nil {
			s.logger.Warn("failed to write user audit log", zap.Error(err))
		}
	}
	s.logger.Info("user updated",
		zap.String("user_id", id),
		zap.String("old_role", string(before.Role)),
		zap.String("new_role", string(after.Role)),
	)
	return after, nil
}
