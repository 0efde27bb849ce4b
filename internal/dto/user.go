package dto

import "github.com/servisfon/transfer-api/internal/models"

// UpdateUserRequest changes a user's role or branch assignment.
// Lazy provisioning defaults everyone to ADMIN at the repair hub, so
// this is how HQ staff and technicians come to exist.
type UpdateUserRequest struct {
	Role   *models.UserRole `json:"role,omitempty" validate:"omitempty,oneof=ADMIN HQ_STAFF TECHNICIAN"`
	Branch *string          `json:"branch,omitempty" validate:"omitempty,min=1"`
	Active *bool            `json:"active,omitempty"`
}

// UserQuery mirrors supported user listing filters.
type UserQuery struct {
	Role     string
	Branch   string
	Search   string
	Page     int
	PageSize int
}
