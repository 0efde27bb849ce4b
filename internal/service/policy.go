package service

import "github.com/servisfon/transfer-api/internal/models"

// CanTransition reports whether a role may update the status of a record
// currently in the given stage.
//
// Admins may always update. HQ staff may never update an existing record
// (their only write is creating one, which enters PENDING). Technicians
// may update anything except a record still in PENDING. Unknown roles are
// denied.
//
// The rule deliberately does not constrain which target status is chosen:
// any role allowed to write may set any of the five stages.
func CanTransition(role models.UserRole, current models.TransferStatus) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleHQStaff:
		return false
	case models.RoleTechnician:
		return current != models.StatusPending
	default:
		return false
	}
}
