package models

import "time"

// StatusLogEntry is one immutable row of the status history ledger.
// OldStatus is nil only for the creation entry. Entries are never
// updated or deleted.
type StatusLogEntry struct {
	ID         string          `db:"id" json:"id"`
	TransferID string          `db:"transfer_id" json:"transfer_id"`
	OldStatus  *TransferStatus `db:"old_status" json:"old_status"`
	NewStatus  TransferStatus  `db:"new_status" json:"new_status"`
	Remarks    *string         `db:"remarks" json:"remarks,omitempty"`
	UpdatedBy  string          `db:"updated_by" json:"updated_by"`
	UserID     string          `db:"user_id" json:"user_id"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}
