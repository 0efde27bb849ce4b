package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/servisfon/transfer-api/internal/models"
)

// StatusLogRepository reads the append-only status ledger. Writes happen
// inside transfer transactions; no update or delete exists.
type StatusLogRepository struct {
	db *sqlx.DB
}

// NewStatusLogRepository constructs the repository.
func NewStatusLogRepository(db *sqlx.DB) *StatusLogRepository {
	return &StatusLogRepository{db: db}
}

// ListByTransfer returns all ledger entries for a transfer, most recent
// first.
func (r *StatusLogRepository) ListByTransfer(ctx context.Context, transferID string) ([]models.StatusLogEntry, error) {
	const query = `SELECT id, transfer_id, old_status, new_status, remarks, updated_by, user_id, updated_at
	FROM status_logs WHERE transfer_id = $1 ORDER BY updated_at DESC`
	var entries []models.StatusLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, transferID); err != nil {
		return nil, fmt.Errorf("list status logs: %w", err)
	}
	return entries, nil
}
