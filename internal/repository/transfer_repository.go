package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/servisfon/transfer-api/internal/models"
)

const transferColumns = `id, branch_from, branch_to, customer_name, phone_model, imei, passcode,
       problem_description, staff_receive_name, date_from_branch, staff_send_name, date_sent_to_branch,
       technician_receive_name, date_received_by_tech, date_repair_done, repair_cost,
       status, remarks, user_id, updated_by, created_at, updated_at`

// TransferRepository persists transfer records and their status ledger.
type TransferRepository struct {
	db *sqlx.DB
}

// NewTransferRepository constructs the repository.
func NewTransferRepository(db *sqlx.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create inserts a transfer and its creation ledger entry in one
// transaction. Either both rows land or neither does.
func (r *TransferRepository) Create(ctx context.Context, transfer *models.TransferRecord, entry *models.StatusLogEntry) error {
	if transfer.ID == "" {
		transfer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = now
	}
	if transfer.UpdatedAt.IsZero() {
		transfer.UpdatedAt = now
	}
	entry.TransferID = transfer.ID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create transfer: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO transfers
	(id, branch_from, branch_to, customer_name, phone_model, imei, passcode, problem_description,
	 staff_receive_name, date_from_branch, staff_send_name, date_sent_to_branch,
	 technician_receive_name, date_received_by_tech, date_repair_done, repair_cost,
	 status, remarks, user_id, updated_by, created_at, updated_at)
	VALUES (:id, :branch_from, :branch_to, :customer_name, :phone_model, :imei, :passcode, :problem_description,
	 :staff_receive_name, :date_from_branch, :staff_send_name, :date_sent_to_branch,
	 :technician_receive_name, :date_received_by_tech, :date_repair_done, :repair_cost,
	 :status, :remarks, :user_id, :updated_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, transfer); err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}

	if err := insertStatusLog(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create transfer: %w", err)
	}
	return nil
}

// GetByID fetches a transfer by identifier. Visibility is the caller's
// concern; this returns the raw row.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*models.TransferRecord, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1 LIMIT 1`
	var transfer models.TransferRecord
	if err := r.db.GetContext(ctx, &transfer, query, id); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// List returns transfers matching the filter, newest-created first.
func (r *TransferRepository) List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRecord, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + transferColumns + ` FROM transfers`)

	args := make([]interface{}, 0, 8)
	conditions := make([]string, 0, 6)

	if filter.Scope.BranchFrom != "" {
		args = append(args, filter.Scope.BranchFrom)
		conditions = append(conditions, fmt.Sprintf("branch_from = $%d", len(args)))
	}
	if filter.Scope.BranchTo != "" {
		args = append(args, filter.Scope.BranchTo)
		conditions = append(conditions, fmt.Sprintf("branch_to = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf("(LOWER(customer_name) LIKE $%d OR LOWER(phone_model) LIKE $%d OR LOWER(imei) LIKE $%d)", idx, idx, idx))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Branch != "" {
		args = append(args, filter.Branch)
		idx := len(args)
		conditions = append(conditions, fmt.Sprintf("(branch_from = $%d OR branch_to = $%d)", idx, idx))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	// Without an explicit page size the full matching set comes back.
	if limit := filter.Limit; limit > 0 {
		if limit > 500 {
			limit = 500
		}
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))
	}

	var transfers []models.TransferRecord
	if err := r.db.SelectContext(ctx, &transfers, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return transfers, nil
}

// UpdateStatusParams groups the columns mutated by a status transition.
type UpdateStatusParams struct {
	ID                    string
	Status                models.TransferStatus
	Remarks               *string
	TechnicianReceiveName *string
	DateReceivedByTech    *time.Time
	DateRepairDone        *time.Time
	RepairCost            *float64
	UpdatedBy             string
	UpdatedAt             time.Time
}

// UpdateStatus applies a transition and appends the ledger entry in one
// transaction. Only the side fields present in params are written.
func (r *TransferRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams, entry *models.StatusLogEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	setParts := []string{
		"status = :status",
		"remarks = :remarks",
		"updated_by = :updated_by",
		"updated_at = :updated_at",
	}
	if params.TechnicianReceiveName != nil {
		setParts = append(setParts, "technician_receive_name = :technician_receive_name")
	}
	if params.DateReceivedByTech != nil {
		setParts = append(setParts, "date_received_by_tech = :date_received_by_tech")
	}
	if params.DateRepairDone != nil {
		setParts = append(setParts, "date_repair_done = :date_repair_done")
	}
	if params.RepairCost != nil {
		setParts = append(setParts, "repair_cost = :repair_cost")
	}

	query := fmt.Sprintf("UPDATE transfers SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := tx.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                      params.ID,
		"status":                  params.Status,
		"remarks":                 params.Remarks,
		"technician_receive_name": params.TechnicianReceiveName,
		"date_received_by_tech":   params.DateReceivedByTech,
		"date_repair_done":        params.DateRepairDone,
		"repair_cost":             params.RepairCost,
		"updated_by":              params.UpdatedBy,
		"updated_at":              params.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update transfer status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check status update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	entry.TransferID = params.ID
	if err := insertStatusLog(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

func insertStatusLog(ctx context.Context, tx *sqlx.Tx, entry *models.StatusLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO status_logs
	(id, transfer_id, old_status, new_status, remarks, updated_by, user_id, updated_at)
	VALUES (:id, :transfer_id, :old_status, :new_status, :remarks, :updated_by, :user_id, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append status log: %w", err)
	}
	return nil
}

// CountByStatus aggregates visible records per status for the dashboard.
func (r *TransferRepository) CountByStatus(ctx context.Context, scope models.VisibilityScope) (map[models.TransferStatus]int, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT status, COUNT(*) AS total FROM transfers")

	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if scope.BranchFrom != "" {
		args = append(args, scope.BranchFrom)
		conditions = append(conditions, fmt.Sprintf("branch_from = $%d", len(args)))
	}
	if scope.BranchTo != "" {
		args = append(args, scope.BranchTo)
		conditions = append(conditions, fmt.Sprintf("branch_to = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" GROUP BY status")

	rows := []struct {
		Status models.TransferStatus `db:"status"`
		Total  int                   `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("count transfers by status: %w", err)
	}

	counts := make(map[models.TransferStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
