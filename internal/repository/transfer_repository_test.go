package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servisfon/transfer-api/internal/models"
)

func newTransferRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sampleTransfer() *models.TransferRecord {
	return &models.TransferRecord{
		BranchFrom:         "Alam Sutera",
		BranchTo:           "HQ",
		CustomerName:       "Ibu Rina",
		PhoneModel:         "iPhone 13",
		IMEI:               "356938035643809",
		ProblemDescription: "Cracked screen",
		StaffReceiveName:   "Siti",
		StaffSendName:      "Siti",
		Status:             models.StatusPending,
		UserID:             "u1",
		UpdatedBy:          "Siti",
	}
}

func TestTransferRepositoryCreateCommitsBothRows(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transfers").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO status_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	transfer := sampleTransfer()
	entry := &models.StatusLogEntry{NewStatus: models.StatusPending, UpdatedBy: "Siti", UserID: "u1"}
	require.NoError(t, repo.Create(context.Background(), transfer, entry))

	assert.NotEmpty(t, transfer.ID)
	assert.Equal(t, transfer.ID, entry.TransferID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryCreateRollsBackOnLedgerFailure(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transfers").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO status_logs").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), sampleTransfer(), &models.StatusLogEntry{NewStatus: models.StatusPending})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "branch_from", "branch_to", "customer_name", "phone_model", "imei", "passcode",
		"problem_description", "staff_receive_name", "date_from_branch", "staff_send_name", "date_sent_to_branch",
		"technician_receive_name", "date_received_by_tech", "date_repair_done", "repair_cost",
		"status", "remarks", "user_id", "updated_by", "created_at", "updated_at",
	}).AddRow(
		"tr-1", "Alam Sutera", "HQ", "Ibu Rina", "iPhone 13", "356938035643809", nil,
		"Cracked screen", "Siti", now, "Siti", now,
		nil, nil, nil, nil,
		"PENDING", nil, "u1", "Siti", now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM transfers WHERE id = \\$1").WithArgs("tr-1").WillReturnRows(rows)

	transfer, err := repo.GetByID(context.Background(), "tr-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, transfer.Status)
	assert.Equal(t, "Alam Sutera", transfer.BranchFrom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryListScopesByBranch(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	// No page size requested: the whole scoped set comes back, no LIMIT.
	mock.ExpectQuery("SELECT (.+) FROM transfers WHERE branch_from = \\$1 ORDER BY created_at DESC$").
		WithArgs("Alam Sutera").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.List(context.Background(), models.TransferFilter{
		Scope: models.VisibilityScope{BranchFrom: "Alam Sutera"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryListAppliesRequestedPage(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM transfers WHERE branch_from = \\$1 ORDER BY created_at DESC LIMIT 20 OFFSET 40$").
		WithArgs("Alam Sutera").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.List(context.Background(), models.TransferFilter{
		Scope:  models.VisibilityScope{BranchFrom: "Alam Sutera"},
		Limit:  20,
		Offset: 40,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryListCombinesFilters(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM transfers WHERE branch_to = \\$1 AND \\(LOWER\\(customer_name\\) LIKE \\$2 (.+) AND status = \\$3").
		WithArgs("HQ", "%rina%", models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.List(context.Background(), models.TransferFilter{
		Scope:  models.VisibilityScope{BranchTo: "HQ"},
		Search: "Rina",
		Status: models.StatusPending,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transfers SET status = (.+) WHERE id = ").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO status_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	oldStatus := models.StatusPending
	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:        "tr-1",
		Status:    models.StatusReceived,
		UpdatedBy: "Budi",
		UpdatedAt: time.Now().UTC(),
	}, &models.StatusLogEntry{
		OldStatus: &oldStatus,
		NewStatus: models.StatusReceived,
		UpdatedBy: "Budi",
		UserID:    "u-admin",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryUpdateStatusMissingRow(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transfers SET status = ").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{ID: "ghost", Status: models.StatusReceived}, &models.StatusLogEntry{NewStatus: models.StatusReceived})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newTransferRepoMock(t)
	defer cleanup()
	repo := NewTransferRepository(db)

	rows := sqlmock.NewRows([]string{"status", "total"}).
		AddRow("PENDING", 3).
		AddRow("DONE", 1)
	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) AS total FROM transfers WHERE branch_to = \\$1 GROUP BY status").
		WithArgs("HQ").
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background(), models.VisibilityScope{BranchTo: "HQ"})
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.StatusPending])
	assert.Equal(t, 1, counts[models.StatusDone])
	assert.NoError(t, mock.ExpectationsWereMet())
}
