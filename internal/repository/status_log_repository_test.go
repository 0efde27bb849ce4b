package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servisfon/transfer-api/internal/models"
)

func TestStatusLogRepositoryListByTransfer(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewStatusLogRepository(sqlx.NewDb(db, "sqlmock"))

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "transfer_id", "old_status", "new_status", "remarks", "updated_by", "user_id", "updated_at"}).
		AddRow("log-2", "tr-1", "PENDING", "RECEIVED", nil, "Budi", "u-admin", now).
		AddRow("log-1", "tr-1", nil, "PENDING", "Transfer created", "Siti", "u1", now.Add(-time.Hour))
	mock.ExpectQuery("SELECT (.+) FROM status_logs WHERE transfer_id = \\$1 ORDER BY updated_at DESC").
		WithArgs("tr-1").
		WillReturnRows(rows)

	entries, err := repo.ListByTransfer(context.Background(), "tr-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NotNil(t, entries[0].OldStatus)
	assert.Equal(t, models.StatusPending, *entries[0].OldStatus)
	assert.Nil(t, entries[1].OldStatus)
	assert.Equal(t, models.StatusPending, entries[1].NewStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}
