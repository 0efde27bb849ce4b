package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servisfon/transfer-api/internal/models"
)

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReportRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("INSERT INTO report_jobs").WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV, ScopeFrom: "HQ"},
		CreatedBy: "u1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByIDDecodesParams(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	params, err := json.Marshal(models.ReportJobParams{
		Format:    models.ReportFormatPDF,
		ScopeFrom: "Alam Sutera",
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM report_jobs WHERE id = \$1 LIMIT 1`).
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "params", "status", "progress", "result_url", "created_by",
			"created_at", "finished_at", "error_message",
		}).AddRow("job-1", params, "PROCESSING", 40, nil, "u1", now, nil, nil))

	job, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, job.Status)
	assert.Equal(t, models.ReportFormatPDF, job.Params.Format)
	assert.Equal(t, "Alam Sutera", job.Params.ScopeFrom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateNothingToDo(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	// No fields set means no statement is issued.
	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateReportJobParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateMissingRow(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("UPDATE report_jobs SET").WillReturnResult(sqlmock.NewResult(0, 0))

	status := models.ReportStatusFailed
	err := repo.Update(context.Background(), "missing", UpdateReportJobParams{Status: &status})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	params, err := json.Marshal(models.ReportJobParams{Format: models.ReportFormatCSV})
	require.NoError(t, err)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM report_jobs WHERE status = \$1 ORDER BY created_at ASC LIMIT 50`).
		WithArgs("QUEUED").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "params", "status", "progress", "result_url", "created_by",
			"created_at", "finished_at", "error_message",
		}).AddRow("job-1", params, "QUEUED", 0, nil, "u1", now, nil, nil).
			AddRow("job-2", params, "QUEUED", 0, nil, "u2", now.Add(time.Minute), nil, nil))

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
