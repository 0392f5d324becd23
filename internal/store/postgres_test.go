package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid/c360/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetSourceSystem_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, description, owner, active, degraded`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetSourceSystem(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMapping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, source_attribute_id, target_attribute_id`).
		WithArgs("map-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "source_attribute_id", "target_attribute_id", "transformation_logic",
			"status", "confidence_score", "suggested_confidence", "created_by", "created_at", "updated_at",
		}).AddRow("map-1", "src-1", "tgt-1", "cust_email", "validated", 0.92, 0.85, "analyst", now, now))

	m, err := s.GetMapping(context.Background(), "map-1")
	require.NoError(t, err)
	assert.Equal(t, model.MappingValidated, m.Status)
	assert.InDelta(t, 0.92, m.ConfidenceScore, 1e-9)
	assert.InDelta(t, 0.85, m.SuggestedConfidence, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompareAndSetJobStatus_Lost(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status`).
		WithArgs("cancelled", "job-1", "queued").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := s.CompareAndSetJobStatus(context.Background(), "job-1", model.JobQueued, model.JobCancelled)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompareAndSetJobStatus_RunningStampsStart(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE jobs SET status = \$1, started_at = \$2`).
		WithArgs("running", pgxmock.AnyArg(), "job-1", "queued").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := s.CompareAndSetJobStatus(context.Background(), "job-1", model.JobQueued, model.JobRunning)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveQualityIssue_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE quality_issues SET resolved_at`).
		WithArgs(pgxmock.AnyArg(), "issue-x").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.ResolveQualityIssue(context.Background(), "issue-x", time.Now().UTC())
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MaterializedCounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE`).
		WithArgs("tgt-1").
		WillReturnRows(pgxmock.NewRows([]string{"count", "nulls"}).AddRow(100, 7))

	total, nulls, err := s.MaterializedCounts(context.Background(), "tgt-1")
	require.NoError(t, err)
	assert.Equal(t, 100, total)
	assert.Equal(t, 7, nulls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceSourceAttributes_Transactional(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE source_systems SET degraded = false`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "sys-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM source_attributes`).
		WithArgs("sys-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"source_attributes"}, []string{"id", "source_system_id", "name", "data_type"}).
		WillReturnResult(1)
	mock.ExpectCommit()

	err := s.ReplaceSourceAttributes(context.Background(), "sys-1", []model.SourceAttribute{
		{Name: "cust_email", DataType: model.TypeText},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceSourceAttributes_UnknownSystem(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE source_systems SET degraded = false`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.ReplaceSourceAttributes(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
