package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tribunal/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgres_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO audit_runs`).
		WithArgs("run-1", "demo", 3.5,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveRun(context.Background(), testRun("run-1", "demo"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := testRun("run-1", "demo")
	opinions, evidenceJSON, contradictions, err := marshalRun(run)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM audit_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "subject", "overall_score", "opinions", "evidence", "contradictions", "created_at",
		}).AddRow("run-1", "demo", 3.5, opinions, evidenceJSON, contradictions, run.CreatedAt))

	got, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Subject)
	assert.Equal(t, run.Opinions, got.Opinions)
	assert.Equal(t, run.Evidence, got.Evidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM audit_runs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRunNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := testRun("run-1", "demo")
	opinions, evidenceJSON, contradictions, err := marshalRun(run)
	require.NoError(t, err)

	mock.ExpectQuery(`FROM audit_runs WHERE subject = \$1 ORDER BY created_at ASC, id ASC`).
		WithArgs("demo").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "subject", "overall_score", "opinions", "evidence", "contradictions", "created_at",
		}).AddRow("run-1", "demo", 3.5, opinions, evidenceJSON, contradictions, run.CreatedAt))

	runs, err := s.ListRuns(context.Background(), RunFilter{Subject: "demo"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveReport_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(run_id\) DO UPDATE`).
		WithArgs("run-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveReport(context.Background(), "run-1", &model.AuditReport{Subject: "demo"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetReport_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT report FROM audit_reports WHERE run_id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetReport(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRunNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS audit_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
