package store

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tribunal/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy
// it, which keeps the Postgres store testable without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool (or mock) in a PostgresStore.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS audit_runs (
	id             TEXT PRIMARY KEY,
	subject        TEXT NOT NULL,
	overall_score  DOUBLE PRECISION NOT NULL,
	opinions       JSONB NOT NULL,
	evidence       JSONB NOT NULL,
	contradictions JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_reports (
	run_id     TEXT PRIMARY KEY REFERENCES audit_runs(id),
	report     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_runs_subject ON audit_runs(subject);
CREATE INDEX IF NOT EXISTS idx_audit_runs_created_at ON audit_runs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run model.AuditRun) error {
	opinions, evidenceJSON, contradictions, err := marshalRun(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_runs (id, subject, overall_score, opinions, evidence, contradictions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.RunID, run.Subject, run.OverallScore, opinions, evidenceJSON, contradictions, createdAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", run.RunID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.AuditRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, subject, overall_score, opinions, evidence, contradictions, created_at
		 FROM audit_runs WHERE id = $1`,
		runID,
	)

	run, err := scanRun(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrRunNotFound, "postgres: run %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AuditRun, error) {
	query := `SELECT id, subject, overall_score, opinions, evidence, contradictions, created_at
		 FROM audit_runs`
	var args []any
	argNum := 1
	if filter.Subject != "" {
		query += ` WHERE subject = $1`
		args = append(args, filter.Subject)
		argNum++
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(argNum)
		args = append(args, filter.Limit)
		argNum++
	}
	if filter.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(argNum)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.AuditRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate runs")
	}
	return runs, nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, runID string, report *model.AuditReport) error {
	data, err := marshalReport(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_reports (run_id, report, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (run_id) DO UPDATE SET report = EXCLUDED.report`,
		runID, data, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save report %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, runID string) (*model.AuditReport, error) {
	var data string
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM audit_reports WHERE run_id = $1`, runID,
	).Scan(&data)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrRunNotFound, "postgres: report %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get report %s", runID)
	}
	return unmarshalReport(data)
}
