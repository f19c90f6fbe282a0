package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tribunal/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS audit_runs (
	id             TEXT PRIMARY KEY,
	subject        TEXT NOT NULL,
	overall_score  REAL NOT NULL,
	opinions       TEXT NOT NULL,
	evidence       TEXT NOT NULL,
	contradictions TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_reports (
	run_id     TEXT PRIMARY KEY REFERENCES audit_runs(id),
	report     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_audit_runs_subject ON audit_runs(subject);
CREATE INDEX IF NOT EXISTS idx_audit_runs_created_at ON audit_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.AuditRun) error {
	opinions, evidenceJSON, contradictions, err := marshalRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_runs (id, subject, overall_score, opinions, evidence, contradictions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Subject, run.OverallScore, opinions, evidenceJSON, contradictions, createdAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.RunID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.AuditRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject, overall_score, opinions, evidence, contradictions, created_at
		 FROM audit_runs WHERE id = ?`,
		runID,
	)

	run, err := scanRun(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrRunNotFound, "sqlite: run %s", runID)
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AuditRun, error) {
	query := `SELECT id, subject, overall_score, opinions, evidence, contradictions, created_at
		 FROM audit_runs`
	var args []any
	if filter.Subject != "" {
		query += ` WHERE subject = ?`
		args = append(args, filter.Subject)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.AuditRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return runs, nil
}

func (s *SQLiteStore) SaveReport(ctx context.Context, runID string, report *model.AuditReport) error {
	data, err := marshalReport(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_reports (run_id, report, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET report = excluded.report`,
		runID, data, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save report %s", runID)
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, runID string) (*model.AuditReport, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM audit_reports WHERE run_id = ?`, runID,
	).Scan(&data)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrRunNotFound, "sqlite: report %s", runID)
		}
		return nil, eris.Wrapf(err, "sqlite: get report %s", runID)
	}
	return unmarshalReport(data)
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.AuditRun, error) {
	var run model.AuditRun
	var opinions, evidenceJSON, contradictions string
	err := row.Scan(&run.RunID, &run.Subject, &run.OverallScore,
		&opinions, &evidenceJSON, &contradictions, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalRun(&run, opinions, evidenceJSON, contradictions); err != nil {
		return nil, err
	}
	return &run, nil
}

func marshalRun(run model.AuditRun) (opinions, evidenceJSON, contradictions string, err error) {
	ops, err := json.Marshal(run.Opinions)
	if err != nil {
		return "", "", "", err
	}
	ev, err := json.Marshal(run.Evidence)
	if err != nil {
		return "", "", "", err
	}
	contra, err := json.Marshal(run.Contradictions)
	if err != nil {
		return "", "", "", err
	}
	return string(ops), string(ev), string(contra), nil
}

func unmarshalRun(run *model.AuditRun, opinions, evidenceJSON, contradictions string) error {
	if err := json.Unmarshal([]byte(opinions), &run.Opinions); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(evidenceJSON), &run.Evidence); err != nil {
		return err
	}
	return json.Unmarshal([]byte(contradictions), &run.Contradictions)
}
