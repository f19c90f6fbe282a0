// Package store persists audit runs so the meta consolidator can operate
// across CLI invocations. The synthesis core itself never touches it.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tribunal/internal/model"
)

// ErrRunNotFound indicates a lookup for a run ID that was never saved.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Subject string `json:"subject,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for audit runs and reports.
type Store interface {
	SaveRun(ctx context.Context, run model.AuditRun) error
	GetRun(ctx context.Context, runID string) (*model.AuditRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.AuditRun, error)

	SaveReport(ctx context.Context, runID string, report *model.AuditReport) error
	GetReport(ctx context.Context, runID string) (*model.AuditReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func marshalReport(report *model.AuditReport) (string, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalReport(data string) (*model.AuditReport, error) {
	var report model.AuditReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal report")
	}
	return &report, nil
}
