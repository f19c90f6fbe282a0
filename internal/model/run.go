package model

import "time"

// AuditRun captures everything needed to replay one run inside the meta
// consolidator: the opinion set, a snapshot of the evidence store, and the
// run's outcome. Immutable once created.
type AuditRun struct {
	RunID          string                    `json:"run_id"`
	Subject        string                    `json:"subject"`
	OverallScore   float64                   `json:"overall_score"`
	Opinions       []PersonaOpinion          `json:"opinions"`
	Evidence       map[string]EvidenceRecord `json:"evidence"`
	Contradictions []string                  `json:"contradictions,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
}

// MetaState is the consolidated view over several independent runs.
// MetaRegistry is keyed by EvidenceRecord.StableKey, not the volatile
// per-run record ID.
type MetaState struct {
	Subject        string                    `json:"subject"`
	Runs           int                       `json:"runs"`
	MetaRegistry   map[string]EvidenceRecord `json:"meta_registry"`
	MetaScores     map[string]float64        `json:"meta_scores"`
	ReasoningTrace []string                  `json:"reasoning_trace"`
}
