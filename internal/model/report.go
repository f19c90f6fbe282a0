package model

import "fmt"

// AuditReport is the assembled verdict for one full audit run.
type AuditReport struct {
	Subject                string            `json:"subject"`
	ExecutiveSummary       string            `json:"executive_summary"`
	OverallScore           float64           `json:"overall_score"`
	Criteria               []CriterionResult `json:"criteria"`
	RemediationPlan        string            `json:"remediation_plan"`
	DetectedContradictions []string          `json:"detected_contradictions,omitempty"`
	EvidenceSummary        map[Source]int    `json:"evidence_summary"`
}

// RecomputeOverall refreshes OverallScore from the current final scores.
// Must be called after any post-hoc adjustment to a criterion's FinalScore.
func (r *AuditReport) RecomputeOverall() {
	if len(r.Criteria) == 0 {
		r.OverallScore = 0
		return
	}
	sum := 0
	for _, cr := range r.Criteria {
		sum += cr.FinalScore
	}
	r.OverallScore = float64(sum) / float64(len(r.Criteria))
}

// Summarize fills the executive summary and remediation plan from the
// current overall score.
func (r *AuditReport) Summarize() {
	r.ExecutiveSummary = fmt.Sprintf(
		"Audit of %s rendered a final score of %.1f/5.0. See the criterion breakdown for exact flaws and mitigating factors.",
		r.Subject, r.OverallScore,
	)
	r.RemediationPlan = "Review criteria scored 3 or below and apply the suggested fixes."
}
