package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Criterion is one scored axis of the rubric.
type Criterion struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// DisplayName returns the criterion name, deriving one from the ID when the
// rubric does not supply it ("state_management" becomes "State Management").
func (c Criterion) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(c.ID, "_", " "))
}

// Rubric is the ordered list of criteria an audit grades against.
type Rubric struct {
	Criteria []Criterion `json:"criteria" yaml:"criteria"`
}

// CriterionResult is the synthesized verdict for a single criterion.
// Invariant: FinalScore == clamp(BaseScore-PenaltyApplied, 1, 5).
type CriterionResult struct {
	DimensionID       string   `json:"dimension_id"`
	DimensionName     string   `json:"dimension_name"`
	FinalScore        int      `json:"final_score"`
	BaseScore         int      `json:"base_score"`
	PenaltyApplied    int      `json:"penalty_applied"`
	AdversarialScore  int      `json:"adversarial_score"`
	SympatheticScore  int      `json:"sympathetic_score"`
	PragmaticScore    int      `json:"pragmatic_score"`
	DissentSummary    string   `json:"dissent_summary,omitempty"`
	ContradictionFlag bool     `json:"contradiction_flag"`
	ReasoningTrace    []string `json:"reasoning_trace"`
	Remediation       string   `json:"remediation"`
}

// ClampScore bounds a score to the 1..5 rubric scale.
func ClampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 5 {
		return 5
	}
	return score
}
