package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "State Management", Criterion{ID: "state_management"}.DisplayName())
	assert.Equal(t, "Security", Criterion{ID: "security"}.DisplayName())
	// An explicit name wins over the derived one.
	assert.Equal(t, "Custom", Criterion{ID: "state_management", Name: "Custom"}.DisplayName())
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 1, ClampScore(-2))
	assert.Equal(t, 1, ClampScore(0))
	assert.Equal(t, 1, ClampScore(1))
	assert.Equal(t, 3, ClampScore(3))
	assert.Equal(t, 5, ClampScore(5))
	assert.Equal(t, 5, ClampScore(9))
}

func TestRecomputeOverall(t *testing.T) {
	rep := &AuditReport{Criteria: []CriterionResult{
		{FinalScore: 5}, {FinalScore: 3}, {FinalScore: 1},
	}}
	rep.RecomputeOverall()
	assert.InDelta(t, 3.0, rep.OverallScore, 0.001)

	empty := &AuditReport{}
	empty.RecomputeOverall()
	assert.Zero(t, empty.OverallScore)
}

func TestSummarize(t *testing.T) {
	rep := &AuditReport{Subject: "demo", OverallScore: 3.5}
	rep.Summarize()
	assert.Contains(t, rep.ExecutiveSummary, "demo")
	assert.Contains(t, rep.ExecutiveSummary, "3.5/5.0")
	assert.NotEmpty(t, rep.RemediationPlan)
}

func TestStableKey(t *testing.T) {
	r := EvidenceRecord{ID: "ev_volatile", ArtifactPath: "src/auth.go", ClaimReference: "auth implemented"}
	assert.Equal(t, "src/auth.go:auth implemented", r.StableKey())

	// Two records with different volatile IDs share a stable identity.
	other := EvidenceRecord{ID: "ev_other", ArtifactPath: "src/auth.go", ClaimReference: "auth implemented"}
	assert.Equal(t, r.StableKey(), other.StableKey())
}

func TestSourceValid(t *testing.T) {
	assert.True(t, SourceRepository.Valid())
	assert.True(t, SourceDocument.Valid())
	assert.True(t, SourceVisual.Valid())
	assert.False(t, Source("oracle").Valid())
}
