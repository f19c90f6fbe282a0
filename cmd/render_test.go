package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/tribunal/internal/model"
)

func TestRenderReport_RemediationPlanPrintedOnce(t *testing.T) {
	rep := &model.AuditReport{
		Subject:      "demo",
		OverallScore: 2.5,
		Criteria: []model.CriterionResult{
			{DimensionID: "auth", DimensionName: "Auth", FinalScore: 2, BaseScore: 4,
				PenaltyApplied: 2, AdversarialScore: 4, SympatheticScore: 4, PragmaticScore: 4,
				ContradictionFlag: true,
				ReasoningTrace:    []string{"final score locked: 2/5"},
				Remediation:       "RESOLVE CONTRADICTION: docs claim auth the repository lacks."},
		},
		DetectedContradictions: []string{"docs claim auth the repository lacks"},
	}
	rep.Summarize()

	var buf bytes.Buffer
	renderReport(&buf, rep)
	out := buf.String()

	// The plan is a single string, not a rune sequence.
	assert.Equal(t, 1, strings.Count(out, rep.RemediationPlan))
	assert.NotContains(t, out, "%!s")
	assert.Contains(t, out, "Audit report: demo")
	assert.Contains(t, out, "contradiction")
	assert.Contains(t, out, "final score locked: 2/5")
}

func TestRenderReport_EmptyPlanOmitsSection(t *testing.T) {
	var buf bytes.Buffer
	renderReport(&buf, &model.AuditReport{Subject: "demo"})
	assert.NotContains(t, buf.String(), "Remediation plan:")
}
