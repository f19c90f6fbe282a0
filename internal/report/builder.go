// Package report assembles per-criterion verdicts into a full audit report
// and applies the cross-criterion coherence pass.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tribunal/internal/config"
	"github.com/sells-group/tribunal/internal/evidence"
	"github.com/sells-group/tribunal/internal/model"
	"github.com/sells-group/tribunal/internal/synthesis"
)

const contradictionPrefix = "RESOLVE CONTRADICTION: "

// Builder runs the synthesizer over every rubric criterion and assembles the
// overall report.
type Builder struct {
	synth       *synthesis.Synthesizer
	policy      config.PolicyConfig
	concurrency int
}

// NewBuilder creates a Builder with the given policy.
func NewBuilder(policy config.PolicyConfig) *Builder {
	return &Builder{
		synth:       synthesis.New(policy),
		policy:      policy,
		concurrency: 4,
	}
}

// Build synthesizes every criterion, applies the coherence pass, and returns
// the assembled report. Criterion order is fixed by lexicographic ID sort so
// output never depends on map iteration. Per-criterion synthesis is pure and
// runs concurrently; the coherence pass is the synchronization barrier.
func (b *Builder) Build(ctx context.Context, subject string, rubric model.Rubric, opinions []model.PersonaOpinion, store *evidence.Store) (*model.AuditReport, error) {
	criteria := make([]model.Criterion, len(rubric.Criteria))
	copy(criteria, rubric.Criteria)
	sort.Slice(criteria, func(i, j int) bool { return criteria[i].ID < criteria[j].ID })

	byCriterion := make(map[string][]model.PersonaOpinion)
	for _, op := range opinions {
		byCriterion[op.CriterionID] = append(byCriterion[op.CriterionID], op)
	}

	results := make([]model.CriterionResult, len(criteria))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, criterion := range criteria {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			cr, err := b.synth.Synthesize(criterion.ID, criterion.DisplayName(), byCriterion[criterion.ID], store)
			if err != nil {
				// A single unresolvable criterion never aborts the report.
				zap.L().Error("report: criterion could not be resolved",
					zap.String("criterion", criterion.ID),
					zap.Error(err),
				)
				cr = unresolvedResult(criterion, err)
			}
			results[i] = cr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &model.AuditReport{
		Subject:         subject,
		Criteria:        results,
		EvidenceSummary: store.CountBySource(),
	}
	for _, cr := range rep.Criteria {
		if cr.ContradictionFlag {
			rep.DetectedContradictions = append(rep.DetectedContradictions,
				strings.TrimPrefix(cr.Remediation, contradictionPrefix))
		}
	}

	b.applyCoherence(rep)

	rep.RecomputeOverall()
	rep.Summarize()

	zap.L().Info("report: audit complete",
		zap.String("subject", subject),
		zap.Float64("overall_score", rep.OverallScore),
		zap.Int("criteria", len(rep.Criteria)),
		zap.Int("contradictions", len(rep.DetectedContradictions)),
	)
	return rep, nil
}

// applyCoherence reasons across the full result set. It requires every
// criterion result to be present, which is why synthesis must complete first.
func (b *Builder) applyCoherence(rep *model.AuditReport) {
	failingFoundation := false
	absentTesting := false
	for _, cr := range rep.Criteria {
		if cr.FinalScore <= 2 && containsAny(cr.DimensionID, b.policy.FoundationKeywords) {
			failingFoundation = true
		}
		if cr.FinalScore == 1 && containsAny(cr.DimensionID, b.policy.TestingKeywords) {
			absentTesting = true
		}
	}

	for i := range rep.Criteria {
		cr := &rep.Criteria[i]
		if failingFoundation && cr.FinalScore >= 4 && containsAny(cr.DimensionID, b.policy.ArchitectureKeywords) {
			adjust(cr, cr.FinalScore-1, "coherence: reduced by 1; high-level abstraction scored above a failing foundation")
			rep.DetectedContradictions = append(rep.DetectedContradictions,
				"high-level abstraction scored above a failing foundation")
		}
		if absentTesting && cr.FinalScore == 5 {
			adjust(cr, 4, "coherence: capped at 4; no criterion may score 5 with verification entirely absent")
		}
	}
}

// adjust rewrites a criterion's final score post-hoc, keeping the
// finalScore == clamp(baseScore-penaltyApplied) invariant intact.
func adjust(cr *model.CriterionResult, newFinal int, traceMsg string) {
	cr.FinalScore = model.ClampScore(newFinal)
	cr.BaseScore = cr.FinalScore + cr.PenaltyApplied
	cr.ReasoningTrace = append(cr.ReasoningTrace, traceMsg)
}

func unresolvedResult(criterion model.Criterion, err error) model.CriterionResult {
	return model.CriterionResult{
		DimensionID:      criterion.ID,
		DimensionName:    criterion.DisplayName(),
		FinalScore:       1,
		BaseScore:        1,
		AdversarialScore: 3,
		SympatheticScore: 3,
		PragmaticScore:   3,
		ReasoningTrace:   []string{fmt.Sprintf("criterion unresolved: %v", err)},
		Remediation:      fmt.Sprintf("CRITICAL: criterion %q could not be resolved.", criterion.ID),
	}
}

func containsAny(id string, keywords []string) bool {
	lower := strings.ToLower(id)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
