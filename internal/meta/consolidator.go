// Package meta consolidates several independent audit runs into one
// stability-weighted consensus verdict.
package meta

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tribunal/internal/config"
	"github.com/sells-group/tribunal/internal/evidence"
	"github.com/sells-group/tribunal/internal/model"
)

// Consolidator computes evidence stability, cross-run disagreement, and
// stability-weighted consensus scores over a set of audit runs.
type Consolidator struct {
	policy      config.PolicyConfig
	concurrency int
}

// New creates a Consolidator with the given policy constants.
func New(policy config.PolicyConfig) *Consolidator {
	return &Consolidator{policy: policy, concurrency: 4}
}

// Consolidate merges the given runs into a MetaState. All aggregation is
// keyed on stable evidence identity, not per-run record IDs, and every
// output collection is assembled in sorted order so repeated invocations
// are byte-identical.
func (c *Consolidator) Consolidate(runs []model.AuditRun) (*model.MetaState, error) {
	if len(runs) == 0 {
		return nil, eris.New("meta: no runs to consolidate")
	}

	state := &model.MetaState{
		Subject:      runs[0].Subject,
		Runs:         len(runs),
		MetaRegistry: make(map[string]model.EvidenceRecord),
		MetaScores:   make(map[string]float64),
	}

	c.consolidateEvidence(runs, state)
	c.detectCrossRunDisagreement(runs, state)
	if err := c.normalizeConsensus(runs, state); err != nil {
		return nil, err
	}
	// Barrier: overrides need every stability score finalized.
	c.applyMetaOverrides(state)

	state.ReasoningTrace = append(state.ReasoningTrace,
		fmt.Sprintf("Meta-audit complete across %d runs.", len(runs)))

	zap.L().Info("meta: consolidation complete",
		zap.String("subject", state.Subject),
		zap.Int("runs", len(runs)),
		zap.Int("criteria", len(state.MetaScores)),
	)
	return state, nil
}

// consolidateEvidence groups records across runs by stable identity and
// assigns each merged record stability = occurrences / total runs.
func (c *Consolidator) consolidateEvidence(runs []model.AuditRun, state *model.MetaState) {
	occurrences := make(map[string]int)
	merged := make(map[string]model.EvidenceRecord)

	for _, run := range runs {
		seen := make(map[string]bool)
		for _, record := range evidence.FromSnapshot(run.Evidence).All() {
			key := record.StableKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			occurrences[key]++
			if _, ok := merged[key]; !ok {
				merged[key] = record
			}
		}
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		record := merged[key]
		record.StabilityScore = float64(occurrences[key]) / float64(len(runs))
		state.MetaRegistry[key] = record

		if record.StabilityScore < c.policy.TransientStability {
			state.ReasoningTrace = append(state.ReasoningTrace,
				fmt.Sprintf("Flagged transient evidence: %s (stability %.2f)", record.ClaimReference, record.StabilityScore))
			zap.L().Warn("meta: transient evidence",
				zap.String("claim", record.ClaimReference),
				zap.Float64("stability", record.StabilityScore),
			)
		}
	}
}

// detectCrossRunDisagreement flags any (persona, criterion) pair whose score
// spread across runs exceeds the variance threshold. Such a spread means the
// upstream judging process is not reproducible for that criterion.
func (c *Consolidator) detectCrossRunDisagreement(runs []model.AuditRun, state *model.MetaState) {
	type key struct {
		persona   model.Persona
		criterion string
	}
	scores := make(map[key][]int)
	for _, run := range runs {
		for _, op := range run.Opinions {
			k := key{persona: op.Persona, criterion: op.CriterionID}
			scores[k] = append(scores[k], op.Score)
		}
	}

	keys := make([]key, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].persona != keys[j].persona {
			return keys[i].persona < keys[j].persona
		}
		return keys[i].criterion < keys[j].criterion
	})

	for _, k := range keys {
		vals := scores[k]
		minScore, maxScore := vals[0], vals[0]
		for _, v := range vals {
			if v < minScore {
				minScore = v
			}
			if v > maxScore {
				maxScore = v
			}
		}
		delta := float64(maxScore - minScore)
		if delta > c.policy.CrossRunVariance {
			msg := fmt.Sprintf("CRITICAL: %s score jump (Δ%g) for %s across runs.", k.persona, delta, k.criterion)
			state.ReasoningTrace = append(state.ReasoningTrace, msg)
			zap.L().Error("meta: cross-run disagreement",
				zap.String("persona", string(k.persona)),
				zap.String("criterion", k.criterion),
				zap.Float64("delta", delta),
			)
		}
	}
}

// normalizeConsensus averages each run's mean persona score per criterion
// across runs, then multiplies by the mean stability of the evidence linked
// to that criterion. Criteria whose supporting facts are not reproducible
// are penalized proportionally.
func (c *Consolidator) normalizeConsensus(runs []model.AuditRun, state *model.MetaState) error {
	perCriterion := make(map[string][]float64)
	for _, run := range runs {
		sums := make(map[string]int)
		counts := make(map[string]int)
		for _, op := range run.Opinions {
			sums[op.CriterionID] += op.Score
			counts[op.CriterionID]++
		}
		for criterionID, sum := range sums {
			perCriterion[criterionID] = append(perCriterion[criterionID], float64(sum)/float64(counts[criterionID]))
		}
	}

	criteria := make([]string, 0, len(perCriterion))
	for criterionID := range perCriterion {
		criteria = append(criteria, criterionID)
	}
	sort.Strings(criteria)

	// Per-criterion aggregation is independent; fan out, then assemble in
	// sorted order.
	scores := make([]float64, len(criteria))
	stabilities := make([]float64, len(criteria))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, criterionID := range criteria {
		g.Go(func() error {
			runMeans := perCriterion[criterionID]
			raw := 0.0
			for _, m := range runMeans {
				raw += m
			}
			raw /= float64(len(runMeans))

			stability := c.linkedStability(state, criterionID)
			scores[i] = round2(raw * stability)
			stabilities[i] = stability
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, criterionID := range criteria {
		state.MetaScores[criterionID] = scores[i]
		state.ReasoningTrace = append(state.ReasoningTrace,
			fmt.Sprintf("Meta-score for %s: %.2f (stability %.2f)", criterionID, scores[i], stabilities[i]))
	}
	return nil
}

// applyMetaOverrides adjusts consensus scores by evidence stability band:
// unstable evidence drags the score down, perfectly stable evidence promotes
// an already-strong score to the maximum.
func (c *Consolidator) applyMetaOverrides(state *model.MetaState) {
	criteria := make([]string, 0, len(state.MetaScores))
	for criterionID := range state.MetaScores {
		criteria = append(criteria, criterionID)
	}
	sort.Strings(criteria)

	for _, criterionID := range criteria {
		score := state.MetaScores[criterionID]
		stability := c.linkedStability(state, criterionID)

		switch {
		case stability < c.policy.MetaLowStability:
			adjusted := math.Max(1.0, score-c.policy.MetaLowPenalty)
			state.MetaScores[criterionID] = round2(adjusted)
			state.ReasoningTrace = append(state.ReasoningTrace,
				fmt.Sprintf("Meta-override: %s reduced %.2f -> %.2f (stability %.2f below %.2f)",
					criterionID, score, adjusted, stability, c.policy.MetaLowStability))
		case stability < c.policy.MetaMidStability:
			adjusted := math.Max(1.0, score-c.policy.MetaMidPenalty)
			state.MetaScores[criterionID] = round2(adjusted)
			state.ReasoningTrace = append(state.ReasoningTrace,
				fmt.Sprintf("Meta-override: %s reduced %.2f -> %.2f (stability %.2f below %.2f)",
					criterionID, score, adjusted, stability, c.policy.MetaMidStability))
		case stability == 1.0 && score >= c.policy.MetaBoostScore:
			state.MetaScores[criterionID] = 5.0
			state.ReasoningTrace = append(state.ReasoningTrace,
				fmt.Sprintf("Meta-override: %s boosted %.2f -> 5.00 (perfectly stable evidence)", criterionID, score))
		}
	}
}

// linkedStability returns the mean stability of all registry records whose
// claim reference matches the criterion, defaulting to 1.0 when nothing is
// linked (the per-run fact override already punishes absent evidence).
func (c *Consolidator) linkedStability(state *model.MetaState, criterionID string) float64 {
	keys := make([]string, 0, len(state.MetaRegistry))
	for key := range state.MetaRegistry {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	sum, n := 0.0, 0
	for _, key := range keys {
		record := state.MetaRegistry[key]
		if evidence.Matches(criterionID, record.ClaimReference) {
			sum += record.StabilityScore
			n++
		}
	}
	if n == 0 {
		return 1.0
	}
	return sum / float64(n)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
