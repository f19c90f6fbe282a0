package synthesis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal/internal/config"
	"github.com/sells-group/tribunal/internal/evidence"
	"github.com/sells-group/tribunal/internal/model"
)

// neutralScore is substituted for any persona that produced no opinion.
const neutralScore = 3

// Synthesizer runs the ordered override pipeline for a single criterion.
// It is stateless apart from its policy and safe for concurrent use.
type Synthesizer struct {
	policy config.PolicyConfig
}

// New creates a Synthesizer with the given policy constants.
func New(policy config.PolicyConfig) *Synthesizer {
	return &Synthesizer{policy: policy}
}

// state carries the pipeline's working values between stages. The trace is
// threaded through explicitly so each invocation is a pure function of its
// inputs.
type state struct {
	scores   map[model.Persona]int
	args     map[model.Persona]string
	excluded map[model.Persona]bool
	trace    []string

	score     int
	locked    bool
	capAt     int // 0 means no cap; set by the graduated override variant
	dissent   string
	remediate string

	factCount      int
	strongEvidence bool
}

// remaining returns the non-excluded personas in canonical order.
func (s *state) remaining() []model.Persona {
	var out []model.Persona
	for _, p := range model.Personas() {
		if !s.excluded[p] {
			out = append(out, p)
		}
	}
	return out
}

// Synthesize runs the override pipeline for one criterion and returns its
// bounded, explained result. It never fails on sparse or malformed opinion
// input; the only error is an empty criterion identifier.
func (s *Synthesizer) Synthesize(criterionID, criterionName string, opinions []model.PersonaOpinion, store *evidence.Store) (model.CriterionResult, error) {
	if criterionID == "" {
		return model.CriterionResult{}, eris.New("synthesis: criterion id is empty")
	}
	if criterionName == "" {
		criterionName = model.Criterion{ID: criterionID}.DisplayName()
	}

	st := &state{
		scores:    map[model.Persona]int{},
		args:      map[model.Persona]string{},
		excluded:  map[model.Persona]bool{},
		remediate: "Continue tracking.",
	}
	for _, p := range model.Personas() {
		st.scores[p] = neutralScore
	}
	cited := map[model.Persona][]string{}
	seen := map[model.Persona]bool{}
	for _, op := range opinions {
		if !op.Persona.Valid() || op.CriterionID != criterionID {
			continue
		}
		st.scores[op.Persona] = model.ClampScore(op.Score)
		st.args[op.Persona] = op.Argument
		cited[op.Persona] = op.CitedEvidenceIDs
		seen[op.Persona] = true
	}
	for _, p := range model.Personas() {
		if !seen[p] {
			zap.L().Warn("synthesis: persona missing, defaulting to neutral",
				zap.String("criterion", criterionID),
				zap.String("persona", string(p)),
			)
		}
	}

	s.validateCitations(criterionID, cited, store, st)
	s.factOverride(criterionID, store, st)
	if !st.locked {
		s.securityOverride(criterionID, st)
	}
	if !st.locked {
		s.arbitrateVariance(criterionID, st)
		s.weigh(criterionID, st)
	}
	contradictionFlag := s.penalizeContradiction(criterionID, store, st)

	base := st.score
	final := model.ClampScore(base)
	penalty := 0
	if contradictionFlag {
		final = model.ClampScore(base - s.policy.ContradictionPenalty)
		penalty = base - final
	}
	st.trace = append(st.trace, fmt.Sprintf("final score locked: %d/5", final))

	zap.L().Info("synthesis: criterion verdict",
		zap.String("criterion", criterionID),
		zap.Int("final_score", final),
		zap.Bool("contradiction", contradictionFlag),
	)

	return model.CriterionResult{
		DimensionID:       criterionID,
		DimensionName:     criterionName,
		FinalScore:        final,
		BaseScore:         base,
		PenaltyApplied:    penalty,
		AdversarialScore:  st.scores[model.PersonaAdversarial],
		SympatheticScore:  st.scores[model.PersonaSympathetic],
		PragmaticScore:    st.scores[model.PersonaPragmatic],
		DissentSummary:    st.dissent,
		ContradictionFlag: contradictionFlag,
		ReasoningTrace:    st.trace,
		Remediation:       st.remediate,
	}, nil
}

// validateCitations excludes any persona whose opinion cites an evidence ID
// absent from the store. An opinion built on non-existent facts cannot be
// trusted regardless of its score.
func (s *Synthesizer) validateCitations(criterionID string, cited map[model.Persona][]string, store *evidence.Store, st *state) {
	var exclusions []string
	for _, p := range model.Personas() {
		for _, id := range cited[p] {
			if !store.Exists(id) {
				st.excluded[p] = true
				exclusions = append(exclusions, fmt.Sprintf("%s excluded: invalid citation %s", p, id))
				zap.L().Warn("synthesis: persona excluded for invalid citation",
					zap.String("criterion", criterionID),
					zap.String("persona", string(p)),
					zap.String("evidence_id", id),
				)
				break
			}
		}
	}
	if len(exclusions) == 0 {
		st.trace = append(st.trace, "citation validation: all citations resolve")
		return
	}
	st.trace = append(st.trace, "citation validation: "+strings.Join(exclusions, "; "))
}

// factOverride enforces fact primacy: no persona opinion may overrule the
// absence of any corroborating fact.
func (s *Synthesizer) factOverride(criterionID string, store *evidence.Store, st *state) {
	maxConfidence := 0.0
	for _, r := range store.ForCriterion(criterionID) {
		if r.Exists {
			st.factCount++
			if r.Confidence > maxConfidence {
				maxConfidence = r.Confidence
			}
			if r.Confidence >= s.policy.StrongEvidence {
				st.strongEvidence = true
			}
		}
	}

	lock := func() {
		st.score = 1
		st.locked = true
		st.remediate = fmt.Sprintf("CRITICAL MISSING COMPONENT: no supporting artifact found for %s.", criterionID)
		st.trace = append(st.trace, fmt.Sprintf("fact override: no supporting artifact found for %s; score locked to 1", criterionID))
	}

	if s.policy.Override == config.OverrideGraduated {
		switch {
		case st.factCount == 0 || maxConfidence < s.policy.GraduatedHeavyBand:
			lock()
		case maxConfidence < s.policy.GraduatedModerateBand:
			st.capAt = 3
			st.trace = append(st.trace, fmt.Sprintf("fact override: weak corroboration (max confidence %.2f); score capped at 3", maxConfidence))
		default:
			st.trace = append(st.trace, fmt.Sprintf("fact override: %d corroborating records", st.factCount))
		}
		return
	}

	if st.factCount == 0 {
		lock()
		return
	}
	st.trace = append(st.trace, fmt.Sprintf("fact override: %d corroborating records", st.factCount))
}

// securityOverride caps safety-named criteria when the adversarial persona
// flagged a concern. A flagged security issue outranks every other argument.
func (s *Synthesizer) securityOverride(criterionID string, st *state) {
	if !containsAny(criterionID, s.policy.SecurityKeywords) {
		st.trace = append(st.trace, "security override: not applicable")
		return
	}
	adv := st.scores[model.PersonaAdversarial]
	if st.excluded[model.PersonaAdversarial] || adv > neutralScore {
		st.trace = append(st.trace, "security override: no adversarial concern")
		return
	}
	st.score = st.scores[model.PersonaPragmatic]
	if st.score > 3 {
		st.score = 3
	}
	st.locked = true
	st.remediate = "IMMEDIATE FIX REQUIRED: security/safety concern flagged by the adversarial reviewer must be resolved."
	st.trace = append(st.trace, fmt.Sprintf("security override: adversarial scored %d; score locked to %d", adv, st.score))
}

// arbitrateVariance prunes the one persona that both deviates most from the
// median and conflicts with the fact-count signal. Disagreement that the
// facts cannot settle is preserved as a dissent summary instead.
func (s *Synthesizer) arbitrateVariance(criterionID string, st *state) {
	personas := st.remaining()
	if len(personas) < 2 {
		st.trace = append(st.trace, "variance arbitration: insufficient personas for comparison")
		return
	}

	minScore, maxScore := 5, 1
	for _, p := range personas {
		if st.scores[p] < minScore {
			minScore = st.scores[p]
		}
		if st.scores[p] > maxScore {
			maxScore = st.scores[p]
		}
	}
	spread := maxScore - minScore
	if spread <= s.policy.VarianceThreshold {
		st.trace = append(st.trace, fmt.Sprintf("variance arbitration: spread %d within threshold", spread))
		return
	}

	med := median(personas, st.scores)
	outlier := personas[0]
	deviation := -1.0
	for _, p := range personas {
		d := math.Abs(float64(st.scores[p]) - med)
		if d > deviation {
			deviation = d
			outlier = p
		}
	}

	st.dissent = fmt.Sprintf(
		"Strong disagreement between personas (spread %d).\nadversarial (%d/5): %s\nsympathetic (%d/5): %s\npragmatic (%d/5): %s",
		spread,
		st.scores[model.PersonaAdversarial], argumentOrNA(st.args, model.PersonaAdversarial),
		st.scores[model.PersonaSympathetic], argumentOrNA(st.args, model.PersonaSympathetic),
		st.scores[model.PersonaPragmatic], argumentOrNA(st.args, model.PersonaPragmatic),
	)

	outlierScore := st.scores[outlier]
	highAgainstFacts := outlierScore >= 4 && st.factCount == 0
	lowAgainstFacts := outlierScore <= 2 && st.strongEvidence
	if highAgainstFacts || lowAgainstFacts {
		st.excluded[outlier] = true
		st.trace = append(st.trace, fmt.Sprintf("variance arbitration: %s pruned (score %d conflicts with evidence signal)", outlier, outlierScore))
		zap.L().Info("synthesis: outlier persona pruned",
			zap.String("criterion", criterionID),
			zap.String("persona", string(outlier)),
			zap.Int("score", outlierScore),
		)
		return
	}

	st.trace = append(st.trace, fmt.Sprintf("variance arbitration: dissent recorded (spread %d)", spread))
}

// weigh computes the running score from the personas that survived pruning.
// Architecture and orchestration criteria give the pragmatic persona double
// weight; everything else is a plain rounded mean.
func (s *Synthesizer) weigh(criterionID string, st *state) {
	personas := st.remaining()
	if len(personas) == 0 {
		st.score = 1
		st.locked = true
		st.trace = append(st.trace, "weighting: no personas remain; score locked to 1")
		return
	}

	pragmaticDouble := containsAny(criterionID, s.policy.ArchitectureKeywords) && !st.excluded[model.PersonaPragmatic]
	sum, weight := 0, 0
	for _, p := range personas {
		w := 1
		if pragmaticDouble && p == model.PersonaPragmatic {
			w = 2
		}
		sum += w * st.scores[p]
		weight += w
	}
	st.score = int(math.Round(float64(sum) / float64(weight)))
	if st.capAt > 0 && st.score > st.capAt {
		st.score = st.capAt
	}
	if pragmaticDouble {
		st.trace = append(st.trace, fmt.Sprintf("weighting: pragmatic double weight over %d personas (score %d)", len(personas), st.score))
		return
	}
	st.trace = append(st.trace, fmt.Sprintf("weighting: arithmetic mean of %d personas (score %d)", len(personas), st.score))
}

// penalizeContradiction checks document claims against repository reality.
// An independently verifiable fact source always outranks a claim made only
// in prose. The penalty itself is applied by the caller so base score and
// penalty stay separable.
func (s *Synthesizer) penalizeContradiction(criterionID string, store *evidence.Store, st *state) bool {
	threshold := s.policy.ContradictionConfidence

	docClaims := false
	repoDenies := false
	repoAddressed := false
	for _, r := range store.ForCriterion(criterionID) {
		switch r.Source {
		case model.SourceDocument:
			if r.Exists && r.Confidence > threshold {
				docClaims = true
			}
		case model.SourceRepository:
			repoAddressed = true
			if !r.Exists && r.Confidence > threshold {
				repoDenies = true
			}
		}
	}
	// Repository silence counts as denial when the repository was scanned at
	// all: collectors that produced evidence for other claims would have
	// produced it here too, had the artifact existed.
	repoSilent := !repoAddressed && store.CountBySource()[model.SourceRepository] > 0

	if !docClaims || (!repoDenies && !repoSilent) {
		st.trace = append(st.trace, "contradiction penalty: none detected")
		return false
	}

	msg := fmt.Sprintf("documentation claims structural existence for %q, but repository evidence could not corroborate it", criterionID)
	st.remediate = "RESOLVE CONTRADICTION: " + msg + "."
	st.trace = append(st.trace, fmt.Sprintf("contradiction penalty: %s; -%d applied", msg, s.policy.ContradictionPenalty))
	zap.L().Warn("synthesis: cross-source contradiction",
		zap.String("criterion", criterionID),
		zap.Bool("repo_denies", repoDenies),
		zap.Bool("repo_silent", repoSilent),
	)
	return true
}

// median returns the median of the given personas' scores. For an even count
// it is the mean of the two middle values.
func median(personas []model.Persona, scores map[model.Persona]int) float64 {
	vals := make([]int, 0, len(personas))
	for _, p := range personas {
		vals = append(vals, scores[p])
	}
	sort.Ints(vals)
	n := len(vals)
	if n%2 == 1 {
		return float64(vals[n/2])
	}
	return float64(vals[n/2-1]+vals[n/2]) / 2
}

func argumentOrNA(args map[model.Persona]string, p model.Persona) string {
	if a, ok := args[p]; ok && a != "" {
		return a
	}
	return "N/A"
}
