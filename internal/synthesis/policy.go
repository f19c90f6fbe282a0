// Package synthesis reconciles three persona opinions and the evidence store
// into one bounded, explained verdict per rubric criterion.
package synthesis

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tribunal/internal/config"
)

// DefaultPolicy returns a config.PolicyConfig with the canonical rule
// constants.
func DefaultPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		VarianceThreshold:       1,
		SecurityKeywords:        []string{"security", "safety", "safe"},
		ArchitectureKeywords:    []string{"architecture", "orchestration"},
		FoundationKeywords:      []string{"state", "foundation"},
		TestingKeywords:         []string{"test"},
		ContradictionConfidence: 0.6,
		ContradictionPenalty:    2,
		StrongEvidence:          0.8,

		Override:              config.OverrideBinary,
		GraduatedHeavyBand:    0.3,
		GraduatedModerateBand: 0.7,

		TransientStability: 0.6,
		CrossRunVariance:   1.5,
		MetaLowStability:   0.5,
		MetaLowPenalty:     0.5,
		MetaMidStability:   0.7,
		MetaMidPenalty:     0.2,
		MetaBoostScore:     4.0,
	}
}

// ValidatePolicy checks that a PolicyConfig is internally consistent.
func ValidatePolicy(p config.PolicyConfig) error {
	var errs []string
	if p.VarianceThreshold < 0 {
		errs = append(errs, "variance_threshold must be >= 0")
	}
	if p.ContradictionConfidence < 0 || p.ContradictionConfidence > 1 {
		errs = append(errs, "contradiction_confidence must be in [0,1]")
	}
	if p.ContradictionPenalty < 0 {
		errs = append(errs, "contradiction_penalty must be >= 0")
	}
	if p.Override != config.OverrideBinary && p.Override != config.OverrideGraduated {
		errs = append(errs, "override must be binary or graduated")
	}
	if p.GraduatedHeavyBand > p.GraduatedModerateBand {
		errs = append(errs, "graduated_heavy_band must not exceed graduated_moderate_band")
	}
	if p.MetaLowStability > p.MetaMidStability {
		errs = append(errs, "meta_low_stability must not exceed meta_mid_stability")
	}
	if len(errs) > 0 {
		return eris.Errorf("synthesis: invalid policy: %s", strings.Join(errs, "; "))
	}
	return nil
}

// containsAny reports whether the criterion identifier contains any of the
// given keywords, case-insensitively.
func containsAny(criterionID string, keywords []string) bool {
	id := strings.ToLower(criterionID)
	for _, kw := range keywords {
		if strings.Contains(id, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
