package model

// Source identifies which collector produced an evidence record.
type Source string

const (
	SourceRepository Source = "repository"
	SourceDocument   Source = "document"
	SourceVisual     Source = "visual"
)

// Valid reports whether s is one of the known evidence sources.
func (s Source) Valid() bool {
	switch s {
	case SourceRepository, SourceDocument, SourceVisual:
		return true
	}
	return false
}

// EvidenceRecord is a canonical, immutable fact asserting whether a named
// claim is substantiated by a concrete artifact. Records are produced by
// external collectors and are never mutated once registered.
type EvidenceRecord struct {
	ID             string  `json:"id"`
	Source         Source  `json:"source"`
	ArtifactPath   string  `json:"artifact_path,omitempty"`
	ClaimReference string  `json:"claim_reference,omitempty"`
	Exists         bool    `json:"exists"`
	Confidence     float64 `json:"confidence"`
	// StabilityScore is the fraction of independent runs in which an
	// equivalent record was observed. Meaningful only during meta
	// consolidation; 1.0 for a single run.
	StabilityScore float64 `json:"stability_score"`
}

// StableKey returns the cross-run identity of the record. Per-run IDs are
// volatile (collectors may mint fresh UUIDs each run), so equivalence across
// runs is keyed on artifact path plus claim reference instead.
func (r EvidenceRecord) StableKey() string {
	return r.ArtifactPath + ":" + r.ClaimReference
}
