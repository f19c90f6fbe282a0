package evidence

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal/internal/model"
)

// Store is the append-only source of truth for gathered facts. Records are
// keyed by ID and never overwritten. Reads are safe for concurrent use once
// population is complete; the synthesis phase only reads.
type Store struct {
	records map[string]model.EvidenceRecord
	order   []string // insertion order, for deterministic iteration
}

// NewStore returns an empty evidence store.
func NewStore() *Store {
	return &Store{records: make(map[string]model.EvidenceRecord)}
}

// Add registers a new immutable fact. Adding a record whose ID is already
// present fails with ErrDuplicateID.
func (s *Store) Add(record model.EvidenceRecord) error {
	if record.ID == "" {
		return eris.New("evidence: record id is empty")
	}
	if _, ok := s.records[record.ID]; ok {
		return eris.Wrapf(ErrDuplicateID, "evidence: add %s", record.ID)
	}
	if record.StabilityScore == 0 {
		record.StabilityScore = 1.0
	}
	s.records[record.ID] = record
	s.order = append(s.order, record.ID)
	return nil
}

// Get retrieves a record by ID, failing with ErrNotFound when absent.
func (s *Store) Get(id string) (model.EvidenceRecord, error) {
	record, ok := s.records[id]
	if !ok {
		return model.EvidenceRecord{}, eris.Wrapf(ErrNotFound, "evidence: get %s", id)
	}
	return record, nil
}

// Exists reports whether a record with the given ID is registered.
func (s *Store) Exists(id string) bool {
	_, ok := s.records[id]
	return ok
}

// FilterByClaim returns all records whose claim reference contains the
// keyword, case-insensitively, in insertion order.
func (s *Store) FilterByClaim(keyword string) []model.EvidenceRecord {
	needle := strings.ToLower(keyword)
	var matched []model.EvidenceRecord
	for _, id := range s.order {
		r := s.records[id]
		if r.ClaimReference != "" && strings.Contains(strings.ToLower(r.ClaimReference), needle) {
			matched = append(matched, r)
		}
	}
	return matched
}

// ForCriterion returns all records associated with a criterion under the
// Matches rule, in insertion order.
func (s *Store) ForCriterion(criterionID string) []model.EvidenceRecord {
	var matched []model.EvidenceRecord
	for _, id := range s.order {
		r := s.records[id]
		if Matches(criterionID, r.ClaimReference) {
			matched = append(matched, r)
		}
	}
	return matched
}

// All returns every record in insertion order.
func (s *Store) All() []model.EvidenceRecord {
	out := make([]model.EvidenceRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

// Snapshot returns the store contents keyed by ID, for embedding in an
// AuditRun.
func (s *Store) Snapshot() map[string]model.EvidenceRecord {
	out := make(map[string]model.EvidenceRecord, len(s.records))
	for id, r := range s.records {
		out[id] = r
	}
	return out
}

// Len returns the number of registered records.
func (s *Store) Len() int {
	return len(s.order)
}

// CountBySource tallies records per evidence source.
func (s *Store) CountBySource() map[model.Source]int {
	counts := make(map[model.Source]int)
	for _, r := range s.records {
		counts[r.Source]++
	}
	return counts
}

// FromSnapshot rebuilds a store from an AuditRun evidence snapshot. Insertion
// order is reconstructed by sorting IDs so iteration stays deterministic.
func FromSnapshot(snapshot map[string]model.EvidenceRecord) *Store {
	st := NewStore()
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		record := snapshot[id]
		record.ID = id
		if err := st.Add(record); err != nil {
			zap.L().Warn("evidence: snapshot record dropped",
				zap.String("id", id),
				zap.Error(err),
			)
		}
	}
	return st
}
