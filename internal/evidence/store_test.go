package evidence

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/tribunal/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func repoRecord(id, claim string) model.EvidenceRecord {
	return model.EvidenceRecord{
		ID:             id,
		Source:         model.SourceRepository,
		ArtifactPath:   "src/" + id + ".go",
		ClaimReference: claim,
		Exists:         true,
		Confidence:     0.9,
	}
}

func TestStore_AddAndGet(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(repoRecord("ev1", "logging implemented")))

	got, err := s.Get("ev1")
	require.NoError(t, err)
	assert.Equal(t, "logging implemented", got.ClaimReference)
	assert.True(t, s.Exists("ev1"))
	assert.False(t, s.Exists("ev2"))
}

func TestStore_AddEmptyID(t *testing.T) {
	assert.Error(t, NewStore().Add(model.EvidenceRecord{}))
}

func TestStore_AddDuplicate(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(repoRecord("ev1", "logging implemented")))

	err := s.Add(repoRecord("ev1", "something else"))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicateID))
}

func TestStore_GetMissing(t *testing.T) {
	_, err := NewStore().Get("nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestStore_DefaultStability(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(repoRecord("ev1", "logging implemented")))

	got, err := s.Get("ev1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.StabilityScore)
}

func TestStore_FilterByClaim(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(repoRecord("ev1", "Logging implemented")))
	require.NoError(t, s.Add(repoRecord("ev2", "config loading present")))
	require.NoError(t, s.Add(repoRecord("ev3", "tests cover the parser")))

	got := s.FilterByClaim("logging")
	require.Len(t, got, 1)
	assert.Equal(t, "ev1", got[0].ID)
}

func TestStore_InsertionOrderPreserved(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"zzz", "aaa", "mmm"} {
		require.NoError(t, s.Add(repoRecord(id, "claim about parsing")))
	}

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "zzz", all[0].ID)
	assert.Equal(t, "aaa", all[1].ID)
	assert.Equal(t, "mmm", all[2].ID)
}

func TestStore_ForCriterion(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(repoRecord("ev1", "error handling via wrapped errors")))
	require.NoError(t, s.Add(repoRecord("ev2", "logging implemented")))

	got := s.ForCriterion("error_handling")
	require.Len(t, got, 1)
	assert.Equal(t, "ev1", got[0].ID)
}

func TestStore_CountBySource(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(repoRecord("ev1", "logging implemented")))
	require.NoError(t, s.Add(model.EvidenceRecord{
		ID: "doc1", Source: model.SourceDocument, Exists: true, Confidence: 0.5,
	}))

	counts := s.CountBySource()
	assert.Equal(t, 1, counts[model.SourceRepository])
	assert.Equal(t, 1, counts[model.SourceDocument])
	assert.Equal(t, 2, s.Len())
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(repoRecord("ev1", "logging implemented")))
	require.NoError(t, s.Add(repoRecord("ev2", "config loading present")))

	restored := FromSnapshot(s.Snapshot())
	assert.Equal(t, s.Len(), restored.Len())
	assert.True(t, restored.Exists("ev1"))
	assert.True(t, restored.Exists("ev2"))
}

func TestFromSnapshot_KeySuppliesMissingID(t *testing.T) {
	snapshot := map[string]model.EvidenceRecord{
		"ev1": {Source: model.SourceRepository, ClaimReference: "logging implemented", Exists: true},
	}
	st := FromSnapshot(snapshot)
	require.Equal(t, 1, st.Len())

	got, err := st.Get("ev1")
	require.NoError(t, err)
	assert.Equal(t, "ev1", got.ID)
}

func TestFromSnapshot_DropsEmptyKey(t *testing.T) {
	snapshot := map[string]model.EvidenceRecord{
		"":    {Source: model.SourceRepository, ClaimReference: "orphan"},
		"ev1": {Source: model.SourceRepository, ClaimReference: "logging implemented"},
	}
	st := FromSnapshot(snapshot)
	assert.Equal(t, 1, st.Len())
	assert.True(t, st.Exists("ev1"))
}

func TestMatches(t *testing.T) {
	cases := []struct {
		name      string
		criterion string
		claim     string
		want      bool
	}{
		{"whole id", "logging", "logging implemented", true},
		{"case insensitive", "logging", "Logging Implemented", true},
		{"token match", "state_management", "state is persisted between calls", true},
		{"second token", "error_handling", "handling of failures looks solid", true},
		{"no match", "security", "logging implemented", false},
		{"empty claim", "logging", "", false},
		{"empty criterion", "", "logging implemented", false},
		{"id inside larger word", "graph", "subgraph traversal", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(tc.criterion, tc.claim))
		})
	}
}

func TestGraph(t *testing.T) {
	g := NewGraph()
	g.Link("claim-a", "ev2")
	g.Link("claim-a", "ev1")
	g.Link("claim-a", "ev1")
	g.Link("claim-b", "ev3")

	assert.Equal(t, []string{"ev1", "ev2"}, g.LinksOf("claim-a"))
	assert.Equal(t, []string{"ev3"}, g.LinksOf("claim-b"))
	assert.Empty(t, g.LinksOf("claim-unknown"))

	g.Clear()
	assert.Empty(t, g.LinksOf("claim-a"))
}
