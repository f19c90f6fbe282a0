package evidence

import "sort"

// Graph is a directed adjacency structure linking high-level claim IDs to
// the evidence record IDs that support them. It exists for observability and
// debugging only; no scoring rule reads it.
type Graph struct {
	edges map[string]map[string]struct{}
}

// NewGraph returns an empty claim graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[string]map[string]struct{})}
}

// Link adds a directed edge from a claim to an evidence record. Linking the
// same pair twice is a no-op (set semantics).
func (g *Graph) Link(claimID, evidenceID string) {
	set, ok := g.edges[claimID]
	if !ok {
		set = make(map[string]struct{})
		g.edges[claimID] = set
	}
	set[evidenceID] = struct{}{}
}

// LinksOf returns the evidence IDs linked from a claim, sorted. Unknown
// claims yield an empty slice, never an error.
func (g *Graph) LinksOf(claimID string) []string {
	set := g.edges[claimID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clear resets all edges.
func (g *Graph) Clear() {
	g.edges = make(map[string]map[string]struct{})
}
