package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/phobologic/surveyor/internal/model"
)

// detectCycles runs Tarjan's SCC over the subgraph of connections of type
// typ. Every edge with both endpoints in the same component of size > 1 is
// marked circular. Components are returned with sorted node IDs, ordered by
// their first ID.
func detectCycles(conns []*model.Connection, typ model.ConnectionType) []Cycle {
	g := simple.NewDirectedGraph()
	ids := make(map[string]int64)
	names := make(map[int64]string)
	node := func(id string) simple.Node {
		n, ok := ids[id]
		if !ok {
			n = int64(len(ids))
			ids[id] = n
			names[n] = id
			g.AddNode(simple.Node(n))
		}
		return simple.Node(n)
	}

	var edges []*model.Connection
	for _, c := range conns {
		if c.Type != typ || c.SourceID == c.TargetID {
			continue
		}
		from, to := node(c.SourceID), node(c.TargetID)
		g.SetEdge(simple.Edge{F: from, T: to})
		edges = append(edges, c)
	}
	if len(edges) == 0 {
		return nil
	}

	component := make(map[string]int)
	var cycles []Cycle
	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		members := make([]string, 0, len(scc))
		for _, n := range scc {
			members = append(members, names[n.ID()])
		}
		sort.Strings(members)
		cycles = append(cycles, Cycle{Type: typ, NodeIDs: members})
	}
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].NodeIDs[0] < cycles[j].NodeIDs[0]
	})
	for i, c := range cycles {
		for _, id := range c.NodeIDs {
			component[id] = i + 1
		}
	}

	for _, c := range edges {
		if k := component[c.SourceID]; k != 0 && k == component[c.TargetID] {
			c.Metadata.IsCircular = true
		}
	}
	return cycles
}
