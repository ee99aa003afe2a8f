package preference

// digraph is a string-keyed directed graph used for the consistency
// checks: global acyclicity over attribute dependencies and local
// acyclicity over preference intervals.
type digraph struct {
	edges map[string]map[string]struct{}
}

func newDigraph() *digraph {
	return &digraph{edges: map[string]map[string]struct{}{}}
}

func (g *digraph) addEdge(from, to string) {
	if g.edges[from] == nil {
		g.edges[from] = map[string]struct{}{}
	}
	g.edges[from][to] = struct{}{}
	if g.edges[to] == nil {
		g.edges[to] = map[string]struct{}{}
	}
}

// acyclic reports whether the graph has no directed cycle
func (g *digraph) acyclic() bool {
	const (
		unseen = 0
		open   = 1
		done   = 2
	)
	state := make(map[string]int, len(g.edges))
	var visit func(string) bool
	visit = func(n string) bool {
		switch state[n] {
		case open:
			return false
		case done:
			return true
		}
		state[n] = open
		for succ := range g.edges[n] {
			if !visit(succ) {
				return false
			}
		}
		state[n] = done
		return true
	}
	for n := range g.edges {
		if !visit(n) {
			return false
		}
	}
	return true
}
