package graph

// RootCause performs a reverse-DFS root-cause search starting from the
// unnamespaced process node for pid (as used by a node-local Agent, which
// never prefixes its own ids).
func (g *Graph) RootCause(pid int32) []string {
	return g.RootCauseByID(processNodeID(pid))
}

// RootCauseByID performs the reverse-DFS root-cause search starting from
// an arbitrary (possibly Hub-namespaced) node id.
//
// For each outgoing BlockedBy edge, it emits "<target>: <error_type>" and
// recurses into the target. For each outgoing WaitsOn edge, it emits
// "waiting on resource: <target>" as a leaf, recursing only if the target
// resource itself has outgoing BlockedBy edges. Already-visited nodes are
// skipped; ties are broken by edge insertion order.
func (g *Graph) RootCauseByID(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	var result []string

	var visit func(string)
	visit = func(nodeID string) {
		if visited[nodeID] {
			return
		}
		visited[nodeID] = true

		for _, e := range g.outEdges[nodeID] {
			switch e.Kind {
			case BlockedBy:
				result = append(result, e.To+": "+g.errorTypeLocked(e.To))
				visit(e.To)
			case WaitsOn:
				result = append(result, "waiting on resource: "+e.To)
				if g.hasOutgoingBlockedByLocked(e.To) {
					visit(e.To)
				}
			}
		}
	}
	visit(id)

	return result
}

func (g *Graph) errorTypeLocked(nodeID string) string {
	n, ok := g.nodes[nodeID]
	if !ok {
		return "unknown"
	}
	if et, ok := n.Attrs["error_type"]; ok && et != "" {
		return et
	}
	return "unknown"
}

func (g *Graph) hasOutgoingBlockedByLocked(nodeID string) bool {
	for _, e := range g.outEdges[nodeID] {
		if e.Kind == BlockedBy {
			return true
		}
	}
	return false
}
