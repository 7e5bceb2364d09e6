// Package graph maintains the authoritative in-memory causal state graph:
// processes, resources, and errors linked by Consumes/WaitsOn/BlockedBy
// edges. It reuses the teacher's single-struct-with-RWMutex ownership
// pattern, generalized from a D3-visualization model into a causal one.
package graph

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gridwatch/gridwatch/event"
)

// Kind distinguishes the three node roles in the causal graph.
type Kind string

const (
	KindProcess  Kind = "process"
	KindResource Kind = "resource"
	KindError    Kind = "error"
)

// EdgeKind is the closed set of semantic edge relationships.
type EdgeKind string

const (
	Consumes  EdgeKind = "consumes"
	WaitsOn   EdgeKind = "waits_on"
	BlockedBy EdgeKind = "blocked_by"
)

// Node is a process, resource, or error vertex in the causal graph.
type Node struct {
	ID           string
	Kind         Kind
	LastUpdateMS int64
	Attrs        map[string]string
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	Kind EdgeKind
	From string
	To   string
	TSMs int64
}

type edgeKey struct {
	kind EdgeKind
	from string
	to   string
}

// Default retention windows, per the data model invariants.
const (
	DefaultErrorWindow  = 5 * time.Minute
	DefaultProcessIdle  = 10 * time.Minute
)

// Graph is the authoritative causal state graph. All mutation happens
// inside the write lock; readers take the read lock and return copies so
// callers never observe (or corrupt) internal state.
type Graph struct {
	mu sync.RWMutex

	nodes    map[string]*Node
	outEdges map[string][]*Edge
	inEdges  map[string][]*Edge
	edgeSeen map[edgeKey]struct{}

	errorWindow time.Duration
	processIdle time.Duration
}

// New creates an empty causal graph using the default retention windows.
func New() *Graph {
	return NewWithWindows(DefaultErrorWindow, DefaultProcessIdle)
}

// NewWithWindows creates a graph with custom retention windows, primarily
// for tests that want short windows without waiting on the real clock —
// expiry is driven entirely by ingested event timestamps, never wall time,
// so no injectable clock is needed here.
func NewWithWindows(errorWindow, processIdle time.Duration) *Graph {
	return &Graph{
		nodes:       make(map[string]*Node),
		outEdges:    make(map[string][]*Edge),
		inEdges:     make(map[string][]*Edge),
		edgeSeen:    make(map[edgeKey]struct{}),
		errorWindow: errorWindow,
		processIdle: processIdle,
	}
}

// processNodeID builds the conventional node id for a process pid.
func processNodeID(pid int32) string {
	return fmt.Sprintf("pid-%d", pid)
}

// errorNodeID builds the conventional node id for an error on entityID.
func errorNodeID(entityID string) string {
	return "error-" + entityID
}

// getOrCreateNodeLocked returns the node for id, creating it with kind if
// absent, and always refreshes LastUpdateMS to tsMs. Caller must hold mu.
func (g *Graph) getOrCreateNodeLocked(id string, kind Kind, tsMs int64) *Node {
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{ID: id, Kind: kind, Attrs: make(map[string]string)}
		g.nodes[id] = n
	}
	n.LastUpdateMS = tsMs
	return n
}

// addEdgeLocked inserts an edge if not already present (invariant 2:
// dedup by kind/from/to). Caller must hold mu.
func (g *Graph) addEdgeLocked(kind EdgeKind, from, to string, tsMs int64) {
	key := edgeKey{kind, from, to}
	if _, seen := g.edgeSeen[key]; seen {
		return
	}
	g.edgeSeen[key] = struct{}{}

	e := &Edge{Kind: kind, From: from, To: to, TSMs: tsMs}
	g.outEdges[from] = append(g.outEdges[from], e)
	g.inEdges[to] = append(g.inEdges[to], e)
}

// removeNodeLocked deletes a node and every edge incident to it (invariant
// 3's converse: removing a node removes the edges that reference it).
// Caller must hold mu.
func (g *Graph) removeNodeLocked(id string) {
	delete(g.nodes, id)

	for _, e := range g.outEdges[id] {
		delete(g.edgeSeen, edgeKey{e.Kind, e.From, e.To})
		g.removeFromIndex(g.inEdges, e.To, e)
	}
	delete(g.outEdges, id)

	for _, e := range g.inEdges[id] {
		delete(g.edgeSeen, edgeKey{e.Kind, e.From, e.To})
		g.removeFromIndex(g.outEdges, e.From, e)
	}
	delete(g.inEdges, id)
}

func (g *Graph) removeFromIndex(index map[string][]*Edge, key string, target *Edge) {
	edges := index[key]
	for i, e := range edges {
		if e == target {
			index[key] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

// isStall reports whether a value on a stall-eligible family indicates the
// process is waiting rather than actively transferring: numeric below 1.0,
// or the literal token "IO_WAIT".
func isStall(value string) bool {
	if value == "IO_WAIT" {
		return true
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	return f < 1.0
}

func metricAttr(kind event.Family) string {
	switch kind {
	case event.ComputeUtil:
		return "util"
	case event.ComputeMem:
		return "mem"
	case event.TransportBW:
		return "bw"
	case event.TransportDrop:
		return "drop"
	case event.StorageIOPS:
		return "iops"
	case event.StorageQDepth:
		return "qdepth"
	default:
		return ""
	}
}

