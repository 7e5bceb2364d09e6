package graph

import (
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/logger"
)

// Ingest dispatches a single event into the graph, creating or updating
// nodes and edges per the family-specific rules in the data model, then
// applies the error-window and process-idle expiry passes using the
// event's own timestamp as the reference clock.
func (g *Graph) Ingest(ev event.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case ev.Kind == event.ProcessState:
		g.ingestProcessStateLocked(ev)
	case ev.Kind.IsCompute() || ev.Kind.IsStorage() || ev.Kind == event.TransportBW || ev.Kind == event.TransportDrop:
		g.ingestMetricLocked(ev)
	case ev.Kind.IsError():
		g.ingestErrorLocked(ev)
	case ev.Kind == event.IntentRun || ev.Kind == event.ActionExec:
		// Informational only; these carry no graph-structural meaning.
	default:
		logger.Warnw("unrecognized event family during ingest", logger.FieldAction, string(ev.Kind))
	}

	g.expireErrorsLocked(ev.TS)
	g.expireIdleProcessesLocked(ev.TS)
}

func (g *Graph) ingestProcessStateLocked(ev event.Event) {
	if ev.PID == nil {
		logger.Warnw("process.state event missing pid, skipping", logger.FieldEntityID, ev.EntityID)
		return
	}

	id := ev.NamespacedNodeID(processNodeID(*ev.PID))

	switch ev.Value {
	case "exit", "zombie":
		// Touch the node first so LastUpdateMS reflects this event even
		// though it is removed immediately after (invariant 5).
		g.getOrCreateNodeLocked(id, KindProcess, ev.TS)
		g.removeNodeLocked(id)
	case "start":
		n := g.getOrCreateNodeLocked(id, KindProcess, ev.TS)
		n.Attrs["state"] = "running"
		if ev.JobID != "" {
			n.Attrs["job_id"] = ev.JobID
		}
	default:
		n := g.getOrCreateNodeLocked(id, KindProcess, ev.TS)
		n.Attrs["state"] = ev.Value
	}
}

func (g *Graph) ingestMetricLocked(ev event.Event) {
	resourceID := ev.NamespacedNodeID(ev.EntityID)
	res := g.getOrCreateNodeLocked(resourceID, KindResource, ev.TS)

	if attr := metricAttr(ev.Kind); attr != "" {
		res.Attrs[attr] = ev.Value
	}

	if ev.PID == nil {
		return
	}

	procID := ev.NamespacedNodeID(processNodeID(*ev.PID))
	g.getOrCreateNodeLocked(procID, KindProcess, ev.TS)
	g.addEdgeLocked(Consumes, procID, resourceID, ev.TS)

	switch ev.Kind {
	case event.TransportDrop:
		g.addEdgeLocked(WaitsOn, procID, resourceID, ev.TS)
	case event.TransportBW, event.StorageIOPS, event.StorageQDepth:
		if isStall(ev.Value) {
			g.addEdgeLocked(WaitsOn, procID, resourceID, ev.TS)
		}
	}
}

func (g *Graph) ingestErrorLocked(ev event.Event) {
	errID := ev.NamespacedNodeID(errorNodeID(ev.EntityID))
	errNode := g.getOrCreateNodeLocked(errID, KindError, ev.TS)
	errNode.Attrs["error_type"] = ev.Value

	resourceID := ev.NamespacedNodeID(ev.EntityID)

	// Snapshot: addEdgeLocked below may append to g.inEdges[resourceID] only
	// if resourceID == errID, which never happens (distinct id prefixes),
	// so iterating the live slice is safe.
	for _, e := range g.inEdges[resourceID] {
		if e.Kind == Consumes {
			g.addEdgeLocked(BlockedBy, e.From, errID, ev.TS)
		}
	}
}

// expireErrorsLocked removes error nodes (and their BlockedBy edges) whose
// last update is older than the retention window relative to nowMs
// (invariant 4).
func (g *Graph) expireErrorsLocked(nowMs int64) {
	var stale []string
	for id, n := range g.nodes {
		if n.Kind != KindError {
			continue
		}
		if nowMs-n.LastUpdateMS > g.errorWindow.Milliseconds() {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		g.removeNodeLocked(id)
	}
}

// expireIdleProcessesLocked removes process nodes that have been silent
// longer than the idle window and are not in the "running" state
// (invariant 6 — running processes are never expired by silence alone).
func (g *Graph) expireIdleProcessesLocked(nowMs int64) {
	var stale []string
	for id, n := range g.nodes {
		if n.Kind != KindProcess {
			continue
		}
		if n.Attrs["state"] == "running" {
			continue
		}
		if nowMs-n.LastUpdateMS > g.processIdle.Milliseconds() {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		g.removeNodeLocked(id)
	}
}
