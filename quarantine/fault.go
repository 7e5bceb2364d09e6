// Package quarantine translates observed irreversible hardware/network
// faults into orchestrator-level node quarantine: tainting a node
// unschedulable and evicting its workloads, behind a per-node cool-down
// so a flapping fault doesn't retrigger on every event.
package quarantine

import (
	"strings"

	"github.com/gridwatch/gridwatch/event"
)

// Fault is one detected irreversible hardware or network condition.
type Fault struct {
	NodeID   string
	EntityID string
	Reason   string
}

// DetectFault inspects ev for a pattern indicating a persistent,
// irreversible fault (as opposed to a transient blip the rule engine
// already handles via scenes). Returns ok=false for anything else.
func DetectFault(ev event.Event) (Fault, bool) {
	nodeID := ev.NodeID
	if nodeID == "" {
		nodeID = "unknown"
	}

	switch ev.Kind {
	case event.ErrorHW:
		if containsAnyFold(ev.Value, "xid") {
			return Fault{NodeID: nodeID, EntityID: ev.EntityID, Reason: "xid-error:" + ev.Value}, true
		}
		return Fault{NodeID: nodeID, EntityID: ev.EntityID, Reason: "hardware-failure:" + ev.EntityID + ":" + ev.Value}, true

	case event.ErrorNet:
		if containsAnyFold(ev.Value, "link_down") {
			return Fault{NodeID: nodeID, EntityID: ev.EntityID, Reason: "rdma-link-down:" + ev.EntityID}, true
		}
		return Fault{}, false

	case event.TopoLinkDown:
		return Fault{NodeID: nodeID, EntityID: ev.EntityID, Reason: "topology-link-down:" + ev.EntityID + ":" + ev.Value}, true

	default:
		return Fault{}, false
	}
}

func containsAnyFold(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
