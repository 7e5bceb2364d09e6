// Package event defines the wire schema for the eight atomic telemetry
// families that flow from probes into the bus, the state graph, and across
// the Agent-to-Hub WebSocket uplink.
package event

import (
	"encoding/json"

	"github.com/gridwatch/gridwatch/errors"
)

// Family is a closed set of event kinds. It is a named string type rather
// than an interface hierarchy — the Rust original's enum-of-kinds maps onto
// Go as constants plus a validity check, not dynamic dispatch.
type Family string

const (
	ComputeUtil   Family = "compute.util"
	ComputeMem    Family = "compute.mem"
	TransportBW   Family = "transport.bw"
	TransportDrop Family = "transport.drop"
	StorageIOPS   Family = "storage.iops"
	StorageQDepth Family = "storage.qdepth"
	ProcessState  Family = "process.state"
	ErrorHW       Family = "error.hw"
	ErrorNet      Family = "error.net"
	TopoLinkDown  Family = "topo.link_down"
	IntentRun     Family = "intent.run"
	ActionExec    Family = "action.exec"
)

// allFamilies backs IsValid; keeping it as a map avoids an ever-growing
// switch every time a family is added.
var allFamilies = map[Family]struct{}{
	ComputeUtil:   {},
	ComputeMem:    {},
	TransportBW:   {},
	TransportDrop: {},
	StorageIOPS:   {},
	StorageQDepth: {},
	ProcessState:  {},
	ErrorHW:       {},
	ErrorNet:      {},
	TopoLinkDown:  {},
	IntentRun:     {},
	ActionExec:    {},
}

// IsValid reports whether f is one of the closed set of known families.
func (f Family) IsValid() bool {
	_, ok := allFamilies[f]
	return ok
}

// IsCompute reports whether f carries a compute utilization/memory metric.
func (f Family) IsCompute() bool {
	return f == ComputeUtil || f == ComputeMem
}

// IsStorage reports whether f carries a storage metric.
func (f Family) IsStorage() bool {
	return f == StorageIOPS || f == StorageQDepth
}

// IsError reports whether f signals a hardware or network fault.
func (f Family) IsError() bool {
	return f == ErrorHW || f == ErrorNet || f == TopoLinkDown
}

// Event is an immutable telemetry record. Fields match the probe contract
// and the Agent-to-Hub WebSocket wire shape exactly so both sides can share
// a single parser.
type Event struct {
	TS       int64  `json:"ts"`
	Kind     Family `json:"event_type"`
	EntityID string `json:"entity_id"`
	JobID    string `json:"job_id,omitempty"`
	PID      *int32 `json:"pid,omitempty"`
	Value    string `json:"value"`
	NodeID   string `json:"node_id,omitempty"`
}

// wireEvent mirrors Event's JSON shape but with explicit nullable fields so
// Parse can distinguish "absent" from "zero value" per the probe contract's
// "missing optional fields default to null" rule.
type wireEvent struct {
	TS       int64   `json:"ts"`
	Kind     Family  `json:"event_type"`
	EntityID string  `json:"entity_id"`
	JobID    *string `json:"job_id"`
	PID      *int32  `json:"pid"`
	Value    string  `json:"value"`
	NodeID   *string `json:"node_id"`
}

// Parse decodes a single line-delimited JSON event per the probe contract.
// Unknown fields are ignored; missing optional fields default to their zero
// value. A Family outside the closed set is not rejected here — callers
// that need strict validation should check Kind.IsValid() themselves, since
// the probe contract says unknown fields are ignored, not that unknown
// event types abort ingestion.
func Parse(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return Event{}, errors.Wrap(err, "parse event line")
	}

	ev := Event{
		TS:       w.TS,
		Kind:     w.Kind,
		EntityID: w.EntityID,
		Value:    w.Value,
		PID:      w.PID,
	}
	if w.JobID != nil {
		ev.JobID = *w.JobID
	}
	if w.NodeID != nil {
		ev.NodeID = *w.NodeID
	}

	return ev, nil
}

// Marshal encodes an event back to the wire shape, e.g. for Hub uplink or
// RPC response payloads.
func Marshal(ev Event) ([]byte, error) {
	w := wireEvent{
		TS:       ev.TS,
		Kind:     ev.Kind,
		EntityID: ev.EntityID,
		Value:    ev.Value,
		PID:      ev.PID,
	}
	if ev.JobID != "" {
		w.JobID = &ev.JobID
	}
	if ev.NodeID != "" {
		w.NodeID = &ev.NodeID
	}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event")
	}
	return b, nil
}

// NamespacedNodeID returns id under Hub namespacing: prefixed with
// "<node_id>::" when NodeID is set, unchanged otherwise. It applies to
// process, resource and error node ids alike.
func (e Event) NamespacedNodeID(id string) string {
	if e.NodeID == "" {
		return id
	}
	return e.NodeID + "::" + id
}
