// Package rollup implements the edge roll-up filter: the Agent-side
// policy that decides which locally-observed events are worth the
// uplink bandwidth to the Hub, eliding high-frequency metric chatter
// while always forwarding errors, state transitions, and sharp
// utilization swings.
package rollup

import (
	"strconv"
	"sync"

	"github.com/gridwatch/gridwatch/event"
)

// binding identifies one (pid, entity_id) resource relationship — the
// granularity at which "have we already told the Hub about this" is
// tracked.
type binding [2]string

// Filter holds the Agent's uplink memory: which bindings have already
// been forwarded once, and the last utilization value seen per binding
// so sharp transitions can be detected. Both maps are shared across all
// metric kinds that consult them, mirroring the original forwarder's
// single binding set.
type Filter struct {
	mu                sync.Mutex
	forwardedBindings map[binding]struct{}
	lastUtilValues    map[binding]float64
}

// New builds an empty roll-up filter.
func New() *Filter {
	return &Filter{
		forwardedBindings: make(map[binding]struct{}),
		lastUtilValues:    make(map[binding]float64),
	}
}

// ShouldForward reports whether ev is worth sending to the Hub under
// the current roll-up state, recording whatever binding/value memory
// the decision requires.
func (f *Filter) ShouldForward(ev event.Event) bool {
	switch ev.Kind {
	case event.ErrorHW, event.ErrorNet, event.ProcessState, event.TransportDrop, event.TopoLinkDown:
		return true

	case event.ComputeUtil, event.ComputeMem:
		return f.shouldForwardMetric(ev)

	case event.StorageIOPS, event.StorageQDepth, event.TransportBW:
		return f.shouldForwardFirstOnly(ev)

	default:
		return false
	}
}

func (f *Filter) shouldForwardMetric(ev event.Event) bool {
	if ev.PID == nil {
		return false
	}
	key := binding{strconv.FormatInt(int64(*ev.PID), 10), ev.EntityID}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, seen := f.forwardedBindings[key]; !seen {
		f.forwardedBindings[key] = struct{}{}
		if v, err := strconv.ParseFloat(ev.Value, 64); err == nil {
			f.lastUtilValues[key] = v
		}
		return true
	}

	current, err := strconv.ParseFloat(ev.Value, 64)
	if err != nil {
		return false
	}
	last, ok := f.lastUtilValues[key]
	if !ok {
		return false
	}

	sharpTransition := (last > 80.0 && current < 1.0) || (last < 1.0 && current > 80.0)
	if sharpTransition {
		f.lastUtilValues[key] = current
		return true
	}
	return false
}

func (f *Filter) shouldForwardFirstOnly(ev event.Event) bool {
	if ev.PID == nil {
		return false
	}
	key := binding{strconv.FormatInt(int64(*ev.PID), 10), ev.EntityID}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, seen := f.forwardedBindings[key]; seen {
		return false
	}
	f.forwardedBindings[key] = struct{}{}
	return true
}
