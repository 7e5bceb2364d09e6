package rollup

import (
	"testing"

	"github.com/gridwatch/gridwatch/event"
)

func pid(n int32) *int32 { return &n }

func TestAlwaysForwardedKinds(t *testing.T) {
	f := New()
	kinds := []event.Family{event.ErrorHW, event.ErrorNet, event.ProcessState, event.TransportDrop, event.TopoLinkDown}
	for _, k := range kinds {
		ev := event.Event{Kind: k, EntityID: "x", PID: pid(1), Value: "whatever"}
		if !f.ShouldForward(ev) {
			t.Errorf("kind %s: expected always-forward, got suppressed", k)
		}
		// Repeating must still forward — "Always" has no binding memory.
		if !f.ShouldForward(ev) {
			t.Errorf("kind %s: expected always-forward on repeat, got suppressed", k)
		}
	}
}

func TestComputeMetricFirstEventThenSuppressed(t *testing.T) {
	f := New()
	ev := event.Event{Kind: event.ComputeUtil, EntityID: "gpu-0", PID: pid(1), Value: "50"}

	if !f.ShouldForward(ev) {
		t.Fatal("expected first event on a new binding to forward")
	}
	if f.ShouldForward(ev) {
		t.Fatal("expected repeat of an unchanged value to be suppressed")
	}
}

func TestComputeMetricSharpTransitionHighToLow(t *testing.T) {
	f := New()
	high := event.Event{Kind: event.ComputeUtil, EntityID: "gpu-0", PID: pid(1), Value: "95"}
	low := event.Event{Kind: event.ComputeUtil, EntityID: "gpu-0", PID: pid(1), Value: "0.5"}

	if !f.ShouldForward(high) {
		t.Fatal("expected first event to forward")
	}
	if !f.ShouldForward(low) {
		t.Fatal("expected sharp high->low transition to forward")
	}
	if f.ShouldForward(low) {
		t.Fatal("expected repeat of the same low value to be suppressed")
	}
}

func TestComputeMetricSharpTransitionLowToHigh(t *testing.T) {
	f := New()
	low := event.Event{Kind: event.ComputeMem, EntityID: "gpu-0", PID: pid(1), Value: "0.1"}
	high := event.Event{Kind: event.ComputeMem, EntityID: "gpu-0", PID: pid(1), Value: "99"}

	if !f.ShouldForward(low) {
		t.Fatal("expected first event to forward")
	}
	if !f.ShouldForward(high) {
		t.Fatal("expected sharp low->high transition to forward")
	}
}

func TestComputeMetricGradualChangeSuppressed(t *testing.T) {
	f := New()
	first := event.Event{Kind: event.ComputeUtil, EntityID: "gpu-0", PID: pid(1), Value: "50"}
	nudge := event.Event{Kind: event.ComputeUtil, EntityID: "gpu-0", PID: pid(1), Value: "55"}

	f.ShouldForward(first)
	if f.ShouldForward(nudge) {
		t.Error("expected a gradual change (not crossing the 80/1 thresholds) to be suppressed")
	}
}

func TestStorageAndBandwidthFirstOnly(t *testing.T) {
	f := New()
	kinds := []event.Family{event.StorageIOPS, event.StorageQDepth, event.TransportBW}
	for _, k := range kinds {
		ev := event.Event{Kind: k, EntityID: "disk-0", PID: pid(2), Value: "100"}
		if !f.ShouldForward(ev) {
			t.Errorf("kind %s: expected first event to forward", k)
		}
		if f.ShouldForward(ev) {
			t.Errorf("kind %s: expected repeat to be suppressed", k)
		}
	}
}

func TestMetricEventWithoutPIDIsSuppressed(t *testing.T) {
	f := New()
	ev := event.Event{Kind: event.ComputeUtil, EntityID: "gpu-0", Value: "50"}
	if f.ShouldForward(ev) {
		t.Error("expected a pid-less metric event to be suppressed")
	}
}

func TestUnknownKindSuppressed(t *testing.T) {
	f := New()
	ev := event.Event{Kind: event.IntentRun, EntityID: "x", PID: pid(1), Value: "y"}
	if f.ShouldForward(ev) {
		t.Error("expected an unlisted kind to be suppressed")
	}
}

func TestBindingsAreSharedAcrossMetricGroups(t *testing.T) {
	// The original forwarder keeps one binding set shared across compute,
	// storage, and bandwidth checks — a compute binding suppresses a later
	// storage event on the same (pid, entity_id) pair.
	f := New()
	compute := event.Event{Kind: event.ComputeUtil, EntityID: "shared-0", PID: pid(3), Value: "50"}
	storage := event.Event{Kind: event.StorageIOPS, EntityID: "shared-0", PID: pid(3), Value: "100"}

	if !f.ShouldForward(compute) {
		t.Fatal("expected compute event to forward")
	}
	if f.ShouldForward(storage) {
		t.Error("expected storage event on the same binding to be suppressed")
	}
}
