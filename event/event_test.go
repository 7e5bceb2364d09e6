package event

import "testing"

func TestFamilyIsValid(t *testing.T) {
	tests := []struct {
		family Family
		want   bool
	}{
		{ComputeUtil, true},
		{ErrorHW, true},
		{TopoLinkDown, true},
		{Family("bogus.kind"), false},
		{Family(""), false},
	}

	for _, tt := range tests {
		if got := tt.family.IsValid(); got != tt.want {
			t.Errorf("Family(%q).IsValid() = %v, want %v", tt.family, got, tt.want)
		}
	}
}

func TestFamilyClassifiers(t *testing.T) {
	if !ComputeUtil.IsCompute() {
		t.Error("compute.util should be IsCompute")
	}
	if !StorageIOPS.IsStorage() {
		t.Error("storage.iops should be IsStorage")
	}
	if !ErrorNet.IsError() {
		t.Error("error.net should be IsError")
	}
	if TopoLinkDown.IsError() == false {
		t.Error("topo.link_down should be IsError")
	}
	if ComputeUtil.IsError() {
		t.Error("compute.util should not be IsError")
	}
}

func TestParseFullEvent(t *testing.T) {
	line := []byte(`{"ts":1000,"event_type":"compute.util","entity_id":"gpu-03","job_id":"job-1","pid":4821,"value":"85","node_id":"node-a"}`)

	ev, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if ev.TS != 1000 || ev.Kind != ComputeUtil || ev.EntityID != "gpu-03" ||
		ev.JobID != "job-1" || ev.Value != "85" || ev.NodeID != "node-a" {
		t.Errorf("unexpected decoded event: %+v", ev)
	}
	if ev.PID == nil || *ev.PID != 4821 {
		t.Errorf("expected pid 4821, got %v", ev.PID)
	}
}

func TestParseMissingOptionalFields(t *testing.T) {
	line := []byte(`{"ts":2000,"event_type":"error.hw","entity_id":"mlx5_0","value":"XID_79"}`)

	ev, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if ev.JobID != "" || ev.NodeID != "" || ev.PID != nil {
		t.Errorf("expected all optional fields to default to zero value, got %+v", ev)
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	if err == nil {
		t.Fatal("expected error parsing malformed line")
	}
}

func TestParseUnknownFieldsIgnored(t *testing.T) {
	line := []byte(`{"ts":1,"event_type":"compute.mem","entity_id":"gpu-0","value":"50","extra_field":"ignored"}`)

	ev, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse should ignore unknown fields, got error: %v", err)
	}
	if ev.Kind != ComputeMem {
		t.Errorf("expected compute.mem, got %v", ev.Kind)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	pid := int32(99)
	original := Event{
		TS:       5000,
		Kind:     ProcessState,
		EntityID: "pid-99",
		JobID:    "job-2",
		PID:      &pid,
		Value:    "start",
		NodeID:   "node-b",
	}

	b, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded, err := Parse(b)
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}

	if decoded != original {
		if *decoded.PID != *original.PID {
			t.Errorf("round-trip mismatch on pid")
		} else {
			decoded.PID = original.PID
			if decoded != original {
				t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, original)
			}
		}
	}
}

func TestNamespacedNodeID(t *testing.T) {
	withNode := Event{NodeID: "node-a"}
	if got := withNode.NamespacedNodeID("pid-1"); got != "node-a::pid-1" {
		t.Errorf("expected node-a::pid-1, got %s", got)
	}

	withoutNode := Event{}
	if got := withoutNode.NamespacedNodeID("pid-1"); got != "pid-1" {
		t.Errorf("expected pid-1 unchanged, got %s", got)
	}
}
