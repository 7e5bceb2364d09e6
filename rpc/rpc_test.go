package rpc

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/graph"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	req := Request{Method: "ping"}
	if err := WriteFrame(&buf, req); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	var decoded Request
	if err := ReadFrame(&buf, MaxRequestBytes, &decoded); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if decoded.Method != "ping" {
		t.Errorf("got method %q, want %q", decoded.Method, "ping")
	}
}

func TestReadFrameRejectsOversizedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, map[string]string{"x": "y"}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	var out map[string]string
	if err := ReadFrame(&buf, 1, &out); err == nil {
		t.Error("expected ReadFrame to reject a frame exceeding maxBytes")
	}
}

func pid(n int32) *int32 { return &n }

func newTestGraph() *graph.Graph {
	g := graph.New()
	g.Ingest(event.Event{TS: 1000, Kind: event.ProcessState, EntityID: "proc-1", PID: pid(7), JobID: "job-a", Value: "start"})
	g.Ingest(event.Event{TS: 1001, Kind: event.ComputeMem, EntityID: "gpu-0", PID: pid(7), Value: "50"})
	return g
}

func TestServerPingListProcessesWhyProcess(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "gridwatch-test.sock")

	listener, err := Listen(socketPath, 0)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	g := newTestGraph()
	server := NewServer(listener, g)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	client, err := Connect(socketPath, 0)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if err := client.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	procs, err := client.ListProcesses()
	if err != nil {
		t.Fatalf("ListProcesses failed: %v", err)
	}
	if len(procs) != 1 {
		t.Fatalf("got %d processes, want 1", len(procs))
	}
	if procs[0].PID != 7 {
		t.Errorf("got pid %d, want 7", procs[0].PID)
	}
	if procs[0].JobID == nil || *procs[0].JobID != "job-a" {
		t.Errorf("got job_id %v, want job-a", procs[0].JobID)
	}
	if len(procs[0].Resources) != 1 || procs[0].Resources[0] != "gpu-0" {
		t.Errorf("got resources %v, want [gpu-0]", procs[0].Resources)
	}

	why, err := client.WhyProcess(7)
	if err != nil {
		t.Fatalf("WhyProcess failed: %v", err)
	}
	if why.PID != 7 {
		t.Errorf("got pid %d, want 7", why.PID)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Serve did not return after context cancellation")
	}
}

func TestServerZapKillsProcessTree(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "gridwatch-test-zap.sock")

	listener, err := Listen(socketPath, 0)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	server := NewServer(listener, newTestGraph()).WithRemediation(nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)

	client, err := Connect(socketPath, 0)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	// pid 7 doesn't exist on this host; absence of the target process is
	// treated as success per the executor's idempotence contract.
	result, err := client.Zap(7)
	if err != nil {
		t.Fatalf("Zap failed: %v", err)
	}
	if result.PID != 7 {
		t.Errorf("got pid %d, want 7", result.PID)
	}
	if !result.OverallSuccess {
		t.Errorf("expected zap of a nonexistent pid to report success, got failed=%v", result.Failed)
	}
}

func TestServerDiagWithoutRemediationDepsReturnsBareCauses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "gridwatch-test-diag.sock")

	listener, err := Listen(socketPath, 0)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	server := NewServer(listener, newTestGraph())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)

	client, err := Connect(socketPath, 0)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	diag, err := client.Diag(7)
	if err != nil {
		t.Fatalf("Diag failed: %v", err)
	}
	if diag.PID != 7 {
		t.Errorf("got pid %d, want 7", diag.PID)
	}
	if diag.Scene != "" {
		t.Errorf("expected no scene classification without scene registry, got %q", diag.Scene)
	}
	if len(diag.Recommendations) != 0 {
		t.Errorf("expected no recommendations without a rule engine, got %v", diag.Recommendations)
	}
}

func TestClientCallUnknownMethod(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "gridwatch-test2.sock")

	listener, err := Listen(socketPath, 0)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	server := NewServer(listener, graph.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)

	client, err := Connect(socketPath, 0)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	resp, err := client.Call("not_a_real_method", nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if resp.Success {
		t.Error("expected unknown method to fail")
	}
}

func TestParsePID(t *testing.T) {
	cases := map[string]int32{
		"pid-7":          7,
		"node-a::pid-42": 42,
	}
	for id, want := range cases {
		got, ok := parsePID(id)
		if !ok || got != want {
			t.Errorf("parsePID(%q) = %d, %v; want %d, true", id, got, ok, want)
		}
	}

	if _, ok := parsePID("gpu-0"); ok {
		t.Error("expected parsePID to reject a non-process id")
	}
}
