package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/exec"
	"github.com/gridwatch/gridwatch/graph"
	"github.com/gridwatch/gridwatch/rpc"
	"github.com/gridwatch/gridwatch/rules"
	"github.com/gridwatch/gridwatch/scene"
)

func pid(n int32) *int32 { return &n }

// startTestAgent spins up a real rpc.Server, seeded with one process, and
// points the package's global socket-path flag at it so dialAgent() finds
// it the same way the live CLI would.
func startTestAgent(t *testing.T) {
	t.Helper()

	g := graph.New()
	g.Ingest(event.Event{TS: 1, Kind: event.ProcessState, EntityID: "proc-1", PID: pid(42), JobID: "job-a", Value: "start"})
	g.Ingest(event.Event{TS: 2, Kind: event.ErrorHW, EntityID: "gpu-0", PID: pid(42), Value: "xid 79"})

	auditSink, err := exec.NewAuditSink(filepath.Join(t.TempDir(), "audit.log"), 1024*1024)
	if err != nil {
		t.Fatalf("NewAuditSink failed: %v", err)
	}
	t.Cleanup(func() { auditSink.Close() })

	socketPath := filepath.Join(t.TempDir(), "gridwatch-test.sock")
	listener, err := rpc.Listen(socketPath, 0)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	server := rpc.NewServer(listener, g).
		WithRemediation(rules.NewEngine(), scene.NewDefaultRegistry(), auditSink, func() []event.Event { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	go server.Serve(ctx)

	t.Cleanup(cancel)

	flagSocketPath = socketPath
	flagPort = 0
	t.Cleanup(func() { flagSocketPath = ""; flagPort = 0 })
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func TestPSListsSeededProcess(t *testing.T) {
	startTestAgent(t)

	out, err := runCommand(t, "ps")
	if err != nil {
		t.Fatalf("ps failed: %v", err)
	}
	if !strings.Contains(out, "job-a") {
		t.Errorf("expected output to mention job-a, got: %s", out)
	}
}

func TestWhyReportsRootCause(t *testing.T) {
	startTestAgent(t)

	out, err := runCommand(t, "why", "42")
	if err != nil {
		t.Fatalf("why failed: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Error("expected non-empty why output")
	}
}

func TestWhyRejectsNonNumericPID(t *testing.T) {
	startTestAgent(t)

	_, err := runCommand(t, "why", "not-a-pid")
	if err == nil {
		t.Fatal("expected an error for a non-numeric pid")
	}
	if ExitCode(err) != ExitInvalidArgs {
		t.Errorf("ExitCode = %d, want %d", ExitCode(err), ExitInvalidArgs)
	}
}

func TestPSFailsWithExitDaemonUnreachableWhenNoAgent(t *testing.T) {
	flagSocketPath = filepath.Join(t.TempDir(), "no-such.sock")
	flagPort = 0
	defer func() { flagSocketPath = ""; flagPort = 0 }()

	_, err := runCommand(t, "ps")
	if err == nil {
		t.Fatal("expected an error when no agent is listening")
	}
	if ExitCode(err) != ExitDaemonUnreachable {
		t.Errorf("ExitCode = %d, want %d", ExitCode(err), ExitDaemonUnreachable)
	}
}

func TestFixPromptsAndAbortsOnNo(t *testing.T) {
	startTestAgent(t)

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetIn(strings.NewReader("n\n"))
	RootCmd.SetArgs([]string{"fix", "42"})
	defer RootCmd.SetIn(nil)

	err := RootCmd.Execute()
	if err != nil {
		t.Fatalf("fix failed: %v", err)
	}
	if !strings.Contains(out.String(), "aborted") {
		t.Errorf("expected the prompt to be aborted, got: %s", out.String())
	}
}

func TestFixSkipsPromptWithYesFlag(t *testing.T) {
	startTestAgent(t)
	t.Cleanup(func() { fixYes = false })

	out, err := runCommand(t, "fix", "42", "--yes")
	// The seeded graph has no rules loaded, so Diag finds no
	// recommendations and fix reports nothing to do rather than failing.
	if err != nil {
		t.Fatalf("fix --yes failed: %v", err)
	}
	if !strings.Contains(out, "nothing to do") {
		t.Errorf("expected a nothing-to-do report, got: %s", out)
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := runCommand(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json failed: %v", err)
	}
	var info map[string]interface{}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("expected valid JSON output, got %q: %v", out, err)
	}
}

func TestClusterPSQueriesHubAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ps" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]clusterPSEntry{
			{NodeID: "node-a", PID: 7, State: "running", Resources: []string{"gpu0"}},
		})
	}))
	defer srv.Close()

	flagHubAPI = srv.URL
	defer func() { flagHubAPI = "http://localhost:7931" }()

	out, err := runCommand(t, "cluster", "ps")
	if err != nil {
		t.Fatalf("cluster ps failed: %v", err)
	}
	if !strings.Contains(out, "node-a") {
		t.Errorf("expected output to mention node-a, got: %s", out)
	}
}

func TestClusterFixSendsOnePostPerProcess(t *testing.T) {
	var fixCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/why"):
			json.NewEncoder(w).Encode(clusterWhyResponse{
				Processes: []clusterWhyProcess{{NodeID: "node-a", PID: 7}, {NodeID: "node-b", PID: 9}},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/fix":
			fixCalls++
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	flagHubAPI = srv.URL
	defer func() { flagHubAPI = "http://localhost:7931" }()
	t.Cleanup(func() { clusterFixYes = false })

	out, err := runCommand(t, "cluster", "fix", "job-a", "--yes")
	if err != nil {
		t.Fatalf("cluster fix failed: %v", err)
	}
	if fixCalls != 2 {
		t.Errorf("expected 2 fix POSTs, got %d", fixCalls)
	}
	if !strings.Contains(out, "node-a") || !strings.Contains(out, "node-b") {
		t.Errorf("expected both nodes reported, got: %s", out)
	}
}

func TestExitCodeUnwrapsWrappedCLIError(t *testing.T) {
	base := invalidArgs(context.DeadlineExceeded)
	wrapped := fmt.Errorf("dialing: %w", base)

	if got := ExitCode(wrapped); got != ExitInvalidArgs {
		t.Errorf("ExitCode(wrapped) = %d, want %d", got, ExitInvalidArgs)
	}
	if got := ExitCode(nil); got != ExitSuccess {
		t.Errorf("ExitCode(nil) = %d, want %d", got, ExitSuccess)
	}
	if got := ExitCode(context.DeadlineExceeded); got != ExitActionFailed {
		t.Errorf("ExitCode(unrecognized) = %d, want %d", got, ExitActionFailed)
	}
}
