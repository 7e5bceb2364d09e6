package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/gridwatch/gridwatch/config"
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/rpc"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	v := viper.New()
	config.SetDefaults(v)
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults failed: %v", err)
	}

	cfg.Bus.Capacity = 64
	cfg.RPC.SocketPath = filepath.Join(dir, "gridwatch.sock")
	cfg.Audit.Path = filepath.Join(dir, "audit.log")
	cfg.Audit.RotationBytes = 1024 * 1024
	cfg.Rules.Directory = ""
	cfg.Hub.URL = ""
	return &cfg
}

func TestNewOpensListenerAndAuditSink(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, Options{NodeID: "node-a"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.auditSink.Close()
	defer a.rpcListener.Close()

	if a.nodeID != "node-a" {
		t.Errorf("nodeID = %q, want node-a", a.nodeID)
	}
	if a.uplink != nil {
		t.Error("expected no uplink when Hub URL is empty")
	}
	if a.probe != nil {
		t.Error("expected no probe supervisor when ProbePath is empty")
	}
}

func TestRunServesRPCAndShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, Options{NodeID: "node-b"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()

	// Give the RPC server goroutine a moment to start accepting.
	var client *rpc.Client
	for i := 0; i < 50; i++ {
		client, err = rpc.Connect(cfg.RPC.SocketPath, 0)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("failed to connect to agent rpc socket: %v", err)
	}
	defer client.Close()

	if err := client.Ping(); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRecordRecentBoundsWindow(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, Options{NodeID: "node-c"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.auditSink.Close()
	defer a.rpcListener.Close()

	for i := 0; i < recentEventWindow+10; i++ {
		a.recordRecent(event.Event{TS: int64(i), Kind: event.ProcessState, EntityID: "proc-x"})
	}

	got := a.RecentEvents()
	if len(got) != recentEventWindow {
		t.Errorf("RecentEvents() length = %d, want %d", len(got), recentEventWindow)
	}
	if got[len(got)-1].TS != int64(recentEventWindow+9) {
		t.Errorf("expected the window to keep the most recent events, last TS = %d", got[len(got)-1].TS)
	}
}
