package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestSetDefaultsSeedsEveryTunable(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if cfg.Bus.Capacity != 1024 {
		t.Errorf("bus.capacity = %d, want 1024", cfg.Bus.Capacity)
	}
	if cfg.Graph.ErrorRetentionSeconds != 300 {
		t.Errorf("graph.error_retention_seconds = %d, want 300", cfg.Graph.ErrorRetentionSeconds)
	}
	if cfg.Graph.ProcessIdleSeconds != 600 {
		t.Errorf("graph.process_idle_seconds = %d, want 600", cfg.Graph.ProcessIdleSeconds)
	}
	if cfg.RPC.SocketPath == "" {
		t.Error("rpc.socket_path should not be empty")
	}
	if cfg.Hub.WSAddr != ":7930" {
		t.Errorf("hub.ws_addr = %q, want :7930", cfg.Hub.WSAddr)
	}
	if cfg.Hub.HTTPAddr != ":7931" {
		t.Errorf("hub.http_addr = %q, want :7931", cfg.Hub.HTTPAddr)
	}
	if cfg.Hub.URL != "" {
		t.Errorf("hub.url = %q, want empty (uplink disabled by default)", cfg.Hub.URL)
	}
	if cfg.Rules.Directory != DefaultRuleDirectory {
		t.Errorf("rules.directory = %q, want %q", cfg.Rules.Directory, DefaultRuleDirectory)
	}
	if cfg.Audit.Path != DefaultAuditPath {
		t.Errorf("audit.path = %q, want %q", cfg.Audit.Path, DefaultAuditPath)
	}
	if cfg.Audit.RotationBytes != 10*1024*1024 {
		t.Errorf("audit.rotation_bytes = %d, want %d", cfg.Audit.RotationBytes, 10*1024*1024)
	}
	if cfg.Quarantine.Enabled {
		t.Error("quarantine.enabled should default to false")
	}
	if cfg.Quarantine.CooldownSeconds != 300 {
		t.Errorf("quarantine.cooldown_seconds = %d, want 300", cfg.Quarantine.CooldownSeconds)
	}
}

func TestGraphConfigDurationHelpers(t *testing.T) {
	g := GraphConfig{ErrorRetentionSeconds: 120, ProcessIdleSeconds: 30}
	if g.ErrorRetention().Seconds() != 120 {
		t.Errorf("ErrorRetention() = %v, want 120s", g.ErrorRetention())
	}
	if g.ProcessIdle().Seconds() != 30 {
		t.Errorf("ProcessIdle() = %v, want 30s", g.ProcessIdle())
	}
}

func TestQuarantineConfigCooldownHelper(t *testing.T) {
	q := QuarantineConfig{CooldownSeconds: 45}
	if q.Cooldown().Seconds() != 45 {
		t.Errorf("Cooldown() = %v, want 45s", q.Cooldown())
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gridwatch.toml")
	contents := `
[bus]
capacity = 4096

[hub]
ws_addr = ":9000"
url = "ws://hub.example:9000/ws"

[quarantine]
enabled = true
cooldown_seconds = 60
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Bus.Capacity != 4096 {
		t.Errorf("bus.capacity = %d, want 4096", cfg.Bus.Capacity)
	}
	if cfg.Hub.WSAddr != ":9000" {
		t.Errorf("hub.ws_addr = %q, want :9000", cfg.Hub.WSAddr)
	}
	if cfg.Hub.URL != "ws://hub.example:9000/ws" {
		t.Errorf("hub.url = %q, want the configured uplink URL", cfg.Hub.URL)
	}
	if !cfg.Quarantine.Enabled {
		t.Error("quarantine.enabled should be true from the file")
	}
	if cfg.Quarantine.CooldownSeconds != 60 {
		t.Errorf("quarantine.cooldown_seconds = %d, want 60", cfg.Quarantine.CooldownSeconds)
	}

	// Values not present in the file still fall back to defaults.
	if cfg.Rules.Directory != DefaultRuleDirectory {
		t.Errorf("rules.directory = %q, want default %q", cfg.Rules.Directory, DefaultRuleDirectory)
	}
}

func TestLoadFromFileRejectsMissingPath(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "does-not-exist.toml")); err == nil {
		t.Error("expected an error loading a nonexistent config file")
	}
}

func TestLoadCachesResult(t *testing.T) {
	Reset()
	defer Reset()

	first, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if first != second {
		t.Error("expected Load to return the same cached *Config across calls")
	}
}

func TestResetClearsCache(t *testing.T) {
	Reset()
	first, _ := Load()
	Reset()
	second, _ := Load()
	if first == second {
		t.Error("expected Reset to force a fresh Config on the next Load")
	}
	Reset()
}
