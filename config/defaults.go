package config

import (
	"runtime"

	"github.com/spf13/viper"

	"github.com/gridwatch/gridwatch/rpc"
)

// DefaultRuleDirectory is used when no rules.directory is configured.
const DefaultRuleDirectory = "/etc/gridwatch/rules.d"

// DefaultAuditPath is used when no audit.path is configured.
const DefaultAuditPath = "/var/log/gridwatch/audit.log"

// SetDefaults seeds every tunable named in the data model onto a fresh
// *viper.Viper, before any config file or environment override is applied.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bus.capacity", 1024)

	v.SetDefault("graph.error_retention_seconds", 300)
	v.SetDefault("graph.process_idle_seconds", 600)

	v.SetDefault("rpc.socket_path", rpc.DefaultSocketPath("gridwatch"))
	v.SetDefault("rpc.tcp_port", 0)

	v.SetDefault("hub.ws_addr", ":7930")
	v.SetDefault("hub.http_addr", ":7931")
	v.SetDefault("hub.url", "")

	v.SetDefault("rules.directory", DefaultRuleDirectory)

	v.SetDefault("audit.path", DefaultAuditPath)
	v.SetDefault("audit.rotation_bytes", 10*1024*1024)

	v.SetDefault("quarantine.enabled", false)
	v.SetDefault("quarantine.cooldown_seconds", 300)

	if runtime.GOOS == "windows" {
		v.SetDefault("rpc.tcp_port", 47411)
	}
}
