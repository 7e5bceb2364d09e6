package agent

import "os"

// defaultNodeID falls back to the OS hostname when Options.NodeID is
// left empty.
func defaultNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown-node"
	}
	return host
}
