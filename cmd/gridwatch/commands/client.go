package commands

import (
	"github.com/gridwatch/gridwatch/config"
	"github.com/gridwatch/gridwatch/rpc"
)

// dialAgent resolves the control socket/port from flags (falling back to
// config) and connects, reporting daemon-unreachable failures with the
// right exit code.
func dialAgent() (*rpc.Client, error) {
	socketPath := flagSocketPath
	tcpPort := flagPort

	if socketPath == "" && tcpPort == 0 {
		cfg, err := config.Load()
		if err != nil {
			return nil, invalidArgs(err)
		}
		socketPath = cfg.RPC.SocketPath
		tcpPort = cfg.RPC.TCPPort
	}

	client, err := rpc.Connect(socketPath, tcpPort)
	if err != nil {
		return nil, daemonUnreachable(err)
	}
	return client, nil
}
