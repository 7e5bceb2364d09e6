//go:build windows

package rpc

import (
	"fmt"
	"net"

	"github.com/gridwatch/gridwatch/errors"
)

// DefaultSocketPath returns the loopback TCP address used in place of a
// Unix domain socket on this platform.
func DefaultSocketPath(name string) string {
	return "127.0.0.1:47411"
}

// Listen opens a TCP listener. A non-empty socketPath is used as the
// listen address, else the address from DefaultSocketPath; a non-zero
// tcpPort overrides both with 127.0.0.1:<tcpPort>.
func Listen(socketPath string, tcpPort int) (net.Listener, error) {
	addr := socketPath
	if addr == "" {
		addr = DefaultSocketPath("gridwatch")
	}
	if tcpPort != 0 {
		addr = fmt.Sprintf("127.0.0.1:%d", tcpPort)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	return listener, nil
}

// Dial connects to the TCP control endpoint, resolving the address from
// socketPath and tcpPort the same way Listen does.
func Dial(socketPath string, tcpPort int) (net.Conn, error) {
	addr := socketPath
	if addr == "" {
		addr = DefaultSocketPath("gridwatch")
	}
	if tcpPort != 0 {
		addr = fmt.Sprintf("127.0.0.1:%d", tcpPort)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", addr)
	}
	return conn, nil
}
