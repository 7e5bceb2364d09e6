//go:build !windows

package rpc

import (
	"net"
	"os"
	"path/filepath"

	"github.com/gridwatch/gridwatch/errors"
)

// DefaultSocketPath resolves the default control socket location for
// name: /var/run/<name>.sock if that directory is writable, else
// $HOME/.<name>/<name>.sock.
func DefaultSocketPath(name string) string {
	systemDir := "/var/run"
	if info, err := os.Stat(systemDir); err == nil && info.IsDir() {
		if probe, err := os.CreateTemp(systemDir, "."+name+"-*"); err == nil {
			probe.Close()
			os.Remove(probe.Name())
			return filepath.Join(systemDir, name+".sock")
		}
	}

	home := os.Getenv("HOME")
	if home == "" {
		home = "."
	}
	return filepath.Join(home, "."+name, name+".sock")
}

// Listen binds a Unix domain socket at socketPath, mode 0660, removing
// any stale socket file left by a prior unclean shutdown. tcpPort is
// ignored on this platform.
func Listen(socketPath string, tcpPort int) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create socket directory for %s", socketPath)
	}

	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, errors.Wrapf(err, "remove stale socket %s", socketPath)
		}
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", socketPath)
	}

	if err := os.Chmod(socketPath, 0o660); err != nil {
		listener.Close()
		return nil, errors.Wrapf(err, "chmod socket %s", socketPath)
	}

	return listener, nil
}

// Dial connects to a Unix domain socket at socketPath. tcpPort is
// ignored on this platform.
func Dial(socketPath string, tcpPort int) (net.Conn, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", socketPath)
	}
	return conn, nil
}
