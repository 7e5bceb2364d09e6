//go:build windows

package exec

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gridwatch/gridwatch/errors"
)

// sendSignal is unsupported on Windows; the platform has no equivalent
// of a POSIX signal delivered to an arbitrary process.
func sendSignal(pid int32, signal int) (string, error) {
	return "", errors.New("signal delivery is not supported on windows")
}

// killProcessTree force-terminates pid and its full descendant tree via
// the system's own tree-kill tool. Absence of the target process is
// treated as success.
func killProcessTree(pid int32) (string, error) {
	out, err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(int(pid))).CombinedOutput()
	if err != nil {
		text := strings.ToLower(string(out))
		if strings.Contains(text, "not found") {
			return fmt.Sprintf("pid %d no longer exists", pid), nil
		}
		return "", errors.Wrapf(err, "taskkill pid %d: %s", pid, strings.TrimSpace(string(out)))
	}
	return fmt.Sprintf("terminated process tree for pid %d", pid), nil
}
