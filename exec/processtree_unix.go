//go:build !windows

package exec

import (
	"fmt"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/gridwatch/gridwatch/errors"
)

// sendSignal delivers signal to pid. Absence of the process is treated
// as success.
func sendSignal(pid int32, signal int) (string, error) {
	err := syscall.Kill(int(pid), syscall.Signal(signal))
	if err == nil {
		return fmt.Sprintf("sent signal %d to pid %d", signal, pid), nil
	}
	if err == syscall.ESRCH {
		return fmt.Sprintf("pid %d no longer exists", pid), nil
	}
	return "", errors.Wrapf(err, "send signal %d to pid %d", signal, pid)
}

// killProcessTree discovers pid's process group and delivers SIGKILL to
// the negated pgid, terminating every process in the group. If pgid
// discovery fails, it falls back to killing pid directly. Absence of the
// target process is treated as success.
func killProcessTree(pid int32) (string, error) {
	pgid, err := syscall.Getpgid(int(pid))
	if err != nil {
		if err == syscall.ESRCH {
			return fmt.Sprintf("pid %d no longer exists", pid), nil
		}
		return killSinglePID(pid)
	}

	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		if err == syscall.ESRCH {
			return fmt.Sprintf("process group %d no longer exists", pgid), nil
		}
		return killSinglePID(pid)
	}

	return fmt.Sprintf("terminated process group %d", pgid), nil
}

// killSinglePID falls back to killing pid and its discovered children
// individually when process-group termination is unavailable (pgid lookup
// failed, or signalling the group failed for a reason other than the group
// no longer existing).
func killSinglePID(pid int32) (string, error) {
	killed := 0
	for _, child := range processChildren(pid) {
		if err := syscall.Kill(int(child), syscall.SIGKILL); err == nil {
			killed++
		}
	}

	if err := syscall.Kill(int(pid), syscall.SIGKILL); err != nil {
		if err == syscall.ESRCH {
			if killed > 0 {
				return fmt.Sprintf("pid %d no longer exists, terminated %d children", pid, killed), nil
			}
			return fmt.Sprintf("pid %d no longer exists", pid), nil
		}
		return "", errors.Wrapf(err, "kill pid %d", pid)
	}
	return fmt.Sprintf("terminated pid %d and %d children", pid, killed), nil
}

// processChildren lists pid's direct children via the kernel-exposed
// process table. Returns nil if pid can't be looked up rather than
// erroring — the caller treats that the same as "no children found".
func processChildren(pid int32) []int32 {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	children, err := proc.Children()
	if err != nil {
		return nil
	}
	ids := make([]int32, len(children))
	for i, c := range children {
		ids[i] = c.Pid
	}
	return ids
}
