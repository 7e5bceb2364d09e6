package exec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gridwatch/gridwatch/errors"
)

// Execute dispatches a single action against the target pid, returning a
// human-readable result on success. Absence of the target process is
// treated as success, never an error, for the idempotent actions
// (Signal, KillProcess).
func Execute(ctx context.Context, a Action, pid int32) (string, error) {
	switch a.Kind {
	case Signal:
		return sendSignal(pid, a.SignalNumber)
	case GracefulShutdown:
		return gracefulShutdown(ctx, pid, a.SignalNumber, a.WaitSeconds, a.ForceKill)
	case CgroupThrottle:
		return applyCgroupThrottle(pid, a)
	case CheckCheckpoint:
		return checkCheckpoint(a.CheckpointDir)
	case NetworkRestart:
		return restartNetworkInterface(ctx, a.Interface)
	case IsolateNode:
		return fmt.Sprintf("node isolation delegated to orchestrator: %s", a.Reason), nil
	case Custom:
		return runCustomCommand(ctx, a.Command, a.Args)
	case KillProcess:
		return killProcessTree(pid)
	default:
		return "", errors.Newf("unknown action kind %q", a.Kind)
	}
}

func gracefulShutdown(ctx context.Context, pid int32, signal, waitSeconds int, forceKill bool) (string, error) {
	_, sigErr := sendSignal(pid, signal)
	if sigErr != nil && !forceKill {
		return "", errors.Wrap(sigErr, "graceful shutdown: send signal")
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(time.Duration(waitSeconds) * time.Second):
	}

	if !forceKill {
		return fmt.Sprintf("sent signal %d, waited %ds", signal, waitSeconds), nil
	}

	msg, err := killProcessTree(pid)
	if err != nil {
		return "", errors.Wrap(err, "graceful shutdown: force terminate")
	}
	return fmt.Sprintf("sent signal %d, waited %ds, then %s", signal, waitSeconds, msg), nil
}

func checkCheckpoint(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "read checkpoint directory %s", dir)
	}

	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestMod) {
			newestMod = info.ModTime()
			newest = entry.Name()
		}
	}

	if newest == "" {
		return fmt.Sprintf("checkpoint directory %s has %d files", dir, len(entries)), nil
	}
	return fmt.Sprintf("checkpoint directory %s has %d files, newest: %s", dir, len(entries), newest), nil
}

func applyCgroupThrottle(pid int32, a Action) (string, error) {
	if runtime.GOOS == "windows" {
		return "", errors.New("cgroup throttling is not supported on windows")
	}

	cgroupPath := fmt.Sprintf("/sys/fs/cgroup/gridwatch/pid-%d", pid)
	if err := os.MkdirAll(cgroupPath, 0o755); err != nil {
		return "", errors.Wrapf(err, "create cgroup %s", cgroupPath)
	}

	var applied []string
	if a.CPUQuotaUS != nil {
		if err := os.WriteFile(cgroupPath+"/cpu.cfs_quota_us", []byte(strconv.FormatInt(*a.CPUQuotaUS, 10)), 0o644); err != nil {
			return "", errors.Wrap(err, "apply cpu quota")
		}
		applied = append(applied, fmt.Sprintf("cpu_quota_us=%d", *a.CPUQuotaUS))
	}
	if a.MemoryLimitByte != nil {
		if err := os.WriteFile(cgroupPath+"/memory.limit_in_bytes", []byte(strconv.FormatInt(*a.MemoryLimitByte, 10)), 0o644); err != nil {
			return "", errors.Wrap(err, "apply memory limit")
		}
		applied = append(applied, fmt.Sprintf("memory_limit_bytes=%d", *a.MemoryLimitByte))
	}
	if err := os.WriteFile(cgroupPath+"/tasks", []byte(strconv.Itoa(int(pid))), 0o644); err != nil {
		return "", errors.Wrapf(err, "add pid %d to cgroup", pid)
	}

	return "cgroup throttle applied: " + strings.Join(applied, ", "), nil
}

func restartNetworkInterface(ctx context.Context, iface string) (string, error) {
	if runtime.GOOS == "windows" {
		return "", errors.New("network interface restart requires elevated privileges on windows")
	}

	if out, err := exec.CommandContext(ctx, "ip", "link", "set", "down", iface).CombinedOutput(); err != nil {
		return "", errors.Wrapf(err, "bring down %s: %s", iface, strings.TrimSpace(string(out)))
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(1 * time.Second):
	}

	if out, err := exec.CommandContext(ctx, "ip", "link", "set", "up", iface).CombinedOutput(); err != nil {
		return "", errors.Wrapf(err, "bring up %s: %s", iface, strings.TrimSpace(string(out)))
	}

	return fmt.Sprintf("restarted network interface %s", iface), nil
}

func runCustomCommand(ctx context.Context, command string, args []string) (string, error) {
	out, err := exec.CommandContext(ctx, command, args...).CombinedOutput()
	if err != nil {
		return "", errors.Wrapf(err, "run %s: %s", command, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
