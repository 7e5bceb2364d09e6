// Package probe supervises an external probe process, parsing its
// line-delimited JSON stdout into events and pushing them onto the bus.
package probe

import (
	"bufio"
	"context"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/gridwatch/gridwatch/bus"
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/logger"
)

// RespawnDelay is how long the supervisor waits after a probe exits before
// spawning it again.
const RespawnDelay = 1 * time.Second

// Supervisor spawns and supervises a single external probe binary,
// respawning it on exit until its context is cancelled.
type Supervisor struct {
	path     string
	args     []string
	producer *bus.Producer

	pid     int32
	running bool
}

// New creates a probe supervisor for the binary at path with the given
// arguments, pushing parsed events into producer.
func New(path string, args []string, producer *bus.Producer) *Supervisor {
	return &Supervisor{path: path, args: args, producer: producer}
}

// Run supervises the probe until ctx is cancelled: spawn, scan stdout line
// by line pushing events into the bus, wait for exit, sleep RespawnDelay,
// repeat. Cancellation propagates from ctx at every suspension point
// (spawn, scan, sleep).
func (s *Supervisor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.runOnce(ctx); err != nil {
			logger.Warnw("probe exited", logger.FieldError, err.Error(), logger.FieldBinary, s.path)
		} else {
			logger.Warnw("probe exited", logger.FieldBinary, s.path)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(RespawnDelay):
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.path, s.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	s.pid = int32(cmd.Process.Pid)
	s.running = true
	defer func() { s.running = false }()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		ev, perr := event.Parse(line)
		if perr != nil {
			logger.Warnw("malformed probe line, skipping", logger.FieldError, perr.Error(), logger.FieldBinary, s.path)
			continue
		}

		s.producer.Push(ev)
	}

	return cmd.Wait()
}

// Alive reports whether the supervised child process is currently running,
// using gopsutil for a richer liveness check than the bare running flag.
func (s *Supervisor) Alive(ctx context.Context) bool {
	if !s.running || s.pid == 0 {
		return false
	}

	proc, err := process.NewProcessWithContext(ctx, s.pid)
	if err != nil {
		return false
	}

	running, err := proc.IsRunningWithContext(ctx)
	if err != nil {
		return false
	}
	return running
}

// PID returns the current child process id, or 0 if not running.
func (s *Supervisor) PID() int32 {
	return s.pid
}
