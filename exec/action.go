// Package exec implements the remediation executor: a closed action
// taxonomy, keyword-driven plan construction from recommendation text,
// priority-ordered sequential execution against a live process, and a
// rotating JSON-lines audit sink.
package exec

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Kind is the closed set of remediation actions, ordered by Priority
// (lower runs first).
type Kind string

const (
	Signal           Kind = "signal"
	GracefulShutdown Kind = "graceful_shutdown"
	CgroupThrottle   Kind = "cgroup_throttle"
	CheckCheckpoint  Kind = "check_checkpoint"
	NetworkRestart   Kind = "network_restart"
	IsolateNode      Kind = "isolate_node"
	Custom           Kind = "custom"
	KillProcess      Kind = "kill_process"
)

// Priority returns the action's position in the execution order; lower
// numbers run first.
func (k Kind) Priority() int {
	switch k {
	case Signal:
		return 1
	case GracefulShutdown:
		return 2
	case CgroupThrottle:
		return 3
	case CheckCheckpoint:
		return 4
	case NetworkRestart:
		return 5
	case IsolateNode:
		return 6
	case Custom:
		return 7
	case KillProcess:
		return 10
	default:
		return 99
	}
}

// Action is one concrete remediation step, fully parameterized.
type Action struct {
	Kind Kind

	// Signal / GracefulShutdown
	SignalNumber int

	// GracefulShutdown
	WaitSeconds int
	ForceKill   bool

	// CgroupThrottle
	CPUQuotaUS      *int64
	MemoryLimitByte *int64
	IOLimitBPS      *int64

	// CheckCheckpoint
	CheckpointDir string

	// NetworkRestart
	Interface string

	// IsolateNode
	Reason string

	// Custom
	Command string
	Args    []string
}

// Describe renders a human-readable summary of the action, used in plan
// results and audit entries.
func (a Action) Describe() string {
	switch a.Kind {
	case Signal:
		return fmt.Sprintf("send signal %d", a.SignalNumber)
	case GracefulShutdown:
		suffix := ""
		if a.ForceKill {
			suffix = ", then force-terminate"
		}
		return fmt.Sprintf("graceful shutdown: signal %d, wait %ds%s", a.SignalNumber, a.WaitSeconds, suffix)
	case CgroupThrottle:
		var parts []string
		if a.CPUQuotaUS != nil {
			parts = append(parts, fmt.Sprintf("cpu_quota_us=%d", *a.CPUQuotaUS))
		}
		if a.MemoryLimitByte != nil {
			parts = append(parts, fmt.Sprintf("memory_limit_bytes=%d", *a.MemoryLimitByte))
		}
		if a.IOLimitBPS != nil {
			parts = append(parts, fmt.Sprintf("io_limit_bps=%d", *a.IOLimitBPS))
		}
		return "cgroup throttle: " + strings.Join(parts, ", ")
	case CheckCheckpoint:
		return fmt.Sprintf("check checkpoint directory: %s", a.CheckpointDir)
	case NetworkRestart:
		return fmt.Sprintf("restart network interface: %s", a.Interface)
	case IsolateNode:
		return fmt.Sprintf("isolate node: %s", a.Reason)
	case Custom:
		return fmt.Sprintf("run command: %s %s", a.Command, strings.Join(a.Args, " "))
	case KillProcess:
		return "terminate process tree"
	default:
		return string(a.Kind)
	}
}

// sigusr1 is the signal conventionally used to request a framework-level
// checkpoint dump.
const sigusr1 = 10

// ParseRecommendation parses one free-text recommendation string into an
// Action via a keyword-to-action table, mirroring the heuristics the
// original diagnostic engine used to turn prose into an executable step.
// Returns ok=false if no keyword matched.
func ParseRecommendation(text string) (Action, bool) {
	lower := strings.ToLower(text)

	if prefix := "custom:"; strings.HasPrefix(lower, prefix) {
		raw := strings.TrimSpace(text[len(prefix):])
		args, err := shellquote.Split(raw)
		if err != nil || len(args) == 0 {
			return Action{}, false
		}
		return Action{Kind: Custom, Command: args[0], Args: args[1:]}, true
	}

	switch {
	case containsAny(lower, "sigusr1", "checkpoint dump", "trigger the checkpoint-dump signal"):
		return Action{Kind: Signal, SignalNumber: sigusr1}, true

	case containsAny(lower, "zap", "kill"):
		return Action{Kind: KillProcess}, true

	case containsAny(lower, "graceful"):
		return Action{Kind: GracefulShutdown, SignalNumber: sigusr1, WaitSeconds: 10, ForceKill: true}, true

	case containsAny(lower, "cgroup", "throttle"):
		quota := int64(50000)
		return Action{Kind: CgroupThrottle, CPUQuotaUS: &quota}, true

	case containsAny(lower, "restart network", "network interface"):
		iface := "eth0"
		if strings.Contains(lower, "eno") {
			iface = "eno1"
		}
		return Action{Kind: NetworkRestart, Interface: iface}, true

	case containsAny(lower, "isolate", "quarantine"):
		return Action{Kind: IsolateNode, Reason: text}, true

	case strings.Contains(lower, "checkpoint") && containsAny(lower, "check", "available disk space"):
		return Action{Kind: CheckCheckpoint, CheckpointDir: "/tmp/checkpoints"}, true

	default:
		return Action{}, false
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
