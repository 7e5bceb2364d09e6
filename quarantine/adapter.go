package quarantine

import (
	"context"

	"github.com/gridwatch/gridwatch/logger"
)

// Adapter is the narrow surface the translator needs from a cluster
// orchestrator: mark a node unschedulable, then drain its workloads.
// A real implementation (Kubernetes, Slurm, ...) lives outside this
// module; client libraries for any specific orchestrator are out of
// scope here by design.
type Adapter interface {
	Taint(ctx context.Context, nodeID, key, value string) error
	Evict(ctx context.Context, nodeID string) error
}

// NoopAdapter discards every call. cmd/gridwatch does not wire it; the hub
// command uses LoggingAdapter.
type NoopAdapter struct{}

func (NoopAdapter) Taint(ctx context.Context, nodeID, key, value string) error { return nil }
func (NoopAdapter) Evict(ctx context.Context, nodeID string) error             { return nil }

// LoggingAdapter logs every call instead of acting on it, useful for
// local runs and dry-run verification of the fault-detection path
// before wiring a real orchestrator.
type LoggingAdapter struct{}

func (LoggingAdapter) Taint(ctx context.Context, nodeID, key, value string) error {
	logger.Infow("quarantine: would taint node",
		logger.FieldNodeID, nodeID,
		"taint_key", key,
		"taint_value", value,
	)
	return nil
}

func (LoggingAdapter) Evict(ctx context.Context, nodeID string) error {
	logger.Infow("quarantine: would evict workloads on node", logger.FieldNodeID, nodeID)
	return nil
}
