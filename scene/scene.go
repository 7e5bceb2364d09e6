// Package scene classifies a process's current trouble into one of a
// closed set of operational scenes — GPU OOM, network stall, storage
// slowness, and the like — by walking the same Consumes/WaitsOn/BlockedBy
// edges root-cause analysis does, specialized per scene on entity-id
// prefix and node attrs.
package scene

import (
	"context"

	"github.com/gridwatch/gridwatch/graph"
)

// Type is the closed set of scenes a SceneAnalyzer can classify.
type Type string

const (
	GpuOom            Type = "gpu_oom"
	GpuUtilLow        Type = "gpu_util_low"
	GpuError          Type = "gpu_error"
	NpuSubhealth      Type = "npu_subhealth"
	WorkloadStalled   Type = "workload_stalled"
	NetworkStall      Type = "network_stall"
	NetworkDrop       Type = "network_drop"
	StorageIoError    Type = "storage_io_error"
	StorageSlow       Type = "storage_slow"
	ProcessBlocked    Type = "process_blocked"
	ProcessCrash      Type = "process_crash"
	CheckpointTimeout Type = "checkpoint_timeout"
)

// Severity ranks how urgently a scene needs attention.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// AnalysisResult is one analyzer's verdict on a target process.
type AnalysisResult struct {
	Scene              Type
	RootCauses         []string
	Confidence         float64
	Recommendations    []string
	RecommendedActions []string
	Severity           Severity
}

// Analyzer classifies a single scene against a target node in the graph.
type Analyzer interface {
	Analyze(ctx context.Context, g *graph.Graph, target string) AnalysisResult
	SceneType() Type
}

// Registry maps a scene tag to the analyzer that handles it.
type Registry struct {
	analyzers map[Type]Analyzer
	order     []Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[Type]Analyzer)}
}

// Register adds an analyzer, replacing any prior analyzer registered for
// the same scene type.
func (r *Registry) Register(a Analyzer) {
	t := a.SceneType()
	if _, exists := r.analyzers[t]; !exists {
		r.order = append(r.order, t)
	}
	r.analyzers[t] = a
}

// Get returns the analyzer registered for scene, if any.
func (r *Registry) Get(scene Type) (Analyzer, bool) {
	a, ok := r.analyzers[scene]
	return a, ok
}

// All returns every registered analyzer in registration order.
func (r *Registry) All() []Analyzer {
	out := make([]Analyzer, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.analyzers[t])
	}
	return out
}

// NewDefaultRegistry returns a registry with every built-in analyzer
// registered; All returns them in the order they are registered below.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(GpuOomAnalyzer{})
	r.Register(NpuSubhealthAnalyzer{})
	r.Register(WorkloadStalledAnalyzer{})
	r.Register(GpuUtilLowAnalyzer{})
	r.Register(NetworkStallAnalyzer{})
	r.Register(ProcessCrashAnalyzer{})
	r.Register(StorageIoErrorAnalyzer{})
	r.Register(StorageSlowAnalyzer{})
	r.Register(CheckpointTimeoutAnalyzer{})
	return r
}

// Identify walks target's BlockedBy/WaitsOn/Consumes edges and returns
// the single best-guess scene, or false if nothing stands out. It does
// not run the full analyzer set; it is a cheap first pass used to pick
// which analyzer to invoke.
func Identify(g *graph.Graph, target string) (Type, bool) {
	edges := g.AllEdges()
	nodes := g.AllNodes()

	for _, e := range edges {
		if e.From != target || e.Kind != graph.BlockedBy {
			continue
		}
		node, ok := nodes[e.To]
		if !ok {
			continue
		}
		if containsAny(node.ID, "gpu") {
			if errType := node.Attrs["error_type"]; errType != "" {
				if containsAny(errType, "OOM", "out of memory") {
					return GpuOom, true
				}
				if containsAny(errType, "error", "XID") {
					return GpuError, true
				}
			}
		}
		if containsAny(node.ID, "npu", "ascend") {
			if temp, ok := parseFloat(node.Attrs["temperature"]); ok && temp > 85.0 {
				return NpuSubhealth, true
			}
			if status := node.Attrs["hccs_lane_status"]; status == "degraded" {
				return NpuSubhealth, true
			}
		}
	}

	for _, e := range edges {
		if e.From == target && e.Kind == graph.WaitsOn && containsAny(e.To, "network-", "net") {
			return NetworkStall, true
		}
	}

	if node, ok := nodes[target]; ok {
		switch node.Attrs["state"] {
		case "exit", "crash", "failed":
			return ProcessCrash, true
		case "blocked", "waiting":
			return ProcessBlocked, true
		case "running":
			if stalled := workloadLooksStalled(edges, nodes, target); stalled {
				return WorkloadStalled, true
			}
		}
	}

	return "", false
}

func workloadLooksStalled(edges []graph.Edge, nodes map[string]graph.Node, target string) bool {
	total, lowUtil := 0, 0
	hasIOWait := false
	for _, e := range edges {
		if e.From != target {
			continue
		}
		switch e.Kind {
		case graph.Consumes:
			total++
			if node, ok := nodes[e.To]; ok {
				if util, ok := parseFloat(node.Attrs["util"]); ok && util < 1.0 {
					lowUtil++
				}
			}
		case graph.WaitsOn:
			if containsAny(e.To, "network", "storage") {
				hasIOWait = true
			}
		}
	}
	return total > 0 && lowUtil == total && !hasIOWait
}
