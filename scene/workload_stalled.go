package scene

import (
	"context"
	"fmt"

	"github.com/gridwatch/gridwatch/graph"
)

// WorkloadStalledAnalyzer distinguishes a genuinely stuck process —
// running, but every consumed resource is near-idle with no I/O wait to
// explain it — from one that is merely doing data preprocessing.
type WorkloadStalledAnalyzer struct{}

func (WorkloadStalledAnalyzer) SceneType() Type { return WorkloadStalled }

func (WorkloadStalledAnalyzer) Analyze(_ context.Context, g *graph.Graph, target string) AnalysisResult {
	nodes := g.AllNodes()
	edges := g.AllEdges()

	node, ok := nodes[target]
	isRunning := ok && node.Attrs["state"] == "running"
	if !isRunning {
		return AnalysisResult{
			Scene:      WorkloadStalled,
			RootCauses: []string{"process is not in the running state"},
			Confidence: 0.0,
			Severity:   SeverityInfo,
		}
	}

	total, lowUtil := 0, 0
	hasIOWait := false
	for _, e := range edges {
		if e.From != target {
			continue
		}
		if e.Kind == graph.Consumes {
			total++
			if consumed, ok := nodes[e.To]; ok {
				if util, ok := parseFloat(consumed.Attrs["util"]); ok && util < 1.0 {
					lowUtil++
				}
			}
		}
		if e.Kind == graph.WaitsOn && containsAny(e.To, "network", "storage", "disk") {
			hasIOWait = true
		}
	}

	var rootCauses, recommendations []string
	switch {
	case total > 0 && lowUtil == total && !hasIOWait:
		rootCauses = append(rootCauses,
			"process appears deadlocked or stalled",
			fmt.Sprintf("all %d consumed resources are under 1%% utilization", total),
			"no network or storage I/O wait detected",
		)
		recommendations = append(recommendations,
			"check whether the process is waiting on a lock or semaphore",
			"check whether the process is waiting on another process",
			"check application logs for deadlock indicators",
		)
	case hasIOWait:
		rootCauses = append(rootCauses, "process may be waiting on I/O to complete")
		recommendations = append(recommendations, "check network or storage performance")
	default:
		rootCauses = append(rootCauses, "process may be in a normal data-preprocessing phase")
		recommendations = append(recommendations, "keep observing; escalate if this persists beyond the expected duration")
	}

	confidence := 0.6
	if total > 0 && lowUtil == total && !hasIOWait {
		confidence = 0.9
	}

	return AnalysisResult{
		Scene:           WorkloadStalled,
		RootCauses:      rootCauses,
		Confidence:      confidence,
		Recommendations: recommendations,
		RecommendedActions: []string{
			"if confirmed stalled, zap the process",
			"check whether a checkpoint is available to resume from",
		},
		Severity: SeverityWarning,
	}
}
