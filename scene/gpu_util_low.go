package scene

import (
	"context"
	"fmt"

	"github.com/gridwatch/gridwatch/graph"
)

// GpuUtilLowAnalyzer detects a GPU or NPU sitting idle or near-idle
// while its owning process is still running.
type GpuUtilLowAnalyzer struct{}

func (GpuUtilLowAnalyzer) SceneType() Type { return GpuUtilLow }

func (GpuUtilLowAnalyzer) Analyze(_ context.Context, g *graph.Graph, target string) AnalysisResult {
	var rootCauses, recommendations []string

	edges := g.AllEdges()
	nodes := g.AllNodes()

	type lowUtil struct {
		id  string
		val float64
	}
	var lowUtilResources []lowUtil
	hasWaitsOn := false

	for _, e := range edges {
		if e.From != target {
			continue
		}
		if e.Kind == graph.Consumes && containsAny(e.To, "gpu-", "npu-") {
			if node, ok := nodes[e.To]; ok {
				if util, ok := parseFloat(node.Attrs["util"]); ok && util < 10.0 {
					lowUtilResources = append(lowUtilResources, lowUtil{e.To, util})
				}
			}
		}
		if e.Kind == graph.WaitsOn {
			hasWaitsOn = true
		}
	}

	if len(lowUtilResources) > 0 {
		for _, r := range lowUtilResources {
			rootCauses = append(rootCauses, fmt.Sprintf("%s utilization is extremely low: %.1f%%", r.id, r.val))
		}
		if hasWaitsOn {
			rootCauses = append(rootCauses, "process may be waiting on data loading or network transfer")
			recommendations = append(recommendations, "check data loading throughput", "check network bandwidth")
		} else {
			rootCauses = append(rootCauses, "GPU may be sitting idle")
			recommendations = append(recommendations, "check whether the training loop is progressing", "check for a deadlock or blocking call")
		}
	} else {
		rootCauses = append(rootCauses, "GPU utilization may be low")
	}

	recommendations = append(recommendations,
		"check GPU/NPU state with nvidia-smi or the ascend toolkit",
		"check synchronization points in the training code",
		"check whether data preprocessing is the bottleneck",
	)

	confidence := 0.6
	if len(lowUtilResources) > 0 {
		confidence = 0.8
	}

	return AnalysisResult{
		Scene:           GpuUtilLow,
		RootCauses:      rootCauses,
		Confidence:      confidence,
		Recommendations: recommendations,
		RecommendedActions: []string{
			"increase DataLoader worker count to unblock the input pipeline",
			"check for unnecessary synchronization calls",
			"consider mixed-precision training to raise throughput",
		},
		Severity: SeverityWarning,
	}
}
