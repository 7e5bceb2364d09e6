package scene

import (
	"context"
	"fmt"

	"github.com/gridwatch/gridwatch/graph"
)

// NetworkStallAnalyzer detects a process stuck waiting on a network
// resource, optionally compounded by a high drop rate.
type NetworkStallAnalyzer struct{}

func (NetworkStallAnalyzer) SceneType() Type { return NetworkStall }

func (NetworkStallAnalyzer) Analyze(_ context.Context, g *graph.Graph, target string) AnalysisResult {
	var rootCauses, recommendations []string

	edges := g.AllEdges()
	nodes := g.AllNodes()

	networkWaitCount := 0
	for _, e := range edges {
		if e.From != target || e.Kind != graph.WaitsOn || !containsAny(e.To, "network-", "net") {
			continue
		}
		networkWaitCount++
		rootCauses = append(rootCauses, fmt.Sprintf("waiting on network resource: %s", e.To))
		if node, ok := nodes[e.To]; ok {
			if rate, ok := parseFloat(node.Attrs["drop_rate"]); ok && rate > 10.0 {
				rootCauses = append(rootCauses, fmt.Sprintf("network %s drop rate too high: %.1f%%", e.To, rate))
			}
		}
	}

	for _, e := range edges {
		if e.From != target || e.Kind != graph.BlockedBy || !containsAny(e.To, "network-", "net") {
			continue
		}
		if node, ok := nodes[e.To]; ok && containsAny(node.ID, "error") {
			rootCauses = append(rootCauses, fmt.Sprintf("network error: %s", node.ID))
		}
	}

	if len(rootCauses) == 0 {
		rootCauses = append(rootCauses, "network may be stalled")
	}

	recommendations = append(recommendations,
		"check network bandwidth usage",
		"check packet drop statistics",
		"check RDMA connection state, if in use",
	)

	confidence := 0.6
	if networkWaitCount > 0 {
		confidence = 0.85
	}

	return AnalysisResult{
		Scene:           NetworkStall,
		RootCauses:      rootCauses,
		Confidence:      confidence,
		Recommendations: recommendations,
		RecommendedActions: []string{
			"check switch PFC configuration",
			"check RoCE/HCCS link state",
		},
		Severity: SeverityWarning,
	}
}
