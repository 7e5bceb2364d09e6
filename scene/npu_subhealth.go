package scene

import (
	"context"
	"fmt"

	"github.com/gridwatch/gridwatch/graph"
)

// NpuSubhealthAnalyzer detects NPU subhealth conditions: SoC overheat,
// a degraded HCCS lane, or thermal throttling below the rated frequency.
type NpuSubhealthAnalyzer struct{}

func (NpuSubhealthAnalyzer) SceneType() Type { return NpuSubhealth }

func (NpuSubhealthAnalyzer) Analyze(_ context.Context, g *graph.Graph, target string) AnalysisResult {
	var rootCauses, recommendations []string

	edges := g.AllEdges()
	nodes := g.AllNodes()

	for _, e := range edges {
		if e.From != target || e.Kind != graph.Consumes || !containsAny(e.To, "npu-", "ascend") {
			continue
		}
		node, ok := nodes[e.To]
		if !ok {
			continue
		}

		if temp, ok := parseFloat(node.Attrs["temperature"]); ok && temp > 85.0 {
			rootCauses = append(rootCauses, fmt.Sprintf("NPU %s SoC overheating: %.1f°C", e.To, temp))
			recommendations = append(recommendations, fmt.Sprintf("check the cooling system on NPU %s", e.To))
		}

		if status := node.Attrs["hccs_lane_status"]; status == "degraded" {
			rootCauses = append(rootCauses, fmt.Sprintf("NPU %s HCCS link degraded", e.To))
			recommendations = append(recommendations, fmt.Sprintf("check the HCCS connection on NPU %s", e.To))
		}

		freq, freqOK := parseFloat(node.Attrs["frequency"])
		maxFreq, maxOK := parseFloat(node.Attrs["max_frequency"])
		if freqOK && maxOK && freq < maxFreq*0.9 {
			rootCauses = append(rootCauses, fmt.Sprintf("NPU %s throttled: %.0fMHz (max %.0fMHz)", e.To, freq, maxFreq))
		}
	}

	if len(rootCauses) == 0 {
		rootCauses = append(rootCauses, "NPU may be in a subhealthy state")
	}

	recommendations = append(recommendations,
		"check chassis cooling and fan state",
		"check NPU firmware and driver version",
		"monitor the NPU temperature trend",
	)

	confidence := 0.7
	if len(rootCauses) > 1 {
		confidence = 0.85
	}

	return AnalysisResult{
		Scene:           NpuSubhealth,
		RootCauses:      rootCauses,
		Confidence:      confidence,
		Recommendations: recommendations,
		RecommendedActions: []string{
			"quarantine the node to stop new scheduling onto it",
			"escalate to the hardware maintenance team for inspection",
		},
		Severity: SeverityWarning,
	}
}
