package scene

import (
	"context"
	"fmt"

	"github.com/gridwatch/gridwatch/graph"
)

// GpuOomAnalyzer classifies out-of-memory failures on a GPU resource.
type GpuOomAnalyzer struct{}

func (GpuOomAnalyzer) SceneType() Type { return GpuOom }

func (GpuOomAnalyzer) Analyze(_ context.Context, g *graph.Graph, target string) AnalysisResult {
	var rootCauses, recommendations []string

	edges := g.AllEdges()
	nodes := g.AllNodes()

	for _, e := range edges {
		if e.From != target || e.Kind != graph.BlockedBy {
			continue
		}
		node, ok := nodes[e.To]
		if !ok || !containsAny(node.ID, "gpu") {
			continue
		}
		if errType := node.Attrs["error_type"]; containsAny(errType, "OOM", "out of memory") {
			rootCauses = append(rootCauses, fmt.Sprintf("GPU %s out of memory", node.ID))
		}
	}

	for _, e := range edges {
		if e.From != target || e.Kind != graph.Consumes || !containsAny(e.To, "gpu-") {
			continue
		}
		node, ok := nodes[e.To]
		if !ok {
			continue
		}
		if usage, ok := parseFloat(node.Attrs["mem"]); ok && usage > 95.0 {
			rootCauses = append(rootCauses, fmt.Sprintf("GPU %s memory usage too high: %.1f%%", e.To, usage))
			recommendations = append(recommendations, fmt.Sprintf("inspect process memory usage on GPU %s", e.To))
		}
	}

	if len(rootCauses) == 0 {
		rootCauses = append(rootCauses, "GPU memory may be exhausted")
	}

	recommendations = append(recommendations,
		"check memory usage with nvidia-smi",
		"consider reducing batch size or model precision",
		"check for a memory leak",
	)

	confidence := 0.7
	if len(rootCauses) > 1 {
		confidence = 0.9
	}

	return AnalysisResult{
		Scene:      GpuOom,
		RootCauses: rootCauses,
		Confidence: confidence,
		Recommendations: recommendations,
		RecommendedActions: []string{
			"trigger the framework's checkpoint-dump signal (SIGUSR1)",
			"isolate the node and zap any zombie processes",
			"resubmit the job with a smaller batch size",
		},
		Severity: SeverityCritical,
	}
}
