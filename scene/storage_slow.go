package scene

import (
	"context"
	"fmt"

	"github.com/gridwatch/gridwatch/graph"
)

// StorageSlowAnalyzer detects a process stalled on a storage device that
// is technically healthy but underperforming — low IOPS, high latency,
// or a deep queue.
type StorageSlowAnalyzer struct{}

func (StorageSlowAnalyzer) SceneType() Type { return StorageSlow }

func (StorageSlowAnalyzer) Analyze(_ context.Context, g *graph.Graph, target string) AnalysisResult {
	var rootCauses []string

	edges := g.AllEdges()
	nodes := g.AllNodes()

	slowFound := false
	for _, e := range edges {
		if e.From != target || e.Kind != graph.WaitsOn || !containsAny(e.To, "storage", "disk", "nvme") {
			continue
		}
		node, ok := nodes[e.To]
		if !ok {
			continue
		}
		if iops, ok := parseFloat(node.Attrs["iops"]); ok && iops < 100.0 {
			slowFound = true
			rootCauses = append(rootCauses, fmt.Sprintf("%s: IOPS too low: %.0f", e.To, iops))
		}
		if latency, ok := parseFloat(node.Attrs["latency_ms"]); ok && latency > 100.0 {
			slowFound = true
			rootCauses = append(rootCauses, fmt.Sprintf("%s: I/O latency too high: %.1fms", e.To, latency))
		}
		if qdepth, ok := parseFloat(node.Attrs["qdepth"]); ok && qdepth > 100.0 {
			slowFound = true
			rootCauses = append(rootCauses, fmt.Sprintf("%s: queue depth too high: %.0f", e.To, qdepth))
		}
	}

	if len(rootCauses) == 0 {
		rootCauses = append(rootCauses, "storage performance may be degraded")
	}

	confidence := 0.6
	if slowFound {
		confidence = 0.8
	}

	return AnalysisResult{
		Scene:      StorageSlow,
		RootCauses: rootCauses,
		Confidence: confidence,
		Recommendations: []string{
			"check the storage device's performance baseline",
			"check for other processes competing for the same storage",
			"check whether the storage device is overheating",
		},
		RecommendedActions: []string{
			"monitor storage performance with iostat",
			"consider faster storage (NVMe SSD)",
			"optimize data loading strategy (prefetch, caching)",
		},
		Severity: SeverityWarning,
	}
}
