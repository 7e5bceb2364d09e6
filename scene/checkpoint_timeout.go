package scene

import (
	"context"
	"fmt"

	"github.com/gridwatch/gridwatch/graph"
)

// CheckpointTimeoutAnalyzer detects a process stalled on a checkpoint
// save or load, optionally compounded by slow underlying storage.
type CheckpointTimeoutAnalyzer struct{}

func (CheckpointTimeoutAnalyzer) SceneType() Type { return CheckpointTimeout }

func (CheckpointTimeoutAnalyzer) Analyze(_ context.Context, g *graph.Graph, target string) AnalysisResult {
	var rootCauses []string

	edges := g.AllEdges()
	nodes := g.AllNodes()

	checkpointWait := false
	storageSlow := false

	for _, e := range edges {
		if e.From != target || e.Kind != graph.WaitsOn || !containsAny(e.To, "storage", "disk") {
			continue
		}
		checkpointWait = true
		if node, ok := nodes[e.To]; ok {
			if iops, ok := parseFloat(node.Attrs["iops"]); ok && iops < 50.0 {
				storageSlow = true
				rootCauses = append(rootCauses, fmt.Sprintf("storage %s IOPS too low: %.0f", e.To, iops))
			}
		}
	}

	if node, ok := nodes[target]; ok {
		if containsAny(node.Attrs["state"], "checkpoint", "saving") {
			checkpointWait = true
		}
	}

	var recommendations []string
	switch {
	case checkpointWait && storageSlow:
		rootCauses = append(rootCauses, "checkpoint operation timed out due to slow storage")
	case checkpointWait:
		rootCauses = append(rootCauses, "checkpoint operation may be timing out")
	default:
		rootCauses = append(rootCauses, "this may not be a checkpoint-related issue")
	}

	if checkpointWait {
		recommendations = append(recommendations,
			"check checkpoint file size against storage performance",
			"consider asynchronous checkpoint saves",
			"check storage device health",
		)
	}

	confidence := 0.5
	if checkpointWait {
		confidence = 0.8
	}

	return AnalysisResult{
		Scene:      CheckpointTimeout,
		RootCauses: rootCauses,
		Confidence: confidence,
		Recommendations: recommendations,
		RecommendedActions: []string{
			"trigger the checkpoint-dump signal (SIGUSR1)",
			"restore from the previous checkpoint if the current one is corrupt",
			"reduce checkpoint frequency or switch to incremental saves",
			"check available disk space in the checkpoint directory",
		},
		Severity: SeverityWarning,
	}
}
