package scene

import (
	"context"
	"fmt"

	"github.com/gridwatch/gridwatch/graph"
)

// StorageIoErrorAnalyzer detects hard storage I/O failures on devices a
// process is blocked or waiting on.
type StorageIoErrorAnalyzer struct{}

func (StorageIoErrorAnalyzer) SceneType() Type { return StorageIoError }

func (StorageIoErrorAnalyzer) Analyze(_ context.Context, g *graph.Graph, target string) AnalysisResult {
	var rootCauses []string

	edges := g.AllEdges()
	nodes := g.AllNodes()

	for _, e := range edges {
		if e.From != target {
			continue
		}
		if e.Kind == graph.BlockedBy && containsAny(e.To, "storage", "disk", "nvme") {
			if node, ok := nodes[e.To]; ok {
				if errType := node.Attrs["error_type"]; errType != "" {
					rootCauses = append(rootCauses, fmt.Sprintf("storage error: %s", errType))
				} else {
					rootCauses = append(rootCauses, fmt.Sprintf("storage device %s is unhealthy", e.To))
				}
			}
		}
		if e.Kind == graph.WaitsOn && containsAny(e.To, "storage", "disk") {
			if node, ok := nodes[e.To]; ok {
				if ioErr := node.Attrs["io_error"]; ioErr != "" {
					rootCauses = append(rootCauses, fmt.Sprintf("storage I/O error: %s", ioErr))
				}
			}
		}
	}

	if len(rootCauses) == 0 {
		rootCauses = append(rootCauses, "storage I/O may be unhealthy")
	}

	return AnalysisResult{
		Scene:      StorageIoError,
		RootCauses: rootCauses,
		Confidence: 0.75,
		Recommendations: []string{
			"check storage device health",
			"check filesystem errors",
			"check available disk space",
			"check storage device I/O statistics",
		},
		RecommendedActions: []string{
			"check dmesg for storage error entries",
			"run fsck against the filesystem",
			"check storage device SMART status",
		},
		Severity: SeverityCritical,
	}
}
