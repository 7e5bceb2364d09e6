package scene

import (
	"context"
	"fmt"

	"github.com/gridwatch/gridwatch/graph"
)

// ProcessCrashAnalyzer explains an abnormal process exit by walking its
// BlockedBy edges back to the error that caused it.
type ProcessCrashAnalyzer struct{}

func (ProcessCrashAnalyzer) SceneType() Type { return ProcessCrash }

func (ProcessCrashAnalyzer) Analyze(_ context.Context, g *graph.Graph, target string) AnalysisResult {
	var rootCauses []string

	nodes := g.AllNodes()
	edges := g.AllEdges()

	if node, ok := nodes[target]; ok {
		if state := node.Attrs["state"]; containsAny(state, "exit", "crash", "failed") {
			rootCauses = append(rootCauses, fmt.Sprintf("process state: %s", state))
		}
	}

	for _, e := range edges {
		if e.From != target || e.Kind != graph.BlockedBy {
			continue
		}
		node, ok := nodes[e.To]
		if !ok || !containsAny(node.ID, "error") {
			continue
		}
		if errType := node.Attrs["error_type"]; errType != "" {
			rootCauses = append(rootCauses, fmt.Sprintf("error: %s", errType))
		} else {
			rootCauses = append(rootCauses, fmt.Sprintf("error node: %s", e.To))
		}
	}

	if len(rootCauses) == 0 {
		rootCauses = append(rootCauses, "process may have exited abnormally")
	}

	return AnalysisResult{
		Scene:      ProcessCrash,
		RootCauses: rootCauses,
		Confidence: 0.75,
		Recommendations: []string{
			"check the process exit code",
			"check system logs",
			"check resource usage (memory, CPU)",
			"check dependent service health",
		},
		Severity: SeverityCritical,
	}
}
