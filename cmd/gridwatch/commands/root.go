// Package commands implements the gridwatch CLI's subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridwatch/gridwatch/logger"
)

// RootCmd is the gridwatch CLI entry point.
var RootCmd = &cobra.Command{
	Use:   "gridwatch",
	Short: "Node-local observability and remediation for AI-accelerator clusters",
	Long: `gridwatch watches per-node compute/transport/storage/process signals,
builds a causal state graph, matches declarative remediation rules against
it, and executes or escalates the resulting plan — standalone per node, or
fanned in across a cluster through a Hub.

Available commands:
  run           - Start the node-local Agent daemon
  hub           - Start the cluster-wide Hub daemon
  ps            - List processes known to the local Agent
  why <pid>     - Show the root-cause chain for a process
  diag <pid>    - Diagnose a process without acting on it
  fix <pid>     - Diagnose and remediate a process
  zap <pid>     - Immediately terminate a process tree
  cluster ps    - List processes across every node known to the Hub
  cluster why   - Show the root-cause chain for a job, Hub-wide
  cluster fix   - Remediate a job's process, Hub-wide
  version       - Show build information`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(flagJSONLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

var (
	flagSocketPath string
	flagPort       int
	flagHubURL     string
	flagJSONLogs   bool
)

func init() {
	RootCmd.PersistentFlags().CountP("verbose", "v", "increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	RootCmd.PersistentFlags().StringVar(&flagSocketPath, "socket-path", "", "Agent control socket path (overrides config)")
	RootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "Agent control TCP port, used in place of socket-path on Windows (overrides config)")
	RootCmd.PersistentFlags().StringVar(&flagHubURL, "hub-url", "", "Hub WebSocket URL to uplink to (overrides config)")
	RootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "log-json", false, "emit structured JSON logs instead of human-readable console output")

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(hubCmd)
	RootCmd.AddCommand(psCmd)
	RootCmd.AddCommand(whyCmd)
	RootCmd.AddCommand(diagCmd)
	RootCmd.AddCommand(fixCmd)
	RootCmd.AddCommand(zapCmd)
	RootCmd.AddCommand(clusterCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute runs the CLI, returning whatever error the invoked command
// produced (possibly a *CLIError carrying a specific exit code).
func Execute() error {
	return RootCmd.Execute()
}
