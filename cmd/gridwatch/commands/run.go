package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gridwatch/gridwatch/agent"
	"github.com/gridwatch/gridwatch/config"
	"github.com/gridwatch/gridwatch/logger"
)

var (
	runProbePath string
	runProbeArgs []string
	runNodeID    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the node-local Agent daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return invalidArgs(fmt.Errorf("load config: %w", err))
		}

		if flagSocketPath != "" {
			cfg.RPC.SocketPath = flagSocketPath
		}
		if flagPort != 0 {
			cfg.RPC.TCPPort = flagPort
		}

		a, err := agent.New(cfg, agent.Options{
			NodeID:    runNodeID,
			ProbePath: runProbePath,
			ProbeArgs: runProbeArgs,
			HubURL:    flagHubURL,
		})
		if err != nil {
			return invalidArgs(fmt.Errorf("start agent: %w", err))
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger.Infow("gridwatch agent starting", "socket_path", cfg.RPC.SocketPath)
		// Run blocks until ctx is cancelled (SIGINT/SIGTERM) and always
		// returns ctx.Err() once its own shutdown drains cleanly.
		a.Run(ctx)
		logger.Infow("gridwatch agent stopped")
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runProbePath, "probe", "", "path to the external probe binary to supervise")
	runCmd.Flags().StringArrayVar(&runProbeArgs, "probe-arg", nil, "argument to pass to the probe binary (repeatable)")
	runCmd.Flags().StringVar(&runNodeID, "node-id", "", "identifies this Agent to the Hub (defaults to the hostname)")
}
