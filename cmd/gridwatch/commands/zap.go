package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var zapCmd = &cobra.Command{
	Use:   "zap <pid>",
	Short: "Immediately terminate a process tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := parsePIDArg(args[0])
		if err != nil {
			return err
		}

		client, err := dialAgent()
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.Zap(pid)
		if err != nil {
			return daemonUnreachable(err)
		}

		printFixResult(cmd, result)
		if !result.OverallSuccess {
			return actionFailed(fmt.Errorf("zap of pid %d did not fully succeed", pid))
		}
		return nil
	},
}
