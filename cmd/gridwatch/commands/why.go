package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whyCmd = &cobra.Command{
	Use:   "why <pid>",
	Short: "Show the root-cause chain for a process",
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

		result, err := client.WhyProcess(pid)
		if err != nil {
			return daemonUnreachable(err)
		}

		if len(result.Causes) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "pid-%d: no root cause found\n", pid)
			return nil
		}
		for _, cause := range result.Causes {
			fmt.Fprintln(cmd.OutOrStdout(), cause)
		}
		return nil
	},
}
