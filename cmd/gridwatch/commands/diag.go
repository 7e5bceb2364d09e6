package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diagCmd = &cobra.Command{
	Use:   "diag <pid>",
	Short: "Diagnose a process without acting on it",
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

		result, err := client.Diag(pid)
		if err != nil {
			return daemonUnreachable(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pid:    %d\n", result.PID)
		if result.Scene != "" {
			fmt.Fprintf(out, "scene:  %s\n", result.Scene)
		}
		fmt.Fprintln(out, "causes:")
		for _, c := range result.Causes {
			fmt.Fprintf(out, "  - %s\n", c)
		}
		fmt.Fprintln(out, "recommendations:")
		for _, r := range result.Recommendations {
			fmt.Fprintf(out, "  - %s\n", r)
		}
		return nil
	},
}
