package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List processes known to the local Agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialAgent()
		if err != nil {
			return err
		}
		defer client.Close()

		procs, err := client.ListProcesses()
		if err != nil {
			return daemonUnreachable(err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-20s %-10s %s\n", "PID", "JOB", "STATE", "RESOURCES")
		for _, p := range procs {
			job := "-"
			if p.JobID != nil {
				job = *p.JobID
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10d %-20s %-10s %s\n", p.PID, job, p.State, joinResources(p.Resources))
		}
		return nil
	},
}

func joinResources(resources []string) string {
	if len(resources) == 0 {
		return "-"
	}
	out := resources[0]
	for _, r := range resources[1:] {
		out += "," + r
	}
	return out
}
