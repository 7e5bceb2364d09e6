package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gridwatch/gridwatch/rpc"
)

var (
	fixYes      bool
	fixAuditLog string
)

var fixCmd = &cobra.Command{
	Use:   "fix <pid>",
	Short: "Diagnose and remediate a process",
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

		diag, err := client.Diag(pid)
		if err != nil {
			return daemonUnreachable(err)
		}
		if len(diag.Recommendations) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "pid-%d: no recommendation matched, nothing to do\n", pid)
			return nil
		}

		if !fixYes {
			fmt.Fprintln(cmd.OutOrStdout(), "about to run:")
			for _, r := range diag.Recommendations {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", r)
			}
			if !confirm(cmd) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}

		if fixAuditLog != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "note: audit entries are recorded by the Agent at its own configured path; --audit-log %s is informational only\n", fixAuditLog)
		}

		result, err := client.Fix(pid, diag.Recommendations)
		if err != nil {
			return daemonUnreachable(err)
		}

		printFixResult(cmd, result)
		if !result.OverallSuccess {
			return actionFailed(fmt.Errorf("fix of pid %d did not fully succeed", pid))
		}
		return nil
	},
}

func init() {
	fixCmd.Flags().BoolVar(&fixYes, "yes", false, "skip the confirmation prompt")
	fixCmd.Flags().StringVar(&fixAuditLog, "audit-log", "", "audit log path (informational; the Agent records to its own configured path)")
}

func confirm(cmd *cobra.Command) bool {
	fmt.Fprint(cmd.OutOrStdout(), "proceed? [y/N] ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

func printFixResult(cmd *cobra.Command, result rpc.FixResult) {
	out := cmd.OutOrStdout()
	for _, step := range result.Executed {
		fmt.Fprintf(out, "ok:     %s\n", step.Action)
	}
	for _, step := range result.Failed {
		fmt.Fprintf(out, "failed: %s (%s)\n", step.Action, step.Error)
	}
	if result.OverallSuccess {
		fmt.Fprintln(out, "fix succeeded")
	} else {
		fmt.Fprintln(out, "fix did not fully succeed")
	}
}
