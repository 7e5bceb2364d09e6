package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var flagHubAPI string

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Query and remediate across every node the Hub knows about",
}

var clusterPSCmd = &cobra.Command{
	Use:   "ps",
	Short: "List processes across every node known to the Hub",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []clusterPSEntry
		if err := hubGet(clusterAPIURL("/api/v1/ps"), &entries); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-20s %-10s %-10s %s\n", "NODE", "PID", "STATE", "RESOURCES")
		for _, e := range entries {
			fmt.Fprintf(out, "%-20s %-10d %-10s %s\n", e.NodeID, e.PID, e.State, joinResources(e.Resources))
		}
		return nil
	},
}

var clusterWhyCmd = &cobra.Command{
	Use:   "why <job>",
	Short: "Show the root-cause chain for a job, Hub-wide",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result clusterWhyResponse
		if err := hubGet(clusterAPIURL("/api/v1/why")+"?job_id="+args[0], &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, p := range result.Processes {
			fmt.Fprintf(out, "%s::pid-%d\n", p.NodeID, p.PID)
		}
		for _, c := range result.Causes {
			fmt.Fprintln(out, c)
		}
		return nil
	},
}

var clusterFixYes bool

var clusterFixCmd = &cobra.Command{
	Use:   "fix <job>",
	Short: "Remediate a job's process, Hub-wide",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result clusterWhyResponse
		if err := hubGet(clusterAPIURL("/api/v1/why")+"?job_id="+args[0], &result); err != nil {
			return err
		}
		if len(result.Processes) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no processes found for job %q\n", args[0])
			return nil
		}

		if !clusterFixYes {
			fmt.Fprintln(cmd.OutOrStdout(), "about to fix:")
			for _, p := range result.Processes {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s::pid-%d\n", p.NodeID, p.PID)
			}
			if !confirm(cmd) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}

		var failures int
		for _, p := range result.Processes {
			req := clusterFixRequest{NodeID: p.NodeID, TargetPID: uint32(p.PID)}
			if err := hubPost(clusterAPIURL("/api/v1/fix"), req); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "failed: %s::pid-%d: %v\n", p.NodeID, p.PID, err)
				failures++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent: %s::pid-%d\n", p.NodeID, p.PID)
		}

		if failures > 0 {
			return actionFailed(fmt.Errorf("%d of %d fix commands failed to send", failures, len(result.Processes)))
		}
		return nil
	},
}

func init() {
	clusterCmd.PersistentFlags().StringVar(&flagHubAPI, "hub-api", "http://localhost:7931", "Hub HTTP API base URL")
	clusterFixCmd.Flags().BoolVar(&clusterFixYes, "yes", false, "skip the confirmation prompt")

	clusterCmd.AddCommand(clusterPSCmd)
	clusterCmd.AddCommand(clusterWhyCmd)
	clusterCmd.AddCommand(clusterFixCmd)
}

type clusterPSEntry struct {
	NodeID    string   `json:"node_id"`
	PID       int32    `json:"pid"`
	State     string   `json:"state"`
	Resources []string `json:"resources"`
}

type clusterWhyProcess struct {
	NodeID string `json:"node_id"`
	PID    int32  `json:"pid"`
}

type clusterWhyResponse struct {
	Causes    []string            `json:"causes"`
	Processes []clusterWhyProcess `json:"processes"`
}

type clusterFixRequest struct {
	NodeID    string `json:"node_id"`
	TargetPID uint32 `json:"target_pid"`
	Action    string `json:"action,omitempty"`
}

var hubHTTPClient = &http.Client{Timeout: 10 * time.Second}

func clusterAPIURL(path string) string {
	return flagHubAPI + path
}

func hubGet(url string, out interface{}) error {
	resp, err := hubHTTPClient.Get(url)
	if err != nil {
		return daemonUnreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonUnreachable(fmt.Errorf("hub returned %s for %s", resp.Status, url))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func hubPost(url string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return invalidArgs(err)
	}

	resp, err := hubHTTPClient.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return daemonUnreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errBody)
		msg := errBody.Error
		if msg == "" {
			msg = resp.Status
		}
		return daemonUnreachable(fmt.Errorf("hub fix failed: %s", msg))
	}
	return nil
}
