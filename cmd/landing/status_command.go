package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"landing/internal/api"
	"landing/internal/config"
	"landing/internal/daemonrun"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, preflight, and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.client(false)
			if err != nil {
				return err
			}
			status, statusErr := client.Status(cmd.Context())
			if asJSON {
				if statusErr != nil {
					return statusErr
				}
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			if statusErr != nil {
				renderOfflineStatus(stdout, cfg, client.BaseURL(), statusErr, colorize)
				return nil
			}
			renderDaemonStatus(stdout, status, client.BaseURL(), colorize)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status payload")
	return cmd
}

func renderOfflineStatus(out io.Writer, cfg *config.Config, addr string, err error, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	detail := "Not running"
	if pid := daemonrun.ReadPID(cfg); pid > 0 {
		detail = fmt.Sprintf("Not reachable (pid file names %d)", pid)
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", statusError, detail, colorize))
	fmt.Fprintln(out, renderStatusLine("API", statusWarn, addr, colorize))
	fmt.Fprintln(out, renderStatusLine("Error", statusWarn, err.Error(), colorize))
	fmt.Fprintln(out, renderStatusLine("Artifacts", statusInfo, cfg.Paths.ArtifactDir, colorize))
}

func renderDaemonStatus(out io.Writer, status *api.DaemonStatus, addr string, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	running := statusError
	detail := "Stopped"
	if status.Running {
		running = statusOK
		detail = fmt.Sprintf("Running (pid %d)", status.PID)
		if status.StartedAt != "" {
			detail += " since " + status.StartedAt
		}
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", running, detail, colorize))
	fmt.Fprintln(out, renderStatusLine("API", statusInfo, addr, colorize))
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Artifacts", statusInfo,
		fmt.Sprintf("%s (%s)", status.ArtifactDir, formatBytes(status.ArtifactBytes)), colorize))
	fmt.Fprintln(out, renderStatusLine("Live connections", statusInfo,
		fmt.Sprintf("%d across %d channels", status.Hub.Connections, status.Hub.Channels), colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range checkLines(status.Preflight, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Sessions", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := sessionRows(status.SessionStates)
	if len(rows) == 0 {
		fmt.Fprintln(out, "No active sessions")
		return
	}
	fmt.Fprintln(out, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
}

func checkLines(checks []api.CheckResult, colorize bool) []string {
	if len(checks) == 0 {
		return []string{renderStatusLine("Checks", statusWarn, "not run yet", colorize)}
	}
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		kind := statusOK
		detail := check.Detail
		if !check.Passed {
			kind = statusError
		}
		if detail == "" {
			detail = "passed"
		}
		lines = append(lines, renderStatusLine(check.Name, kind, detail, colorize))
	}
	return lines
}

func sessionRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, state := range api.SortedStates(counts) {
		if counts[state] == 0 {
			continue
		}
		rows = append(rows, []string{state, strconv.Itoa(counts[state])})
	}
	return rows
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
