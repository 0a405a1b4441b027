package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"glossa/internal/daemonctl"
	"glossa/internal/ipc"
	"glossa/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the glossa daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				if result.PID > 0 {
					fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
				} else {
					fmt.Fprintln(stdout, "Daemon already running")
				}
			default:
				fmt.Fprintln(stdout, "Daemon started")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the glossa daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time, killed process (pid %d)\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the glossa daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Daemon did not exit in time, killed process (pid %d)\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, readiness, and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonLines(statusResp, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Readiness", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, result := range preflight.RunAll(cfg) {
				fmt.Fprintln(stdout, renderStatusLine(result.Name, statusKindForCheck(result.Passed), result.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Jobs", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if statusResp.Active != nil {
				fmt.Fprintln(stdout, renderStatusLine("Active job", statusInfo, describeActiveJob(statusResp.Active), colorize))
			}

			rows := buildJobStatusRows(statusResp.Stats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Ledger is empty")
				return nil
			}
			fmt.Fprintln(stdout, renderTable([]string{"State", "Count"}, rows, 1))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func daemonLines(resp *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 3)
	if resp.Running {
		uptime := time.Since(resp.StartedAt).Round(time.Second)
		detail := fmt.Sprintf("running (pid %d, version %s, up %s)", resp.PID, resp.Version, uptime)
		lines = append(lines, renderStatusLine("Daemon", statusOK, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not running (start it with `glossa start`)", colorize))
	}
	lines = append(lines, renderStatusLine("Socket", statusInfo, resp.SocketPath, colorize))
	lines = append(lines, renderStatusLine("Database", statusInfo, resp.DBPath, colorize))
	return lines
}

func describeActiveJob(job *ipc.JobStatus) string {
	detail := fmt.Sprintf("%s %s %.0f%%", job.ID, job.State, job.ProgressPercent)
	if job.Title != "" {
		detail += fmt.Sprintf(" (%s)", job.Title)
	}
	return detail
}

// buildJobStatusRows orders state counts along the job lifecycle so the
// table reads in pipeline order rather than alphabetically.
func buildJobStatusRows(stats map[string]int) [][]string {
	order := []string{
		"pending",
		"extracting",
		"transcribing",
		"translating",
		"assembling",
		"muxing",
		"completed",
		"failed",
		"cancelled",
	}
	rows := make([][]string, 0, len(stats))
	for _, state := range order {
		if count, ok := stats[state]; ok && count > 0 {
			rows = append(rows, []string{state, fmt.Sprintf("%d", count)})
		}
	}
	for state, count := range stats {
		known := false
		for _, s := range order {
			if s == state {
				known = true
				break
			}
		}
		if !known && count > 0 {
			rows = append(rows, []string{state, fmt.Sprintf("%d", count)})
		}
	}
	return rows
}

func statusKindForCheck(passed bool) statusKind {
	if passed {
		return statusOK
	}
	return statusError
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.configFlag != nil {
		if path := strings.TrimSpace(*ctx.configFlag); path != "" {
			opts.ConfigPath = path
		}
	}
	return opts
}
