package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"glossa/internal/ipc"
	"glossa/internal/ledger"
)

// newHealthCommand checks the ledger database. It asks the daemon when one
// is running and inspects the database directly otherwise.
func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the job ledger database",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report ipc.HealthResponse
			err := ctx.withStore(func(client *ipc.Client, store *ledger.Store) error {
				if client != nil {
					resp, err := client.Health()
					if err != nil {
						return err
					}
					report = *resp
					return nil
				}
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				report = healthResponseFromLedger(health)
				return nil
			})
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Job Ledger", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, report.DBPath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Readable", statusKindForCheck(report.Readable), yesNo(report.Readable), colorize))
			integrityDetail := yesNo(report.IntegrityOK)
			if report.Error != "" {
				integrityDetail = report.Error
			}
			fmt.Fprintln(stdout, renderStatusLine("Integrity", statusKindForCheck(report.IntegrityOK), integrityDetail, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Jobs", statusInfo, fmt.Sprintf("%d total", report.TotalJobs), colorize))
			if report.ActiveJobID != "" {
				fmt.Fprintln(stdout, renderStatusLine("Active job", statusInfo, report.ActiveJobID, colorize))
			}

			if !report.Readable || !report.IntegrityOK {
				return errors.New("ledger health check failed")
			}
			return nil
		},
	}
}

func healthResponseFromLedger(health ledger.Health) ipc.HealthResponse {
	counts := make(map[string]int, len(health.StateCounts))
	for state, count := range health.StateCounts {
		counts[string(state)] = count
	}
	return ipc.HealthResponse{
		DBPath:      health.Path,
		Readable:    health.Readable,
		IntegrityOK: health.IntegrityOK,
		TotalJobs:   health.TotalJobs,
		ActiveJobID: health.ActiveJobID,
		StateCounts: counts,
	}
}
