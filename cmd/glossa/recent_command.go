package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"glossa/internal/ipc"
	"glossa/internal/ledger"
)

func newRecentCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *ledger.Store) error {
				var jobs []ipc.JobStatus
				if client != nil {
					resp, err := client.Recent(limit)
					if err != nil {
						return err
					}
					jobs = resp.Jobs
				} else {
					records, err := store.Recent(cmd.Context(), limit)
					if err != nil {
						return err
					}
					jobs = make([]ipc.JobStatus, 0, len(records))
					for _, record := range records {
						jobs = append(jobs, ipc.FromJob(record))
					}
				}

				if asJSON {
					return writeJSON(cmd, jobs)
				}

				stdout := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(stdout, "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						job.Title,
						job.State,
						job.TargetLanguage,
						job.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(stdout, renderTable([]string{"ID", "Title", "State", "Target", "Created"}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of jobs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
