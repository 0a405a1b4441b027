package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"glossa/internal/ipc"
)

// newCancelCommand stops the active job. With no argument it cancels
// whatever is currently running.
func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [job-id]",
		Short: "Cancel the running job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()
				var id string
				if len(args) > 0 {
					id = args[0]
				}
				if id == "" {
					status, err := client.Status()
					if err != nil {
						return err
					}
					if status.Active == nil {
						fmt.Fprintln(stdout, "No job is running")
						return nil
					}
					id = status.Active.ID
				}
				if _, err := client.Cancel(id); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Cancellation requested for job %s\n", id)
				return nil
			})
		},
	}
}
