package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"glossa/internal/ipc"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	opts := &requestOptions{}
	cmd := &cobra.Command{
		Use:   "submit <video>",
		Short: "Send a video to the daemon for translation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.submitRequest(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(req)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Busy {
					if resp.Message != "" {
						fmt.Fprintln(stdout, resp.Message)
					}
					return errors.New("daemon is busy with another job; try again when it finishes")
				}
				fmt.Fprintf(stdout, "Job %s accepted\n", resp.Job.ID)
				fmt.Fprintf(stdout, "  %s -> %s (%s)\n", resp.Job.SourcePath, resp.Job.TargetLanguage, resp.Job.OutputMode)
				return nil
			})
		},
	}
	opts.bind(cmd)
	return cmd
}
