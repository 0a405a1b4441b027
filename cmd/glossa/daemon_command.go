package main

import (
	"github.com/spf13/cobra"

	"glossa/internal/daemon"
)

// newDaemonRunCommand returns the hidden foreground daemon command. `glossa
// start` launches it in a detached process, and service managers can invoke
// it directly.
func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:          "daemon",
		Short:        "Run the glossa daemon (internal)",
		Hidden:       true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemon.Run(cmd.Context(), cfg, version)
		},
	}
}
