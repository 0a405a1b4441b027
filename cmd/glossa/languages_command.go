package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"glossa/internal/language"
)

// newLanguagesCommand lists the translation targets the pipeline accepts.
// It needs no configuration, so config loading is skipped.
func newLanguagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "languages",
		Short:       "List supported languages",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, 32)
			for _, info := range language.Supported() {
				rows = append(rows, []string{info.Code, info.Code3, info.Name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Code", "ISO-3", "Name"}, rows))
			return nil
		},
	}
}
