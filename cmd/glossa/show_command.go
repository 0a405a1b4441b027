package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"glossa/internal/ipc"
	"glossa/internal/ledger"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show the details of one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *ledger.Store) error {
				var job ipc.JobStatus
				if client != nil {
					resp, err := client.Describe(args[0])
					if err != nil {
						return err
					}
					job = resp.Job
				} else {
					record, err := store.GetByID(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					job = ipc.FromJob(record)
				}

				if asJSON {
					return writeJSON(cmd, job)
				}

				stdout := cmd.OutOrStdout()
				for _, line := range jobDetailLines(job) {
					fmt.Fprintln(stdout, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func jobDetailLines(job ipc.JobStatus) []string {
	pairs := [][2]string{
		{"ID", job.ID},
		{"Title", job.Title},
		{"Source", job.SourcePath},
		{"State", job.State},
	}
	if job.ProgressStage != "" && job.ProgressMessage != "" {
		pairs = append(pairs, [2]string{"Progress", fmt.Sprintf("%s %.0f%% (%s)", job.ProgressStage, job.ProgressPercent, job.ProgressMessage)})
	}
	pairs = append(pairs,
		[2]string{"Languages", languageSummary(job)},
		[2]string{"Model", job.Model},
		[2]string{"Engine", job.Engine},
		[2]string{"Output", fmt.Sprintf("%s (%s)", job.OutputMode, job.SubtitleFormat)},
	)
	if job.SegmentsTotal > 0 {
		value := fmt.Sprintf("%d", job.SegmentsTotal)
		if job.SegmentsFailed > 0 {
			value += fmt.Sprintf(" (%d failed)", job.SegmentsFailed)
		}
		pairs = append(pairs, [2]string{"Segments", value})
	}
	if job.SidecarPath != "" {
		pairs = append(pairs, [2]string{"Subtitles", job.SidecarPath})
	}
	if job.VideoPath != "" {
		pairs = append(pairs, [2]string{"Video", job.VideoPath})
	}
	if job.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", job.ErrorMessage})
	}
	pairs = append(pairs, [2]string{"Created", formatTimestamp(job.CreatedAt)})
	if job.StartedAt != nil {
		pairs = append(pairs, [2]string{"Started", formatTimestamp(*job.StartedAt)})
	}
	if job.FinishedAt != nil {
		pairs = append(pairs, [2]string{"Finished", formatTimestamp(*job.FinishedAt)})
	}

	lines := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		lines = append(lines, fmt.Sprintf("%-11s %s", pair[0]+":", pair[1]))
	}
	return lines
}

func languageSummary(job ipc.JobStatus) string {
	source := job.SourceLanguage
	if source == "" {
		source = "auto"
	}
	summary := fmt.Sprintf("%s -> %s", source, job.TargetLanguage)
	if job.SourceLanguage == "" && job.DetectedLanguage != "" {
		summary += fmt.Sprintf(" (detected %s)", job.DetectedLanguage)
	}
	return summary
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
