package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"glossa/internal/daemonctl"
	"glossa/internal/ledger"
	"glossa/internal/logging"
	"glossa/internal/notifications"
	"glossa/internal/pipeline"
	"glossa/internal/services/whisper"
)

// newTranslateCommand runs one job in the foreground without a daemon. The
// ledger is shared with the daemon, so the command refuses to run while a
// daemon holds the same database.
func newTranslateCommand(ctx *commandContext) *cobra.Command {
	opts := &requestOptions{}
	cmd := &cobra.Command{
		Use:   "translate <video>",
		Short: "Translate one video in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if running, pid, _ := daemonctl.ProcessInfo(ctx.socketPath()); running {
				return fmt.Errorf("a glossa daemon is running (pid %d); submit the job with `glossa submit %s` or stop the daemon first", pid, args[0])
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Progress owns stdout, so logs go to the file only.
			logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			logger, err := logging.New(logging.Options{
				Level:            cfg.Logging.Level,
				Format:           cfg.Logging.Format,
				OutputPaths:      []string{logPath},
				ErrorOutputPaths: []string{logPath},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			registry := whisper.NewRegistry(cfg.Transcription.ModelDir, logger)
			defer registry.Close()

			stdout := cmd.OutOrStdout()
			renderer := newProgressRenderer(stdout)

			orch := pipeline.New(cfg, store, registry, logger,
				pipeline.WithNotifier(notifications.NewService(cfg)),
				pipeline.WithProgressFunc(renderer.handle),
			)

			job, err := orch.Run(runCtx, opts.request(args[0]))
			renderer.finish()
			if err != nil {
				if job != nil && job.SidecarPath != "" {
					fmt.Fprintf(stdout, "Partial subtitles: %s\n", job.SidecarPath)
				}
				if runCtx.Err() != nil {
					fmt.Fprintln(stdout, "Cancelled")
					return context.Canceled
				}
				return err
			}

			fmt.Fprintf(stdout, "Completed %s\n", job.Title)
			if job.SidecarPath != "" {
				fmt.Fprintf(stdout, "Subtitles: %s\n", job.SidecarPath)
			}
			if job.VideoPath != "" {
				fmt.Fprintf(stdout, "Video: %s\n", job.VideoPath)
			}
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

// progressRenderer draws job progress on the command's stdout. Terminals
// get a single line rewritten in place; everything else gets one line per
// message change. Events arrive from pipeline goroutines, hence the mutex.
type progressRenderer struct {
	out io.Writer

	mu          sync.Mutex
	isTerminal  bool
	lastLine    string
	lastMessage string
	dirty       bool
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	r := &progressRenderer{out: out}
	if file, ok := out.(*os.File); ok {
		fd := file.Fd()
		r.isTerminal = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return r
}

func (r *progressRenderer) handle(event pipeline.Event) {
	if event.Terminal {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	line := fmt.Sprintf("[%s] %3.0f%% %s", event.Stage, event.Percent, event.Message)
	if r.isTerminal {
		if line == r.lastLine {
			return
		}
		fmt.Fprintf(r.out, "\r\x1b[K%s", line)
		r.lastLine = line
		r.dirty = true
		return
	}

	if event.Message == r.lastMessage {
		return
	}
	fmt.Fprintln(r.out, line)
	r.lastMessage = event.Message
}

// finish terminates the rewritten line so the final summary starts on a
// fresh one.
func (r *progressRenderer) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dirty {
		fmt.Fprintln(r.out)
		r.dirty = false
	}
}
