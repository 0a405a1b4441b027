package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"glossa/internal/language"
	"glossa/internal/logging"
	"glossa/internal/services"
)

// burnInStyle renders white text with a black outline at a readable size.
const burnInStyle = "FontSize=24,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,Outline=2"

// Muxer writes subtitle output into video containers.
type Muxer struct {
	binary string
	logger *slog.Logger
	exec   Executor
}

// NewMuxer constructs a muxer around the ffmpeg binary.
func NewMuxer(binary string, logger *slog.Logger) *Muxer {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Muxer{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "muxer"),
		exec:   commandExecutor{},
	}
}

// WithExecutor injects a custom executor (primarily for tests).
func (m *Muxer) WithExecutor(exec Executor) {
	if m != nil && exec != nil {
		m.exec = exec
	}
}

// Attach stream-copies the source video and adds the sidecar as a subtitle
// track tagged with lang. The output is written to a temporary path in the
// destination directory and renamed on success, so the destination is never
// half-written.
func (m *Muxer) Attach(ctx context.Context, source, sidecar, output, lang string) error {
	if err := m.checkInputs(source, sidecar, output); err != nil {
		return err
	}
	tmp := muxTempPath(output)
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-i", source,
		"-i", sidecar,
		"-map", "0",
		"-map", "1:0",
		"-c", "copy",
		"-c:s", subtitleCodec(output),
	}
	if strings.TrimSpace(lang) != "" {
		args = append(args, "-metadata:s:s:0", "language="+language.ToISO3(lang))
	}
	args = append(args, "-y", tmp)

	m.logger.Debug("muxing subtitle track",
		logging.String("source", source),
		logging.String("output", output),
		logging.String("language", lang),
	)
	if err := m.run(ctx, args, tmp); err != nil {
		return err
	}
	if err := m.finalize(tmp, output); err != nil {
		return err
	}
	m.logger.Info("subtitle track muxed", logging.String("output", output))
	return nil
}

// BurnIn re-encodes the video with the sidecar's cues rendered into the
// frames. Slow, but the result displays subtitles on any player.
func (m *Muxer) BurnIn(ctx context.Context, source, sidecar, output string) error {
	if err := m.checkInputs(source, sidecar, output); err != nil {
		return err
	}
	tmp := muxTempPath(output)
	filter := fmt.Sprintf("subtitles='%s':force_style='%s'", escapeFilterPath(sidecar), burnInStyle)
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-i", source,
		"-vf", filter,
		"-c:a", "copy",
		"-y", tmp,
	}

	m.logger.Debug("burning in subtitles",
		logging.String("source", source),
		logging.String("output", output),
	)
	if err := m.run(ctx, args, tmp); err != nil {
		return err
	}
	if err := m.finalize(tmp, output); err != nil {
		return err
	}
	m.logger.Info("subtitles burned in", logging.String("output", output))
	return nil
}

func (m *Muxer) checkInputs(source, sidecar, output string) error {
	if strings.TrimSpace(output) == "" {
		return services.Wrap(services.ErrMux, "muxing", "validate inputs", "output path is required", nil)
	}
	if _, err := os.Stat(source); err != nil {
		return services.Wrap(services.ErrMux, "muxing", "validate inputs", "source video not found", err)
	}
	if _, err := os.Stat(sidecar); err != nil {
		return services.Wrap(services.ErrMux, "muxing", "validate inputs", "sidecar file not found", err)
	}
	return nil
}

func (m *Muxer) run(ctx context.Context, args []string, tmp string) error {
	if err := m.exec.Run(ctx, m.binary, args, nil, nil); err != nil {
		_ = os.Remove(tmp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrMux, "muxing", "run ffmpeg", "ffmpeg failed", err)
	}
	return nil
}

func (m *Muxer) finalize(tmp, output string) error {
	info, err := os.Stat(tmp)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrMux, "muxing", "finalize output", "ffmpeg produced no output", err)
	}
	if err := os.Rename(tmp, output); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrMux, "muxing", "finalize output", "replace destination", err)
	}
	return nil
}

// subtitleCodec picks the embedded subtitle codec the output container
// accepts.
func subtitleCodec(outputPath string) string {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".mp4", ".m4v", ".mov":
		return "mov_text"
	default:
		return "srt"
	}
}

// escapeFilterPath makes a path safe inside a single-quoted subtitles filter
// argument: backslashes become forward slashes and colons are escaped.
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	return strings.ReplaceAll(path, ":", `\:`)
}

func muxTempPath(output string) string {
	return filepath.Join(filepath.Dir(output), ".mux-"+filepath.Base(output)+".tmp")
}
