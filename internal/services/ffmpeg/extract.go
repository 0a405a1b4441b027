package ffmpeg

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"glossa/internal/logging"
	"glossa/internal/services"
	"glossa/internal/subtitles"
)

// recognizerSampleRate is the fixed rate the speech model expects.
const recognizerSampleRate = 16000

// AudioTrack references extracted mono PCM audio. It is transient: the
// pipeline removes it once the recognizer has consumed it.
type AudioTrack struct {
	Path       string
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Remove deletes the extracted audio file. Missing files are not an error.
func (t AudioTrack) Remove() error {
	if t.Path == "" {
		return nil
	}
	if err := os.Remove(t.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Extractor demuxes a video's audio into recognizer-ready PCM WAV.
type Extractor struct {
	binary string
	logger *slog.Logger
	exec   Executor
}

// NewExtractor constructs an extractor around the ffmpeg binary.
func NewExtractor(binary string, logger *slog.Logger) *Extractor {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Extractor{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "extractor"),
		exec:   commandExecutor{},
	}
}

// WithExecutor injects a custom executor (primarily for tests).
func (e *Extractor) WithExecutor(exec Executor) {
	if e != nil && exec != nil {
		e.exec = exec
	}
}

// Extract converts the source's audio into a mono 16 kHz WAV at dest. total,
// when known, drives onProgress with 0..1 fractions. The partial output file
// is removed on every failure path, including cancellation.
func (e *Extractor) Extract(ctx context.Context, source, dest string, total time.Duration, onProgress func(float64)) (AudioTrack, error) {
	if strings.TrimSpace(source) == "" {
		return AudioTrack{}, services.Wrap(services.ErrMedia, "extracting", "extract audio", "source path is required", nil)
	}
	if strings.TrimSpace(dest) == "" {
		return AudioTrack{}, services.Wrap(services.ErrMedia, "extracting", "extract audio", "destination path is required", nil)
	}
	if _, err := os.Stat(source); err != nil {
		return AudioTrack{}, services.Wrap(services.ErrMedia, "extracting", "extract audio", "source not readable", err)
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-i", source,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(recognizerSampleRate),
		"-ac", "1",
		"-progress", "pipe:1",
		"-y", dest,
	}

	e.logger.Debug("extracting audio",
		logging.String("source", source),
		logging.String("dest", dest),
	)

	sink := &progressSink{fn: onProgress}
	if err := e.exec.Run(ctx, e.binary, args, progressParser(total, sink), nil); err != nil {
		_ = os.Remove(dest)
		if ctx.Err() != nil {
			return AudioTrack{}, ctx.Err()
		}
		return AudioTrack{}, services.Wrap(services.ErrMedia, "extracting", "extract audio", "ffmpeg failed", err)
	}

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(dest)
		return AudioTrack{}, services.Wrap(services.ErrMedia, "extracting", "extract audio", "ffmpeg produced no audio", err)
	}
	sink.report(1)

	e.logger.Info("audio extracted",
		logging.String("dest", dest),
		logging.Int64("bytes", info.Size()),
	)
	return AudioTrack{
		Path:       dest,
		SampleRate: recognizerSampleRate,
		Channels:   1,
		Duration:   total,
	}, nil
}

// progressSink forwards strictly increasing fractions capped at 1, so ffmpeg
// timestamp jitter and the final completion report never move progress
// backwards or repeat it.
type progressSink struct {
	last float64
	fn   func(float64)
}

func (s *progressSink) report(fraction float64) {
	if s == nil || s.fn == nil {
		return
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction > s.last {
		s.last = fraction
		s.fn(fraction)
	}
}

// progressParser consumes ffmpeg -progress key=value lines and reports the
// completion fraction whenever the processed timestamp advances. ffmpeg's
// out_time_ms key is mislabeled (the value is microseconds), so only
// out_time_us and out_time are read.
func progressParser(total time.Duration, sink *progressSink) func(string) {
	if sink == nil || sink.fn == nil || total <= 0 {
		return nil
	}
	return func(line string) {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			return
		}
		value = strings.TrimSpace(value)
		var processed time.Duration
		switch key {
		case "out_time_us":
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				return
			}
			processed = time.Duration(us) * time.Microsecond
		case "out_time":
			parsed, err := subtitles.ParseTimestamp(value)
			if err != nil {
				return
			}
			processed = parsed
		case "progress":
			if value == "end" {
				sink.report(1)
			}
			return
		default:
			return
		}
		sink.report(float64(processed) / float64(total))
	}
}
