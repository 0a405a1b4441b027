package whisper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"glossa/internal/language"
	"glossa/internal/logging"
	"glossa/internal/services"
	"glossa/internal/subtitles"
)

// Options tunes a single transcription run.
type Options struct {
	// Model selects the weights; empty means DefaultModel.
	Model string
	// Language is an ISO 639-1 hint. Empty lets the tool detect.
	Language string
	// Threads caps decoder threads; 0 keeps the tool default.
	Threads int
	// Duration of the audio, used for progress math when known.
	Duration time.Duration
}

// Result is the outcome of a transcription run. DetectedLanguage is the
// normalized hint when one was supplied, otherwise the code the tool
// reported on stderr.
type Result struct {
	Segments         []subtitles.Segment
	DetectedLanguage string
}

// TranscriptionError reports a decode failure partway through a run.
// Produced counts the segments already delivered before the tool died.
type TranscriptionError struct {
	Produced int
	Cause    error
}

func (e *TranscriptionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("transcription failed after %d segments", e.Produced)
	}
	return fmt.Sprintf("transcription failed after %d segments: %v", e.Produced, e.Cause)
}

func (e *TranscriptionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{services.ErrTranscription}
	}
	return []error{services.ErrTranscription, e.Cause}
}

// Recognizer invokes the speech-to-text CLI and parses its output.
type Recognizer struct {
	binary   string
	registry *Registry
	logger   *slog.Logger
	exec     Executor
}

// NewRecognizer constructs a recognizer around the whisper-style binary.
// Model handles come from the registry.
func NewRecognizer(binary string, registry *Registry, logger *slog.Logger) *Recognizer {
	if strings.TrimSpace(binary) == "" {
		binary = "whisper-cli"
	}
	return &Recognizer{
		binary:   binary,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "recognizer"),
		exec:     commandExecutor{},
	}
}

// WithExecutor injects a custom executor (primarily for tests).
func (r *Recognizer) WithExecutor(exec Executor) {
	if r != nil && exec != nil {
		r.exec = exec
	}
}

// Transcribe runs the tool to completion and returns normalized segments.
func (r *Recognizer) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	result, err := r.TranscribeStream(ctx, audioPath, opts, nil, nil)
	result.Segments = subtitles.Normalize(result.Segments)
	return result, err
}

// TranscribeStream runs the tool and delivers each decoded segment to sink
// as it is parsed. Segment timestamps are clamped with a one-segment
// lookahead so delivered segments never overlap their successor. sink and
// onProgress are invoked from the decode goroutines. On failure the
// already-delivered segments are returned alongside the error.
func (r *Recognizer) TranscribeStream(ctx context.Context, audioPath string, opts Options, sink func(subtitles.Segment), onProgress func(float64)) (Result, error) {
	if strings.TrimSpace(audioPath) == "" {
		return Result{}, services.Wrap(services.ErrTranscription, "transcribing", "transcribe audio", "audio path is required", nil)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return Result{}, services.Wrap(services.ErrTranscription, "transcribing", "transcribe audio", "audio not readable", err)
	}
	if r.registry == nil {
		return Result{}, services.Wrap(services.ErrModelLoad, "transcribing", "acquire model", "no model registry configured", nil)
	}
	model, err := r.registry.Acquire(opts.Model)
	if err != nil {
		return Result{}, err
	}

	hint := language.Normalize(opts.Language)
	args := buildArgs(model.Path, audioPath, hint, opts.Threads)

	r.logger.Info("transcribing audio",
		logging.String("audio", audioPath),
		logging.String("model", model.Key),
		logging.String("language", hint),
	)

	progress := &progressSink{fn: onProgress, total: opts.Duration}
	stream := &segmentStream{ctx: ctx, sink: sink, progress: progress}
	watcher := &stderrWatcher{progress: progress}

	runErr := r.exec.Run(ctx, r.binary, args, stream.consume, watcher.consume)
	stream.flush()

	result := Result{Segments: stream.segments, DetectedLanguage: hint}
	if result.DetectedLanguage == "" {
		result.DetectedLanguage = watcher.detected
	}
	if runErr != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, &TranscriptionError{Produced: len(result.Segments), Cause: runErr}
	}
	progress.completed()

	r.logger.Info("transcription finished",
		logging.Int("segments", len(result.Segments)),
		logging.String("detected_language", result.DetectedLanguage),
	)
	return result, nil
}

func buildArgs(modelPath, audioPath, lang string, threads int) []string {
	args := make([]string, 0, 10)
	args = append(args, "-m", modelPath, "-f", audioPath)
	if lang != "" {
		args = append(args, "-l", lang)
	} else {
		args = append(args, "-l", "auto")
	}
	if threads > 0 {
		args = append(args, "-t", strconv.Itoa(threads))
	}
	args = append(args, "--print-progress")
	return args
}

// progressSink merges progress estimates from both output streams into a
// single monotonic 0..1 series. Safe for concurrent use.
type progressSink struct {
	fn    func(float64)
	total time.Duration

	mu   sync.Mutex
	last float64
}

func (s *progressSink) fraction(f float64) {
	if s == nil || s.fn == nil {
		return
	}
	if f > 1 {
		f = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f <= s.last {
		return
	}
	s.last = f
	s.fn(f)
}

func (s *progressSink) timestamp(processed time.Duration) {
	if s == nil || s.total <= 0 {
		return
	}
	s.fraction(float64(processed) / float64(s.total))
}

func (s *progressSink) completed() {
	s.fraction(1)
}

// segmentStream parses stdout segment lines and holds one segment back so
// its end can be clamped to the next segment's start before delivery.
type segmentStream struct {
	ctx      context.Context
	sink     func(subtitles.Segment)
	progress *progressSink

	pending  *subtitles.Segment
	segments []subtitles.Segment
	count    int
}

func (s *segmentStream) consume(line string) {
	if s.ctx.Err() != nil {
		return
	}
	seg, ok := parseSegmentLine(line)
	if !ok {
		return
	}
	s.count++
	seg.Index = s.count
	if s.pending != nil {
		prev := *s.pending
		if prev.End > seg.Start {
			prev.End = seg.Start
			if prev.End < prev.Start {
				prev.Start = prev.End
			}
		}
		s.emit(prev)
	}
	s.pending = &seg
	s.progress.timestamp(seg.End)
}

// flush emits the held-back final segment. Call after the tool exits.
func (s *segmentStream) flush() {
	if s.pending != nil {
		s.emit(*s.pending)
		s.pending = nil
	}
}

func (s *segmentStream) emit(seg subtitles.Segment) {
	s.segments = append(s.segments, seg)
	if s.sink != nil {
		s.sink(seg)
	}
}

// parseSegmentLine decodes the tool's per-segment stdout format:
//
//	[00:00:00.000 --> 00:00:05.280]   text
func parseSegmentLine(line string) (subtitles.Segment, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return subtitles.Segment{}, false
	}
	closing := strings.Index(line, "]")
	if closing < 0 {
		return subtitles.Segment{}, false
	}
	startRaw, endRaw, ok := strings.Cut(line[1:closing], "-->")
	if !ok {
		return subtitles.Segment{}, false
	}
	start, err := subtitles.ParseTimestamp(strings.TrimSpace(startRaw))
	if err != nil {
		return subtitles.Segment{}, false
	}
	end, err := subtitles.ParseTimestamp(strings.TrimSpace(endRaw))
	if err != nil {
		return subtitles.Segment{}, false
	}
	text := strings.TrimSpace(line[closing+1:])
	if text == "" {
		return subtitles.Segment{}, false
	}
	return subtitles.Segment{Start: start, End: end, Text: text}, true
}

// stderrWatcher scrapes the detected-language line and decode progress from
// diagnostics. detected is read only after the run finishes.
type stderrWatcher struct {
	progress *progressSink
	detected string
}

func (w *stderrWatcher) consume(line string) {
	if lang, ok := parseDetectedLanguage(line); ok {
		w.detected = lang
	}
	if pct, ok := parseProgressPercent(line); ok {
		w.progress.fraction(pct)
	}
}

func parseDetectedLanguage(line string) (string, bool) {
	const marker = "auto-detected language:"
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimSpace(line[idx+len(marker):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	code := language.Normalize(fields[0])
	if code == "" {
		return "", false
	}
	return code, true
}

func parseProgressPercent(line string) (float64, bool) {
	const marker = "progress ="
	idx := strings.Index(line, marker)
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[idx+len(marker):])
	rest = strings.TrimSpace(strings.TrimSuffix(rest, "%"))
	pct, err := strconv.ParseFloat(rest, 64)
	if err != nil || pct < 0 {
		return 0, false
	}
	return pct / 100, true
}
