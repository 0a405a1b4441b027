package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"glossa/internal/services"
	"glossa/internal/services/ffmpeg"
)

// wavWritingExecutor emits the given progress lines and writes the extraction
// destination so Extract succeeds.
type wavWritingExecutor struct {
	lines []string
	args  [][]string
}

func (w *wavWritingExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	w.args = append(w.args, append([]string(nil), args...))
	for _, line := range w.lines {
		if onStdout != nil {
			onStdout(line)
		}
	}
	dest := args[len(args)-1]
	return os.WriteFile(dest, []byte("RIFF fake wav"), 0o644)
}

func writeSourceVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movie.mkv")
	if err := os.WriteFile(path, []byte("fake video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func TestExtractBuildsRecognizerArgs(t *testing.T) {
	source := writeSourceVideo(t)
	dest := filepath.Join(t.TempDir(), "audio.wav")
	exec := &wavWritingExecutor{}

	extractor := ffmpeg.NewExtractor("ffmpeg", nil)
	extractor.WithExecutor(exec)

	track, err := extractor.Extract(context.Background(), source, dest, 0, nil)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(exec.args) != 1 {
		t.Fatalf("expected one ffmpeg invocation, got %d", len(exec.args))
	}
	expectedArgs := []string{
		"-hide_banner", "-nostdin",
		"-i", source,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-progress", "pipe:1",
		"-y", dest,
	}
	if !equalStrings(exec.args[0], expectedArgs) {
		t.Fatalf("unexpected ffmpeg args: got %v want %v", exec.args[0], expectedArgs)
	}
	if track.Path != dest {
		t.Errorf("expected track path %q, got %q", dest, track.Path)
	}
	if track.SampleRate != 16000 || track.Channels != 1 {
		t.Errorf("expected 16kHz mono track, got %d Hz %d ch", track.SampleRate, track.Channels)
	}
}

func TestExtractReportsMonotonicProgress(t *testing.T) {
	source := writeSourceVideo(t)
	dest := filepath.Join(t.TempDir(), "audio.wav")
	exec := &wavWritingExecutor{lines: []string{
		"out_time_us=2000000",
		"out_time=00:00:02.000000",
		"out_time_us=5000000",
		"out_time_us=4000000",
		"frame=120",
		"progress=continue",
		"out_time_us=10000000",
		"progress=end",
	}}

	extractor := ffmpeg.NewExtractor("", nil)
	extractor.WithExecutor(exec)

	var fractions []float64
	_, err := extractor.Extract(context.Background(), source, dest, 10*time.Second, func(f float64) {
		fractions = append(fractions, f)
	})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(fractions) == 0 {
		t.Fatal("expected progress callbacks")
	}
	for i := 1; i < len(fractions); i++ {
		if fractions[i] <= fractions[i-1] {
			t.Fatalf("expected strictly increasing fractions, got %v", fractions)
		}
	}
	for _, f := range fractions {
		if f < 0 || f > 1 {
			t.Fatalf("fraction out of range: %v", fractions)
		}
	}
	if fractions[len(fractions)-1] != 1 {
		t.Fatalf("expected final fraction 1, got %v", fractions[len(fractions)-1])
	}
	// 2s, 5s, 10s of a 10s total; the 4s regression and frame lines are ignored.
	expected := []float64{0.2, 0.5, 1}
	if len(fractions) != len(expected) {
		t.Fatalf("expected fractions %v, got %v", expected, fractions)
	}
	for i := range expected {
		if diff := fractions[i] - expected[i]; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("expected fractions %v, got %v", expected, fractions)
		}
	}
}

func TestExtractSilentWithoutTotalDuration(t *testing.T) {
	source := writeSourceVideo(t)
	dest := filepath.Join(t.TempDir(), "audio.wav")
	exec := &wavWritingExecutor{lines: []string{"out_time_us=2000000", "progress=end"}}

	extractor := ffmpeg.NewExtractor("", nil)
	extractor.WithExecutor(exec)

	var fractions []float64
	_, err := extractor.Extract(context.Background(), source, dest, 0, func(f float64) {
		fractions = append(fractions, f)
	})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	// Without a known total only the final completion callback fires.
	if len(fractions) != 1 || fractions[0] != 1 {
		t.Fatalf("expected single completion callback, got %v", fractions)
	}
}

func TestExtractRemovesPartialOutputOnFailure(t *testing.T) {
	source := writeSourceVideo(t)
	dest := filepath.Join(t.TempDir(), "audio.wav")

	exec := &failingExecutor{err: errors.New("exit status 1"), writeDest: true}
	extractor := ffmpeg.NewExtractor("", nil)
	extractor.WithExecutor(exec)

	_, err := extractor.Extract(context.Background(), source, dest, 0, nil)
	if !errors.Is(err, services.ErrMedia) {
		t.Fatalf("expected media error, got: %v", err)
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected partial output removed, stat err=%v", statErr)
	}
}

func TestExtractRemovesPartialOutputOnCancellation(t *testing.T) {
	source := writeSourceVideo(t)
	dest := filepath.Join(t.TempDir(), "audio.wav")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &failingExecutor{err: context.Canceled, writeDest: true}
	extractor := ffmpeg.NewExtractor("", nil)
	extractor.WithExecutor(exec)

	_, err := extractor.Extract(ctx, source, dest, 0, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
	if services.Kind(err) != "cancelled" {
		t.Fatalf("expected cancelled kind, got %q", services.Kind(err))
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("expected partial output removed, stat err=%v", statErr)
	}
}

func TestExtractErrorsWhenNoAudioProduced(t *testing.T) {
	source := writeSourceVideo(t)
	dest := filepath.Join(t.TempDir(), "audio.wav")

	// Executor succeeds without writing the destination.
	extractor := ffmpeg.NewExtractor("", nil)
	extractor.WithExecutor(&scriptedExecutor{})

	_, err := extractor.Extract(context.Background(), source, dest, 0, nil)
	if !errors.Is(err, services.ErrMedia) {
		t.Fatalf("expected media error for missing output, got: %v", err)
	}
}

func TestExtractRequiresExistingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "audio.wav")
	extractor := ffmpeg.NewExtractor("", nil)
	extractor.WithExecutor(&scriptedExecutor{})

	_, err := extractor.Extract(context.Background(), "/nonexistent/movie.mkv", dest, 0, nil)
	if !errors.Is(err, services.ErrMedia) {
		t.Fatalf("expected media error for missing source, got: %v", err)
	}
}

func TestAudioTrackRemoveToleratesMissingFile(t *testing.T) {
	track := ffmpeg.AudioTrack{Path: filepath.Join(t.TempDir(), "gone.wav")}
	if err := track.Remove(); err != nil {
		t.Fatalf("Remove returned error for missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("wav"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	track = ffmpeg.AudioTrack{Path: path}
	if err := track.Remove(); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected audio file removed, stat err=%v", err)
	}
}

// failingExecutor optionally writes the destination before failing, modeling
// ffmpeg dying mid-write.
type failingExecutor struct {
	err       error
	writeDest bool
}

func (f *failingExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	if f.writeDest {
		dest := args[len(args)-1]
		if err := os.WriteFile(dest, []byte("partial"), 0o644); err != nil {
			return err
		}
	}
	return f.err
}
