package subtitles

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRenderSRTByteExact(t *testing.T) {
	track := Track{Cues: []Cue{
		{Index: 1, Start: 2 * time.Second, End: 4500 * time.Millisecond, Lines: []string{"bonjour le monde"}},
		{Index: 2, Start: 3661*time.Second + 7*time.Millisecond, End: 3662 * time.Second, Lines: []string{"ligne un", "ligne deux"}},
	}}
	want := "1\n" +
		"00:00:02,000 --> 00:00:04,500\n" +
		"bonjour le monde\n" +
		"\n" +
		"2\n" +
		"01:01:01,007 --> 01:01:02,000\n" +
		"ligne un\n" +
		"ligne deux\n" +
		"\n"
	if got := string(RenderSRT(track)); got != want {
		t.Fatalf("unexpected srt output:\n%q\nwant:\n%q", got, want)
	}
}

func TestRenderSRTSkipsBlankCues(t *testing.T) {
	track := Track{Cues: []Cue{
		{Index: 1, Start: 0, End: time.Second, Lines: []string{"  "}},
		{Index: 2, Start: 2 * time.Second, End: 3 * time.Second, Lines: []string{"texte"}},
	}}
	want := "1\n00:00:02,000 --> 00:00:03,000\ntexte\n\n"
	if got := string(RenderSRT(track)); got != want {
		t.Fatalf("unexpected srt output:\n%q", got)
	}
}

func TestSRTRoundTripPreservesTimingWithinMillisecond(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var cues []Cue
	cursor := time.Duration(0)
	for i := 0; i < 50; i++ {
		start := cursor + time.Duration(rng.Int63n(int64(5*time.Second)))
		end := start + time.Duration(1+rng.Int63n(int64(6*time.Second)))
		cues = append(cues, Cue{Index: i + 1, Start: start, End: end, Lines: []string{"cue"}})
		cursor = end
	}
	track := Track{Cues: cues}

	parsed, err := ParseSRT(RenderSRT(track))
	if err != nil {
		t.Fatalf("ParseSRT failed: %v", err)
	}
	if len(parsed.Cues) != len(track.Cues) {
		t.Fatalf("cue count changed: got %d want %d", len(parsed.Cues), len(track.Cues))
	}
	for i := range track.Cues {
		if delta := absDuration(parsed.Cues[i].Start - track.Cues[i].Start); delta >= time.Millisecond {
			t.Fatalf("cue %d start drifted %s", i, delta)
		}
		if delta := absDuration(parsed.Cues[i].End - track.Cues[i].End); delta >= time.Millisecond {
			t.Fatalf("cue %d end drifted %s", i, delta)
		}
	}
}

func TestParseSRTToleratesExternalVariants(t *testing.T) {
	raw := "1\r\n00:00:01.250 --> 00:00:03,000\r\nhello\r\n\r\n00:00:04,000 --> 00:00:05,000\nworld\n"
	track, err := ParseSRT([]byte(raw))
	if err != nil {
		t.Fatalf("ParseSRT failed: %v", err)
	}
	if len(track.Cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(track.Cues))
	}
	if track.Cues[0].Start != 1250*time.Millisecond {
		t.Fatalf("unexpected start %s", track.Cues[0].Start)
	}
	if track.Cues[0].Lines[0] != "hello" {
		t.Fatalf("unexpected text %q", track.Cues[0].Lines[0])
	}
	if track.Cues[1].Index != 2 {
		t.Fatalf("expected assigned index 2, got %d", track.Cues[1].Index)
	}
	if track.Cues[1].Lines[0] != "world" {
		t.Fatalf("unexpected text %q", track.Cues[1].Lines[0])
	}
}

func TestParseSRTRejectsMissingTimingLine(t *testing.T) {
	if _, err := ParseSRT([]byte("1\nhello\n\n")); err == nil {
		t.Fatal("expected error for block without timing line")
	}
}

func TestParseSRTEmpty(t *testing.T) {
	track, err := ParseSRT(nil)
	if err != nil {
		t.Fatalf("ParseSRT failed: %v", err)
	}
	if !track.Empty() {
		t.Fatalf("expected empty track, got %d cues", len(track.Cues))
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		input string
		want  time.Duration
		ok    bool
	}{
		{"00:00:00,000", 0, true},
		{"01:02:03,456", time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond, true},
		{"00:00:05.5", 5500 * time.Millisecond, true},
		{"00:01:00", time.Minute, true},
		{"garbage", 0, false},
		{"00:00", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.input)
		if tc.ok && err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.input, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.input)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("%q: got %s want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" SRT "); err != nil || f != FormatSRT {
		t.Fatalf("got %q, %v", f, err)
	}
	if f, err := ParseFormat("vtt"); err != nil || f != FormatVTT {
		t.Fatalf("got %q, %v", f, err)
	}
	if _, err := ParseFormat("ass"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWriteSidecarLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.srt")
	track := Track{Cues: []Cue{{Index: 1, Start: 0, End: time.Second, Lines: []string{"hi"}}}}
	if err := WriteSidecar(track, path, FormatSRT); err != nil {
		t.Fatalf("WriteSidecar failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if string(data) != "1\n00:00:00,000 --> 00:00:01,000\nhi\n\n" {
		t.Fatalf("unexpected sidecar contents %q", data)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the sidecar in %s, found %d entries", dir, len(entries))
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
