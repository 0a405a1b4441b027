package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"glossa/internal/ledger"
	"glossa/internal/pipeline"
)

func TestProgressRendererPrintsMessageTransitions(t *testing.T) {
	var buf bytes.Buffer
	r := newProgressRenderer(&buf)

	r.handle(pipeline.Event{Stage: "extracting", Percent: 0, Message: "extracting audio"})
	r.handle(pipeline.Event{Stage: "extracting", Percent: 60, Message: "extracting audio"})
	r.handle(pipeline.Event{Stage: "transcribing", Percent: 5, Message: "transcribing speech"})
	r.handle(pipeline.Event{Terminal: true, State: ledger.StateCompleted})
	r.finish()

	out := buf.String()
	requireContains(t, out, "extracting audio")
	requireContains(t, out, "transcribing speech")
	if got := strings.Count(out, "\n"); got != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", got, out)
	}
	if strings.Contains(out, "\r") {
		t.Fatalf("non-terminal output must not rewrite lines: %q", out)
	}
}

func TestProgressRendererSkipsTerminalEvents(t *testing.T) {
	var buf bytes.Buffer
	r := newProgressRenderer(&buf)

	r.handle(pipeline.Event{Terminal: true, State: ledger.StateFailed, Message: "boom"})
	r.finish()

	if buf.Len() != 0 {
		t.Fatalf("terminal events must not render: %q", buf.String())
	}
}

func TestSubmitRequestResolvesRelativePaths(t *testing.T) {
	opts := requestOptions{target: "fr", outputDir: "out"}

	req, err := opts.submitRequest("movie.mkv")
	if err != nil {
		t.Fatalf("submitRequest: %v", err)
	}
	if !filepath.IsAbs(req.SourcePath) {
		t.Fatalf("source path not absolute: %q", req.SourcePath)
	}
	if !filepath.IsAbs(req.OutputDir) {
		t.Fatalf("output dir not absolute: %q", req.OutputDir)
	}
	if req.TargetLanguage != "fr" {
		t.Fatalf("target language lost: %q", req.TargetLanguage)
	}
}

func TestSubmitRequestLeavesOutputDirEmpty(t *testing.T) {
	opts := requestOptions{}

	req, err := opts.submitRequest("/videos/movie.mkv")
	if err != nil {
		t.Fatalf("submitRequest: %v", err)
	}
	if req.OutputDir != "" {
		t.Fatalf("empty output dir must stay empty, got %q", req.OutputDir)
	}
}
