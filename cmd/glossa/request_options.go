package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"glossa/internal/ipc"
	"glossa/internal/pipeline"
)

// requestOptions holds the per-job flags shared by translate and submit.
type requestOptions struct {
	target         string
	sourceLanguage string
	model          string
	engine         string
	outputMode     string
	outputDir      string
	format         string
}

func (o *requestOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.target, "target", "t", "", "Target language (defaults to translation.target_language)")
	flags.StringVarP(&o.sourceLanguage, "source-language", "s", "", "Spoken language hint, empty auto-detects")
	flags.StringVar(&o.model, "model", "", "Whisper model to transcribe with")
	flags.StringVar(&o.engine, "engine", "", "Translation engine (openai or deepl)")
	flags.StringVar(&o.outputMode, "mode", "", "Output mode: sidecar, mux, or burnin")
	flags.StringVarP(&o.outputDir, "output-dir", "o", "", "Directory for produced files (defaults to the source directory)")
	flags.StringVar(&o.format, "format", "", "Subtitle format: srt or vtt")
}

// request builds an in-process pipeline request. Paths stay as given since
// the pipeline resolves them against this process's working directory.
func (o *requestOptions) request(sourcePath string) pipeline.Request {
	return pipeline.Request{
		SourcePath:     sourcePath,
		TargetLanguage: o.target,
		SourceLanguage: o.sourceLanguage,
		Model:          o.model,
		Engine:         o.engine,
		OutputMode:     o.outputMode,
		OutputDir:      o.outputDir,
		Format:         o.format,
	}
}

// submitRequest builds the wire request for the daemon. Relative paths are
// resolved here because the daemon's working directory is not ours.
func (o *requestOptions) submitRequest(sourcePath string) (ipc.SubmitRequest, error) {
	absSource, err := filepath.Abs(sourcePath)
	if err != nil {
		return ipc.SubmitRequest{}, fmt.Errorf("resolve source path %s: %w", sourcePath, err)
	}
	outputDir := strings.TrimSpace(o.outputDir)
	if outputDir != "" {
		outputDir, err = filepath.Abs(outputDir)
		if err != nil {
			return ipc.SubmitRequest{}, fmt.Errorf("resolve output directory %s: %w", o.outputDir, err)
		}
	}
	return ipc.SubmitRequest{
		SourcePath:     absSource,
		TargetLanguage: o.target,
		SourceLanguage: o.sourceLanguage,
		Model:          o.model,
		Engine:         o.engine,
		OutputMode:     o.outputMode,
		OutputDir:      outputDir,
		Format:         o.format,
	}, nil
}
