package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	textlanguage "golang.org/x/text/language"

	"glossa/internal/config"
	"glossa/internal/language"
	"glossa/internal/ledger"
	"glossa/internal/services"
	"glossa/internal/services/whisper"
	"glossa/internal/subtitles"
)

// Mode selects what the pipeline produces beyond the transcript.
type Mode string

const (
	// ModeSidecar writes the subtitle file next to the video and stops.
	ModeSidecar Mode = "sidecar"
	// ModeMux stream-copies the video with the subtitle track attached.
	ModeMux Mode = "mux"
	// ModeBurnIn re-encodes the video with cues rendered into the frames.
	ModeBurnIn Mode = "burnin"
)

// ParseMode recognizes a configured or flag-supplied output mode. Empty
// input selects the sidecar default.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(ModeSidecar):
		return ModeSidecar, nil
	case string(ModeMux):
		return ModeMux, nil
	case string(ModeBurnIn), "burn-in":
		return ModeBurnIn, nil
	}
	return "", services.Wrap(services.ErrValidation, "pipeline", "parse output mode", fmt.Sprintf("unknown output mode %q (sidecar, mux, burnin)", value), nil)
}

// supportedExtensions lists the container formats accepted at submission.
var supportedExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mkv":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
}

// Request describes one translation submission. Empty fields fall back to
// the configuration defaults.
type Request struct {
	SourcePath     string
	TargetLanguage string
	// SourceLanguage is optional; empty lets transcription detect it.
	SourceLanguage string
	Model          string
	Engine         string
	OutputMode     string
	OutputDir      string
	Format         string
}

// NewJob validates a request against the configuration and builds the
// pending ledger row the orchestrator will drive. Validation failures never
// touch the ledger.
func NewJob(cfg *config.Config, req Request) (*ledger.Job, error) {
	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", "source path is required", nil)
	}
	absSource, err := filepath.Abs(source)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", fmt.Sprintf("resolve source path %s", source), err)
	}
	info, err := os.Stat(absSource)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", fmt.Sprintf("source file %s is not readable", absSource), err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", fmt.Sprintf("%s is a directory, not a video file", absSource), nil)
	}
	ext := strings.ToLower(filepath.Ext(absSource))
	if !supportedExtensions[ext] {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", fmt.Sprintf("unsupported file extension %q", ext), nil)
	}

	targetInput := strings.TrimSpace(req.TargetLanguage)
	if targetInput == "" {
		targetInput = strings.TrimSpace(cfg.Translation.TargetLanguage)
	}
	if targetInput == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", "target language is required", nil)
	}
	target := language.Normalize(targetInput)
	if target == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", fmt.Sprintf("unrecognized target language %q", targetInput), nil)
	}

	sourceLang := ""
	if declared := strings.TrimSpace(req.SourceLanguage); declared != "" {
		sourceLang = language.Normalize(declared)
		if sourceLang == "" {
			return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", fmt.Sprintf("unrecognized source language %q", declared), nil)
		}
	} else {
		// A bad config hint degrades to auto-detection instead of
		// rejecting every submission.
		sourceLang = language.Normalize(cfg.Transcription.Language)
	}

	model := strings.ToLower(strings.TrimSpace(req.Model))
	if model == "" {
		model = strings.ToLower(strings.TrimSpace(cfg.Transcription.Model))
	}
	if model == "" {
		model = whisper.DefaultModel
	}
	if !whisper.KnownModel(model) {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", fmt.Sprintf("unknown model %q (choose from %s)", model, strings.Join(whisper.ModelKeys(), ", ")), nil)
	}

	engine := strings.ToLower(strings.TrimSpace(req.Engine))
	if engine == "" {
		engine = strings.ToLower(strings.TrimSpace(cfg.Translation.Engine))
	}
	switch engine {
	case "openai", "deepl":
	default:
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", fmt.Sprintf("unknown translation engine %q (openai, deepl)", engine), nil)
	}

	modeInput := req.OutputMode
	if strings.TrimSpace(modeInput) == "" {
		modeInput = cfg.Output.Mode
	}
	mode, err := ParseMode(modeInput)
	if err != nil {
		return nil, err
	}

	formatInput := req.Format
	if strings.TrimSpace(formatInput) == "" {
		formatInput = cfg.Subtitles.Format
	}
	format, err := subtitles.ParseFormat(formatInput)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", "unsupported subtitle format", err)
	}

	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		outputDir = strings.TrimSpace(cfg.Paths.OutputDir)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(absSource)
	}
	outputDir, err = config.ExpandPath(outputDir)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "new job", fmt.Sprintf("resolve output directory %s", req.OutputDir), err)
	}

	return &ledger.Job{
		ID:             uuid.NewString(),
		SourcePath:     absSource,
		Title:          deriveTitle(absSource),
		SourceLanguage: sourceLang,
		TargetLanguage: target,
		Model:          model,
		Engine:         engine,
		OutputMode:     string(mode),
		OutputDir:      outputDir,
		SubtitleFormat: string(format),
		State:          ledger.StatePending,
	}, nil
}

// deriveTitle produces a display title from the source filename: separators
// become spaces, noise characters drop, and the remainder is title-cased.
func deriveTitle(sourcePath string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return "Untitled"
	}
	return cases.Title(textlanguage.Und).String(title)
}

// SidecarPath returns where the subtitle file for source lands in outputDir.
func SidecarPath(source, outputDir string, format subtitles.Format) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(outputDir, stem+"_subtitle"+format.Extension())
}

// VideoPath returns where the muxed or burned-in video copy lands, keeping
// the source container extension.
func VideoPath(source, outputDir string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	return filepath.Join(outputDir, strings.TrimSuffix(base, ext)+"_subtitle"+ext)
}
