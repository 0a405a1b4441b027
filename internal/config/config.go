package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// StateDir holds the job ledger, daemon lock, PID file, and control socket.
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	// WorkDir holds per-job temporary workspaces (extracted audio and mux
	// scratch files). Workspaces are removed when their job ends.
	WorkDir string `toml:"work_dir"`
	// OutputDir receives sidecar and video outputs. Empty means "alongside
	// the source file".
	OutputDir string `toml:"output_dir"`
}

// Tools contains the external binaries the pipeline invokes.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	Whisper string `toml:"whisper"`
}

// Transcription contains speech-to-text settings.
type Transcription struct {
	// Model is the whisper model key: tiny, base, small, medium, large-v2.
	Model string `toml:"model"`
	// ModelDir is where ggml-<model>.bin weight files live.
	ModelDir string `toml:"model_dir"`
	// Language hints the source language (ISO 639-1). Empty enables
	// auto-detection.
	Language string `toml:"language"`
	// Threads caps decoder threads. Zero uses the tool default.
	Threads int `toml:"threads"`
}

// Translation contains translation engine settings.
type Translation struct {
	// Engine selects the provider: openai or deepl.
	Engine  string `toml:"engine"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	// Model is the chat model used by the openai engine.
	Model string `toml:"model"`
	// TargetLanguage is the default target (ISO 639-1); the CLI overrides it
	// per job.
	TargetLanguage   string `toml:"target_language"`
	BatchSize        int    `toml:"batch_size"`
	Concurrency      int    `toml:"concurrency"`
	MaxAttempts      int    `toml:"max_attempts"`
	InitialBackoffMS int    `toml:"initial_backoff_ms"`
	MaxBackoffMS     int    `toml:"max_backoff_ms"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	// Formality is forwarded to DeepL: default, more, less, prefer_more,
	// prefer_less.
	Formality string `toml:"formality"`
}

// Subtitles contains cue assembly and sidecar formatting settings.
type Subtitles struct {
	// Format selects the sidecar grammar: srt or vtt.
	Format string `toml:"format"`
	// Bilingual appends the source text under the translated line.
	Bilingual     bool    `toml:"bilingual"`
	MaxLineChars  int     `toml:"max_line_chars"`
	MaxLines      int     `toml:"max_lines"`
	MinCueSeconds float64 `toml:"min_cue_seconds"`
	MaxCueSeconds float64 `toml:"max_cue_seconds"`
	MergeGapMS    int     `toml:"merge_gap_ms"`
}

// Output contains the default output mode.
type Output struct {
	// Mode is sidecar, mux, or burnin. The sidecar is always written; mux
	// and burnin additionally produce a video file.
	Mode string `toml:"mode"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Daemon contains daemon timing configuration.
type Daemon struct {
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for glossa.
//
// Configuration sections by subsystem:
//   - Paths: state, log, work, and output directories
//   - Tools: external binary names or paths (ffmpeg, ffprobe, whisper)
//   - Transcription: model selection and recognizer tuning
//   - Translation: engine, credentials, batching, and retry policy
//   - Subtitles: cue readability thresholds and sidecar format
//   - Output: default output mode
//   - Notifications: ntfy push notification settings
//   - Daemon: heartbeat cadence for stale-job detection
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	Transcription Transcription `toml:"transcription"`
	Translation   Translation   `toml:"translation"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Output        Output        `toml:"output"`
	Notifications Notifications `toml:"notifications"`
	Daemon        Daemon        `toml:"daemon"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/glossa/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("glossa.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so startup survives external
// storage being temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name or path.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Tools.FFmpeg); v != "" {
		return v
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name or path.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.Tools.FFprobe); v != "" {
		return v
	}
	return defaultFFprobeBinary
}

// WhisperBinary returns the whisper CLI executable name or path.
func (c *Config) WhisperBinary() string {
	if v := strings.TrimSpace(c.Tools.Whisper); v != "" {
		return v
	}
	return defaultWhisperBinary
}

// DatabasePath returns the job ledger location inside the state directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "glossa.db")
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "glossa.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "glossad.lock")
}

// PIDPath returns the daemon PID file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "glossad.pid")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
