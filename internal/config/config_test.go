package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"glossa/internal/config"
)

func TestLoadDefaultConfigUsesEnvAPIKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "glossa", "state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.OutputDir != "" {
		t.Fatalf("expected empty output dir by default, got %q", cfg.Paths.OutputDir)
	}
	if cfg.Transcription.Model != "base" {
		t.Fatalf("unexpected model: %q", cfg.Transcription.Model)
	}
	if cfg.Transcription.ModelDir != filepath.Join(tempHome, ".local", "share", "glossa", "models") {
		t.Fatalf("unexpected model dir: %q", cfg.Transcription.ModelDir)
	}
	if cfg.Transcription.Language != "" {
		t.Fatalf("expected auto-detect language by default, got %q", cfg.Transcription.Language)
	}
	if cfg.Translation.Engine != "openai" {
		t.Fatalf("unexpected engine: %q", cfg.Translation.Engine)
	}
	if cfg.Translation.APIKey != "test-key" {
		t.Fatalf("expected API key from env, got %q", cfg.Translation.APIKey)
	}
	if cfg.Translation.BatchSize != config.Default().Translation.BatchSize {
		t.Fatalf("unexpected batch size: %d", cfg.Translation.BatchSize)
	}
	if cfg.Subtitles.Format != "srt" {
		t.Fatalf("unexpected subtitle format: %q", cfg.Subtitles.Format)
	}
	if cfg.Subtitles.Bilingual {
		t.Fatal("expected bilingual disabled by default")
	}
	if cfg.Output.Mode != "sidecar" {
		t.Fatalf("unexpected output mode: %q", cfg.Output.Mode)
	}
	if cfg.Daemon.HeartbeatInterval != config.Default().Daemon.HeartbeatInterval {
		t.Fatalf("unexpected heartbeat interval: %d", cfg.Daemon.HeartbeatInterval)
	}
	if cfg.FFmpegBinary() != "ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary: %q", cfg.FFmpegBinary())
	}
	if cfg.DatabasePath() != filepath.Join(wantState, "glossa.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.WorkDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "glossa.toml")

	type payload struct {
		Translation struct {
			APIKey         string `toml:"api_key"`
			TargetLanguage string `toml:"target_language"`
			BatchSize      int    `toml:"batch_size"`
		} `toml:"translation"`
		Transcription struct {
			Model string `toml:"model"`
		} `toml:"transcription"`
		Subtitles struct {
			Bilingual bool `toml:"bilingual"`
		} `toml:"subtitles"`
		Daemon struct {
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"daemon"`
	}
	custom := payload{}
	custom.Translation.APIKey = "abc123"
	custom.Translation.TargetLanguage = "FR"
	custom.Translation.BatchSize = 5
	custom.Transcription.Model = "Small"
	custom.Subtitles.Bilingual = true
	custom.Daemon.HeartbeatInterval = 20
	custom.Daemon.HeartbeatTimeout = 200
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "")

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Translation.APIKey != "abc123" {
		t.Fatalf("expected API key from file, got %q", cfg.Translation.APIKey)
	}
	if cfg.Translation.TargetLanguage != "fr" {
		t.Fatalf("expected target language lowered to fr, got %q", cfg.Translation.TargetLanguage)
	}
	if cfg.Translation.BatchSize != 5 {
		t.Fatalf("expected batch size 5, got %d", cfg.Translation.BatchSize)
	}
	if cfg.Transcription.Model != "small" {
		t.Fatalf("expected model lowered to small, got %q", cfg.Transcription.Model)
	}
	if !cfg.Subtitles.Bilingual {
		t.Fatal("expected bilingual enabled")
	}
	if cfg.Daemon.HeartbeatInterval != 20 {
		t.Fatalf("expected heartbeat interval 20, got %d", cfg.Daemon.HeartbeatInterval)
	}
	if cfg.Daemon.HeartbeatTimeout != 200 {
		t.Fatalf("expected heartbeat timeout 200, got %d", cfg.Daemon.HeartbeatTimeout)
	}
}

func TestEnvVarOverridesConfigFileForAPIKey(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "glossa.toml")

	type payload struct {
		Translation struct {
			Engine string `toml:"engine"`
			APIKey string `toml:"api_key"`
		} `toml:"translation"`
	}
	custom := payload{}
	custom.Translation.Engine = "deepl"
	custom.Translation.APIKey = "file-key"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("DEEPL_API_KEY", "env-key")
	t.Setenv("OPENAI_API_KEY", "wrong-engine-key")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Translation.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", cfg.Translation.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "whisper-cli") {
		t.Fatalf("sample config missing whisper binary default: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Transcription.Model != "base" {
		t.Fatalf("expected sample model base, got %q", cfg.Transcription.Model)
	}
	if cfg.Translation.BatchSize != config.Default().Translation.BatchSize {
		t.Fatalf("expected sample batch size to match defaults, got %d", cfg.Translation.BatchSize)
	}
	if cfg.Subtitles.MaxLineChars != config.Default().Subtitles.MaxLineChars {
		t.Fatalf("expected sample line width to match defaults, got %d", cfg.Subtitles.MaxLineChars)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.Model = "huge"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown whisper model")
	}

	cfg = config.Default()
	cfg.Transcription.Language = "klingon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unrecognized source language")
	}

	cfg = config.Default()
	cfg.Translation.Engine = "google"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown translation engine")
	}

	cfg = config.Default()
	cfg.Translation.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive max attempts")
	}

	cfg = config.Default()
	cfg.Translation.MaxBackoffMS = cfg.Translation.InitialBackoffMS - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max backoff below initial backoff")
	}

	cfg = config.Default()
	cfg.Subtitles.MaxCueSeconds = cfg.Subtitles.MinCueSeconds
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max cue duration <= min cue duration")
	}

	cfg = config.Default()
	cfg.Output.Mode = "stream"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown output mode")
	}

	cfg = config.Default()
	cfg.Daemon.HeartbeatTimeout = cfg.Daemon.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when heartbeat timeout <= interval")
	}

	cfg = config.Default()
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}
