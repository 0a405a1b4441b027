package config

import (
	"errors"
	"fmt"

	"glossa/internal/language"
)

// WhisperModels lists the recognized model keys in size order.
var WhisperModels = []string{"tiny", "base", "small", "medium", "large-v2"}

// TranslationEngines lists the supported translation providers.
var TranslationEngines = []string{"openai", "deepl"}

// OutputModes lists the supported output modes.
var OutputModes = []string{"sidecar", "mux", "burnin"}

// SubtitleFormats lists the supported sidecar grammars.
var SubtitleFormats = []string{"srt", "vtt"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.WorkDir == "" {
		return errors.New("paths.work_dir must be set")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if !containsString(WhisperModels, c.Transcription.Model) {
		return fmt.Errorf("transcription.model must be one of %v, got %q", WhisperModels, c.Transcription.Model)
	}
	if c.Transcription.Language != "" && language.Normalize(c.Transcription.Language) == "" {
		return fmt.Errorf("transcription.language: unrecognized language %q", c.Transcription.Language)
	}
	if c.Transcription.Threads < 0 {
		return errors.New("transcription.threads must not be negative")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if !containsString(TranslationEngines, c.Translation.Engine) {
		return fmt.Errorf("translation.engine must be one of %v, got %q", TranslationEngines, c.Translation.Engine)
	}
	if c.Translation.TargetLanguage != "" && language.Normalize(c.Translation.TargetLanguage) == "" {
		return fmt.Errorf("translation.target_language: unrecognized language %q", c.Translation.TargetLanguage)
	}
	positives := []struct {
		key   string
		value int
	}{
		{"translation.batch_size", c.Translation.BatchSize},
		{"translation.concurrency", c.Translation.Concurrency},
		{"translation.max_attempts", c.Translation.MaxAttempts},
		{"translation.initial_backoff_ms", c.Translation.InitialBackoffMS},
		{"translation.max_backoff_ms", c.Translation.MaxBackoffMS},
		{"translation.timeout_seconds", c.Translation.TimeoutSeconds},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive", p.key)
		}
	}
	if c.Translation.MaxBackoffMS < c.Translation.InitialBackoffMS {
		return errors.New("translation.max_backoff_ms must be at least translation.initial_backoff_ms")
	}
	switch c.Translation.Formality {
	case "", "default", "more", "less", "prefer_more", "prefer_less":
	default:
		return fmt.Errorf("translation.formality: unsupported value %q", c.Translation.Formality)
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if !containsString(SubtitleFormats, c.Subtitles.Format) {
		return fmt.Errorf("subtitles.format must be one of %v, got %q", SubtitleFormats, c.Subtitles.Format)
	}
	if c.Subtitles.MaxLineChars < 8 {
		return errors.New("subtitles.max_line_chars must be at least 8")
	}
	if c.Subtitles.MaxLines < 1 || c.Subtitles.MaxLines > 4 {
		return errors.New("subtitles.max_lines must be between 1 and 4")
	}
	if c.Subtitles.MinCueSeconds <= 0 {
		return errors.New("subtitles.min_cue_seconds must be positive")
	}
	if c.Subtitles.MaxCueSeconds <= c.Subtitles.MinCueSeconds {
		return errors.New("subtitles.max_cue_seconds must be greater than subtitles.min_cue_seconds")
	}
	if c.Subtitles.MergeGapMS < 0 {
		return errors.New("subtitles.merge_gap_ms must not be negative")
	}
	return nil
}

func (c *Config) validateOutput() error {
	if !containsString(OutputModes, c.Output.Mode) {
		return fmt.Errorf("output.mode must be one of %v, got %q", OutputModes, c.Output.Mode)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.HeartbeatInterval <= 0 {
		return errors.New("daemon.heartbeat_interval must be positive")
	}
	if c.Daemon.HeartbeatTimeout <= 0 {
		return errors.New("daemon.heartbeat_timeout must be positive")
	}
	if c.Daemon.HeartbeatTimeout <= c.Daemon.HeartbeatInterval {
		return errors.New("daemon.heartbeat_timeout must be greater than daemon.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

func containsString(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}
