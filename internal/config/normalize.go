package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	if err := c.normalizeTranscription(); err != nil {
		return err
	}
	c.normalizeTranslation()
	c.normalizeSubtitles()
	c.normalizeOutput()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	c.Paths.OutputDir = strings.TrimSpace(c.Paths.OutputDir)
	if c.Paths.OutputDir != "" {
		if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
			return fmt.Errorf("paths.output_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	c.Tools.Whisper = strings.TrimSpace(c.Tools.Whisper)
}

func (c *Config) normalizeTranscription() error {
	c.Transcription.Model = strings.ToLower(strings.TrimSpace(c.Transcription.Model))
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperModel
	}
	if strings.TrimSpace(c.Transcription.ModelDir) == "" {
		c.Transcription.ModelDir = defaultModelDir
	}
	var err error
	if c.Transcription.ModelDir, err = expandPath(c.Transcription.ModelDir); err != nil {
		return fmt.Errorf("transcription.model_dir: %w", err)
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	return nil
}

func (c *Config) normalizeTranslation() {
	c.Translation.Engine = strings.ToLower(strings.TrimSpace(c.Translation.Engine))
	if c.Translation.Engine == "" {
		c.Translation.Engine = defaultTranslationEngine
	}
	c.Translation.APIKey = strings.TrimSpace(c.Translation.APIKey)
	switch c.Translation.Engine {
	case "openai":
		if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
			c.Translation.APIKey = value
		}
	case "deepl":
		if value := strings.TrimSpace(os.Getenv("DEEPL_API_KEY")); value != "" {
			c.Translation.APIKey = value
		}
	}
	c.Translation.BaseURL = strings.TrimSpace(c.Translation.BaseURL)
	c.Translation.Model = strings.TrimSpace(c.Translation.Model)
	if c.Translation.Model == "" {
		c.Translation.Model = defaultTranslationModel
	}
	c.Translation.TargetLanguage = strings.ToLower(strings.TrimSpace(c.Translation.TargetLanguage))
	if c.Translation.BatchSize <= 0 {
		c.Translation.BatchSize = defaultBatchSize
	}
	if c.Translation.Concurrency <= 0 {
		c.Translation.Concurrency = defaultConcurrency
	}
	if c.Translation.MaxAttempts <= 0 {
		c.Translation.MaxAttempts = defaultMaxAttempts
	}
	if c.Translation.InitialBackoffMS <= 0 {
		c.Translation.InitialBackoffMS = defaultInitialBackoffMS
	}
	if c.Translation.MaxBackoffMS <= 0 {
		c.Translation.MaxBackoffMS = defaultMaxBackoffMS
	}
	if c.Translation.TimeoutSeconds <= 0 {
		c.Translation.TimeoutSeconds = defaultTranslationTimeout
	}
	c.Translation.Formality = strings.ToLower(strings.TrimSpace(c.Translation.Formality))
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Format = strings.ToLower(strings.TrimSpace(c.Subtitles.Format))
	if c.Subtitles.Format == "" {
		c.Subtitles.Format = defaultSubtitleFormat
	}
	if c.Subtitles.MaxLineChars <= 0 {
		c.Subtitles.MaxLineChars = defaultMaxLineChars
	}
	if c.Subtitles.MaxLines <= 0 {
		c.Subtitles.MaxLines = defaultMaxLines
	}
	if c.Subtitles.MinCueSeconds <= 0 {
		c.Subtitles.MinCueSeconds = defaultMinCueSeconds
	}
	if c.Subtitles.MaxCueSeconds <= 0 {
		c.Subtitles.MaxCueSeconds = defaultMaxCueSeconds
	}
	if c.Subtitles.MergeGapMS < 0 {
		c.Subtitles.MergeGapMS = defaultMergeGapMS
	}
}

func (c *Config) normalizeOutput() {
	c.Output.Mode = strings.ToLower(strings.TrimSpace(c.Output.Mode))
	if c.Output.Mode == "" {
		c.Output.Mode = defaultOutputMode
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
