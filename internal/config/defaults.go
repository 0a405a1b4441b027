package config

const (
	defaultStateDir = "~/.local/share/glossa/state"
	defaultLogDir   = "~/.local/share/glossa/logs"
	defaultWorkDir  = "~/.local/share/glossa/work"
	defaultModelDir = "~/.local/share/glossa/models"

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultWhisperBinary = "whisper-cli"

	defaultWhisperModel = "base"

	defaultTranslationEngine  = "openai"
	defaultTranslationModel   = "gpt-4o-mini"
	defaultBatchSize          = 20
	defaultConcurrency        = 3
	defaultMaxAttempts        = 3
	defaultInitialBackoffMS   = 500
	defaultMaxBackoffMS       = 8000
	defaultTranslationTimeout = 60

	defaultSubtitleFormat = "srt"
	defaultMaxLineChars   = 42
	defaultMaxLines       = 2
	defaultMinCueSeconds  = 1.0
	defaultMaxCueSeconds  = 7.0
	defaultMergeGapMS     = 300

	defaultOutputMode = "sidecar"

	defaultNotifyTimeout     = 10
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			WorkDir:  defaultWorkDir,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpegBinary,
			FFprobe: defaultFFprobeBinary,
			Whisper: defaultWhisperBinary,
		},
		Transcription: Transcription{
			Model:    defaultWhisperModel,
			ModelDir: defaultModelDir,
		},
		Translation: Translation{
			Engine:           defaultTranslationEngine,
			Model:            defaultTranslationModel,
			BatchSize:        defaultBatchSize,
			Concurrency:      defaultConcurrency,
			MaxAttempts:      defaultMaxAttempts,
			InitialBackoffMS: defaultInitialBackoffMS,
			MaxBackoffMS:     defaultMaxBackoffMS,
			TimeoutSeconds:   defaultTranslationTimeout,
		},
		Subtitles: Subtitles{
			Format:        defaultSubtitleFormat,
			MaxLineChars:  defaultMaxLineChars,
			MaxLines:      defaultMaxLines,
			MinCueSeconds: defaultMinCueSeconds,
			MaxCueSeconds: defaultMaxCueSeconds,
			MergeGapMS:    defaultMergeGapMS,
		},
		Output: Output{
			Mode: defaultOutputMode,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Daemon: Daemon{
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
