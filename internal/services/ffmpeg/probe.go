package ffmpeg

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"glossa/internal/language"
	"glossa/internal/services"
)

// MediaInfo is the parsed ffprobe description of a media file.
type MediaInfo struct {
	Streams []StreamInfo `json:"streams"`
	Format  FormatInfo   `json:"format"`
}

// StreamInfo describes a single stream in the container.
type StreamInfo struct {
	Index      int               `json:"index"`
	CodecName  string            `json:"codec_name"`
	CodecType  string            `json:"codec_type"`
	Channels   int               `json:"channels"`
	SampleRate string            `json:"sample_rate"`
	Tags       map[string]string `json:"tags"`
}

// FormatInfo captures container-level metadata.
type FormatInfo struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// HasAudio reports whether the container carries at least one audio stream.
func (m MediaInfo) HasAudio() bool {
	for _, stream := range m.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return true
		}
	}
	return false
}

// AudioLanguage returns the normalized language of the first tagged audio
// stream, or empty when untagged.
func (m MediaInfo) AudioLanguage() string {
	for _, stream := range m.Streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		if lang := language.FromTags(stream.Tags); lang != "" {
			return lang
		}
	}
	return ""
}

// Duration returns the container duration, or 0 when ffprobe did not report
// one.
func (m MediaInfo) Duration() time.Duration {
	value := strings.TrimSpace(m.Format.Duration)
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// Prober inspects media containers with ffprobe.
type Prober struct {
	binary string
	exec   Executor
}

// NewProber constructs a prober around the ffprobe binary.
func NewProber(binary string) *Prober {
	if strings.TrimSpace(binary) == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary, exec: commandExecutor{}}
}

// WithExecutor injects a custom executor (primarily for tests).
func (p *Prober) WithExecutor(exec Executor) {
	if p != nil && exec != nil {
		p.exec = exec
	}
}

// Probe runs ffprobe against the path and decodes its JSON description.
func (p *Prober) Probe(ctx context.Context, path string) (MediaInfo, error) {
	if strings.TrimSpace(path) == "" {
		return MediaInfo{}, services.Wrap(services.ErrMedia, "extracting", "probe source", "source path is required", nil)
	}
	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path}
	var payload strings.Builder
	onStdout := func(line string) {
		payload.WriteString(line)
		payload.WriteByte('\n')
	}
	if err := p.exec.Run(ctx, p.binary, args, onStdout, nil); err != nil {
		if ctx.Err() != nil {
			return MediaInfo{}, ctx.Err()
		}
		return MediaInfo{}, services.Wrap(services.ErrMedia, "extracting", "probe source", "ffprobe failed", err)
	}
	var info MediaInfo
	if err := json.Unmarshal([]byte(payload.String()), &info); err != nil {
		return MediaInfo{}, services.Wrap(services.ErrMedia, "extracting", "probe source", "parse ffprobe output", err)
	}
	return info, nil
}
