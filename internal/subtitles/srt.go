package subtitles

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"glossa/internal/fileutil"
)

// Format identifies a sidecar subtitle grammar.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// ParseFormat validates a configured format name.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "srt":
		return FormatSRT, nil
	case "vtt":
		return FormatVTT, nil
	}
	return "", fmt.Errorf("unsupported subtitle format %q", value)
}

// Extension returns the sidecar file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Render serializes the track in this format.
func (f Format) Render(track Track) []byte {
	if f == FormatVTT {
		return RenderVTT(track)
	}
	return RenderSRT(track)
}

// RenderSRT serializes the track using the SRT grammar: numeric index line,
// "HH:MM:SS,mmm --> HH:MM:SS,mmm" timing line, text lines, one blank line
// after every cue. Players reject deviations, so output is byte-exact and
// cues are renumbered sequentially.
func RenderSRT(track Track) []byte {
	var buf bytes.Buffer
	index := 0
	for _, cue := range track.Cues {
		lines := displayLines(cue)
		if len(lines) == 0 {
			continue
		}
		index++
		fmt.Fprintf(&buf, "%d\n", index)
		fmt.Fprintf(&buf, "%s --> %s\n", srtTimestamp(cue.Start), srtTimestamp(cue.End))
		for _, line := range lines {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ParseSRT reads SRT bytes back into a track. Index lines are optional,
// CRLF endings and period millisecond separators are tolerated so
// externally produced files load too.
func ParseSRT(data []byte) (Track, error) {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Track{}, nil
	}
	var track Track
	for _, block := range strings.Split(trimmed, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		pos := 0
		index := 0
		if len(lines) > 1 && isNumeric(lines[0]) {
			index, _ = strconv.Atoi(strings.TrimSpace(lines[0]))
			pos = 1
		}
		if pos >= len(lines) || !strings.Contains(lines[pos], "-->") {
			return Track{}, fmt.Errorf("cue %d: missing timing line", len(track.Cues)+1)
		}
		start, end, err := parseTimingLine(lines[pos])
		if err != nil {
			return Track{}, fmt.Errorf("cue %d: %w", len(track.Cues)+1, err)
		}
		text := make([]string, 0, len(lines)-pos-1)
		for _, line := range lines[pos+1:] {
			text = append(text, strings.TrimRight(line, " \t"))
		}
		if index == 0 {
			index = len(track.Cues) + 1
		}
		track.Cues = append(track.Cues, Cue{Index: index, Start: start, End: end, Lines: text})
	}
	return track, nil
}

// WriteSidecar renders the track and writes it atomically so players never
// observe a half-written file.
func WriteSidecar(track Track, path string, format Format) error {
	if err := fileutil.WriteFileAtomic(path, format.Render(track), 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// ParseTimestamp reads an "HH:MM:SS,mmm" subtitle timestamp. Period
// separators are accepted too, so VTT timing lines and whisper output go
// through the same routine.
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ",", ".")
	hms := strings.Split(value, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	secParts := strings.SplitN(hms[2], ".", 2)
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(secParts[0])
	millis := 0
	var errMS error
	if len(secParts) == 2 && secParts[1] != "" {
		frac := secParts[1]
		if len(frac) > 3 {
			frac = frac[:3]
		}
		for len(frac) < 3 {
			frac += "0"
		}
		millis, errMS = strconv.Atoi(frac)
	}
	if errH != nil || errM != nil || errS != nil || errMS != nil ||
		hours < 0 || minutes < 0 || seconds < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second + time.Duration(millis)*time.Millisecond, nil
}

func parseTimingLine(line string) (time.Duration, time.Duration, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	// VTT timing lines may carry cue settings after the end timestamp.
	endValue := strings.TrimSpace(parts[1])
	if fields := strings.Fields(endValue); len(fields) > 0 {
		endValue = fields[0]
	}
	end, err := ParseTimestamp(endValue)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func srtTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

// displayLines drops blank lines, which would terminate the cue early under
// both grammars.
func displayLines(cue Cue) []string {
	lines := make([]string, 0, len(cue.Lines))
	for _, line := range cue.Lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func isNumeric(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	_, err := strconv.Atoi(value)
	return err == nil
}
