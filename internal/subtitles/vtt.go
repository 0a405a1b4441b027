package subtitles

import (
	"bytes"
	"fmt"
	"time"
)

// RenderVTT serializes the track as WebVTT: the "WEBVTT" header, then SRT
// style cue blocks with period millisecond separators.
func RenderVTT(track Track) []byte {
	var buf bytes.Buffer
	buf.WriteString("WEBVTT\n\n")
	index := 0
	for _, cue := range track.Cues {
		lines := displayLines(cue)
		if len(lines) == 0 {
			continue
		}
		index++
		fmt.Fprintf(&buf, "%d\n", index)
		fmt.Fprintf(&buf, "%s --> %s\n", vttTimestamp(cue.Start), vttTimestamp(cue.End))
		for _, line := range lines {
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func vttTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
