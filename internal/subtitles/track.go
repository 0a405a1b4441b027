package subtitles

import (
	"strings"
	"time"
)

// Cue is one display unit of the finished subtitle track.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Lines []string
}

// Text returns the cue's lines joined with newlines.
func (c Cue) Text() string {
	return strings.Join(c.Lines, "\n")
}

// Track is the ordered, non-overlapping sequence of cues delivered to the
// sidecar writers and the muxer.
type Track struct {
	Cues []Cue
}

// Empty reports whether the track carries no cues.
func (t Track) Empty() bool {
	return len(t.Cues) == 0
}

// Span returns the time range covered by the track.
func (t Track) Span() (start, end time.Duration) {
	if len(t.Cues) == 0 {
		return 0, 0
	}
	return t.Cues[0].Start, t.Cues[len(t.Cues)-1].End
}
