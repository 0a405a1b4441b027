package subtitles

import (
	"strings"
	"time"
)

// Segment is one timestamped unit of recognized speech in the source
// language. Segments are immutable once emitted by the recognizer.
type Segment struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
	// Confidence is the decoder's mean token probability when the
	// recognizer reports one. Zero means not reported.
	Confidence float64
}

// Duration returns the segment's time span.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// TranslatedSegment pairs a source segment with its translation. Index and
// timestamps always equal the source segment's.
type TranslatedSegment struct {
	Segment
	// Translated is empty when translation was skipped or failed.
	Translated string
	// Failed marks segments whose translation attempts were exhausted.
	// Failed segments keep their source text so the cue is never blank.
	Failed bool
}

// DisplayText returns the translated text, falling back to the source text
// when translation produced nothing.
func (s TranslatedSegment) DisplayText() string {
	if text := strings.TrimSpace(s.Translated); text != "" {
		return text
	}
	return strings.TrimSpace(s.Text)
}

// Normalize enforces monotonic non-overlapping timing over segments in
// emission order: whenever a segment's end crosses its successor's start,
// the end is shrunk to that start. Ends before starts collapse to
// zero-length rather than failing, so noisy model output degrades instead
// of aborting a job. The input slice is left untouched.
func Normalize(segments []Segment) []Segment {
	if len(segments) == 0 {
		return nil
	}
	out := make([]Segment, len(segments))
	copy(out, segments)
	for i := range out {
		if out[i].End < out[i].Start {
			out[i].End = out[i].Start
		}
		if i+1 < len(out) && out[i].End > out[i+1].Start {
			out[i].End = out[i+1].Start
			if out[i].End < out[i].Start {
				out[i].Start = out[i].End
			}
		}
	}
	return out
}
