package subtitles

import (
	"math/rand"
	"testing"
	"time"
)

func TestNormalizeClampsOverlap(t *testing.T) {
	segments := []Segment{
		{Index: 1, Start: 0, End: 2500 * time.Millisecond, Text: "one"},
		{Index: 2, Start: 2 * time.Second, End: 4 * time.Second, Text: "two"},
	}
	normalized := Normalize(segments)
	if normalized[0].End != 2*time.Second {
		t.Fatalf("expected first end clamped to 2s, got %s", normalized[0].End)
	}
	if segments[0].End != 2500*time.Millisecond {
		t.Fatal("input slice must not be modified")
	}
	if normalized[1].Start != 2*time.Second || normalized[1].End != 4*time.Second {
		t.Fatalf("second segment must be untouched, got %+v", normalized[1])
	}
}

func TestNormalizeCollapsesInvertedSpan(t *testing.T) {
	segments := []Segment{
		{Index: 1, Start: 3 * time.Second, End: time.Second, Text: "inverted"},
	}
	normalized := Normalize(segments)
	if normalized[0].Start != 3*time.Second || normalized[0].End != 3*time.Second {
		t.Fatalf("expected zero-length span at start, got %+v", normalized[0])
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if got := Normalize(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestNormalizeRandomOverlapsAreMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		count := 1 + rng.Intn(20)
		segments := make([]Segment, count)
		cursor := time.Duration(0)
		for i := range segments {
			start := cursor + time.Duration(rng.Intn(3000))*time.Millisecond
			length := time.Duration(rng.Intn(5000)) * time.Millisecond
			spill := time.Duration(rng.Intn(4000)) * time.Millisecond
			segments[i] = Segment{Index: i + 1, Start: start, End: start + length + spill, Text: "x"}
			cursor = start + length
		}
		normalized := Normalize(segments)
		for i := 0; i+1 < len(normalized); i++ {
			if normalized[i].End > normalized[i+1].Start {
				t.Fatalf("run %d: segment %d ends %s after segment %d starts %s",
					run, i, normalized[i].End, i+1, normalized[i+1].Start)
			}
		}
		for i, s := range normalized {
			if s.End < s.Start {
				t.Fatalf("run %d: segment %d end before start: %+v", run, i, s)
			}
		}
	}
}

func TestDisplayTextFallsBackToSource(t *testing.T) {
	cases := []struct {
		name string
		seg  TranslatedSegment
		want string
	}{
		{
			name: "translated",
			seg:  TranslatedSegment{Segment: Segment{Text: "hello"}, Translated: "bonjour"},
			want: "bonjour",
		},
		{
			name: "failed keeps source",
			seg:  TranslatedSegment{Segment: Segment{Text: "hello"}, Failed: true},
			want: "hello",
		},
		{
			name: "whitespace translation ignored",
			seg:  TranslatedSegment{Segment: Segment{Text: "hello"}, Translated: "   "},
			want: "hello",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.seg.DisplayText(); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
