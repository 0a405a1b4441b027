package subtitles

import (
	"strings"
	"time"
	"unicode/utf8"

	"glossa/internal/config"
)

// Policy bounds cue readability. Zero sizing and duration fields fall back
// to the DefaultPolicy values, so tests can populate only what they
// exercise. A zero MergeGap is meaningful: only touching segments merge.
type Policy struct {
	MaxLineChars   int
	MaxLines       int
	MinCueDuration time.Duration
	MaxCueDuration time.Duration
	// MergeGap is the widest silence between adjacent too-short segments
	// that still allows merging them into one cue.
	MergeGap time.Duration
	// Bilingual appends the source text below the translated lines.
	Bilingual bool
}

// DefaultPolicy mirrors the sample configuration.
func DefaultPolicy() Policy {
	return Policy{
		MaxLineChars:   42,
		MaxLines:       2,
		MinCueDuration: time.Second,
		MaxCueDuration: 7 * time.Second,
		MergeGap:       300 * time.Millisecond,
	}
}

// PolicyFromConfig builds the assembly policy from the subtitles section.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxLineChars:   cfg.Subtitles.MaxLineChars,
		MaxLines:       cfg.Subtitles.MaxLines,
		MinCueDuration: time.Duration(cfg.Subtitles.MinCueSeconds * float64(time.Second)),
		MaxCueDuration: time.Duration(cfg.Subtitles.MaxCueSeconds * float64(time.Second)),
		MergeGap:       time.Duration(cfg.Subtitles.MergeGapMS) * time.Millisecond,
		Bilingual:      cfg.Subtitles.Bilingual,
	}
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxLineChars <= 0 {
		p.MaxLineChars = def.MaxLineChars
	}
	if p.MaxLines <= 0 {
		p.MaxLines = def.MaxLines
	}
	if p.MinCueDuration <= 0 {
		p.MinCueDuration = def.MinCueDuration
	}
	if p.MaxCueDuration <= 0 {
		p.MaxCueDuration = def.MaxCueDuration
	}
	if p.MaxCueDuration < p.MinCueDuration {
		p.MaxCueDuration = p.MinCueDuration
	}
	if p.MergeGap < 0 {
		p.MergeGap = 0
	}
	return p
}

// charBudget is the most characters one cue can display.
func (p Policy) charBudget() int {
	return p.MaxLineChars * p.MaxLines
}

// pending is a cue under construction. Merging happens before splitting, so
// text here is still unwrapped.
type pending struct {
	start        time.Duration
	end          time.Duration
	text         string
	source       string
	untranslated bool
}

func (p pending) duration() time.Duration {
	return p.end - p.start
}

// Assemble converts translated segments into a subtitle track. Adjacent
// segments too brief to read are merged when they sit close together;
// segments whose text overflows the character budget are split into
// several cues with the time span divided proportionally by character
// count. Cue timing never extends beyond the segments that produced it.
//
// Conformant input passes through untouched: one cue per segment with the
// original timing.
func Assemble(segments []TranslatedSegment, policy Policy) Track {
	policy = policy.normalized()
	items := collectPending(segments)
	items = mergeShort(items, policy)

	var cues []Cue
	for _, item := range items {
		cues = append(cues, splitPending(item, policy)...)
	}
	for i := range cues {
		cues[i].Index = i + 1
	}
	return Track{Cues: cues}
}

// collectPending drops segments with nothing to display and snapshots the
// fields assembly works on.
func collectPending(segments []TranslatedSegment) []pending {
	items := make([]pending, 0, len(segments))
	for _, seg := range segments {
		display := seg.DisplayText()
		if display == "" {
			continue
		}
		source := strings.TrimSpace(seg.Text)
		items = append(items, pending{
			start:        seg.Start,
			end:          seg.End,
			text:         display,
			source:       source,
			untranslated: display == source,
		})
	}
	return items
}

func mergeShort(items []pending, policy Policy) []pending {
	if len(items) < 2 {
		return items
	}
	out := make([]pending, 0, len(items))
	current := items[0]
	for _, next := range items[1:] {
		if current.duration() < policy.MinCueDuration &&
			next.duration() < policy.MinCueDuration &&
			next.start-current.end <= policy.MergeGap &&
			next.end-current.start <= policy.MaxCueDuration &&
			runeLen(current.text)+runeLen(next.text)+1 <= policy.charBudget() {
			current.text = joinText(current.text, next.text)
			current.source = joinText(current.source, next.source)
			current.untranslated = current.untranslated && next.untranslated
			current.end = next.end
			continue
		}
		out = append(out, current)
		current = next
	}
	return append(out, current)
}

// splitPending turns one pending item into display cues. Text is wrapped to
// the line width, grouped MaxLines lines per cue, and each cue receives a
// share of the item's span proportional to its character count. Cues longer
// than MaxCueDuration are clipped; the following cue starts where the
// clipped one ended so the track stays gap-free and monotonic.
func splitPending(item pending, policy Policy) []Cue {
	lines := wrapText(item.text, policy.MaxLineChars)
	if len(lines) == 0 {
		return nil
	}
	groups := groupLines(lines, policy.MaxLines)

	weights := make([]int, len(groups))
	total := 0
	for i, group := range groups {
		for _, line := range group {
			weights[i] += runeLen(line)
		}
		total += weights[i]
	}

	var sources []string
	if policy.Bilingual && !item.untranslated && item.source != "" {
		sources = splitByWeight(item.source, weights)
	}

	cues := make([]Cue, len(groups))
	cursor := item.start
	for i, group := range groups {
		end := item.end
		if i < len(groups)-1 {
			share := time.Duration(float64(item.duration()) * float64(weights[i]) / float64(total))
			end = cursor + share
		}
		if end < cursor {
			end = cursor
		}
		if end-cursor > policy.MaxCueDuration {
			end = cursor + policy.MaxCueDuration
		}
		cueLines := group
		if sources != nil && sources[i] != "" {
			cueLines = append(append([]string{}, group...), wrapText(sources[i], policy.MaxLineChars)...)
		}
		cues[i] = Cue{Start: cursor, End: end, Lines: cueLines}
		cursor = end
	}
	return cues
}

// splitByWeight divides text into len(weights) pieces at word boundaries so
// piece sizes track the weight proportions. Later pieces may come up empty
// when the text runs out of words.
func splitByWeight(text string, weights []int) []string {
	parts := make([]string, len(weights))
	if len(weights) == 0 {
		return parts
	}
	if len(weights) == 1 {
		parts[0] = text
		return parts
	}
	words := strings.Fields(text)
	total := 0
	for _, w := range weights {
		total += w
	}
	if total == 0 || len(words) == 0 {
		parts[0] = text
		return parts
	}
	sourceTotal := 0
	for _, word := range words {
		sourceTotal += runeLen(word) + 1
	}
	consumed := 0
	wordIdx := 0
	cumulative := 0
	for i := range weights {
		if i == len(weights)-1 {
			parts[i] = strings.Join(words[wordIdx:], " ")
			break
		}
		cumulative += weights[i]
		target := int(float64(sourceTotal) * float64(cumulative) / float64(total))
		var piece []string
		for wordIdx < len(words) && consumed < target {
			piece = append(piece, words[wordIdx])
			consumed += runeLen(words[wordIdx]) + 1
			wordIdx++
		}
		parts[i] = strings.Join(piece, " ")
	}
	return parts
}

// wrapText greedily fills lines up to width runes, hard-breaking words that
// exceed a whole line on their own (unspaced scripts arrive as one word).
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var line strings.Builder
	lineLen := 0
	flush := func() {
		if lineLen > 0 {
			lines = append(lines, line.String())
			line.Reset()
			lineLen = 0
		}
	}
	for _, word := range words {
		wordLen := runeLen(word)
		for wordLen > width {
			flush()
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
			wordLen = runeLen(word)
		}
		if wordLen == 0 {
			continue
		}
		if lineLen > 0 && lineLen+1+wordLen > width {
			flush()
		}
		if lineLen > 0 {
			line.WriteByte(' ')
			lineLen++
		}
		line.WriteString(word)
		lineLen += wordLen
	}
	flush()
	return lines
}

func groupLines(lines []string, maxLines int) [][]string {
	groups := make([][]string, 0, (len(lines)+maxLines-1)/maxLines)
	for start := 0; start < len(lines); start += maxLines {
		end := start + maxLines
		if end > len(lines) {
			end = len(lines)
		}
		groups = append(groups, lines[start:end])
	}
	return groups
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
