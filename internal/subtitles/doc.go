// Package subtitles holds the data model shared by the pipeline stages:
// recognized speech segments, their translations, and the assembled cue
// track, plus SRT and WebVTT rendering.
//
// Assembly enforces the readability policy (line width, line count, cue
// duration bounds) by merging fragments too brief to read and splitting
// segments too long to display, without inventing timing the recognizer
// did not produce.
package subtitles
