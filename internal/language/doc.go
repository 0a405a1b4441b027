// Package language provides unified language code normalization and mapping.
//
// All language-related conversions (ISO 639-1, ISO 639-2, display names,
// stream tag extraction) are consolidated here: recognizer hints and
// detection output use 2-letter codes, container subtitle metadata uses
// 3-letter codes, and translation prompts use display names.
package language
