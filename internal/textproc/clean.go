// Package textproc prepares extracted document text for narration.
package textproc

import (
	"regexp"
	"strings"
)

// PauseMarker is injected between paragraphs; the TTS streamer splits on it
// and writes silent MP3 frames to produce a real audible pause. The token is
// plain ASCII so no synthesizer tries to pronounce a fragment of it.
const PauseMarker = "TTSPAUSEBREAK"

var (
	// Superscript unicode digits (footnote markers).
	superscriptDigits = regexp.MustCompile(`[⁰¹²³⁴⁵⁶⁷⁸⁹]+`)

	// Bracketed number references like [1], [23], [1,2], [1-3].
	bracketedRefs = regexp.MustCompile(`\[\d[\d,\-–\s]*\]`)

	// Bare footnote numbers glued to the end of words or punctuation,
	// e.g. "word3", "sentence.12". RE2 has no lookbehind, so the letter
	// (and optional punctuation) before the digits is captured and kept.
	gluedFootnote = regexp.MustCompile(`([a-zA-Z][.,;:!?]?)(\d{1,3})([\s.,;:!?)]|$)`)

	doubleSpaces = regexp.MustCompile(`  +`)
)

// CleanForTTS removes footnote references and other narration distractions,
// then joins paragraphs with PauseMarker. Paragraphs are delimited by blank
// lines in the input. The function is idempotent.
func CleanForTTS(text string) string {
	text = superscriptDigits.ReplaceAllString(text, "")
	text = bracketedRefs.ReplaceAllString(text, "")
	text = gluedFootnote.ReplaceAllString(text, "$1$3")
	text = doubleSpaces.ReplaceAllString(text, " ")

	paragraphs := strings.Split(text, "\n\n")
	processed := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if stripped := strings.TrimSpace(p); stripped != "" {
			processed = append(processed, stripped)
		}
	}
	return strings.Join(processed, " "+PauseMarker+" ")
}

// RejoinLines joins hard-wrapped lines within paragraphs into continuous
// sentences. PDF text has a newline at the end of every visual line on the
// page; this merges those into flowing paragraphs while preserving real
// paragraph breaks (blank lines).
func RejoinLines(text string) string {
	lines := strings.Split(text, "\n")
	var paragraphs []string
	var current []string

	for _, line := range lines {
		stripped := strings.TrimSpace(line)

		// Empty line = paragraph break
		if stripped == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, strings.Join(current, " "))
				current = nil
			}
			continue
		}
		current = append(current, stripped)
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}

	for i, p := range paragraphs {
		paragraphs[i] = doubleSpaces.ReplaceAllString(p, " ")
	}
	return strings.Join(paragraphs, "\n\n")
}

// WordCount returns the whitespace-split word count of s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
