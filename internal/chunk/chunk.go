// Package chunk splits extracted document text into bounded, overlapping
// spans for embedding. Splitting is a pure function of the input text and
// the size/overlap parameters, so chunk boundaries are reproducible.
package chunk

import (
	"strings"
	"unicode"
)

// Default chunking parameters, in characters. Fixed defaults keep chunk
// boundaries stable across reindexes of the same document.
const (
	DefaultSize    = 800
	DefaultOverlap = 100
)

// Split divides text into chunks of at most size characters, with
// consecutive chunks sharing overlap characters. Boundaries are nudged back
// to the nearest whitespace in the second half of the chunk so words are not
// split mid-token when avoidable. Whitespace-only spans are dropped and an
// empty input yields nil.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 8
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Prefer breaking at whitespace in the second half of the span.
			if at := breakPoint(runes, start+size/2, end); at > start {
				end = at
			}
		}

		if span := strings.TrimSpace(string(runes[start:end])); span != "" {
			chunks = append(chunks, span)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// breakPoint returns the index just after the last whitespace rune in
// [from, to), or -1 if none exists.
func breakPoint(runes []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return -1
}
