package segmenter

import (
	"strings"
	"unicode"
)

// abbreviations never end a sentence.
var abbreviations = map[string]bool{
	"e.g": true, "i.e": true, "al": true, "fig": true, "figs": true, "eq": true,
	"eqs": true, "vs": true, "cf": true, "no": true, "ref": true, "refs": true,
	"sec": true, "approx": true, "resp": true, "dr": true, "mr": true, "ms": true,
}

// span is a half-open rune range within a section.
type span struct {
	start int
	end   int
}

// splitSection cuts section runes into chunk ranges.
//
// Sections no longer than maxSize yield a single range covering the whole
// section. Longer sections yield ranges between minSize and maxSize with
// at least overlap runes shared by neighbours; ends prefer paragraph and
// sentence boundaries near the size limit, starts prefer sentence starts.
func splitSection(runes []rune, minSize, maxSize, overlap int) []span {
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= maxSize {
		return []span{{0, n}}
	}

	var spans []span
	start := 0
	for {
		if n-start <= maxSize {
			if n-start < minSize {
				start = snapStart(runes, max(0, n-maxSize), n-minSize, n-minSize)
			}
			spans = append(spans, span{start, n})
			return spans
		}

		end := chooseEnd(runes, start+minSize, start+maxSize, overlap)
		spans = append(spans, span{start, end})

		if overlap == 0 {
			start = end
			continue
		}
		start = snapStart(runes, max(start+1, end-2*overlap), end-overlap, end-overlap)
	}
}

// chooseEnd picks a chunk end in [lo, hi]. The overlap window
// [hi-overlap, hi] is searched first for a paragraph then a sentence
// boundary; then the rest of the range for a sentence boundary; then
// word boundaries; finally a hard cut at hi.
func chooseEnd(runes []rune, lo, hi, overlap int) int {
	windowLo := max(lo, hi-overlap)

	if p := lastBoundary(runes, windowLo, hi, isParagraphBoundary); p > 0 {
		return p
	}
	if p := lastBoundary(runes, windowLo, hi, isSentenceBoundary); p > 0 {
		return p
	}
	if p := lastBoundary(runes, lo, windowLo-1, isSentenceBoundary); p > 0 {
		return p
	}
	if p := lastBoundary(runes, windowLo, hi, isWordBoundary); p > 0 {
		return p
	}
	if p := lastBoundary(runes, lo, windowLo-1, isWordBoundary); p > 0 {
		return p
	}
	return hi
}

// snapStart picks the latest sentence start, then word start, in [lo, hi],
// falling back to fallback.
func snapStart(runes []rune, lo, hi, fallback int) int {
	if p := lastBoundary(runes, lo, hi, isSentenceBoundary); p > 0 {
		return p
	}
	if p := lastBoundary(runes, lo, hi, isWordBoundary); p > 0 {
		return p
	}
	return fallback
}

// lastBoundary returns the greatest p in [lo, hi] for which ok holds,
// or -1.
func lastBoundary(runes []rune, lo, hi int, ok func([]rune, int) bool) int {
	lo = max(lo, 1)
	hi = min(hi, len(runes)-1)
	for p := hi; p >= lo; p-- {
		if ok(runes, p) {
			return p
		}
	}
	return -1
}

// isWordBoundary reports whether p starts a word after whitespace.
func isWordBoundary(runes []rune, p int) bool {
	return unicode.IsSpace(runes[p-1]) && !unicode.IsSpace(runes[p])
}

// isParagraphBoundary reports whether p starts text after a blank line.
func isParagraphBoundary(runes []rune, p int) bool {
	if unicode.IsSpace(runes[p]) {
		return false
	}
	newlines := 0
	for i := p - 1; i >= 0 && unicode.IsSpace(runes[i]); i-- {
		if runes[i] == '\n' {
			newlines++
		}
	}
	return newlines >= 2
}

// isSentenceBoundary reports whether p starts a sentence: it follows
// whitespace preceded by terminal punctuation, and starts with an upper
// case letter, a digit or an opening bracket or quote.
func isSentenceBoundary(runes []rune, p int) bool {
	if !isWordBoundary(runes, p) {
		return false
	}
	if isParagraphBoundary(runes, p) {
		return true
	}
	next := runes[p]
	if !unicode.IsUpper(next) && !unicode.IsDigit(next) && !strings.ContainsRune("([\"'“", next) {
		return false
	}

	i := p - 1
	for i >= 0 && unicode.IsSpace(runes[i]) {
		i--
	}
	for i >= 0 && strings.ContainsRune(")]\"'”", runes[i]) {
		i--
	}
	if i < 0 {
		return false
	}
	switch runes[i] {
	case '!', '?':
		return true
	case '.':
		return !isAbbreviation(runes, i)
	default:
		return false
	}
}

// isAbbreviation reports whether the period at dot closes a known
// abbreviation or a single initial.
func isAbbreviation(runes []rune, dot int) bool {
	j := dot - 1
	for j >= 0 && (unicode.IsLetter(runes[j]) || runes[j] == '.') {
		j--
	}
	word := strings.ToLower(string(runes[j+1 : dot]))
	if word == "" {
		return false
	}
	if len([]rune(word)) == 1 && unicode.IsUpper(runes[dot-1]) {
		return true
	}
	return abbreviations[word]
}
