package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// TextToolkit is the string helper library exposed to post-processing code as str.
type TextToolkit struct{}

func NewTextToolkit() *TextToolkit {
	return &TextToolkit{}
}

// Distance is the Levenshtein edit distance in runes.
func (TextToolkit) Distance(a, b string) int {
	return levenshtein.Distance(a, b)
}

// Similarity is 1 - distance/longer length, in [0,1]. Two empty strings are identical.
func (t TextToolkit) Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(t.Distance(a, b))/float64(longest)
}

// Closest returns the candidate with the smallest edit distance to s,
// the first one on ties, or s itself when there are no candidates.
// Typical use is snapping noisy OCR output onto a fixed vocabulary.
func (t TextToolkit) Closest(s string, candidates []string) string {
	best, bestDist := s, -1
	for _, c := range candidates {
		d := t.Distance(s, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Wer is the word error rate of hypothesis against reference.
func (TextToolkit) Wer(reference, hypothesis string) float64 {
	ref := strings.Fields(reference)
	if len(ref) == 0 {
		if len(strings.Fields(hypothesis)) == 0 {
			return 0
		}
		return 1
	}
	rate, _ := wer.WER(ref, strings.Fields(hypothesis))
	return rate
}

func (TextToolkit) Trim(s string) string {
	return strings.TrimSpace(s)
}

// Lines splits into trimmed non-empty lines.
func (TextToolkit) Lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Collapse removes all whitespace, which OCR tends to insert between CJK glyphs.
func (TextToolkit) Collapse(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Digits keeps only decimal digits.
func (TextToolkit) Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
