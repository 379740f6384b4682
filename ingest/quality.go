package ingest

import (
	"strings"
	"unicode"
)

// Quality captures extraction quality metrics for an imported document.
// Low scores flag garbled extraction (scanned PDFs, encoding damage) so the
// reader can warn before translation quality suffers.
type Quality struct {
	PageCount      int     `json:"page_count"`
	CharsPerPage   float64 `json:"chars_per_page"`
	PrintableRatio float64 `json:"printable_ratio"`
	WordlikeRatio  float64 `json:"wordlike_ratio"`
}

// Score collapses the metrics to a single 0..1 figure stored with the
// document.
func (q Quality) Score() float64 {
	s := q.PrintableRatio*0.6 + q.WordlikeRatio*0.4
	if q.PageCount > 0 && q.CharsPerPage < 50 {
		// Nearly-empty pages usually mean a scanned document.
		s *= 0.5
	}
	if s > 1 {
		s = 1
	}
	return s
}

// Garbled reports whether extraction likely failed to produce usable text.
func (q Quality) Garbled() bool {
	return q.PrintableRatio < 0.85 || q.WordlikeRatio < 0.5
}

// printableRatio is the share of printable characters, excluding the
// Private Use Area, the replacement character and non-whitespace controls.
func printableRatio(text string) float64 {
	if text == "" {
		return 1
	}
	total, printable := 0, 0
	for _, r := range text {
		total++
		if garbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}

func garbageRune(r rune) bool {
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	if r == 0xFFFD {
		return true
	}
	return r < 0x0020 && r != '\n' && r != '\r' && r != '\t'
}

// wordlikeRatio is the share of whitespace-separated tokens with a
// plausible word length (2..15 runes).
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		if n := len([]rune(f)); n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}

// measureQuality computes the metrics over the final extracted text.
func measureQuality(text string, pageCount int) Quality {
	q := Quality{
		PageCount:      pageCount,
		PrintableRatio: printableRatio(text),
		WordlikeRatio:  wordlikeRatio(text),
	}
	if pageCount > 0 {
		q.CharsPerPage = float64(len([]rune(text))) / float64(pageCount)
	}
	return q
}
