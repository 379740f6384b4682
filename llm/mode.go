package llm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Mode is the translation rendering mode for a selection.
type Mode string

const (
	ModeAuto     Mode = "auto" // hint only, never a detected mode
	ModeWord     Mode = "word"
	ModeTerm     Mode = "term"
	ModeSentence Mode = "sentence"
	ModeFormula  Mode = "formula"
)

// ValidHint reports whether the string is an accepted selection_type_hint.
func ValidHint(s string) bool {
	switch Mode(s) {
	case ModeAuto, ModeWord, ModeTerm, ModeSentence, ModeFormula:
		return true
	}
	return false
}

var (
	bigONotation  = regexp.MustCompile(`^[Oo]\s*\([^)]*\)$`)
	texLike       = regexp.MustCompile(`(\\[a-zA-Z]+)|(_\{?.+\}?|\^\{?.+\}?)`)
	mathChars     = regexp.MustCompile(`[=+\-*/^_{}\\\[\]<>≈≤≥∑∫√∞→←×÷]`)
	alnumChars    = regexp.MustCompile(`[A-Za-z0-9]`)
	wordTokens    = regexp.MustCompile(`[A-Za-z]+(?:'[A-Za-z]+)?|[0-9]+`)
	terminalPunct = regexp.MustCompile(`[.!?;:]$`)
)

// isFormula detects mathematical notation: big-O expressions, TeX commands
// and sub/superscripts, or a high density of math symbols relative to
// alphanumeric content.
func isFormula(text string) bool {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return false
	}
	if bigONotation.MatchString(stripped) {
		return true
	}
	if texLike.MatchString(stripped) {
		return true
	}
	math := len(mathChars.FindAllString(stripped, -1))
	alnum := len(alnumChars.FindAllString(text, -1))
	return math >= 2 && math >= max(1, alnum/3)
}

// ClassifyMode resolves the rendering mode from the selection text and the
// client hint. A non-auto hint wins outright; otherwise short unpunctuated
// selections become word/term by token count, formulas are detected by
// notation, and everything else is a sentence.
func ClassifyMode(text string, hint Mode) Mode {
	if hint != "" && hint != ModeAuto {
		return hint
	}

	normalized := strings.TrimSpace(text)
	if isFormula(normalized) {
		return ModeFormula
	}

	tokens := wordTokens.FindAllString(normalized, -1)
	terminal := terminalPunct.MatchString(normalized)
	length := utf8.RuneCountInString(normalized)

	if len(tokens) == 1 && !terminal && length <= 40 {
		return ModeWord
	}
	if len(tokens) <= 4 && !terminal && length <= 60 {
		return ModeTerm
	}
	return ModeSentence
}
