package overlay

import "unicode"

// charClass partitions selectable characters for run coalescing: latin word
// characters extend a shared run, CJK-family characters and symbols each
// stand alone, whitespace emits nothing.
type charClass int

const (
	classWhitespace charClass = iota
	classWord
	classCJK
	classSymbol
)

var cjkTables = []*unicode.RangeTable{
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Hangul,
	unicode.Bopomofo,
	unicode.Yi,
}

func classify(r rune) charClass {
	switch {
	case unicode.IsSpace(r):
		return classWhitespace
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return classWord
	case unicode.In(r, cjkTables...):
		return classCJK
	case r >= 0xFF01 && r <= 0xFF60: // fullwidth forms travel with CJK text
		return classCJK
	default:
		return classSymbol
	}
}

// combining reports marks that must never open a run of their own; they are
// glued to whatever run precedes them.
func combining(r rune) bool {
	return unicode.In(r, unicode.Mn, unicode.Mc, unicode.Me)
}
