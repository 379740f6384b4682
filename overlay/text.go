package overlay

import "strings"

// RangeText returns the raw text covered by the range, joining separate
// leaves with a single space. Callers normalize whitespace themselves.
func RangeText(rng Range) string {
	if rng.Start.Node == nil || rng.End.Node == nil {
		return ""
	}
	if compareBoundary(rng.Start, rng.End) > 0 {
		rng.Start, rng.End = rng.End, rng.Start
	}
	segs, err := rangeSegments(rng)
	if err != nil {
		return ""
	}
	var sb strings.Builder
	for i, seg := range segs {
		if i > 0 {
			sb.WriteByte(' ')
		}
		text := []rune(seg.leaf.Text())
		sb.WriteString(string(text[seg.start:seg.end]))
	}
	return sb.String()
}

// Context extracts up to max runes of surrounding text on each side of the
// range, taken from the sibling text leaves around its boundaries. Both
// slices stop at the document edges; failures yield empty strings rather
// than errors.
func Context(rng Range, max int) (before, after string) {
	if rng.Start.Node == nil || rng.End.Node == nil || max <= 0 {
		return "", ""
	}
	if compareBoundary(rng.Start, rng.End) > 0 {
		rng.Start, rng.End = rng.End, rng.Start
	}

	root := rng.Start.Node
	for root.Parent() != nil {
		root = root.Parent()
	}

	var beforeBuf, afterBuf []rune
	var walk func(n Node)
	walk = func(n Node) {
		if n.IsText() {
			text := []rune(n.Text())

			switch {
			case n == rng.Start.Node:
				lo := clamp(rng.Start.Offset, 0, len(text))
				beforeBuf = append(beforeBuf, text[:lo]...)
			case compareBoundary(Boundary{n, len(text)}, rng.Start) <= 0:
				beforeBuf = append(beforeBuf, text...)
				return
			}
			switch {
			case n == rng.End.Node:
				hi := clamp(rng.End.Offset, 0, len(text))
				afterBuf = appendBounded(afterBuf, text[hi:], max)
			case compareBoundary(Boundary{n, 0}, rng.End) >= 0:
				afterBuf = appendBounded(afterBuf, text, max)
			}
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)

	if len(beforeBuf) > max {
		beforeBuf = beforeBuf[len(beforeBuf)-max:]
	}
	return string(beforeBuf), string(afterBuf)
}

func appendBounded(dst, src []rune, max int) []rune {
	room := max - len(dst)
	if room <= 0 {
		return dst
	}
	if len(src) > room {
		src = src[:room]
	}
	return append(dst, src...)
}
