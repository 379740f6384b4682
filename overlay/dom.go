// Package overlay computes tight, line-hugging highlight rectangles for a
// text range inside a scrollable document container.
//
// The engine is pure: it walks an abstract document tree, classifies
// characters, measures coalesced runs through the tree's own measurement
// hooks, and merges the raw rectangles into one envelope per visual line.
// It never performs I/O and never panics; any measurement failure degrades
// to fewer (possibly zero) rectangles.
package overlay

import "fmt"

// Node is a node in the document tree the engine walks. Text leaves carry
// the measurable characters; element nodes only provide structure.
type Node interface {
	// Parent returns the parent node, or nil at the root.
	Parent() Node
	// Children returns child nodes in document order. Text leaves return nil.
	Children() []Node
	// IsText reports whether the node is a text leaf.
	IsText() bool
	// Text returns the leaf's text. Empty for element nodes.
	Text() string
	// MeasureRange measures the viewport rectangles covering the rune
	// interval [start, end) of a text leaf. Implementations may return
	// more than one rectangle when the interval wraps across lines.
	MeasureRange(start, end int) ([]Rect, error)
}

// Container is the scrollable element the rectangles are reported relative to.
type Container interface {
	// Bounds returns the container's bounding box in viewport coordinates.
	Bounds() (Rect, error)
	// Scroll returns the current scroll offsets.
	Scroll() (x, y float64, err error)
	// Contains reports whether the node lives in the container's subtree.
	Contains(n Node) bool
	// RangeRects returns the range's own native client rectangles, used as
	// a fallback when character walking yields nothing.
	RangeRects(r Range) ([]Rect, error)
}

// Boundary identifies one end of a range: a node plus an offset. For text
// leaves the offset counts runes; for element nodes it counts children.
type Boundary struct {
	Node   Node
	Offset int
}

// Range is a pair of boundaries. Boundaries may arrive reversed (end before
// start in document order); Compute normalizes them.
type Range struct {
	Start Boundary
	End   Boundary
}

// Collapsed reports whether both boundaries name the same position.
func (r Range) Collapsed() bool {
	return r.Start.Node == r.End.Node && r.Start.Offset == r.End.Offset
}

// path returns child indices from the root down to n.
func path(n Node) []int {
	var rev []int
	for cur := n; cur != nil; {
		p := cur.Parent()
		if p == nil {
			break
		}
		idx := -1
		for i, c := range p.Children() {
			if c == cur {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Detached node: treat as first child so ordering stays total.
			idx = 0
		}
		rev = append(rev, idx)
		cur = p
	}
	out := make([]int, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// compareBoundary orders two boundaries in document order.
// Returns <0, 0, >0 like strings.Compare.
func compareBoundary(a, b Boundary) int {
	pa := append(path(a.Node), a.Offset)
	pb := append(path(b.Node), b.Offset)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	// One path is a prefix of the other: the shorter boundary sits before
	// the deeper node's subtree position already compared equal.
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	}
	return 0
}

// commonAncestor returns the deepest node containing both a and b, or nil
// when they belong to different trees.
func commonAncestor(a, b Node) Node {
	seen := map[Node]bool{}
	for cur := a; cur != nil; cur = cur.Parent() {
		seen[cur] = true
	}
	for cur := b; cur != nil; cur = cur.Parent() {
		if seen[cur] {
			return cur
		}
	}
	return nil
}

// leafSegment is one text leaf's in-range rune interval.
type leafSegment struct {
	leaf       Node
	start, end int // rune interval [start, end)
}

// rangeSegments walks the text leaves under the range's common ancestor and
// returns the in-range interval of each, in document order. The range must
// already be normalized (start <= end).
func rangeSegments(r Range) ([]leafSegment, error) {
	root := commonAncestor(r.Start.Node, r.End.Node)
	if root == nil {
		return nil, fmt.Errorf("overlay: boundaries in different trees")
	}

	var segs []leafSegment
	var walk func(n Node)
	walk = func(n Node) {
		if n.IsText() {
			text := []rune(n.Text())
			lo, hi := 0, len(text)
			// Clip against the start boundary.
			if cmp := compareBoundary(Boundary{n, hi}, r.Start); cmp <= 0 {
				return // leaf entirely before the range
			}
			if n == r.Start.Node {
				lo = clamp(r.Start.Offset, 0, len(text))
			} else if compareBoundary(Boundary{n, 0}, r.Start) < 0 {
				return
			}
			// Clip against the end boundary.
			if cmp := compareBoundary(Boundary{n, 0}, r.End); cmp >= 0 {
				return // leaf entirely after the range
			}
			if n == r.End.Node {
				hi = clamp(r.End.Offset, 0, len(text))
			}
			if lo < hi {
				segs = append(segs, leafSegment{leaf: n, start: lo, end: hi})
			}
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return segs, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
