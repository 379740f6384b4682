package overlay

import (
	"fmt"
	"strings"
)

// The test fake lays text out on a monospace grid: every character is
// charW wide and lineH tall, leaves wrap at maxCols columns. Coordinates
// are viewport-absolute so the container conversion path is exercised.
const (
	fakeCharW   = 8.0
	fakeLineH   = 16.0
	fakeMaxCols = 40
)

type fakeNode struct {
	parent   *fakeNode
	children []*fakeNode

	// Text leaves only.
	text     string
	origin   Point // viewport position of the leaf's first character
	failMeas bool
	measured int // number of MeasureRange calls, for coalescing assertions
}

func (n *fakeNode) Parent() Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *fakeNode) Children() []Node {
	if n.text != "" {
		return nil
	}
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *fakeNode) IsText() bool { return n.text != "" }
func (n *fakeNode) Text() string { return n.text }

func (n *fakeNode) MeasureRange(start, end int) ([]Rect, error) {
	n.measured++
	if n.failMeas {
		return nil, fmt.Errorf("detached node")
	}
	runes := []rune(n.text)
	if start < 0 || end > len(runes) || start >= end {
		return nil, fmt.Errorf("bad interval [%d,%d)", start, end)
	}

	var rects []Rect
	i := start
	for i < end {
		line := i / fakeMaxCols
		col := i % fakeMaxCols
		// Extend to the end of the interval or the wrap point.
		stop := end
		if lineEnd := (line + 1) * fakeMaxCols; lineEnd < stop {
			stop = lineEnd
		}
		rects = append(rects, Rect{
			Left:   n.origin.X + float64(col)*fakeCharW,
			Top:    n.origin.Y + float64(line)*fakeLineH,
			Width:  float64(stop-i) * fakeCharW,
			Height: fakeLineH,
		})
		i = stop
	}
	return rects, nil
}

type fakeContainer struct {
	root             *fakeNode
	bounds           Rect
	scrollX, scrollY float64
	boundsErr        error
	nativeRects      []Rect
	nativeCalls      int
}

func (c *fakeContainer) Bounds() (Rect, error) { return c.bounds, c.boundsErr }

func (c *fakeContainer) Scroll() (x, y float64, err error) {
	return c.scrollX, c.scrollY, nil
}

func (c *fakeContainer) Contains(n Node) bool {
	for cur := n; cur != nil; cur = cur.Parent() {
		if cur == Node(c.root) {
			return true
		}
	}
	return false
}

func (c *fakeContainer) RangeRects(r Range) ([]Rect, error) {
	c.nativeCalls++
	return c.nativeRects, nil
}

// newFakeDoc builds a container rooted at (100, 50) with one text leaf per
// paragraph, each paragraph on its own vertical band.
func newFakeDoc(paragraphs ...string) (*fakeContainer, []*fakeNode) {
	root := &fakeNode{}
	leaves := make([]*fakeNode, 0, len(paragraphs))
	y := 50.0
	for _, p := range paragraphs {
		el := &fakeNode{parent: root}
		leaf := &fakeNode{parent: el, text: p, origin: Point{X: 100, Y: y}}
		el.children = []*fakeNode{leaf}
		root.children = append(root.children, el)
		leaves = append(leaves, leaf)

		lines := (len([]rune(p)) + fakeMaxCols - 1) / fakeMaxCols
		if lines == 0 {
			lines = 1
		}
		y += float64(lines) * fakeLineH
	}
	c := &fakeContainer{
		root:   root,
		bounds: Rect{Left: 100, Top: 50, Width: fakeMaxCols * fakeCharW, Height: y - 50},
	}
	return c, leaves
}

func leafRange(leaf *fakeNode, start, end int) Range {
	return Range{
		Start: Boundary{Node: leaf, Offset: start},
		End:   Boundary{Node: leaf, Offset: end},
	}
}

func strIndex(leaf *fakeNode, sub string) int {
	return len([]rune(leaf.text[:strings.Index(leaf.text, sub)]))
}
