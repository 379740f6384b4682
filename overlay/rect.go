package overlay

import (
	"math"
	"sort"
)

// Rect is a rectangle in pixels. Compute returns rects in container-local
// coordinates (scroll-adjusted); Node measurements supply viewport
// coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.Left + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// vCenter returns the vertical center used for line grouping.
func (r Rect) vCenter() float64 { return r.Top + r.Height/2 }

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	left := math.Min(r.Left, o.Left)
	top := math.Min(r.Top, o.Top)
	right := math.Max(r.Right(), o.Right())
	bottom := math.Max(r.Bottom(), o.Bottom())
	return Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// minRectSize is the edge below which a measured rectangle is considered
// degenerate (collapsed ranges and zero-advance glyph artifacts).
const minRectSize = 0.25

func degenerate(r Rect) bool {
	if math.IsNaN(r.Left) || math.IsInf(r.Left, 0) ||
		math.IsNaN(r.Top) || math.IsInf(r.Top, 0) ||
		math.IsNaN(r.Width) || math.IsInf(r.Width, 0) ||
		math.IsNaN(r.Height) || math.IsInf(r.Height, 0) {
		return true
	}
	return r.Width < minRectSize || r.Height < minRectSize
}

// toLocal converts a viewport rect into container-local coordinates.
func toLocal(r Rect, bounds Rect, scrollX, scrollY float64) Rect {
	return Rect{
		Left:   r.Left - bounds.Left + scrollX,
		Top:    r.Top - bounds.Top + scrollY,
		Width:  r.Width,
		Height: r.Height,
	}
}

// lineGroup accumulates same-line rectangles during the merge pass.
type lineGroup struct {
	envelope Rect
	tallest  float64
	center   float64
	count    int
}

func (g *lineGroup) accepts(r Rect) bool {
	// Tolerance scales with the tallest member so sub-pixel layout jitter
	// across separately measured runs still lands in the same line.
	tol := math.Max(g.tallest, r.Height) / 2
	return math.Abs(r.vCenter()-g.center) <= tol
}

func (g *lineGroup) add(r Rect) {
	if g.count == 0 {
		g.envelope = r
		g.tallest = r.Height
		g.center = r.vCenter()
		g.count = 1
		return
	}
	g.envelope = g.envelope.Union(r)
	if r.Height > g.tallest {
		g.tallest = r.Height
	}
	// Running center follows the envelope, not the first member.
	g.center = g.envelope.vCenter()
	g.count++
}

// mergeLines groups raw rectangles into visual lines and replaces each line
// with a single bounding envelope, sorted top to bottom.
func mergeLines(rects []Rect) []Rect {
	if len(rects) == 0 {
		return nil
	}
	sorted := make([]Rect, len(rects))
	copy(sorted, rects)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Top != sorted[j].Top {
			return sorted[i].Top < sorted[j].Top
		}
		return sorted[i].Left < sorted[j].Left
	})

	var groups []*lineGroup
	for _, r := range sorted {
		var target *lineGroup
		for _, g := range groups {
			if g.accepts(r) {
				target = g
				break
			}
		}
		if target == nil {
			target = &lineGroup{}
			groups = append(groups, target)
		}
		target.add(r)
	}

	out := make([]Rect, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.envelope)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Top < out[j].Top })
	return out
}
