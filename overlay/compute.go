package overlay

// DefaultCharBudget caps the number of in-range characters processed in a
// single Compute call. Pathologically large selections produce a partial but
// still usable overlay instead of an unbounded walk.
const DefaultCharBudget = 2400

// Option tunes a Compute call.
type Option func(*computeConfig)

type computeConfig struct {
	charBudget int
}

// WithCharBudget overrides the processed-character cap.
func WithCharBudget(n int) Option {
	return func(c *computeConfig) {
		if n > 0 {
			c.charBudget = n
		}
	}
}

// Compute converts a text range into container-local highlight rectangles:
// one tight envelope per visually occupied line. Reversed boundaries are
// normalized, collapsed ranges yield nil, and every measurement failure is
// contained — the function never panics and never returns an error.
func Compute(rng Range, c Container, opts ...Option) []Rect {
	defer func() { recover() }() // detached nodes mid-call must not escape

	cfg := computeConfig{charBudget: DefaultCharBudget}
	for _, o := range opts {
		o(&cfg)
	}

	if rng.Start.Node == nil || rng.End.Node == nil || c == nil {
		return nil
	}
	if compareBoundary(rng.Start, rng.End) > 0 {
		rng.Start, rng.End = rng.End, rng.Start
	}
	if rng.Collapsed() {
		return nil
	}

	bounds, err := c.Bounds()
	if err != nil {
		return nil
	}
	scrollX, scrollY, err := c.Scroll()
	if err != nil {
		return nil
	}

	segs, err := rangeSegments(rng)
	if err != nil {
		segs = nil
	}

	raw := collectRunRects(segs, c, cfg.charBudget)

	// A range whose internal structure is not plain text (no walkable
	// leaves, or every measurement failed) still deserves a highlight:
	// fall back to the range's own native client rectangles.
	if len(raw) == 0 {
		if native, err := c.RangeRects(rng); err == nil {
			raw = native
		}
	}

	local := make([]Rect, 0, len(raw))
	for _, r := range raw {
		lr := toLocal(r, bounds, scrollX, scrollY)
		if degenerate(lr) {
			continue
		}
		local = append(local, lr)
	}

	return mergeLines(local)
}

// collectRunRects walks each leaf segment, coalesces word characters into
// greedy runs, measures each run once, and returns the raw viewport rects.
func collectRunRects(segs []leafSegment, c Container, budget int) []Rect {
	var raw []Rect
	processed := 0

	for _, seg := range segs {
		if processed >= budget {
			break
		}
		if !c.Contains(seg.leaf) {
			continue
		}
		text := []rune(seg.leaf.Text())
		i := seg.start
		for i < seg.end && processed < budget {
			r := text[i]
			cls := classify(r)
			if cls == classWhitespace {
				i++
				processed++
				continue
			}

			runStart := i
			i++
			processed++
			if cls == classWord {
				// Greedy extension over word characters keeps per-run
				// measurement cost and rectangle count low for latin text.
				for i < seg.end && processed < budget &&
					(classify(text[i]) == classWord || combining(text[i])) {
					i++
					processed++
				}
			} else {
				// CJK and symbols are atomic single-character runs, but
				// combining marks stay glued to their base.
				for i < seg.end && combining(text[i]) {
					i++
					processed++
				}
			}

			rects, err := seg.leaf.MeasureRange(runStart, i)
			if err != nil {
				continue // failed leaf measurement: no rectangles for this run
			}
			raw = append(raw, rects...)
		}
	}
	return raw
}
