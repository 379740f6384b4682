package overlay

import (
	"math"
	"testing"
)

func TestCompute_CollapsedRange(t *testing.T) {
	c, leaves := newFakeDoc("hello world")
	rects := Compute(leafRange(leaves[0], 3, 3), c)
	if rects != nil {
		t.Fatalf("collapsed range: got %d rects, want nil", len(rects))
	}
}

func TestCompute_ReversedBoundaries(t *testing.T) {
	c, leaves := newFakeDoc("hello world")
	fwd := Compute(leafRange(leaves[0], 0, 11), c)
	rev := Compute(Range{
		Start: Boundary{Node: leaves[0], Offset: 11},
		End:   Boundary{Node: leaves[0], Offset: 0},
	}, c)
	if len(fwd) != len(rev) {
		t.Fatalf("reversed: got %d rects, want %d", len(rev), len(fwd))
	}
	for i := range fwd {
		if fwd[i] != rev[i] {
			t.Errorf("rect %d: got %+v, want %+v", i, rev[i], fwd[i])
		}
	}
}

func TestCompute_SingleLineMergesToOne(t *testing.T) {
	c, leaves := newFakeDoc("our adaptation layer handles shift")
	rects := Compute(leafRange(leaves[0], 0, 34), c)
	if len(rects) != 1 {
		t.Fatalf("single line: got %d rects, want 1", len(rects))
	}
	// Tight: the envelope hugs the selected glyphs, container-local origin.
	if rects[0].Left != 0 || rects[0].Width != 34*fakeCharW {
		t.Errorf("envelope = %+v, want left 0 width %v", rects[0], 34*fakeCharW)
	}
}

func TestCompute_TightLeftEdgeMidWord(t *testing.T) {
	c, leaves := newFakeDoc("prefix mitigate suffix")
	start := strIndex(leaves[0], "mitigate")
	rects := Compute(leafRange(leaves[0], start, start+8), c)
	if len(rects) != 1 {
		t.Fatalf("got %d rects, want 1", len(rects))
	}
	wantLeft := float64(start) * fakeCharW
	if rects[0].Left != wantLeft {
		t.Errorf("left = %v, want %v (hugs the word, not the line)", rects[0].Left, wantLeft)
	}
}

func TestCompute_ThreeLineParagraph(t *testing.T) {
	// 100 chars wraps into 3 lines of 40/40/20 at the fake's 40 columns.
	text := ""
	for len(text) < 100 {
		text += "covariate shift "
	}
	text = text[:100]
	c, leaves := newFakeDoc(text)

	rects := Compute(leafRange(leaves[0], 2, 98), c)
	if len(rects) != 3 {
		t.Fatalf("3-line selection: got %d rects, want 3 (one per visual line)", len(rects))
	}
	for i, r := range rects {
		if r.Width > c.bounds.Width {
			t.Errorf("rect %d width %v exceeds container width %v", i, r.Width, c.bounds.Width)
		}
		if r.Left < -0.001 {
			t.Errorf("rect %d left %v before container edge", i, r.Left)
		}
	}
}

func TestCompute_WordRunsCoalesced(t *testing.T) {
	c, leaves := newFakeDoc("alpha beta gamma")
	Compute(leafRange(leaves[0], 0, 16), c)
	// 3 word runs measured once each; whitespace measured never.
	if leaves[0].measured != 3 {
		t.Errorf("measure calls = %d, want 3 (one per word run)", leaves[0].measured)
	}
}

func TestCompute_CJKAtomicRuns(t *testing.T) {
	c, leaves := newFakeDoc("协变量偏移")
	rects := Compute(leafRange(leaves[0], 0, 5), c)
	if leaves[0].measured != 5 {
		t.Errorf("measure calls = %d, want 5 (one per CJK character)", leaves[0].measured)
	}
	if len(rects) != 1 {
		t.Fatalf("same-line CJK: got %d rects, want 1 merged envelope", len(rects))
	}
}

func TestCompute_CharBudgetPartial(t *testing.T) {
	// One long line of single-char words defeats coalescing, so the budget
	// caps the walk well before the end of the selection.
	text := ""
	for len(text) < 80 {
		text += "x "
	}
	c, leaves := newFakeDoc(text)
	full := Compute(leafRange(leaves[0], 0, 79), c)
	partial := Compute(leafRange(leaves[0], 0, 79), c, WithCharBudget(10))
	if len(partial) == 0 {
		t.Fatal("budgeted compute returned nothing, want a partial overlay")
	}
	if partial[0].Width >= full[0].Width {
		t.Errorf("budgeted width %v not smaller than full %v", partial[0].Width, full[0].Width)
	}
}

func TestCompute_ScrollAdjusted(t *testing.T) {
	c, leaves := newFakeDoc("scrolled text")
	c.scrollX, c.scrollY = 30, 200
	rects := Compute(leafRange(leaves[0], 0, 8), c)
	if len(rects) != 1 {
		t.Fatalf("got %d rects, want 1", len(rects))
	}
	if rects[0].Left != 30 || rects[0].Top != 200 {
		t.Errorf("container-local origin = (%v,%v), want (30,200)", rects[0].Left, rects[0].Top)
	}
}

func TestCompute_MeasureFailureFallsBack(t *testing.T) {
	c, leaves := newFakeDoc("doomed text")
	leaves[0].failMeas = true
	c.nativeRects = []Rect{{Left: 100, Top: 50, Width: 88, Height: 16}}

	rects := Compute(leafRange(leaves[0], 0, 11), c)
	if c.nativeCalls != 1 {
		t.Fatalf("native fallback calls = %d, want 1", c.nativeCalls)
	}
	if len(rects) != 1 {
		t.Fatalf("got %d rects, want 1 from native fallback", len(rects))
	}
}

func TestCompute_CrossLeafSelection(t *testing.T) {
	c, leaves := newFakeDoc("first paragraph here", "second paragraph there")
	rng := Range{
		Start: Boundary{Node: leaves[0], Offset: 6},
		End:   Boundary{Node: leaves[1], Offset: 6},
	}
	rects := Compute(rng, c)
	if len(rects) != 2 {
		t.Fatalf("cross-leaf: got %d rects, want 2 lines", len(rects))
	}
	if rects[0].Top >= rects[1].Top {
		t.Errorf("rects not ordered top to bottom: %+v", rects)
	}
}

func TestCompute_DegenerateRectsDropped(t *testing.T) {
	c, leaves := newFakeDoc("x")
	c.nativeRects = []Rect{
		{Left: 100, Top: 50, Width: 0, Height: 16},
		{Left: math.NaN(), Top: 50, Width: 8, Height: 16},
	}
	leaves[0].failMeas = true
	rects := Compute(leafRange(leaves[0], 0, 1), c)
	if len(rects) != 0 {
		t.Fatalf("degenerate rects survived: %+v", rects)
	}
}

func TestMergeLines_SubPixelJitter(t *testing.T) {
	raw := []Rect{
		{Left: 0, Top: 100.0, Width: 40, Height: 16},
		{Left: 44, Top: 100.6, Width: 32, Height: 15.2}, // separately measured run
		{Left: 80, Top: 99.7, Width: 24, Height: 16.1},
	}
	merged := mergeLines(raw)
	if len(merged) != 1 {
		t.Fatalf("jittered same-line rects: got %d groups, want 1", len(merged))
	}
	if merged[0].Left != 0 || merged[0].Right() != 104 {
		t.Errorf("envelope = %+v, want left 0 right 104", merged[0])
	}
}

func TestMergeLines_DistinctLinesKept(t *testing.T) {
	raw := []Rect{
		{Left: 0, Top: 100, Width: 40, Height: 16},
		{Left: 0, Top: 116, Width: 40, Height: 16},
	}
	merged := mergeLines(raw)
	if len(merged) != 2 {
		t.Fatalf("adjacent lines: got %d groups, want 2", len(merged))
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		r    rune
		want charClass
	}{
		{'a', classWord}, {'Z', classWord}, {'7', classWord},
		{' ', classWhitespace}, {'\n', classWhitespace}, {' ', classWhitespace},
		{'漢', classCJK}, {'ひ', classCJK}, {'한', classCJK}, {'！', classCJK},
		{'∑', classSymbol}, {'-', classSymbol}, {'é', classSymbol},
	}
	for _, tc := range cases {
		if got := classify(tc.r); got != tc.want {
			t.Errorf("classify(%q) = %d, want %d", tc.r, got, tc.want)
		}
	}
}

func TestRangeText_JoinsLeaves(t *testing.T) {
	_, leaves := newFakeDoc("alpha beta", "gamma delta")
	rng := Range{
		Start: Boundary{Node: leaves[0], Offset: 6},
		End:   Boundary{Node: leaves[1], Offset: 5},
	}
	if got := RangeText(rng); got != "beta gamma" {
		t.Errorf("RangeText = %q, want %q", got, "beta gamma")
	}
}

func TestContext_BoundedSlices(t *testing.T) {
	_, leaves := newFakeDoc("Our adaptation layer is designed to mitigate domain shift under covariate changes.")
	start := strIndex(leaves[0], "mitigate")
	rng := leafRange(leaves[0], start, start+8)

	before, after := Context(rng, 220)
	if before != "Our adaptation layer is designed to " {
		t.Errorf("before = %q", before)
	}
	if after != " domain shift under covariate changes." {
		t.Errorf("after = %q", after)
	}

	shortBefore, shortAfter := Context(rng, 10)
	if len([]rune(shortBefore)) != 10 {
		t.Errorf("bounded before length = %d, want 10", len([]rune(shortBefore)))
	}
	if len([]rune(shortAfter)) != 10 {
		t.Errorf("bounded after length = %d, want 10", len([]rune(shortAfter)))
	}
}
