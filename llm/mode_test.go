package llm

import "testing"

func TestClassifyMode(t *testing.T) {
	cases := []struct {
		text string
		hint Mode
		want Mode
	}{
		{"mitigate", ModeAuto, ModeWord},
		{"mitigate", "", ModeWord},
		{"covariate shift", ModeAuto, ModeTerm},
		{"domain adaptation layer", ModeAuto, ModeTerm},
		{"We mitigate domain shift under covariate changes.", ModeAuto, ModeSentence},
		{"one two three four five", ModeAuto, ModeSentence},
		{"mitigate.", ModeAuto, ModeSentence}, // terminal punctuation forces sentence
		{"O(n log n)", ModeAuto, ModeFormula},
		{`\alpha + \beta`, ModeAuto, ModeFormula},
		{"x^{2} + y^{2} = r^{2}", ModeAuto, ModeFormula},
		{"a_i", ModeAuto, ModeFormula},
		{"E = mc^2", ModeAuto, ModeFormula},
		// Explicit hints win over detection.
		{"We mitigate domain shift.", ModeWord, ModeWord},
		{"mitigate", ModeSentence, ModeSentence},
	}
	for _, c := range cases {
		if got := ClassifyMode(c.text, c.hint); got != c.want {
			t.Errorf("ClassifyMode(%q, %q) = %q, want %q", c.text, c.hint, got, c.want)
		}
	}
}

func TestIsFormulaDensity(t *testing.T) {
	// Plain prose with the occasional hyphen must not trip the math
	// density heuristic.
	if isFormula("state-of-the-art cross-validation") {
		t.Error("hyphenated prose classified as formula")
	}
	if !isFormula("[a, b] -> [c, d] => e < f") {
		t.Error("symbol-dense expression not classified as formula")
	}
}

func TestValidHint(t *testing.T) {
	for _, ok := range []string{"auto", "word", "term", "sentence", "formula"} {
		if !ValidHint(ok) {
			t.Errorf("ValidHint(%q) = false", ok)
		}
	}
	if ValidHint("paragraph") {
		t.Error(`ValidHint("paragraph") = true`)
	}
}
