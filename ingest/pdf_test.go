package ingest

import (
	"testing"
)

func TestAssemblePages(t *testing.T) {
	text, offsets := assemblePages([]string{"page one", "", "page three"})

	if text != "page one\npage three" {
		t.Fatalf("text = %q", text)
	}
	if len(offsets) != 2 {
		t.Fatalf("offsets = %v, want entries for pages 1 and 3", offsets)
	}
	if got := offsets[1]; got != [2]int{0, 8} {
		t.Errorf("page 1 span = %v, want [0 8]", got)
	}
	if got := offsets[3]; got != [2]int{9, 19} {
		t.Errorf("page 3 span = %v, want [9 19]", got)
	}
	// Spans must slice back to the page text.
	if slice := text[offsets[3][0]:offsets[3][1]]; slice != "page three" {
		t.Errorf("span slices to %q", slice)
	}
}

func TestAssemblePagesAllEmpty(t *testing.T) {
	text, offsets := assemblePages([]string{"", "", ""})
	if text != "" || len(offsets) != 0 {
		t.Fatalf("got text=%q offsets=%v, want empty", text, offsets)
	}
}

func TestFirstLineTitle(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Attention Is All You Need\nAbstract follows", "Attention Is All You Need"},
		{"\n\n  Indented Title  \nbody", "Indented Title"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := firstLineTitle(tt.text); got != tt.want {
			t.Errorf("firstLineTitle(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestDecodePDFString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`plain`, "plain"},
		{`a\(b\)c`, "a(b)c"},
		{`line\nbreak`, "line\nbreak"},
		{`back\\slash`, `back\slash`},
		{`octal \101\102`, "octal AB"},
		{`\110i`, "Hi"},
	}
	for _, tt := range tests {
		if got := decodePDFString([]byte(tt.raw)); got != tt.want {
			t.Errorf("decodePDFString(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte(`BT
/F1 12 Tf
(Hello ) Tj
(world) Tj
0 -14 Td
(second line) Tj
ET`)
	got := textFromContentStream(stream)
	want := "Hello world second line"
	if got != want {
		t.Errorf("textFromContentStream = %q, want %q", got, want)
	}
}

func TestCleanExtractedText(t *testing.T) {
	got := cleanExtractedText("  a\t\tbc  ")
	if got != "a bc" {
		t.Errorf("cleanExtractedText = %q, want %q", got, "a bc")
	}
}
