package llm

import (
	"regexp"
	"strings"
)

// Context resolution re-anchors the client's selection in the stored
// document text: the client context is layout-derived and may be clipped,
// while the stored text gives clean, wider context for the prompt. The
// client context still disambiguates which occurrence was selected.

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeMatch(s string) string {
	return strings.ToLower(strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " ")))
}

// findAll returns up to 64 occurrence offsets of needle in text.
func findAll(text, needle string, ignoreCase bool) []int {
	if text == "" || needle == "" {
		return nil
	}
	working, target := text, needle
	if ignoreCase {
		working = strings.ToLower(text)
		target = strings.ToLower(needle)
	}
	var starts []int
	cursor := 0
	for len(starts) < 64 {
		idx := strings.Index(working[cursor:], target)
		if idx < 0 {
			break
		}
		starts = append(starts, cursor+idx)
		cursor += idx + max(1, len(target))
		if cursor >= len(working) {
			break
		}
	}
	return starts
}

// bigramSimilarity is a Dice coefficient over byte bigrams of the
// normalized inputs. Cheap, order-insensitive enough for ranking candidate
// occurrences by surrounding-context agreement.
func bigramSimilarity(a, b string) float64 {
	a, b = normalizeMatch(a), normalizeMatch(b)
	if len(a) < 2 || len(b) < 2 {
		if a == b && a != "" {
			return 1
		}
		return 0
	}
	grams := make(map[string]int, len(a))
	for i := 0; i+2 <= len(a); i++ {
		grams[a[i:i+2]]++
	}
	shared := 0
	for i := 0; i+2 <= len(b); i++ {
		g := b[i : i+2]
		if grams[g] > 0 {
			grams[g]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)-1+len(b)-1)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type matchResult struct {
	start, end int
	quality    float64
	strategy   string
	candidates int
}

type scoredCandidate struct {
	base   float64
	source string
}

// matchSelectedText locates the selected occurrence in the full document
// text. Page-scoped exact matches rank above global ones; among equal-base
// candidates the one whose surrounding text best agrees with the client's
// context hints wins.
func matchSelectedText(fullText, selectedText string, span *[2]int, beforeHint, afterHint string) matchResult {
	query := strings.TrimSpace(selectedText)
	if fullText == "" || query == "" {
		return matchResult{start: -1, end: -1, strategy: "empty_input"}
	}

	candidates := make(map[int]scoredCandidate)
	add := func(starts []int, offset int, base float64, source string) {
		for _, s := range starts {
			abs := offset + s
			if prev, ok := candidates[abs]; !ok || base > prev.base {
				candidates[abs] = scoredCandidate{base: base, source: source}
			}
		}
	}

	if span != nil {
		scoped := fullText[span[0]:span[1]]
		add(findAll(scoped, query, false), span[0], 0.97, "scoped_exact")
		add(findAll(scoped, query, true), span[0], 0.93, "scoped_case_insensitive")
	}
	add(findAll(fullText, query, false), 0, 0.9, "global_exact")
	add(findAll(fullText, query, true), 0, 0.86, "global_case_insensitive")

	if len(candidates) > 0 {
		const contextWindow = 240
		best := matchResult{start: -1, end: -1, candidates: len(candidates)}
		bestContext := 0.0
		for start, cand := range candidates {
			end := start + len(query)
			before := fullText[max(0, start-contextWindow):start]
			after := fullText[end:min(len(fullText), end+contextWindow)]

			points, weights := 0.0, 0.0
			if beforeHint != "" {
				points += bigramSimilarity(tail(before, 180), tail(beforeHint, 180))
				weights++
			}
			if afterHint != "" {
				points += bigramSimilarity(head(after, 180), head(afterHint, 180))
				weights++
			}
			contextMatch := 0.0
			if weights > 0 {
				contextMatch = points / weights
			}
			quality := min(0.99, cand.base+contextMatch*0.18)

			if quality > best.quality+1e-6 ||
				(abs(quality-best.quality) <= 1e-6 && contextMatch > bestContext) {
				best.quality = quality
				best.start = start
				best.end = end
				best.strategy = cand.source
				bestContext = contextMatch
			}
		}
		if best.start >= 0 {
			return best
		}
	}

	// Fuzzy fallback: longest query prefix present in the text, for
	// extraction artifacts that break the tail of the selection.
	if span != nil {
		scoped := fullText[span[0]:span[1]]
		if s, e := longestPrefixMatch(query, scoped); s >= 0 {
			return matchResult{start: span[0] + s, end: span[0] + e, quality: 0.72,
				strategy: "scoped_fuzzy", candidates: len(candidates)}
		}
	}
	if len(fullText) <= 250_000 {
		if s, e := longestPrefixMatch(query, fullText); s >= 0 {
			return matchResult{start: s, end: e, quality: 0.7,
				strategy: "global_fuzzy", candidates: len(candidates)}
		}
	}
	return matchResult{start: -1, end: -1, strategy: "not_found", candidates: len(candidates)}
}

// longestPrefixMatch finds the longest prefix of target occurring in text,
// by binary search on prefix length. Matches shorter than 60% of the
// target (and under 20 bytes) are rejected as unrelated snippets.
func longestPrefixMatch(target, text string) (int, int) {
	if target == "" || text == "" {
		return -1, -1
	}
	lo, hi := 0, len(target) // invariant: prefix of length lo matches
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if strings.Contains(text, target[:mid]) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	minLen := min(len(target), max(20, len(target)*6/10))
	if lo < minLen {
		return -1, -1
	}
	start := strings.Index(text, target[:lo])
	return start, start + lo
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

type resolvedContext struct {
	before, after string
	quality       float64
	strategy      string
}

// resolveContext picks the prompt context for a selection: document text
// around the matched occurrence when the selection can be re-anchored,
// otherwise the client-provided fallback context at reduced quality.
func resolveContext(rawText, selectedText string, span *[2]int, mode Mode, fallbackBefore, fallbackAfter string) resolvedContext {
	if rawText == "" {
		return resolvedContext{before: fallbackBefore, after: fallbackAfter,
			quality: 0.2, strategy: "no_raw_text"}
	}

	m := matchSelectedText(rawText, selectedText, span, fallbackBefore, fallbackAfter)
	if m.start < 0 {
		return resolvedContext{before: fallbackBefore, after: fallbackAfter,
			quality: max(m.quality, 0.25), strategy: m.strategy}
	}

	window := 320
	if mode == ModeWord || mode == ModeTerm {
		window = 180
	}
	before := strings.TrimSpace(rawText[max(0, m.start-window):m.start])
	after := strings.TrimSpace(rawText[m.end:min(len(rawText), m.end+window)])
	return resolvedContext{before: before, after: after, quality: m.quality, strategy: m.strategy}
}
