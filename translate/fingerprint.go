package translate

import (
	"strconv"
	"strings"
)

// Fingerprint derives the logical identity of a translation request. Two
// selections that differ only in casing or whitespace produce the same
// fingerprint and are served by one network call.
func Fingerprint(req *Request) string {
	page := ""
	if req.PageNumber != nil {
		page = strconv.Itoa(*req.PageNumber)
	}
	parts := []string{
		normalize(req.DocumentID),
		normalize(req.SelectedText),
		normalize(page),
		normalize(req.SelectionTypeHint),
		normalize(req.TargetLanguage),
		normalize(req.ContextBefore),
		normalize(req.ContextAfter),
	}
	return strings.Join(parts, "|")
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
