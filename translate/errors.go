package translate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSuperseded marks a request aborted because a newer one replaced it.
// It is never surfaced to the user.
var ErrSuperseded = errors.New("translate: superseded by a newer request")

// NoContextError means no document identity was available; the request
// fails fast with no network call.
type NoContextError struct{}

func (NoContextError) Error() string {
	return "translate: no document context for selection"
}

// TimeoutError marks a request aborted by the wall-clock timer rather than
// by supersession.
type TimeoutError struct {
	Fingerprint string
}

func (e TimeoutError) Error() string {
	return "translate: request timed out"
}

// transientMarkers are matched case-insensitively against provider error
// text. The backend reports failures in English regardless of the target
// language, so substring matching is stable.
var transientMarkers = []string{
	"busy",
	"timeout",
	"timed out",
	"network",
	"connection reset",
	"connection refused",
	"unexpected eof",
	"temporarily unavailable",
	"service unavailable",
	"rate limit",
	"too many requests",
	"429",
	"503",
	"502",
}

// Transient reports whether the error is worth one more attempt.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// HTTPError is a non-2xx backend reply. The status code participates in
// transient classification through its textual form.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("translate: backend %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("translate: backend %d", e.StatusCode)
}
