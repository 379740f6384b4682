package llm

import "strings"

// InputError marks a client-correctable request problem (bad selection,
// unknown document). Mapped to HTTP 400 by the API layer.
type InputError struct {
	Msg string
}

func (e InputError) Error() string { return e.Msg }

// transientHints are matched case-insensitively against provider error
// text to decide retry eligibility.
var transientHints = []string{
	"429",
	"too many requests",
	"resource exhausted",
	"rate limit",
	"temporarily unavailable",
	"timed out",
	"timeout",
	"connection reset",
	"connection aborted",
	"connection refused",
	"unexpected eof",
	"ssl",
	"tls",
	"service unavailable",
}

// Transient reports whether a provider error is worth retrying.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// Category buckets a provider error for telemetry and client messaging.
func Category(err error) string {
	if err == nil {
		return "unknown"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "resource exhausted"):
		return "rate_limited"
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "connect"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "ssl"),
		strings.Contains(msg, "tls"),
		strings.Contains(msg, "eof"):
		return "network"
	default:
		return "unknown"
	}
}

// ClientMessage turns a provider error into a short, safe message for the
// API response. Provider internals never leak through.
func ClientMessage(err error) string {
	switch Category(err) {
	case "rate_limited":
		return "LLM provider is busy. Please retry in a few seconds."
	case "timeout":
		return "LLM provider timed out. Please retry."
	case "network":
		return "LLM provider connection was interrupted. Please retry."
	default:
		return "LLM provider is temporarily unavailable. Please retry."
	}
}
