package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the terminal outcomes of a fetch. Callers distinguish
// them with errors.Is so the serving layer can map each to a distinct
// user-legible response.
var (
	// ErrInvalidVideoReference means the input contained no recognizable
	// video identifier. Not retried.
	ErrInvalidVideoReference = errors.New("invalid video reference")

	// ErrChatUnavailable means the resolved video has no chat replay at all:
	// chat disabled, stream never had chat, or the stream is still live.
	ErrChatUnavailable = errors.New("chat replay unavailable")

	// ErrQuotaExceeded means the upstream signalled quota or rate-limit
	// exhaustion. The limiting resource (daily quota) is not recoverable
	// within the run, so this is a hard stop and is never retried.
	ErrQuotaExceeded = errors.New("upstream quota exceeded")

	// ErrMalformedMessage marks a single raw payload the normalizer could
	// not map (missing author or text). Recovered locally by skipping; it
	// never aborts a page.
	ErrMalformedMessage = errors.New("malformed chat message")
)

// FetchError is returned when the transient-retry budget is exhausted.
type FetchError struct {
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("chat fetch failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTerminal reports whether err is one of the non-retryable outcomes.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrInvalidVideoReference) ||
		errors.Is(err, ErrChatUnavailable) ||
		errors.Is(err, ErrQuotaExceeded)
}

// retryable classifies a page-fetch error as transient. Quota and the other
// sentinel outcomes are terminal; context cancellation is terminal; anything
// that looks like a network hiccup or a 5xx-class response is retried.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsTerminal(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	lower := strings.ToLower(err.Error())

	// 5xx-class server errors
	for _, pat := range []string{
		"500", "502", "503", "504",
		"internal server error", "bad gateway",
		"service unavailable", "gateway timeout",
	} {
		if strings.Contains(lower, pat) {
			return true
		}
	}

	// Network-level failures
	for _, pat := range []string{
		"connection reset", "connection refused", "connection timed out",
		"timeout", "temporary failure in name resolution",
		"no route to host", "network unreachable", "eof", "broken pipe",
	} {
		if strings.Contains(lower, pat) {
			return true
		}
	}

	// Unknown errors are retried so a transient blip doesn't kill the run;
	// the attempt budget bounds the damage.
	return true
}
