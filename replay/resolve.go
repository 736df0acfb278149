// Package replay implements the chat-replay pipeline: resolving a video
// reference, walking the paginated upstream chat source, normalizing raw
// payloads into chat messages, and accumulating them into a frozen transcript.
package replay

import (
	"fmt"
	"regexp"
	"strings"
)

// VideoRef identifies one archived stream. Immutable once resolved.
type VideoRef struct {
	// VideoID is the canonical 11-character YouTube video id.
	VideoID string
	// SourceURL is the raw input the id was resolved from.
	SourceURL string
}

// videoIDPattern matches the upstream identifier grammar: 11 URL-safe chars.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// urlPatterns are tried in order against the input. Each captures the video id.
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:[^#\s]*&)?v=|youtu\.be/|youtube\.com/embed/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/live/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{11})`),
}

// ResolveVideo extracts a canonical video id from a watch URL, live URL,
// short URL, or a bare id. It never touches the network. A value wrapping
// ErrInvalidVideoReference is returned when no id can be found.
func ResolveVideo(input string) (VideoRef, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return VideoRef{}, fmt.Errorf("%w: empty input", ErrInvalidVideoReference)
	}

	if videoIDPattern.MatchString(trimmed) {
		return VideoRef{VideoID: trimmed, SourceURL: trimmed}, nil
	}

	for _, p := range urlPatterns {
		if m := p.FindStringSubmatch(trimmed); m != nil {
			return VideoRef{VideoID: m[1], SourceURL: trimmed}, nil
		}
	}

	return VideoRef{}, fmt.Errorf("%w: no video id in %q", ErrInvalidVideoReference, trimmed)
}
