package replay

import (
	"fmt"
	"strings"
	"time"
)

// MessageKind tags the upstream payload variant a raw message came from.
// Kinds are normalized away: every variant maps to the same ChatMessage
// shape, with paid and membership kinds folding into the sponsor flag.
type MessageKind string

const (
	KindText           MessageKind = "text"
	KindSuperChat      MessageKind = "superChat"
	KindSuperSticker   MessageKind = "superSticker"
	KindNewSponsor     MessageKind = "newSponsor"
	KindMembershipGift MessageKind = "membershipGift"
	KindUnknown        MessageKind = "unknown"
)

// MessageRun is one segment of a message body: either plain text or an emoji
// token carried as its shortcode / alt text.
type MessageRun struct {
	Text  string
	Emoji string
}

// RawAuthor is the author block of a raw upstream payload.
type RawAuthor struct {
	Name        string
	ChannelID   string
	IsVerified  bool
	IsOwner     bool
	IsSponsor   bool
	IsModerator bool
}

// RawMessage is the source-agnostic upstream payload handed to the
// normalizer. Both the Data API and InnerTube sources produce it.
type RawMessage struct {
	ID          string
	Kind        MessageKind
	PublishedAt time.Time
	Author      RawAuthor
	Runs        []MessageRun
	// AmountText is the Super Chat amount display string, when present.
	AmountText string
	// Offset is the position within the stream when the upstream supplies it
	// directly (InnerTube replay pages do). HasOffset distinguishes a real
	// zero offset from an absent one.
	Offset    time.Duration
	HasOffset bool
}

// ChatMessage is the canonical normalized record consumed by the renderers.
type ChatMessage struct {
	ID                string
	OffsetSeconds     float64
	AuthorName        string
	AuthorChannelID   string
	Text              string
	IsVerified        bool
	IsOwner           bool
	IsModerator       bool
	IsSponsorOrMember bool
	TimestampUTC      time.Time
}

// Normalize maps one raw payload onto the canonical ChatMessage. start is the
// stream start used to derive the relative offset; offsets never go negative.
// Payloads missing an author name or any renderable text fail with a wrapped
// ErrMalformedMessage so the caller can skip and count them.
func Normalize(raw RawMessage, start time.Time) (ChatMessage, error) {
	if raw.Author.Name == "" {
		return ChatMessage{}, fmt.Errorf("%w: missing author (id=%s)", ErrMalformedMessage, raw.ID)
	}

	text := flattenRuns(raw.Runs)
	if raw.AmountText != "" {
		if text == "" {
			text = raw.AmountText
		} else {
			text = text + " (" + raw.AmountText + ")"
		}
	}
	if text == "" {
		return ChatMessage{}, fmt.Errorf("%w: empty message text (id=%s)", ErrMalformedMessage, raw.ID)
	}

	ts := raw.PublishedAt.UTC()
	var offset float64
	switch {
	case raw.HasOffset:
		offset = raw.Offset.Seconds()
		if ts.IsZero() && !start.IsZero() {
			ts = start.UTC().Add(raw.Offset)
		}
	case !ts.IsZero() && !start.IsZero():
		offset = ts.Sub(start.UTC()).Seconds()
	}
	if offset < 0 {
		offset = 0
	}

	sponsor := raw.Author.IsSponsor
	switch raw.Kind {
	case KindSuperChat, KindSuperSticker, KindNewSponsor, KindMembershipGift:
		sponsor = true
	}

	return ChatMessage{
		ID:                raw.ID,
		OffsetSeconds:     offset,
		AuthorName:        raw.Author.Name,
		AuthorChannelID:   raw.Author.ChannelID,
		Text:              text,
		IsVerified:        raw.Author.IsVerified,
		IsOwner:           raw.Author.IsOwner,
		IsModerator:       raw.Author.IsModerator,
		IsSponsorOrMember: sponsor,
		TimestampUTC:      ts,
	}, nil
}

// flattenRuns concatenates text runs, substituting each emoji token with its
// shortcode so the result is always plain renderable text.
func flattenRuns(runs []MessageRun) string {
	var b strings.Builder
	for _, r := range runs {
		if r.Emoji != "" {
			b.WriteString(emojiShortcode(r.Emoji))
			continue
		}
		b.WriteString(r.Text)
	}
	return strings.TrimSpace(b.String())
}

// emojiShortcode wraps a bare emoji label in colons (":name:"). Labels that
// already carry colons, and literal unicode emoji, pass through unchanged.
func emojiShortcode(label string) string {
	if strings.HasPrefix(label, ":") && strings.HasSuffix(label, ":") {
		return label
	}
	// Unicode emoji ids are the emoji itself; keep them renderable as-is.
	for _, r := range label {
		if r > 0x2000 {
			return label
		}
		break
	}
	return ":" + label + ":"
}
