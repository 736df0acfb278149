package replay

import (
	"errors"
	"testing"
	"time"
)

var streamStart = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func textMsg(id, text string) RawMessage {
	return RawMessage{
		ID:          id,
		Kind:        KindText,
		PublishedAt: streamStart.Add(30 * time.Second),
		Author:      RawAuthor{Name: "viewer", ChannelID: "UCviewer"},
		Runs:        []MessageRun{{Text: text}},
	}
}

func TestNormalizeText(t *testing.T) {
	msg, err := Normalize(textMsg("m1", "hello chat"), streamStart)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "hello chat" {
		t.Errorf("Text = %q", msg.Text)
	}
	if msg.OffsetSeconds != 30 {
		t.Errorf("OffsetSeconds = %v, want 30", msg.OffsetSeconds)
	}
	if !msg.TimestampUTC.Equal(streamStart.Add(30 * time.Second)) {
		t.Errorf("TimestampUTC = %v", msg.TimestampUTC)
	}
}

func TestNormalizeRuns(t *testing.T) {
	tests := []struct {
		name string
		runs []MessageRun
		want string
	}{
		{
			"text and emoji interleaved",
			[]MessageRun{{Text: "nice "}, {Emoji: ":fire:"}, {Text: " stream"}},
			"nice :fire: stream",
		},
		{
			"bare emoji label gets colons",
			[]MessageRun{{Emoji: "hand-pink-waving"}},
			":hand-pink-waving:",
		},
		{
			"unicode emoji passes through",
			[]MessageRun{{Text: "gg "}, {Emoji: "\U0001F525"}},
			"gg \U0001F525",
		},
		{
			"emoji only",
			[]MessageRun{{Emoji: ":lol:"}, {Emoji: ":lol:"}},
			":lol::lol:",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := textMsg("m1", "")
			raw.Runs = tt.runs
			msg, err := Normalize(raw, streamStart)
			if err != nil {
				t.Fatal(err)
			}
			if msg.Text != tt.want {
				t.Errorf("Text = %q, want %q", msg.Text, tt.want)
			}
		})
	}
}

func TestNormalizeSuperChat(t *testing.T) {
	raw := textMsg("sc1", "take my money")
	raw.Kind = KindSuperChat
	raw.AmountText = "$5.00"
	msg, err := Normalize(raw, streamStart)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "take my money ($5.00)" {
		t.Errorf("Text = %q", msg.Text)
	}
	if !msg.IsSponsorOrMember {
		t.Error("super chat should fold into IsSponsorOrMember")
	}
}

func TestNormalizeSuperChatNoComment(t *testing.T) {
	raw := RawMessage{
		ID:          "sc2",
		Kind:        KindSuperChat,
		PublishedAt: streamStart,
		Author:      RawAuthor{Name: "donor"},
		AmountText:  "¥500",
	}
	msg, err := Normalize(raw, streamStart)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "¥500" {
		t.Errorf("Text = %q", msg.Text)
	}
}

func TestNormalizeMembership(t *testing.T) {
	raw := textMsg("mem1", "Welcome to the channel!")
	raw.Kind = KindNewSponsor
	msg, err := Normalize(raw, streamStart)
	if err != nil {
		t.Fatal(err)
	}
	if !msg.IsSponsorOrMember {
		t.Error("membership message should set IsSponsorOrMember")
	}
}

func TestNormalizeIndependentFlags(t *testing.T) {
	raw := textMsg("m1", "hi")
	raw.Author.IsOwner = true
	raw.Author.IsVerified = true
	raw.Author.IsModerator = true
	raw.Author.IsSponsor = true
	msg, err := Normalize(raw, streamStart)
	if err != nil {
		t.Fatal(err)
	}
	if !msg.IsOwner || !msg.IsVerified || !msg.IsModerator || !msg.IsSponsorOrMember {
		t.Errorf("flags not independent: %+v", msg)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  RawMessage
	}{
		{"missing author", RawMessage{ID: "x", Kind: KindText, Runs: []MessageRun{{Text: "hi"}}}},
		{"empty text", RawMessage{ID: "x", Kind: KindText, Author: RawAuthor{Name: "a"}}},
		{"whitespace only text", RawMessage{ID: "x", Kind: KindText, Author: RawAuthor{Name: "a"}, Runs: []MessageRun{{Text: "   "}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, streamStart)
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestNormalizeOffsets(t *testing.T) {
	t.Run("clamped to zero before start", func(t *testing.T) {
		raw := textMsg("m1", "early")
		raw.PublishedAt = streamStart.Add(-10 * time.Second)
		msg, err := Normalize(raw, streamStart)
		if err != nil {
			t.Fatal(err)
		}
		if msg.OffsetSeconds != 0 {
			t.Errorf("OffsetSeconds = %v, want 0", msg.OffsetSeconds)
		}
	})

	t.Run("explicit offset wins", func(t *testing.T) {
		raw := textMsg("m1", "hi")
		raw.Offset = 95 * time.Second
		raw.HasOffset = true
		msg, err := Normalize(raw, streamStart)
		if err != nil {
			t.Fatal(err)
		}
		if msg.OffsetSeconds != 95 {
			t.Errorf("OffsetSeconds = %v, want 95", msg.OffsetSeconds)
		}
	})

	t.Run("timestamp derived from start plus offset", func(t *testing.T) {
		raw := RawMessage{
			ID:        "m1",
			Kind:      KindText,
			Author:    RawAuthor{Name: "a"},
			Runs:      []MessageRun{{Text: "hi"}},
			Offset:    42 * time.Second,
			HasOffset: true,
		}
		msg, err := Normalize(raw, streamStart)
		if err != nil {
			t.Fatal(err)
		}
		if !msg.TimestampUTC.Equal(streamStart.Add(42 * time.Second)) {
			t.Errorf("TimestampUTC = %v", msg.TimestampUTC)
		}
	})
}
