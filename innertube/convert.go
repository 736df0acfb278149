package innertube

import (
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/chat-rewind/replay"
)

// Wire shapes for the slice of the InnerTube response we care about.
// Renderer variants (text / paid / sticker / membership) share the author
// and runs layout, so they all map through messageRenderer.

type chatResponse struct {
	ContinuationContents struct {
		LiveChatContinuation struct {
			Actions       []chatAction       `json:"actions"`
			Continuations []continuationData `json:"continuations"`
		} `json:"liveChatContinuation"`
	} `json:"continuationContents"`
}

type chatAction struct {
	ReplayChatItemAction struct {
		Actions             []innerAction `json:"actions"`
		VideoOffsetTimeMsec string        `json:"videoOffsetTimeMsec"`
	} `json:"replayChatItemAction"`
}

type innerAction struct {
	AddChatItemAction struct {
		Item chatItem `json:"item"`
	} `json:"addChatItemAction"`
}

type chatItem struct {
	TextMessage     *messageRenderer `json:"liveChatTextMessageRenderer"`
	PaidMessage     *messageRenderer `json:"liveChatPaidMessageRenderer"`
	PaidSticker     *messageRenderer `json:"liveChatPaidStickerRenderer"`
	MembershipItem  *messageRenderer `json:"liveChatMembershipItemRenderer"`
	SponsorshipGift *messageRenderer `json:"liveChatSponsorshipsGiftPurchaseAnnouncementRenderer"`
}

type messageRenderer struct {
	ID            string `json:"id"`
	TimestampUsec string `json:"timestampUsec"`
	AuthorName    struct {
		SimpleText string `json:"simpleText"`
	} `json:"authorName"`
	AuthorExternalChannelID string `json:"authorExternalChannelId"`
	AuthorBadges            []struct {
		LiveChatAuthorBadgeRenderer struct {
			Tooltip string `json:"tooltip"`
			Icon    struct {
				IconType string `json:"iconType"`
			} `json:"icon"`
		} `json:"liveChatAuthorBadgeRenderer"`
	} `json:"authorBadges"`
	Message struct {
		Runs []messageRun `json:"runs"`
	} `json:"message"`
	HeaderSubtext struct {
		Runs []messageRun `json:"runs"`
	} `json:"headerSubtext"`
	PurchaseAmountText struct {
		SimpleText string `json:"simpleText"`
	} `json:"purchaseAmountText"`
	Sticker struct {
		Accessibility struct {
			AccessibilityData struct {
				Label string `json:"label"`
			} `json:"accessibilityData"`
		} `json:"accessibility"`
	} `json:"sticker"`
}

type messageRun struct {
	Text  string `json:"text"`
	Emoji *struct {
		EmojiID   string   `json:"emojiId"`
		Shortcuts []string `json:"shortcuts"`
	} `json:"emoji"`
}

type continuationData struct {
	LiveChatReplayContinuationData struct {
		Continuation string `json:"continuation"`
	} `json:"liveChatReplayContinuationData"`
	TimedContinuationData struct {
		Continuation string `json:"continuation"`
		TimeoutMs    int    `json:"timeoutMs"`
	} `json:"timedContinuationData"`
	InvalidationContinuationData struct {
		Continuation string `json:"continuation"`
		TimeoutMs    int    `json:"timeoutMs"`
	} `json:"invalidationContinuationData"`
}

// convertPage maps one replay response onto the source-agnostic page model.
func convertPage(chat *chatResponse) *replay.Page {
	lc := chat.ContinuationContents.LiveChatContinuation
	page := &replay.Page{}

	for _, action := range lc.Actions {
		offset, hasOffset := parseOffsetMsec(action.ReplayChatItemAction.VideoOffsetTimeMsec)
		for _, inner := range action.ReplayChatItemAction.Actions {
			kind, r := pickRenderer(inner.AddChatItemAction.Item)
			if r == nil {
				continue
			}
			raw := convertRenderer(kind, r)
			raw.Offset = offset
			raw.HasOffset = hasOffset
			page.Messages = append(page.Messages, raw)
		}
	}

	for _, c := range lc.Continuations {
		switch {
		case c.LiveChatReplayContinuationData.Continuation != "":
			page.NextCursor = c.LiveChatReplayContinuationData.Continuation
		case c.TimedContinuationData.Continuation != "":
			page.NextCursor = c.TimedContinuationData.Continuation
			page.PollInterval = time.Duration(c.TimedContinuationData.TimeoutMs) * time.Millisecond
		case c.InvalidationContinuationData.Continuation != "":
			page.NextCursor = c.InvalidationContinuationData.Continuation
			page.PollInterval = time.Duration(c.InvalidationContinuationData.TimeoutMs) * time.Millisecond
		}
		if page.NextCursor != "" {
			break
		}
	}
	return page
}

func pickRenderer(item chatItem) (replay.MessageKind, *messageRenderer) {
	switch {
	case item.TextMessage != nil:
		return replay.KindText, item.TextMessage
	case item.PaidMessage != nil:
		return replay.KindSuperChat, item.PaidMessage
	case item.PaidSticker != nil:
		return replay.KindSuperSticker, item.PaidSticker
	case item.MembershipItem != nil:
		return replay.KindNewSponsor, item.MembershipItem
	case item.SponsorshipGift != nil:
		return replay.KindMembershipGift, item.SponsorshipGift
	default:
		return replay.KindUnknown, nil
	}
}

func convertRenderer(kind replay.MessageKind, r *messageRenderer) replay.RawMessage {
	raw := replay.RawMessage{
		ID:          r.ID,
		Kind:        kind,
		PublishedAt: parseUsec(r.TimestampUsec),
		AmountText:  r.PurchaseAmountText.SimpleText,
		Author: replay.RawAuthor{
			Name:      r.AuthorName.SimpleText,
			ChannelID: r.AuthorExternalChannelID,
		},
	}

	for _, b := range r.AuthorBadges {
		badge := b.LiveChatAuthorBadgeRenderer
		switch badge.Icon.IconType {
		case "OWNER":
			raw.Author.IsOwner = true
		case "MODERATOR":
			raw.Author.IsModerator = true
		case "VERIFIED":
			raw.Author.IsVerified = true
		default:
			// Membership badges carry a custom thumbnail, no icon type.
			if strings.Contains(strings.ToLower(badge.Tooltip), "member") {
				raw.Author.IsSponsor = true
			}
		}
	}

	runs := r.Message.Runs
	if len(runs) == 0 {
		// Membership items put their announcement in headerSubtext; paid
		// stickers only have the sticker alt text.
		runs = r.HeaderSubtext.Runs
	}
	for _, run := range runs {
		if run.Emoji != nil {
			label := run.Emoji.EmojiID
			if len(run.Emoji.Shortcuts) > 0 {
				label = run.Emoji.Shortcuts[0]
			}
			raw.Runs = append(raw.Runs, replay.MessageRun{Emoji: label})
			continue
		}
		if run.Text != "" {
			raw.Runs = append(raw.Runs, replay.MessageRun{Text: run.Text})
		}
	}
	if len(raw.Runs) == 0 {
		if label := r.Sticker.Accessibility.AccessibilityData.Label; label != "" {
			raw.Runs = []replay.MessageRun{{Text: label}}
		}
	}
	return raw
}

func parseOffsetMsec(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	msec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || msec < 0 {
		return 0, false
	}
	return time.Duration(msec) * time.Millisecond, true
}
