// Package youtubeapi is the primary chat-replay source, backed by the
// YouTube Data API v3: videos.list resolves stream metadata and the live
// chat id, liveChatMessages.list walks the replay by nextPageToken.
// Authenticated with an API key or an OAuth2 bearer token.
package youtubeapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/onnwee/chat-rewind/config"
	"github.com/onnwee/chat-rewind/replay"
)

// maxPageSize is the upstream cap on liveChatMessages.list maxResults.
const maxPageSize = 2000

// Source implements replay.Source over the Data API. Safe for concurrent use;
// all per-fetch state lives in the stream returned by Open.
type Source struct {
	svc      *yt.Service
	pageSize int64
}

// New builds a Source from config. An API key takes precedence; a bearer
// token (YT_ACCESS_TOKEN) is accepted as an alternative for quota reasons.
func New(ctx context.Context, cfg *config.Config) (*Source, error) {
	var opts []option.ClientOption
	switch {
	case cfg.YouTubeAPIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.YouTubeAPIKey))
	case cfg.YTAccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.YTAccessToken})
		opts = append(opts, option.WithTokenSource(ts))
	default:
		return nil, errors.New("youtubeapi: neither YOUTUBE_API_KEY nor YT_ACCESS_TOKEN configured")
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtubeapi: create service: %w", err)
	}
	return NewFromService(svc, cfg.ChatMaxPageSize), nil
}

// NewFromService wraps an existing Data API service (used by tests to point
// at an httptest server). pageSize <= 0 uses the upstream maximum.
func NewFromService(svc *yt.Service, pageSize int64) *Source {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &Source{svc: svc, pageSize: pageSize}
}

// Open resolves metadata and the live chat id for ref. Videos without live
// streaming details or without a chat id fail with replay.ErrChatUnavailable.
func (s *Source) Open(ctx context.Context, ref replay.VideoRef) (replay.Stream, error) {
	resp, err := s.svc.Videos.List([]string{"snippet", "liveStreamingDetails"}).
		Id(ref.VideoID).Context(ctx).Do()
	if err != nil {
		return nil, mapAPIError(err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: video %s not found", replay.ErrChatUnavailable, ref.VideoID)
	}
	v := resp.Items[0]
	if v.LiveStreamingDetails == nil {
		return nil, fmt.Errorf("%w: video %s has no live stream data", replay.ErrChatUnavailable, ref.VideoID)
	}
	chatID := v.LiveStreamingDetails.ActiveLiveChatId
	if chatID == "" {
		return nil, fmt.Errorf("%w: live chat disabled or replay expired for %s", replay.ErrChatUnavailable, ref.VideoID)
	}

	meta := replay.StreamMeta{StartedAt: parseAPITime(v.LiveStreamingDetails.ActualStartTime)}
	if v.Snippet != nil {
		meta.Title = v.Snippet.Title
		meta.ChannelName = v.Snippet.ChannelTitle
	}
	return &stream{src: s, chatID: chatID, meta: meta}, nil
}

type stream struct {
	src    *Source
	chatID string
	meta   replay.StreamMeta
}

func (st *stream) Meta() replay.StreamMeta { return st.meta }

func (st *stream) Page(ctx context.Context, cursor string) (*replay.Page, error) {
	call := st.src.svc.LiveChatMessages.List(st.chatID, []string{"snippet", "authorDetails"}).
		MaxResults(st.src.pageSize).Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, mapAPIError(err)
	}
	page := &replay.Page{
		NextCursor:   resp.NextPageToken,
		PollInterval: time.Duration(resp.PollingIntervalMillis) * time.Millisecond,
	}
	for _, item := range resp.Items {
		page.Messages = append(page.Messages, convertMessage(item))
	}
	return page, nil
}

// convertMessage maps one Data API item onto the source-agnostic raw payload.
// The snippet type drives the tagged-variant dispatch in the normalizer.
func convertMessage(item *yt.LiveChatMessage) replay.RawMessage {
	raw := replay.RawMessage{ID: item.Id, Kind: replay.KindUnknown}
	if sn := item.Snippet; sn != nil {
		raw.PublishedAt = parseAPITime(sn.PublishedAt)
		text := sn.DisplayMessage
		switch sn.Type {
		case "textMessageEvent":
			raw.Kind = replay.KindText
			if sn.TextMessageDetails != nil && sn.TextMessageDetails.MessageText != "" {
				text = sn.TextMessageDetails.MessageText
			}
		case "superChatEvent":
			raw.Kind = replay.KindSuperChat
			if sc := sn.SuperChatDetails; sc != nil {
				if sc.UserComment != "" {
					text = sc.UserComment
				}
				raw.AmountText = sc.AmountDisplayString
			}
		case "superStickerEvent":
			raw.Kind = replay.KindSuperSticker
			if ss := sn.SuperStickerDetails; ss != nil {
				if ss.SuperStickerMetadata != nil && ss.SuperStickerMetadata.AltText != "" {
					text = ss.SuperStickerMetadata.AltText
				}
				raw.AmountText = ss.AmountDisplayString
			}
		case "newSponsorEvent", "memberMilestoneChatEvent":
			raw.Kind = replay.KindNewSponsor
		case "membershipGiftingEvent", "giftMembershipReceivedEvent":
			raw.Kind = replay.KindMembershipGift
		}
		if text != "" {
			raw.Runs = []replay.MessageRun{{Text: text}}
		}
	}
	if ad := item.AuthorDetails; ad != nil {
		raw.Author = replay.RawAuthor{
			Name:        ad.DisplayName,
			ChannelID:   ad.ChannelId,
			IsVerified:  ad.IsVerified,
			IsOwner:     ad.IsChatOwner,
			IsSponsor:   ad.IsChatSponsor,
			IsModerator: ad.IsChatModerator,
		}
	}
	return raw
}

// mapAPIError translates googleapi errors onto the fetch taxonomy. Anything
// unrecognized passes through and is classified by the retry layer.
func mapAPIError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
			return fmt.Errorf("%w: %s", replay.ErrQuotaExceeded, item.Reason)
		case "liveChatNotFound", "liveChatDisabled", "liveChatEnded", "forbidden":
			return fmt.Errorf("%w: %s", replay.ErrChatUnavailable, item.Reason)
		}
	}
	switch gerr.Code {
	case 403, 429:
		// 403 without a recognized reason is most often quota on this API.
		return fmt.Errorf("%w: http %d from data api", replay.ErrQuotaExceeded, gerr.Code)
	case 404:
		return fmt.Errorf("%w: http 404 from data api", replay.ErrChatUnavailable)
	}
	return err
}

func parseAPITime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
