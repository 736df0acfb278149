package youtubeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/onnwee/chat-rewind/replay"
)

func testSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := yt.NewService(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithoutAuthentication())
	if err != nil {
		t.Fatal(err)
	}
	return NewFromService(svc, 0)
}

func videosResponse(chatID string) *yt.VideoListResponse {
	return &yt.VideoListResponse{
		Items: []*yt.Video{{
			Id: "dQw4w9WgXcQ",
			Snippet: &yt.VideoSnippet{
				Title:        "Launch Stream",
				ChannelTitle: "SpaceChan",
			},
			LiveStreamingDetails: &yt.VideoLiveStreamingDetails{
				ActiveLiveChatId: chatID,
				ActualStartTime:  "2024-03-01T18:00:00Z",
			},
		}},
	}
}

func TestOpenResolvesChat(t *testing.T) {
	src := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "dQw4w9WgXcQ" {
			t.Errorf("id param = %q", r.URL.Query().Get("id"))
		}
		json.NewEncoder(w).Encode(videosResponse("chat-123"))
	})
	stream, err := src.Open(context.Background(), replay.VideoRef{VideoID: "dQw4w9WgXcQ"})
	if err != nil {
		t.Fatal(err)
	}
	meta := stream.Meta()
	if meta.Title != "Launch Stream" || meta.ChannelName != "SpaceChan" {
		t.Errorf("meta = %+v", meta)
	}
	want := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	if !meta.StartedAt.Equal(want) {
		t.Errorf("StartedAt = %v, want %v", meta.StartedAt, want)
	}
}

func TestOpenUnavailable(t *testing.T) {
	tests := []struct {
		name string
		resp *yt.VideoListResponse
	}{
		{"video not found", &yt.VideoListResponse{}},
		{"not a live stream", &yt.VideoListResponse{Items: []*yt.Video{{Id: "x"}}}},
		{"chat disabled", videosResponse("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testSource(t, func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(tt.resp)
			})
			_, err := src.Open(context.Background(), replay.VideoRef{VideoID: "dQw4w9WgXcQ"})
			if !errors.Is(err, replay.ErrChatUnavailable) {
				t.Errorf("error = %v, want ErrChatUnavailable", err)
			}
		})
	}
}

func TestPagePassesToken(t *testing.T) {
	var tokens []string
	src := testSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("liveChatId") == "" {
			json.NewEncoder(w).Encode(videosResponse("chat-123"))
			return
		}
		tokens = append(tokens, r.URL.Query().Get("pageToken"))
		json.NewEncoder(w).Encode(&yt.LiveChatMessageListResponse{
			NextPageToken:         "tok-2",
			PollingIntervalMillis: 1500,
			Items: []*yt.LiveChatMessage{{
				Id: "m1",
				Snippet: &yt.LiveChatMessageSnippet{
					Type:        "textMessageEvent",
					PublishedAt: "2024-03-01T18:00:10Z",
					TextMessageDetails: &yt.LiveChatTextMessageDetails{
						MessageText: "hello chat",
					},
				},
				AuthorDetails: &yt.LiveChatMessageAuthorDetails{
					DisplayName: "viewer",
					ChannelId:   "UCviewer",
				},
			}},
		})
	})

	stream, err := src.Open(context.Background(), replay.VideoRef{VideoID: "dQw4w9WgXcQ"})
	if err != nil {
		t.Fatal(err)
	}
	page, err := stream.Page(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if page.NextCursor != "tok-2" {
		t.Errorf("NextCursor = %q", page.NextCursor)
	}
	if page.PollInterval != 1500*time.Millisecond {
		t.Errorf("PollInterval = %v", page.PollInterval)
	}
	if len(page.Messages) != 1 || page.Messages[0].ID != "m1" {
		t.Fatalf("messages = %+v", page.Messages)
	}

	if _, err := stream.Page(context.Background(), page.NextCursor); err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 2 || tokens[0] != "" || tokens[1] != "tok-2" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestConvertMessage(t *testing.T) {
	tests := []struct {
		name       string
		item       *yt.LiveChatMessage
		wantKind   replay.MessageKind
		wantText   string
		wantAmount string
	}{
		{
			"text message",
			&yt.LiveChatMessage{
				Id: "m1",
				Snippet: &yt.LiveChatMessageSnippet{
					Type:               "textMessageEvent",
					TextMessageDetails: &yt.LiveChatTextMessageDetails{MessageText: "hi"},
				},
			},
			replay.KindText, "hi", "",
		},
		{
			"super chat",
			&yt.LiveChatMessage{
				Id: "sc1",
				Snippet: &yt.LiveChatMessageSnippet{
					Type: "superChatEvent",
					SuperChatDetails: &yt.LiveChatSuperChatDetails{
						UserComment:         "take my money",
						AmountDisplayString: "$5.00",
					},
				},
			},
			replay.KindSuperChat, "take my money", "$5.00",
		},
		{
			"super sticker",
			&yt.LiveChatMessage{
				Id: "st1",
				Snippet: &yt.LiveChatMessageSnippet{
					Type: "superStickerEvent",
					SuperStickerDetails: &yt.LiveChatSuperStickerDetails{
						AmountDisplayString: "$2.00",
						SuperStickerMetadata: &yt.SuperStickerMetadata{
							AltText: "Cat dancing",
						},
					},
				},
			},
			replay.KindSuperSticker, "Cat dancing", "$2.00",
		},
		{
			"new sponsor",
			&yt.LiveChatMessage{
				Id: "mem1",
				Snippet: &yt.LiveChatMessageSnippet{
					Type:           "newSponsorEvent",
					DisplayMessage: "Welcome to the channel!",
				},
			},
			replay.KindNewSponsor, "Welcome to the channel!", "",
		},
		{
			"membership gift",
			&yt.LiveChatMessage{
				Id: "gift1",
				Snippet: &yt.LiveChatMessageSnippet{
					Type:           "membershipGiftingEvent",
					DisplayMessage: "gifted 5 memberships",
				},
			},
			replay.KindMembershipGift, "gifted 5 memberships", "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := convertMessage(tt.item)
			if raw.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", raw.Kind, tt.wantKind)
			}
			var text string
			if len(raw.Runs) > 0 {
				text = raw.Runs[0].Text
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if raw.AmountText != tt.wantAmount {
				t.Errorf("AmountText = %q, want %q", raw.AmountText, tt.wantAmount)
			}
		})
	}
}

func TestConvertMessageAuthorFlags(t *testing.T) {
	raw := convertMessage(&yt.LiveChatMessage{
		Id: "m1",
		Snippet: &yt.LiveChatMessageSnippet{
			Type:               "textMessageEvent",
			TextMessageDetails: &yt.LiveChatTextMessageDetails{MessageText: "hi"},
		},
		AuthorDetails: &yt.LiveChatMessageAuthorDetails{
			DisplayName:     "the_streamer",
			ChannelId:       "UCowner",
			IsVerified:      true,
			IsChatOwner:     true,
			IsChatSponsor:   true,
			IsChatModerator: true,
		},
	})
	a := raw.Author
	if !a.IsVerified || !a.IsOwner || !a.IsSponsor || !a.IsModerator {
		t.Errorf("author flags = %+v", a)
	}
}

func TestMapAPIError(t *testing.T) {
	gerr := func(code int, reason string) error {
		e := &googleapi.Error{Code: code}
		if reason != "" {
			e.Errors = []googleapi.ErrorItem{{Reason: reason}}
		}
		return e
	}
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"quota reason", gerr(403, "quotaExceeded"), replay.ErrQuotaExceeded},
		{"rate limit reason", gerr(403, "rateLimitExceeded"), replay.ErrQuotaExceeded},
		{"chat ended", gerr(403, "liveChatEnded"), replay.ErrChatUnavailable},
		{"chat disabled", gerr(403, "liveChatDisabled"), replay.ErrChatUnavailable},
		{"bare 403", gerr(403, ""), replay.ErrQuotaExceeded},
		{"bare 429", gerr(429, ""), replay.ErrQuotaExceeded},
		{"bare 404", gerr(404, ""), replay.ErrChatUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapAPIError(tt.err); !errors.Is(got, tt.sentinel) {
				t.Errorf("mapAPIError = %v, want %v", got, tt.sentinel)
			}
		})
	}

	// 500s and plain errors pass through for the retry classifier.
	plain := errors.New("connection reset")
	if got := mapAPIError(plain); got != plain {
		t.Errorf("plain error = %v", got)
	}
	server := gerr(500, "backendError")
	if got := mapAPIError(server); !errors.As(got, new(*googleapi.Error)) {
		t.Errorf("500 = %v, want passthrough", got)
	}
}
