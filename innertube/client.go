// Package innertube is the fallback chat-replay source for deployments
// without a Data API key. It scrapes the watch page for the InnerTube API
// key and the live-chat-replay continuation, then walks
// /youtubei/v1/live_chat/get_live_chat_replay one continuation at a time.
package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/chat-rewind/replay"
)

const (
	defaultBaseURL = "https://www.youtube.com"
	clientVersion  = "2.20240401.00.00"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// maxPageBytes bounds watch-page reads; the markers sit in the first
	// couple of megabytes.
	maxPageBytes = 10 << 20
)

// Source implements replay.Source against the public InnerTube endpoints.
// Requests are paced by a shared limiter so a long replay doesn't hammer
// the upstream.
type Source struct {
	http    *http.Client
	limiter *rate.Limiter
	baseURL string
}

// New builds a Source. A nil client gets a sane default; rps bounds the
// request rate (<= 0 means 3 req/s).
func New(client *http.Client, rps float64) *Source {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if rps <= 0 {
		rps = 3
	}
	return &Source{
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		baseURL: defaultBaseURL,
	}
}

// NewForTest points the source at a test server.
func NewForTest(client *http.Client, baseURL string) *Source {
	s := New(client, 1000)
	s.baseURL = baseURL
	return s
}

// Open fetches the watch page and extracts the InnerTube key, the replay
// continuation, and stream metadata. Pages without a live chat renderer
// fail with replay.ErrChatUnavailable.
func (s *Source) Open(ctx context.Context, ref replay.VideoRef) (replay.Stream, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/watch?v="+ref.VideoID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	page := string(body)

	apiKey := extractQuoted(page, `"INNERTUBE_API_KEY":"`)
	if apiKey == "" {
		return nil, fmt.Errorf("watch page for %s: no innertube api key", ref.VideoID)
	}

	// The replay continuation lives inside the liveChatRenderer block. A page
	// without that block has no chat at all (disabled, never existed, or the
	// upstream is still treating the stream as live without a replay).
	idx := strings.Index(page, `"liveChatRenderer"`)
	if idx == -1 {
		return nil, fmt.Errorf("%w: no live chat renderer on watch page for %s", replay.ErrChatUnavailable, ref.VideoID)
	}
	continuation := extractQuoted(page[idx:], `"continuation":"`)
	if continuation == "" {
		return nil, fmt.Errorf("%w: live chat renderer without continuation for %s", replay.ErrChatUnavailable, ref.VideoID)
	}

	return &stream{
		src:          s,
		apiKey:       apiKey,
		continuation: continuation,
		meta:         extractMeta(page),
	}, nil
}

type stream struct {
	src          *Source
	apiKey       string
	continuation string
	meta         replay.StreamMeta
}

func (st *stream) Meta() replay.StreamMeta { return st.meta }

func (st *stream) Page(ctx context.Context, cursor string) (*replay.Page, error) {
	if err := st.src.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	cont := cursor
	if cont == "" {
		cont = st.continuation
	}
	payload, err := json.Marshal(map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    "WEB",
				"clientVersion": clientVersion,
				"hl":            "en",
				"gl":            "US",
			},
		},
		"continuation": cont,
	})
	if err != nil {
		return nil, err
	}

	url := st.src.baseURL + "/youtubei/v1/live_chat/get_live_chat_replay?prettyPrint=false&key=" + st.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := st.src.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("live_chat replay: %w", err)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode live_chat replay: %w", err)
	}
	return convertPage(&chat), nil
}

// statusError maps HTTP status codes onto the fetch taxonomy. 5xx errors keep
// the status text in the message so the retry classifier sees them as
// transient.
func statusError(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests || code == http.StatusForbidden:
		return fmt.Errorf("%w: http %d from innertube", replay.ErrQuotaExceeded, code)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: http 404 from innertube", replay.ErrChatUnavailable)
	default:
		return fmt.Errorf("innertube status %d %s", code, http.StatusText(code))
	}
}

// extractQuoted returns the JSON string value following marker, unescaped.
func extractQuoted(body, marker string) string {
	idx := strings.Index(body, marker)
	if idx == -1 {
		return ""
	}
	rest := body[idx+len(marker):]
	end := -1
	for i := 0; i < len(rest); i++ {
		if rest[i] == '"' {
			// count preceding backslashes to skip escaped quotes
			bs := 0
			for j := i - 1; j >= 0 && rest[j] == '\\'; j-- {
				bs++
			}
			if bs%2 == 0 {
				end = i
				break
			}
		}
	}
	if end == -1 {
		return ""
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+rest[:end]+`"`), &out); err != nil {
		return rest[:end]
	}
	return out
}

// extractMeta pulls stream title, channel, and start time out of the
// embedded player response. Best-effort; missing fields stay zero.
func extractMeta(page string) replay.StreamMeta {
	meta := replay.StreamMeta{}
	if idx := strings.Index(page, `"videoDetails"`); idx != -1 {
		meta.Title = extractQuoted(page[idx:], `"title":"`)
		meta.ChannelName = extractQuoted(page[idx:], `"author":"`)
	}
	if idx := strings.Index(page, `"liveBroadcastDetails"`); idx != -1 {
		if ts := extractQuoted(page[idx:], `"startTimestamp":"`); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				meta.StartedAt = t.UTC()
			}
		}
	}
	return meta
}

func parseUsec(s string) time.Time {
	usec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || usec <= 0 {
		return time.Time{}
	}
	return time.Unix(0, usec*int64(time.Microsecond)).UTC()
}
