package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/onnwee/chat-rewind/config"
	"github.com/onnwee/chat-rewind/export"
	"github.com/onnwee/chat-rewind/replay"
	"github.com/onnwee/chat-rewind/telemetry"
)

//go:embed index.html
var staticFS embed.FS

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cfg    *config.Config
	source replay.Source
	policy replay.RetryPolicy
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(cfg *config.Config, source replay.Source) *Handlers {
	return &Handlers{
		cfg:    cfg,
		source: source,
		policy: replay.RetryPolicy{
			MaxAttempts: cfg.FetchMaxAttempts,
			Backoff:     cfg.FetchBackoff,
		},
	}
}

// HandleIndex serves the embedded landing page.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := staticFS.ReadFile("index.html")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// HandleHealthz is the liveness probe.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// HandleReadyz is the readiness probe. The service has no stateful
// dependencies, so ready tracks liveness.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

type fetchRequest struct {
	URL string `json:"url"`
}

type messageJSON struct {
	Timestamp         time.Time `json:"timestamp"`
	OffsetSeconds     float64   `json:"offset_seconds"`
	Author            string    `json:"author"`
	AuthorChannelID   string    `json:"author_channel_id"`
	Message           string    `json:"message"`
	IsVerified        bool      `json:"is_verified"`
	IsOwner           bool      `json:"is_owner"`
	IsSponsorOrMember bool      `json:"is_sponsor_or_member"`
	IsModerator       bool      `json:"is_moderator"`
}

type fetchResponse struct {
	VideoID  string        `json:"video_id"`
	Title    string        `json:"title"`
	Channel  string        `json:"channel"`
	Count    int           `json:"count"`
	Pages    int           `json:"pages"`
	Skipped  int           `json:"skipped"`
	Messages []messageJSON `json:"messages"`
}

// HandleFetchChat fetches the full transcript and returns it as JSON.
func (h *Handlers) HandleFetchChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSONError(w, http.StatusBadRequest, "no URL provided")
		return
	}
	t, ok := h.fetch(w, r, req.URL)
	if !ok {
		return
	}
	resp := fetchResponse{
		VideoID:  t.Video.VideoID,
		Title:    t.Title,
		Channel:  t.ChannelName,
		Count:    len(t.Messages),
		Pages:    t.Pages,
		Skipped:  t.Skipped,
		Messages: make([]messageJSON, 0, len(t.Messages)),
	}
	for _, m := range t.Messages {
		resp.Messages = append(resp.Messages, messageJSON{
			Timestamp:         m.TimestampUTC,
			OffsetSeconds:     m.OffsetSeconds,
			Author:            m.AuthorName,
			AuthorChannelID:   m.AuthorChannelID,
			Message:           m.Text,
			IsVerified:        m.IsVerified,
			IsOwner:           m.IsOwner,
			IsSponsorOrMember: m.IsSponsorOrMember,
			IsModerator:       m.IsModerator,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleExportCSV fetches the transcript and streams it back as a CSV
// attachment named after the stream title.
func (h *Handlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, "csv", "text/csv; charset=utf-8", export.CSV)
}

// HandleExportHTML fetches the transcript and streams it back as a styled
// HTML attachment.
func (h *Handlers) HandleExportHTML(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, "html", "text/html; charset=utf-8", export.HTML)
}

func (h *Handlers) handleExport(w http.ResponseWriter, r *http.Request, ext, contentType string, render func(*replay.Transcript) ([]byte, error)) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeJSONError(w, http.StatusBadRequest, "no URL provided")
		return
	}
	t, ok := h.fetch(w, r, rawURL)
	if !ok {
		return
	}
	body, err := render(t)
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("render export failed",
			slog.Any("err", err), slog.String("component", "http"))
		writeJSONError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename(t.Title)+`_chat.`+ext+`"`)
	_, _ = w.Write(body)
}

// fetch resolves and fetches, writing the error response itself on failure.
func (h *Handlers) fetch(w http.ResponseWriter, r *http.Request, rawURL string) (*replay.Transcript, bool) {
	ref, err := replay.ResolveVideo(rawURL)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid YouTube URL")
		return nil, false
	}
	t, err := replay.FetchTranscript(r.Context(), h.source, ref, h.policy)
	if err != nil {
		writeFetchError(w, r.Context(), ref, err)
		return nil, false
	}
	return t, true
}

// writeFetchError maps the fetch taxonomy onto HTTP statuses with a
// user-legible cause for each.
func writeFetchError(w http.ResponseWriter, ctx context.Context, ref replay.VideoRef, err error) {
	logger := telemetry.LoggerWithCorr(ctx).With(
		slog.String("video_id", ref.VideoID), slog.String("component", "http"))

	var fetchErr *replay.FetchError
	switch {
	case errors.Is(err, replay.ErrInvalidVideoReference):
		writeJSONError(w, http.StatusBadRequest, "invalid YouTube URL")
	case errors.Is(err, replay.ErrChatUnavailable):
		logger.Info("chat unavailable", slog.Any("err", err))
		writeJSONError(w, http.StatusNotFound, "this video does not have replayable live chat")
	case errors.Is(err, replay.ErrQuotaExceeded):
		logger.Warn("upstream quota exceeded", slog.Any("err", err))
		writeJSONError(w, http.StatusTooManyRequests, "YouTube API quota exceeded; try again tomorrow")
	case errors.As(err, &fetchErr):
		logger.Error("chat fetch failed", slog.Int("attempts", fetchErr.Attempts), slog.Any("err", err))
		writeJSONError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to write
	default:
		logger.Error("chat fetch failed", slog.Any("err", err))
		writeJSONError(w, http.StatusBadGateway, "chat fetch failed")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// exportFilename turns a stream title into a safe attachment filename.
func exportFilename(title string) string {
	name := unsafeFilename.ReplaceAllString(strings.ReplaceAll(title, " ", "_"), "")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "chat"
	}
	return name
}
