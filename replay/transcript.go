package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/onnwee/chat-rewind/telemetry"
)

// Transcript is the frozen, ordered result of one fetch. It is never
// mutated after FetchTranscript returns and is never partially exposed.
type Transcript struct {
	Video       VideoRef
	Title       string
	ChannelName string
	// Messages are ordered by OffsetSeconds, ties preserving arrival order.
	Messages []ChatMessage

	// Diagnostics
	Pages      int
	Skipped    int
	Duplicates int
}

// Accumulator builds the running message set across fetched pages. Repeated
// ids (the upstream may resend near page boundaries) are dropped silently.
type Accumulator struct {
	seen     map[string]struct{}
	messages []ChatMessage
	skipped  int
	dups     int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[string]struct{})}
}

// AddPage normalizes and merges one raw page. Malformed messages are skipped
// and counted; they never abort the page.
func (a *Accumulator) AddPage(page *Page, start time.Time) {
	for _, raw := range page.Messages {
		msg, err := Normalize(raw, start)
		if err != nil {
			a.skipped++
			telemetry.MessageSkipped()
			slog.Debug("skipping malformed chat message",
				slog.Any("err", err), slog.String("component", "accumulator"))
			continue
		}
		if _, ok := a.seen[msg.ID]; ok {
			a.dups++
			telemetry.DuplicateDropped()
			continue
		}
		a.seen[msg.ID] = struct{}{}
		a.messages = append(a.messages, msg)
		telemetry.MessageNormalized()
	}
}

// Len returns the number of accepted messages so far.
func (a *Accumulator) Len() int { return len(a.messages) }

// Skipped returns the malformed-message count so far.
func (a *Accumulator) Skipped() int { return a.skipped }

// Freeze sorts the accumulated set by offset (stable, preserving first-seen
// order on ties) and produces the immutable transcript.
func (a *Accumulator) Freeze(ref VideoRef, meta StreamMeta, pages int) *Transcript {
	sort.SliceStable(a.messages, func(i, j int) bool {
		return a.messages[i].OffsetSeconds < a.messages[j].OffsetSeconds
	})
	return &Transcript{
		Video:       ref,
		Title:       meta.Title,
		ChannelName: meta.ChannelName,
		Messages:    a.messages,
		Pages:       pages,
		Skipped:     a.skipped,
		Duplicates:  a.dups,
	}
}

// FetchTranscript runs the whole pipeline: open the stream, walk every page,
// normalize and accumulate, then freeze. On any terminal error no transcript
// is returned. A first page with zero messages and no continuation means the
// video never had replayable chat and fails with ErrChatUnavailable.
func FetchTranscript(ctx context.Context, source Source, ref VideoRef, policy RetryPolicy) (*Transcript, error) {
	ctx, span := telemetry.StartSpan(ctx, "replay", "fetch-transcript")
	defer span.End()

	logger := slog.Default().With(
		slog.String("video_id", ref.VideoID),
		slog.String("component", "replay"))

	start := time.Now()
	telemetry.FetchStarted()
	defer telemetry.FetchFinished()

	t, err := fetchTranscript(ctx, source, ref, policy, logger)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.TranscriptFailed()
		if errors.Is(err, ErrQuotaExceeded) {
			telemetry.QuotaExceeded()
		}
		return nil, err
	}
	telemetry.TranscriptSucceeded(time.Since(start))
	telemetry.SetSpanSuccess(span)
	logger.Info("transcript fetched",
		slog.Int("messages", len(t.Messages)),
		slog.Int("pages", t.Pages),
		slog.Int("skipped", t.Skipped),
		slog.Int("duplicates", t.Duplicates),
		slog.Duration("elapsed", time.Since(start)))
	return t, nil
}

func fetchTranscript(ctx context.Context, source Source, ref VideoRef, policy RetryPolicy, logger *slog.Logger) (*Transcript, error) {
	stream, err := source.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open chat replay: %w", err)
	}
	meta := stream.Meta()

	acc := NewAccumulator()
	pager := NewPager(stream, policy)
	for pager.Next(ctx) {
		page := pager.Page()
		if pager.Pages() == 1 && len(page.Messages) == 0 && page.NextCursor == "" {
			return nil, fmt.Errorf("%w: empty initial page", ErrChatUnavailable)
		}
		acc.AddPage(page, meta.StartedAt)
		logger.Debug("chat page accumulated",
			slog.Int("page", pager.Pages()),
			slog.Int("page_messages", len(page.Messages)),
			slog.Int("total", acc.Len()))
	}
	if err := pager.Err(); err != nil {
		return nil, err
	}
	return acc.Freeze(ref, meta, pager.Pages()), nil
}
