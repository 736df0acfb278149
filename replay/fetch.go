package replay

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/chat-rewind/telemetry"
)

// StreamMeta is the upstream metadata for one archived stream.
type StreamMeta struct {
	Title       string
	ChannelName string
	// StartedAt is the actual stream start; message offsets are derived from it.
	StartedAt time.Time
}

// Page is one raw page of the chat replay.
type Page struct {
	Messages []RawMessage
	// NextCursor is the opaque continuation token. Empty means the replay is
	// exhausted; that is the sole termination condition.
	NextCursor string
	// PollInterval is the upstream's suggested delay before the next request,
	// zero when the upstream gave none.
	PollInterval time.Duration
}

// Stream is an opened chat replay for a single video: metadata plus a
// cursor-driven page fetch. Implementations live in the youtubeapi and
// innertube packages.
type Stream interface {
	Meta() StreamMeta
	// Page fetches one page. cursor is empty for the initial request.
	Page(ctx context.Context, cursor string) (*Page, error)
}

// Source opens chat replays. Open fails with ErrChatUnavailable when the
// video has no live chat data, and ErrQuotaExceeded when the upstream is
// throttling.
type Source interface {
	Open(ctx context.Context, ref VideoRef) (Stream, error)
}

// RetryPolicy bounds transient-failure retries on page fetches.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries per page (default 3).
	MaxAttempts int
	// Backoff is the first retry delay; it doubles on each subsequent retry.
	Backoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
	return p
}

// Pager walks a Stream's pages as a lazy, finite, non-restartable sequence.
// Usage follows bufio.Scanner: Next advances, Page returns the current page,
// Err reports what stopped the walk.
//
//	pager := replay.NewPager(stream, policy)
//	for pager.Next(ctx) {
//	    use(pager.Page())
//	}
//	if err := pager.Err(); err != nil { ... }
type Pager struct {
	stream    Stream
	policy    RetryPolicy
	cursor    string
	page      *Page
	pages     int
	err       error
	exhausted bool
}

// NewPager wraps an opened stream. The zero RetryPolicy uses defaults.
func NewPager(stream Stream, policy RetryPolicy) *Pager {
	return &Pager{stream: stream, policy: policy.withDefaults()}
}

// Next fetches the next page, retrying transient failures with exponential
// backoff. It returns false once the continuation chain ends, a terminal
// error occurs, or the retry budget is exhausted.
func (p *Pager) Next(ctx context.Context) bool {
	if p.err != nil || p.exhausted {
		return false
	}
	page, err := p.fetch(ctx)
	if err != nil {
		p.err = err
		return false
	}
	p.page = page
	p.pages++
	p.cursor = page.NextCursor
	if p.cursor == "" {
		p.exhausted = true
	}
	return true
}

// Page returns the page fetched by the last successful Next.
func (p *Pager) Page() *Page { return p.page }

// Err returns the error that terminated the walk, nil on clean exhaustion.
func (p *Pager) Err() error { return p.err }

// Pages returns how many pages have been yielded so far.
func (p *Pager) Pages() int { return p.pages }

func (p *Pager) fetch(ctx context.Context) (*Page, error) {
	var lastErr error
	delay := p.policy.Backoff
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fetchStart := time.Now()
		page, err := p.stream.Page(ctx, p.cursor)
		if err == nil {
			telemetry.PageFetched()
			telemetry.ObservePageFetch(time.Since(fetchStart))
			return page, nil
		}
		// Quota exhaustion and the other terminal outcomes are a hard stop,
		// never a backoff case.
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == p.policy.MaxAttempts {
			break
		}
		telemetry.FetchRetried()
		slog.Warn("chat page fetch failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.Any("err", err),
			slog.String("component", "replay_pager"))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, &FetchError{Attempts: p.policy.MaxAttempts, Err: lastErr}
}
