// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PagesFetched         prometheus.Counter
	FetchRetries         prometheus.Counter
	MessagesNormalized   prometheus.Counter
	MessagesSkipped      prometheus.Counter
	MessagesDuplicate    prometheus.Counter
	QuotaFailures        prometheus.Counter
	TranscriptsSucceeded prometheus.Counter
	TranscriptsFailed    prometheus.Counter

	// Histograms (seconds)
	PageFetchDuration  prometheus.Observer
	TranscriptDuration prometheus.Observer

	// Gauges
	FetchesInFlight prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PagesFetched = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_pages_fetched_total", Help: "Number of chat replay pages fetched"})
		FetchRetries = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_fetch_retries_total", Help: "Number of transient page-fetch retries"})
		MessagesNormalized = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_normalized_total", Help: "Number of chat messages normalized and accepted"})
		MessagesSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_skipped_total", Help: "Number of malformed chat messages skipped"})
		MessagesDuplicate = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_duplicate_total", Help: "Number of duplicate chat messages dropped"})
		QuotaFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_quota_failures_total", Help: "Number of fetches aborted by upstream quota exhaustion"})
		TranscriptsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_transcripts_succeeded_total", Help: "Number of transcripts fetched successfully"})
		TranscriptsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_transcripts_failed_total", Help: "Number of transcript fetches that failed"})
		PageFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_page_fetch_duration_seconds", Help: "Single page fetch duration seconds", Buckets: prometheus.DefBuckets})
		TranscriptDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_transcript_duration_seconds", Help: "End-to-end transcript fetch duration seconds", Buckets: prometheus.DefBuckets})
		FetchesInFlight = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_fetches_in_flight", Help: "Transcript fetches currently running"})
	})
}

// The helpers below are nil-safe so library code and tests can run without Init.

// PageFetched records one fetched chat page.
func PageFetched() {
	if PagesFetched != nil {
		PagesFetched.Inc()
	}
}

// FetchRetried records one transient-failure retry.
func FetchRetried() {
	if FetchRetries != nil {
		FetchRetries.Inc()
	}
}

// MessageNormalized records one accepted chat message.
func MessageNormalized() {
	if MessagesNormalized != nil {
		MessagesNormalized.Inc()
	}
}

// DuplicateDropped records one duplicate message id dropped by the accumulator.
func DuplicateDropped() {
	if MessagesDuplicate != nil {
		MessagesDuplicate.Inc()
	}
}

// ObservePageFetch records the duration of one successful page fetch.
func ObservePageFetch(d time.Duration) {
	if PageFetchDuration != nil {
		PageFetchDuration.Observe(d.Seconds())
	}
}

// MessageSkipped records one malformed message dropped by the normalizer.
func MessageSkipped() {
	if MessagesSkipped != nil {
		MessagesSkipped.Inc()
	}
}

// QuotaExceeded records a fetch aborted by upstream quota exhaustion.
func QuotaExceeded() {
	if QuotaFailures != nil {
		QuotaFailures.Inc()
	}
}

// FetchStarted marks a transcript fetch as in flight.
func FetchStarted() {
	if FetchesInFlight != nil {
		FetchesInFlight.Inc()
	}
}

// FetchFinished marks a transcript fetch as done.
func FetchFinished() {
	if FetchesInFlight != nil {
		FetchesInFlight.Dec()
	}
}

// TranscriptSucceeded records a completed fetch and its duration.
func TranscriptSucceeded(d time.Duration) {
	if TranscriptsSucceeded != nil {
		TranscriptsSucceeded.Inc()
	}
	if TranscriptDuration != nil {
		TranscriptDuration.Observe(d.Seconds())
	}
}

// TranscriptFailed records a failed fetch.
func TranscriptFailed() {
	if TranscriptsFailed != nil {
		TranscriptsFailed.Inc()
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
