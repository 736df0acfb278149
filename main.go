// Command chat-rewind serves the chat-replay exporter. It:
//   - Loads configuration and initializes structured logging.
//   - Picks the upstream source: the YouTube Data API when credentials are
//     configured, the InnerTube scraper otherwise.
//   - Exposes the HTTP API: landing page, fetch/export endpoints, /healthz,
//     /readyz, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/chat-rewind/config"
	"github.com/onnwee/chat-rewind/innertube"
	"github.com/onnwee/chat-rewind/replay"
	"github.com/onnwee/chat-rewind/server"
	"github.com/onnwee/chat-rewind/telemetry"
	"github.com/onnwee/chat-rewind/youtubeapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chat-rewind", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Upstream source selection. The Data API gives structured payloads and
	// clean quota signals; the InnerTube scraper needs no credentials.
	var source replay.Source
	if cfg.HasAPIAccess() {
		src, err := youtubeapi.New(ctx, cfg)
		if err != nil {
			slog.Error("youtube data api source init failed", slog.Any("err", err))
			os.Exit(1)
		}
		source = src
		slog.Info("using youtube data api source")
	} else {
		source = innertube.New(nil, cfg.InnerTubeRPS)
		slog.Info("no YOUTUBE_API_KEY configured, using innertube source")
	}

	slog.Info("http server starting", slog.String("addr", cfg.HTTPAddr))
	if err := server.Start(ctx, cfg, source, cfg.HTTPAddr); err != nil {
		os.Exit(1)
	}
	slog.Info("shutting down")
}
