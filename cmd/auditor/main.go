package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/knowledge-base/internal/bootstrap"
	"github.com/kirillkom/knowledge-base/internal/config"
	"github.com/kirillkom/knowledge-base/internal/observability/logging"
	"github.com/kirillkom/knowledge-base/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("auditor", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	auditorMetrics := metrics.NewAuditorMetrics("auditor")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.AuditorMetricsPort,
		Handler: auditorMetrics.Handler(),
	}
	go func() {
		logger.Info("auditor metrics listening", "port", cfg.AuditorMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
			os.Exit(1)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("auditor subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeTraceRecorded(ctx, func(handlerCtx context.Context, traceID string) error {
		auditCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		start := time.Now()
		auditorMetrics.StartTrace()

		trace, err := app.Traces.GetTraceByID(auditCtx, traceID)
		auditorMetrics.FinishTrace("auditor", time.Since(start), err)
		if err != nil {
			return err
		}
		auditorMetrics.ObserveQueueLag("auditor", time.Since(trace.CreatedAt))

		logger.Info("trace_audited",
			"trace_id", trace.TraceID,
			"parent_trace_id", trace.ParentTraceID,
			"mode", trace.Mode,
			"grounded", trace.Grounding.Grounded,
			"max_similarity", trace.Grounding.MaxSimilarity,
			"missing_citations", len(trace.Grounding.MissingCitations),
			"check_error", trace.Grounding.CheckError,
			"citations", len(trace.Citations),
			"latency_ms", trace.LatencyMS,
			"prompt_tokens", trace.Usage.PromptTokens,
			"completion_tokens", trace.Usage.CompletionTokens,
		)
		return nil
	})
	if err != nil {
		logger.Error("auditor subscribe error", "error", err)
		os.Exit(1)
	}
}
