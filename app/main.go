package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lysyi3m/rss-digest/app/api"
	"github.com/lysyi3m/rss-digest/app/cfg"
	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/delivery"
	"github.com/lysyi3m/rss-digest/app/digest"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/llm"
	"github.com/lysyi3m/rss-digest/app/metrics"
	"github.com/lysyi3m/rss-digest/app/pipeline"
	"github.com/lysyi3m/rss-digest/app/summarizer"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg.Debug)

	if err := appCfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(appCfg); err != nil {
		slog.Error("RSS Digest stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting RSS Digest", "version", appCfg.Version)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	slog.Info("Connected to database", "path", appCfg.DBPath)

	sources, err := feed.LoadSources(appCfg.FeedsFile)
	if err != nil {
		return fmt.Errorf("failed to load feed sources: %w", err)
	}
	slog.Info("Loaded feed sources", "count", len(sources))

	metrics.MustRegister(prometheus.DefaultRegisterer)

	location := appCfg.Location()
	httpClient := &http.Client{}
	store := database.NewArticleRepository(db)

	fetcher := feed.NewFetcher(sources, httpClient, store, appCfg.UserAgent)

	anthropic := llm.NewAnthropic(httpClient, llm.AnthropicConfig{
		APIKey:    appCfg.AnthropicAPIKey,
		BaseURL:   appCfg.AnthropicBaseURL,
		Model:     appCfg.AnthropicModel,
		MaxTokens: appCfg.AnthropicMaxTokens,
	})
	summary := summarizer.New(anthropic, summarizer.Config{
		MaxAttempts: appCfg.AIMaxRetries,
		BaseDelay:   appCfg.AIRetryDelay,
		Timeout:     appCfg.AITimeout,
	})

	output, err := newOutput(appCfg)
	if err != nil {
		return err
	}

	service := pipeline.NewService(fetcher, summary, store, digest.NewAssembler(location, nil), output)

	scheduler, err := tasks.NewScheduler(tasks.SchedulerConfig{
		Time:     appCfg.DigestTime,
		Timezone: appCfg.Timezone,
	}, service, nil)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Scheduler started", "digest_time", appCfg.DigestTime, "timezone", appCfg.Timezone,
		"next_run", scheduler.NextRun().Format(time.RFC3339))

	if appCfg.RunOnStart {
		if err := scheduler.Trigger(); err != nil {
			slog.Warn("Failed to queue startup run", "error", err)
		}
	}

	handler := api.NewHandler(service, store, scheduler, sources)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}

func newOutput(appCfg *cfg.Cfg) (pipeline.Output, error) {
	if !appCfg.TelegramEnabled() {
		slog.Info("Telegram not configured, digest goes to the log")
		return delivery.NewLog(slog.Default(), digest.DefaultChunkLimit), nil
	}

	telegram, err := delivery.NewTelegram(appCfg.TelegramToken, appCfg.TelegramChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}
	slog.Info("Delivering digest to Telegram", "chat_id", appCfg.TelegramChatID)
	return telegram, nil
}
