package summarizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lysyi3m/rss-digest/app/article"
	"github.com/lysyi3m/rss-digest/app/llm"
	"github.com/lysyi3m/rss-digest/app/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultTimeout     = 30 * time.Second

	fallbackLength = 200
	noSummary      = "No summary available"
	summaryPrefix  = "SUMMARY:"
	categoryPrefix = "CATEGORY:"
)

const promptTemplate = `Analyze this payment industry news article:

Title: %s
Description: %s

Please provide:
1. A concise 2-3 sentence summary
2. Categorize as either "Global" or "ThailandSpecific"

Format your response as:
SUMMARY: [your summary here]
CATEGORY: [Global or ThailandSpecific]`

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration // per attempt
}

// Result is the outcome of summarizing one article. Fallback is set when
// the model could not be used and Summary was derived from the description.
type Result struct {
	Summary  string
	Category article.Category
	Fallback bool
	Attempts int
	Err      error
}

type Summarizer struct {
	client Completer
	cfg    Config

	onRetry func(attempt int, delay time.Duration)
}

func New(client Completer, cfg Config) *Summarizer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Summarizer{
		client: client,
		cfg:    cfg,
	}
}

func Prompt(title, description string) string {
	return fmt.Sprintf(promptTemplate, title, description)
}

// Run summarizes and categorizes one article. It never fails: when the
// model is unavailable the result carries the deterministic fallback.
func (s *Summarizer) Run(ctx context.Context, title, description string) Result {
	prompt := Prompt(title, description)

	var (
		text     string
		attempts int
	)

	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		reply, err := s.client.Complete(attemptCtx, prompt)
		if err != nil {
			metrics.AIRequest("error")
			slog.Warn("Summarization attempt failed",
				"attempt", attempts,
				"max_attempts", s.cfg.MaxAttempts,
				"error", err)
			if ctx.Err() != nil || !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		metrics.AIRequest("ok")
		text = reply
		return nil
	}

	notify := func(err error, delay time.Duration) {
		slog.Info("Retrying summarization", "attempt", attempts, "delay", delay)
		if s.onRetry != nil {
			s.onRetry(attempts, delay)
		}
	}

	err := backoff.RetryNotify(operation, s.policy(ctx), notify)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		slog.Error("Summarization failed, using fallback", "title", title, "attempts", attempts, "error", err)
		metrics.AIFallback()
		return Result{
			Summary:  fallbackSummary(description),
			Category: article.CategoryGlobal,
			Fallback: true,
			Attempts: attempts,
			Err:      err,
		}
	}

	summary, category := parse(text)
	if summary == "" {
		slog.Warn("Model did not provide a summary, using description", "title", title)
		summary = fallbackSummary(description)
	}

	return Result{
		Summary:  summary,
		Category: category,
		Attempts: attempts,
	}
}

// policy waits BaseDelay * 2^k before retry k and stops after MaxAttempts.
func (s *Summarizer) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = s.cfg.BaseDelay << min(s.cfg.MaxAttempts, 16)
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxAttempts-1)), ctx)
}

func isTransient(err error) bool {
	var providerErr *llm.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable()
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func parse(text string) (string, article.Category) {
	summary := ""
	category := article.CategoryGlobal

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, summaryPrefix):
			summary = strings.TrimSpace(strings.TrimPrefix(line, summaryPrefix))
		case strings.HasPrefix(line, categoryPrefix):
			raw := strings.TrimSpace(strings.TrimPrefix(line, categoryPrefix))
			parsed, ok := article.ParseCategory(raw)
			if !ok {
				slog.Warn("Invalid category, defaulting to Global", "category", raw)
				parsed = article.CategoryGlobal
			}
			category = parsed
		}
	}

	return summary, category
}

func fallbackSummary(description string) string {
	if description == "" {
		return noSummary
	}
	runes := []rune(description)
	if len(runes) > fallbackLength {
		return string(runes[:fallbackLength])
	}
	return description
}
