package delivery

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/rss-digest/app/digest"
)

// Log writes digests to a logger instead of a chat. Used when no bot token
// is configured.
type Log struct {
	logger *slog.Logger
	limit  int
}

func NewLog(logger *slog.Logger, limit int) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{
		logger: logger,
		limit:  limit,
	}
}

func (l *Log) SendText(ctx context.Context, body string) error {
	for _, part := range digest.Chunk(body, l.limit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.logger.InfoContext(ctx, "Digest message", "body", part)
	}
	return nil
}

func (l *Log) SendArticle(ctx context.Context, entry digest.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "Digest article",
		"id", entry.ID,
		"category", string(entry.Category),
		"title", entry.Title,
		"source", entry.Source,
		"url", entry.URL,
		"summary", entry.Summary)
	return nil
}
