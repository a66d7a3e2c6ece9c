package api

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/pipeline"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

type PipelineInterface interface {
	RunOnce(ctx context.Context) (int, error)
	Deliver(ctx context.Context) (pipeline.Report, error)
	Digest(ctx context.Context) (pipeline.Report, error)
}

type ArticleStoreInterface interface {
	Count(ctx context.Context) (int, error)
	Unsent(ctx context.Context) ([]database.Article, error)
	Latest(ctx context.Context, limit int) ([]database.Article, error)
}

type SchedulerStatusInterface interface {
	NextRun() time.Time
	State() tasks.State
}

var (
	_ PipelineInterface        = (*pipeline.Service)(nil)
	_ ArticleStoreInterface    = (*database.ArticleRepo)(nil)
	_ SchedulerStatusInterface = (*tasks.Scheduler)(nil)
)

type Handler struct {
	pipeline  PipelineInterface
	store     ArticleStoreInterface
	scheduler SchedulerStatusInterface
	sources   []feed.Source
}

type articleResponse struct {
	ID            int64     `json:"id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Source        string    `json:"source"`
	PublishedDate string    `json:"published_date,omitempty"`
	Summary       string    `json:"summary"`
	Category      string    `json:"category"`
	FetchedAt     time.Time `json:"fetched_at"`
	Sent          bool      `json:"sent"`
}

func toArticleResponse(a database.Article) articleResponse {
	return articleResponse{
		ID:            a.ID,
		URL:           a.URL,
		Title:         a.Title,
		Source:        a.Source,
		PublishedDate: a.PublishedDate,
		Summary:       a.Summary,
		Category:      string(a.Category),
		FetchedAt:     a.FetchedAt,
		Sent:          a.Sent,
	}
}
