package pipeline

import (
	"context"

	"github.com/lysyi3m/rss-digest/app/database"
	"github.com/lysyi3m/rss-digest/app/digest"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/summarizer"
)

type Fetcher interface {
	Run(ctx context.Context) ([]feed.Candidate, error)
}

type Summarizer interface {
	Run(ctx context.Context, title, description string) summarizer.Result
}

type Store interface {
	Add(ctx context.Context, a database.NewArticle) (bool, error)
	Unsent(ctx context.Context) ([]database.Article, error)
	MarkSent(ctx context.Context, ids []int64) error
}

type Assembler interface {
	Build(articles []database.Article) digest.Digest
}

// Output delivers a digest to its audience. SendText is called for the
// header and each section heading, SendArticle once per entry.
type Output interface {
	SendText(ctx context.Context, body string) error
	SendArticle(ctx context.Context, entry digest.Entry) error
}

var (
	_ Fetcher    = (*feed.Fetcher)(nil)
	_ Summarizer = (*summarizer.Summarizer)(nil)
	_ Store      = (*database.ArticleRepo)(nil)
	_ Assembler  = (*digest.Assembler)(nil)
)
