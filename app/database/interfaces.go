package database

import "context"

type ArticleRepository interface {
	Exists(ctx context.Context, url string) (bool, error)
	Add(ctx context.Context, a NewArticle) (bool, error)
	Unsent(ctx context.Context) ([]Article, error)
	MarkSent(ctx context.Context, ids []int64) error
	Count(ctx context.Context) (int, error)
	Latest(ctx context.Context, limit int) ([]Article, error)
}

var _ ArticleRepository = (*ArticleRepo)(nil)
