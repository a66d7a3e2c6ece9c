package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lysyi3m/rss-digest/app/article"
)

const (
	DefaultLatestLimit = 5
	MaxLatestLimit     = 100
)

var articleColumns = []string{
	"id", "url", "title", "source", "published_date",
	"summary", "category", "fetched_date", "sent",
}

type ArticleRepo struct {
	db  *DB
	qb  sq.StatementBuilderType
	now func() time.Time
}

func NewArticleRepository(db *DB) *ArticleRepo {
	return &ArticleRepo{
		db:  db,
		qb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now: time.Now,
	}
}

// WithClock replaces the clock used to stamp fetched_date.
func (r *ArticleRepo) WithClock(now func() time.Time) *ArticleRepo {
	r.now = now
	return r
}

// Exists reports whether an article with the given url is stored.
// Empty and non-HTTP(S) urls are never stored, so they report false.
func (r *ArticleRepo) Exists(ctx context.Context, url string) (bool, error) {
	url = strings.TrimSpace(url)
	if url == "" || !article.IsHTTPURL(url) {
		return false, nil
	}

	query, args, err := r.qb.Select("COUNT(*)").From("articles").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build exists query: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("%w: failed to check article existence: %w", ErrStore, err)
	}

	return count > 0, nil
}

// Add stores a new article. It returns false without error when the
// article is invalid or its url is already stored.
func (r *ArticleRepo) Add(ctx context.Context, a NewArticle) (bool, error) {
	a.URL = strings.TrimSpace(a.URL)
	a.Title = strings.TrimSpace(a.Title)
	a.Source = strings.TrimSpace(a.Source)

	if reason := validate(a); reason != "" {
		slog.Warn("Article validation failed", "url", a.URL, "reason", reason)
		return false, nil
	}

	var published any
	if a.PublishedDate != "" {
		published = a.PublishedDate
	}

	query, args, err := r.qb.Insert("articles").
		Columns("url", "title", "source", "published_date", "summary", "category", "fetched_date").
		Values(a.URL, a.Title, a.Source, published, a.Summary, string(a.Category), r.now().UTC().Format(fetchedDateLayout)).
		Suffix("ON CONFLICT(url) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build insert query: %w", err)
	}

	var affected int64
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%w: failed to insert article: %w", ErrStore, err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: failed to read affected rows: %w", ErrStore, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if affected == 0 {
		slog.Debug("Article already stored", "url", a.URL)
		return false, nil
	}

	return true, nil
}

func validate(a NewArticle) string {
	switch {
	case a.URL == "":
		return "empty url"
	case !article.IsHTTPURL(a.URL):
		return "url must start with http:// or https://"
	case a.Title == "":
		return "empty title"
	case a.Source == "":
		return "empty source"
	case strings.TrimSpace(a.Summary) == "":
		return "empty summary"
	case !a.Category.Valid():
		return fmt.Sprintf("invalid category '%s'", a.Category)
	}
	return ""
}

// Unsent returns articles not yet delivered, newest fetch first.
func (r *ArticleRepo) Unsent(ctx context.Context) ([]Article, error) {
	query, args, err := r.qb.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"sent": 0}).
		OrderBy("fetched_date DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build unsent query: %w", err)
	}

	articles, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get unsent articles: %w", err)
	}
	return articles, nil
}

// Latest returns the most recently fetched articles regardless of delivery state.
func (r *ArticleRepo) Latest(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	if limit > MaxLatestLimit {
		limit = MaxLatestLimit
	}

	query, args, err := r.qb.Select(articleColumns...).
		From("articles").
		OrderBy("fetched_date DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build latest query: %w", err)
	}

	articles, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest articles: %w", err)
	}
	return articles, nil
}

// MarkSent flags the given articles as delivered in a single transaction.
// Unknown ids are ignored.
func (r *ArticleRepo) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		slog.Debug("No articles to mark as sent")
		return nil
	}

	query, args, err := r.qb.Update("articles").
		Set("sent", 1).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build mark sent query: %w", err)
	}

	var updated int64
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%w: failed to mark articles as sent: %w", ErrStore, err)
		}
		updated, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: failed to read affected rows: %w", ErrStore, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Marked articles as sent", "requested", len(ids), "updated", updated)
	return nil
}

func (r *ArticleRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get article count: %w", ErrStore, err)
	}
	return count, nil
}

func (r *ArticleRepo) query(ctx context.Context, query string, args ...any) ([]Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var (
			a         Article
			published sql.NullString
			summary   sql.NullString
			category  sql.NullString
			fetched   string
			sent      int
		)
		err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.Source, &published,
			&summary, &category, &fetched, &sent)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan article row: %w", ErrStore, err)
		}

		a.PublishedDate = published.String
		a.Summary = summary.String
		a.Category = article.Category(category.String)
		a.Sent = sent == 1
		if a.FetchedAt, err = time.Parse(fetchedDateLayout, fetched); err != nil {
			slog.Warn("Unparseable fetched_date", "id", a.ID, "value", fetched)
		}

		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating article rows: %w", ErrStore, err)
	}

	return articles, nil
}
