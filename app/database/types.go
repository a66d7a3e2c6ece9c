package database

import (
	"time"

	"github.com/lysyi3m/rss-digest/app/article"
)

// fetchedDateLayout is fixed width so that lexical order equals time order.
const fetchedDateLayout = "2006-01-02T15:04:05.000000Z"

type Article struct {
	ID            int64
	URL           string
	Title         string
	Source        string
	PublishedDate string // Origin provided, not normalized
	Summary       string
	Category      article.Category
	FetchedAt     time.Time
	Sent          bool
}

// NewArticle is the insert payload. ID, FetchedAt and Sent are store assigned.
type NewArticle struct {
	URL           string
	Title         string
	Source        string
	PublishedDate string
	Summary       string
	Category      article.Category
}
