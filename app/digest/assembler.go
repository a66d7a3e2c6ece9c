package digest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-digest/app/article"
	"github.com/lysyi3m/rss-digest/app/database"
)

const (
	EmptyHeader = "No new articles to report."

	headerDateLayout = "January 02, 2006"
)

type Assembler struct {
	location *time.Location
	now      func() time.Time
}

func NewAssembler(location *time.Location, now func() time.Time) *Assembler {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Assembler{
		location: location,
		now:      now,
	}
}

// Build groups articles into sections in article.Order, keeping input order
// inside each section. Articles with an unknown category go to Global.
func (a *Assembler) Build(articles []database.Article) Digest {
	if len(articles) == 0 {
		return Digest{Header: EmptyHeader}
	}

	partitions := make(map[article.Category][]Entry, len(article.Order))
	for _, art := range articles {
		category := art.Category
		if !category.Valid() {
			slog.Warn("Stored article has invalid category, grouping as Global", "id", art.ID, "category", art.Category)
			category = article.CategoryGlobal
		}
		partitions[category] = append(partitions[category], Entry{
			ID:            art.ID,
			Title:         art.Title,
			Summary:       art.Summary,
			Source:        art.Source,
			URL:           art.URL,
			PublishedDate: art.PublishedDate,
			Category:      category,
		})
	}

	d := Digest{Header: a.header()}
	for _, category := range article.Order {
		entries := partitions[category]
		if len(entries) == 0 {
			continue
		}
		d.Sections = append(d.Sections, Section{
			Category: category,
			Heading:  Heading(category),
			Entries:  entries,
		})
	}

	slog.Info("Digest created",
		"thailand_specific", len(partitions[article.CategoryThailandSpecific]),
		"global", len(partitions[article.CategoryGlobal]))

	return d
}

func (a *Assembler) header() string {
	return fmt.Sprintf("📰 **Payment Industry News Digest - %s**", a.now().In(a.location).Format(headerDateLayout))
}
