package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/rss-digest/app/article"
	"github.com/lysyi3m/rss-digest/app/metrics"
)

const maxBodySize = 10 << 20

// ArticleChecker is the part of the article store the fetcher needs.
type ArticleChecker interface {
	Exists(ctx context.Context, url string) (bool, error)
}

// FetchError reports a source that was skipped.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Fetcher struct {
	sources    []Source
	httpClient *http.Client
	parser     *Parser
	extractor  *ContentExtractor
	store      ArticleChecker
	userAgent  string
}

func NewFetcher(sources []Source, httpClient *http.Client, store ArticleChecker, userAgent string) *Fetcher {
	return &Fetcher{
		sources:    sources,
		httpClient: httpClient,
		parser:     NewParser(),
		extractor:  NewContentExtractor(),
		store:      store,
		userAgent:  userAgent,
	}
}

func (f *Fetcher) Sources() []Source {
	return f.sources
}

// Run fetches every source and returns normalized entries that are not
// stored yet, in source order then feed order. A failing source is logged
// and skipped. A store error aborts the run.
func (f *Fetcher) Run(ctx context.Context) ([]Candidate, error) {
	start := time.Now()
	seen := make(map[string]bool)
	var candidates []Candidate

	for _, src := range f.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, err := f.fetchSource(ctx, src)
		if err != nil {
			slog.Error("Feed skipped", "feed", src.Name, "error", err)
			metrics.FeedError(src.Name)
			continue
		}

		invalidCount := 0
		duplicateCount := 0
		newCount := 0

		for _, entry := range entries {
			candidate, ok := normalizeEntry(src, entry)
			if !ok {
				invalidCount++
				continue
			}

			if seen[candidate.URL] {
				duplicateCount++
				continue
			}

			exists, err := f.store.Exists(ctx, candidate.URL)
			if err != nil {
				return nil, fmt.Errorf("failed to check for duplicates: %w", err)
			}
			if exists {
				duplicateCount++
				continue
			}
			seen[candidate.URL] = true

			if candidate.Description == "" && src.ExtractContent {
				candidate.Description = f.extractDescription(ctx, src, candidate.URL)
			}

			candidates = append(candidates, candidate)
			newCount++
		}

		slog.Info("Feed fetched",
			"feed", src.Name,
			"total", len(entries),
			"invalid", invalidCount,
			"duplicates", duplicateCount,
			"new", newCount)
	}

	slog.Info("Fetch completed", "sources", len(f.sources), "new", len(candidates), "duration", time.Since(start))

	return candidates, nil
}

func (f *Fetcher) fetchSource(ctx context.Context, src Source) ([]Entry, error) {
	if strings.TrimSpace(src.URL) == "" {
		return nil, &FetchError{Source: src.Name, Err: fmt.Errorf("no URL configured")}
	}

	data, err := f.get(ctx, src.URL, src.timeout())
	if err != nil {
		return nil, &FetchError{Source: src.Name, Err: err}
	}

	entries, err := f.parser.Run(data)
	if err != nil {
		return nil, &FetchError{Source: src.Name, Err: err}
	}

	return entries, nil
}

func (f *Fetcher) extractDescription(ctx context.Context, src Source, url string) string {
	data, err := f.get(ctx, url, src.timeout())
	if err != nil {
		slog.Warn("Failed to fetch article page", "feed", src.Name, "url", url, "error", err)
		return ""
	}

	text, err := f.extractor.Run(data)
	if err != nil {
		slog.Warn("Content extraction failed", "feed", src.Name, "url", url, "error", err)
		return ""
	}

	return Sanitize(text, MaxDescriptionLength)
}

func (f *Fetcher) get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = defaultSourceTimeout * time.Second
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func normalizeEntry(src Source, entry Entry) (Candidate, bool) {
	link := strings.TrimSpace(entry.Link)
	if link == "" || !article.IsHTTPURL(link) {
		slog.Debug("Skipping entry with invalid URL", "feed", src.Name, "url", link)
		return Candidate{}, false
	}

	title := Sanitize(entry.Title, MaxTitleLength)
	if title == "" {
		title = "No Title"
	}

	return Candidate{
		Title:         title,
		URL:           CleanURL(link),
		Source:        src.Name,
		PublishedDate: strings.TrimSpace(entry.Published),
		Description:   Sanitize(StripHTML(entry.Description), MaxDescriptionLength),
	}, true
}
