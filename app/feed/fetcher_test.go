package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type mockChecker struct {
	mu       sync.Mutex
	existing map[string]bool
	err      error
	calls    []string
}

func (m *mockChecker) Exists(ctx context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	if m.err != nil {
		return false, m.err
	}
	return m.existing[url], nil
}

func rssItem(title, link, description string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>%s</description><pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate></item>`,
		title, link, description)
}

func rssFeed(items ...string) string {
	return `<?xml version="1.0"?><rss version="2.0"><channel><title>Test</title><link>https://example.com</link>` +
		strings.Join(items, "") + `</channel></rss>`
}

func newFeedServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "rss-digest-test" {
			t.Errorf("Expected User-Agent 'rss-digest-test', got '%s'", r.Header.Get("User-Agent"))
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestFetcherSkipsStoredArticles(t *testing.T) {
	routes := map[string]string{
		"/rss": rssFeed(
			rssItem("First", "https://example.com/1?utm_source=rss", "&lt;p&gt;One&lt;/p&gt;"),
			rssItem("Second", "https://example.com/2", "Two"),
			rssItem("Third", "https://example.com/3", "Three"),
		),
	}
	server := newFeedServer(t, routes)

	store := &mockChecker{existing: map[string]bool{"https://example.com/2": true}}
	fetcher := NewFetcher([]Source{{Name: "Test", URL: server.URL + "/rss"}}, server.Client(), store, "rss-digest-test")

	candidates, err := fetcher.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].URL != "https://example.com/1" {
		t.Errorf("Expected cleaned url 'https://example.com/1', got '%s'", candidates[0].URL)
	}
	if candidates[0].Description != "One" {
		t.Errorf("Expected stripped description 'One', got '%s'", candidates[0].Description)
	}
	if candidates[1].URL != "https://example.com/3" {
		t.Errorf("Expected 'https://example.com/3', got '%s'", candidates[1].URL)
	}
	for _, c := range candidates {
		if c.Source != "Test" {
			t.Errorf("Expected source 'Test', got '%s'", c.Source)
		}
		if c.PublishedDate != "Mon, 03 Jul 2023 10:00:00 GMT" {
			t.Errorf("Expected raw published date, got '%s'", c.PublishedDate)
		}
	}

	if store.calls[0] != "https://example.com/1" {
		t.Errorf("Expected Exists to be called with cleaned url, got '%s'", store.calls[0])
	}
}

func TestFetcherIsolatesFailingSources(t *testing.T) {
	routes := map[string]string{
		"/good":    rssFeed(rssItem("Good", "https://example.com/good", "ok")),
		"/garbage": "not a feed at all",
	}
	server := newFeedServer(t, routes)

	sources := []Source{
		{Name: "NoURL", URL: ""},
		{Name: "Broken", URL: server.URL + "/missing"},
		{Name: "Garbage", URL: server.URL + "/garbage"},
		{Name: "Good", URL: server.URL + "/good"},
	}
	fetcher := NewFetcher(sources, server.Client(), &mockChecker{}, "rss-digest-test")

	candidates, err := fetcher.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(candidates) != 1 || candidates[0].Source != "Good" {
		t.Fatalf("Expected one candidate from 'Good', got %+v", candidates)
	}
}

func TestFetcherDropsRepeatsWithinRun(t *testing.T) {
	shared := rssItem("Shared", "https://example.com/shared", "x")
	routes := map[string]string{
		"/a": rssFeed(shared, shared),
		"/b": rssFeed(rssItem("Shared again", "https://example.com/shared?fbclid=1", "y")),
	}
	server := newFeedServer(t, routes)

	sources := []Source{{Name: "A", URL: server.URL + "/a"}, {Name: "B", URL: server.URL + "/b"}}
	fetcher := NewFetcher(sources, server.Client(), &mockChecker{}, "rss-digest-test")

	candidates, err := fetcher.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Source != "A" {
		t.Errorf("Expected first occurrence to win, got source '%s'", candidates[0].Source)
	}
}

func TestFetcherSkipsInvalidLinks(t *testing.T) {
	routes := map[string]string{
		"/rss": rssFeed(
			rssItem("Relative", "/news/1", "x"),
			rssItem("Mail", "mailto:news@example.com", "x"),
			rssItem("Valid", "http://example.com/ok", "x"),
		),
	}
	server := newFeedServer(t, routes)

	fetcher := NewFetcher([]Source{{Name: "Test", URL: server.URL + "/rss"}}, server.Client(), &mockChecker{}, "rss-digest-test")

	candidates, err := fetcher.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(candidates) != 1 || candidates[0].URL != "http://example.com/ok" {
		t.Errorf("Expected only the http link, got %+v", candidates)
	}
}

func TestFetcherStoreErrorAborts(t *testing.T) {
	routes := map[string]string{
		"/rss": rssFeed(rssItem("One", "https://example.com/1", "x")),
	}
	server := newFeedServer(t, routes)

	storeErr := errors.New("database is locked")
	fetcher := NewFetcher([]Source{{Name: "Test", URL: server.URL + "/rss"}}, server.Client(), &mockChecker{err: storeErr}, "rss-digest-test")

	candidates, err := fetcher.Run(context.Background())
	if !errors.Is(err, storeErr) {
		t.Errorf("Expected store error, got: %v", err)
	}
	if candidates != nil {
		t.Errorf("Expected no candidates, got %d", len(candidates))
	}
}

func TestFetcherCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := NewFetcher([]Source{{Name: "Test", URL: "https://example.invalid/rss"}}, http.DefaultClient, &mockChecker{}, "rss-digest-test")

	if _, err := fetcher.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestFetcherExtractsMissingDescription(t *testing.T) {
	page := `<html><head><title>Page</title></head><body><article>
		<p>Regional banks in Southeast Asia are connecting their instant payment systems so that consumers can pay merchants across borders with a single QR code.</p>
		<p>The linkage between Thailand and Singapore was among the first to go live and has since been extended to several other markets in the region.</p>
		<p>Central banks say settlement happens within seconds and fees are lower than traditional remittance channels used by migrant workers.</p>
	</article></body></html>`

	routes := map[string]string{"/article": page}
	server := newFeedServer(t, routes)
	routes["/rss"] = rssFeed(
		rssItem("No description", server.URL+"/article", ""),
		rssItem("Broken page", server.URL+"/gone", ""),
	)

	sources := []Source{{Name: "Extract", URL: server.URL + "/rss", ExtractContent: true}}
	fetcher := NewFetcher(sources, server.Client(), &mockChecker{}, "rss-digest-test")

	candidates, err := fetcher.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}

	if !strings.Contains(candidates[0].Description, "instant payment systems") {
		t.Errorf("Expected extracted description, got '%s'", candidates[0].Description)
	}
	if candidates[1].Description != "" {
		t.Errorf("Expected empty description after failed extraction, got '%s'", candidates[1].Description)
	}
}
