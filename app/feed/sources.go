package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-digest/app/article"
)

const defaultSourceTimeout = 30

// DefaultSources are used when no feeds file exists.
var DefaultSources = []Source{
	{Name: "Finextra Payments", URL: "https://www.finextra.com/rss/channel.aspx?channel=payments", Timeout: defaultSourceTimeout},
	{Name: "Payments Dive", URL: "https://www.paymentsdive.com/feeds/news/", Timeout: defaultSourceTimeout},
}

// LoadSources reads the feeds file at path. A missing file yields DefaultSources.
func LoadSources(path string) ([]Source, error) {
	if path == "" {
		return defaultSources(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("Feeds file not found, using default sources", "path", path)
		return defaultSources(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i := range file.Feeds {
		if file.Feeds[i].Timeout == 0 {
			file.Feeds[i].Timeout = defaultSourceTimeout
		}
		if err := validateSource(file.Feeds[i]); err != nil {
			return nil, fmt.Errorf("invalid feed at index %d in %s: %w", i, path, err)
		}
		slog.Debug("Source loaded", "feed", file.Feeds[i].Name, "extract_content", file.Feeds[i].ExtractContent)
	}

	if len(file.Feeds) == 0 {
		return nil, fmt.Errorf("no feeds configured in %s", path)
	}

	return file.Feeds, nil
}

func defaultSources() []Source {
	sources := make([]Source, len(DefaultSources))
	copy(sources, DefaultSources)
	return sources
}

// validateSource rejects malformed entries. An empty URL is allowed here;
// the fetcher logs and skips such sources.
func validateSource(s Source) error {
	if s.Name == "" {
		return fmt.Errorf("feed name is required")
	}

	if s.URL != "" && !article.IsHTTPURL(s.URL) {
		return fmt.Errorf("feed URL must be http or https: %s", s.URL)
	}

	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	return nil
}
