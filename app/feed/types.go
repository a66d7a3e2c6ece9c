package feed

import (
	"time"
)

// Source configuration

type Source struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	ExtractContent bool   `yaml:"extract_content"` // fetch the page when the entry has no description
	Timeout        int    `yaml:"timeout"`         // seconds
}

func (s Source) timeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

type sourcesFile struct {
	Feeds []Source `yaml:"feeds"`
}

// Feed processing types

// Entry is a feed item as parsed, before any normalization.
type Entry struct {
	Title       string
	Link        string
	Published   string
	Description string
}

// Candidate is a normalized entry that is not yet stored.
type Candidate struct {
	Title         string
	URL           string
	Source        string
	PublishedDate string
	Description   string
}
