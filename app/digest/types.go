package digest

import (
	"github.com/lysyi3m/rss-digest/app/article"
)

// Entry is one article as handed to an output adapter.
type Entry struct {
	ID            int64
	Title         string
	Summary       string
	Source        string
	URL           string
	PublishedDate string
	Category      article.Category
}

type Section struct {
	Category article.Category
	Heading  string
	Entries  []Entry
}

type Digest struct {
	Header   string
	Sections []Section
}

func (d Digest) Empty() bool {
	return len(d.Sections) == 0
}

// IDs returns the ids of every entry in delivery order.
func (d Digest) IDs() []int64 {
	var ids []int64
	for _, s := range d.Sections {
		for _, e := range s.Entries {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (d Digest) Count() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Entries)
	}
	return n
}

func Heading(c article.Category) string {
	switch c {
	case article.CategoryThailandSpecific:
		return "## 🇹🇭 THAILAND-SPECIFIC NEWS"
	default:
		return "## 🌏 GLOBAL NEWS"
	}
}

func Emoji(c article.Category) string {
	if c == article.CategoryThailandSpecific {
		return "🇹🇭"
	}
	return "🌏"
}
