package feed

import (
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxTitleLength       = 500
	MaxDescriptionLength = 5000
)

var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"msclkid":  true,
	"mc_cid":   true,
	"mc_eid":   true,
	"_ga":      true,
	"_gac":     true,
	"_gl":      true,
	"ref":      true,
	"referrer": true,
	"source":   true,
}

// StripHTML drops script and style elements and returns the remaining text
// with every run of whitespace collapsed into a single space.
func StripHTML(text string) string {
	if text == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		slog.Warn("Failed to parse HTML, keeping raw text", "error", err)
		return strings.Join(strings.Fields(text), " ")
	}

	doc.Find("script, style").Remove()

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Sanitize removes NUL bytes, applies NFC normalization, trims surrounding
// whitespace and truncates to maxLength runes.
func Sanitize(text string, maxLength int) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\x00", "")
	text = norm.NFC.String(text)
	text = strings.TrimSpace(text)

	if maxLength > 0 && utf8.RuneCountInString(text) > maxLength {
		slog.Debug("Text truncated", "length", utf8.RuneCountInString(text), "max", maxLength)
		text = string([]rune(text)[:maxLength])
	}

	return text
}

// CleanURL removes tracking query parameters. Remaining parameters keep
// their order and encoding. Unparseable input is returned unchanged.
func CleanURL(raw string) string {
	if raw == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		slog.Warn("Failed to parse URL, keeping it as is", "url", raw, "error", err)
		return raw
	}

	if u.RawQuery == "" {
		return raw
	}

	var kept []string
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		if isTrackingParam(pair) {
			continue
		}
		kept = append(kept, pair)
	}

	u.RawQuery = strings.Join(kept, "&")
	u.ForceQuery = false

	return u.String()
}

func isTrackingParam(pair string) bool {
	key, _, _ := strings.Cut(pair, "=")
	if unescaped, err := url.QueryUnescape(key); err == nil {
		key = unescaped
	}
	key = strings.ToLower(key)

	return strings.HasPrefix(key, "utm_") || trackingParams[key]
}
