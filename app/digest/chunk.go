package digest

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

const DefaultChunkLimit = 2000

// Chunk splits body on newlines into chunks of at most limit runes. Lines
// longer than limit are cut to limit-3 runes plus "...". Joining the chunks
// with "\n" reproduces body apart from truncated lines.
func Chunk(body string, limit int) []string {
	if body == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultChunkLimit
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
		started bool
	)

	for _, line := range strings.Split(body, "\n") {
		length := utf8.RuneCountInString(line)
		if length > limit {
			slog.Warn("Line exceeds chunk limit, truncating", "length", length, "limit", limit)
			line = truncate(line, limit)
			length = utf8.RuneCountInString(line)
		}

		if started && size+length+1 > limit {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
			started = false
		}

		if started {
			current.WriteByte('\n')
			size++
		}
		current.WriteString(line)
		size += length
		started = true
	}

	if started {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func truncate(line string, limit int) string {
	if limit <= 3 {
		return string([]rune(line)[:limit])
	}
	return string([]rune(line)[:limit-3]) + "..."
}
