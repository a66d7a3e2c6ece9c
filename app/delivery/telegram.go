package delivery

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lysyi3m/rss-digest/app/digest"
)

// TelegramLimit is the maximum message length accepted by the Bot API.
const TelegramLimit = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts digests to a single chat as HTML formatted messages.
type Telegram struct {
	bot    sender
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot authorized", "username", bot.Self.UserName, "chat_id", chatID)

	return newTelegram(bot, chatID), nil
}

func newTelegram(bot sender, chatID int64) *Telegram {
	return &Telegram{
		bot:    bot,
		chatID: chatID,
	}
}

func (t *Telegram) SendText(ctx context.Context, body string) error {
	return t.send(ctx, formatText(body))
}

func (t *Telegram) SendArticle(ctx context.Context, entry digest.Entry) error {
	return t.send(ctx, formatArticle(entry))
}

func (t *Telegram) send(ctx context.Context, body string) error {
	for _, part := range digest.Chunk(body, TelegramLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("telegram send failed: %w", err)
		}
	}
	return nil
}

// formatText escapes body and turns "## heading" lines and **bold** spans
// into HTML bold.
func formatText(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if heading, ok := strings.CutPrefix(line, "## "); ok {
			lines[i] = "<b>" + html.EscapeString(heading) + "</b>"
			continue
		}
		lines[i] = boldSpans(html.EscapeString(line))
	}
	return strings.Join(lines, "\n")
}

func boldSpans(line string) string {
	parts := strings.Split(line, "**")
	if len(parts) < 3 {
		return line
	}

	var b strings.Builder
	for i, part := range parts {
		switch {
		case i == len(parts)-1 && i%2 == 1:
			// unmatched opener
			b.WriteString("**")
		case i > 0 && i%2 == 1:
			b.WriteString("<b>")
		case i > 0:
			b.WriteString("</b>")
		}
		b.WriteString(part)
	}
	return b.String()
}

func formatArticle(e digest.Entry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s <b>%s</b>\n", digest.Emoji(e.Category), html.EscapeString(e.Title))
	b.WriteString(html.EscapeString(e.Summary))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Source: %s", html.EscapeString(e.Source))
	if e.PublishedDate != "" {
		fmt.Fprintf(&b, " | %s", html.EscapeString(e.PublishedDate))
	}
	b.WriteString("\n")
	b.WriteString(html.EscapeString(e.URL))

	return b.String()
}
