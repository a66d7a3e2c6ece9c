package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath    string
	FeedsFile string

	// HTTP server
	Port         string
	APIAccessKey string
	UserAgent    string

	// Schedule
	Timezone   string
	DigestTime string
	RunOnStart bool

	// AI
	AnthropicAPIKey    string
	AnthropicBaseURL   string
	AnthropicModel     string
	AnthropicMaxTokens int
	AITimeout          time.Duration
	AIMaxRetries       int
	AIRetryDelay       time.Duration

	// Delivery
	TelegramToken  string
	TelegramChatID int64

	Debug   bool
	Version string
}

// TelegramEnabled reports whether digests go to Telegram instead of the log.
func (c *Cfg) TelegramEnabled() bool {
	return c.TelegramToken != ""
}
