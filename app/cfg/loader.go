package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./data/articles.db" description:"SQLite database file"`
	FeedsFile string `long:"feeds-file" env:"FEEDS_FILE" default:"./feeds.yml" description:"YAML file with feed sources (built-in sources when missing)"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"RSS Digest/1.0" description:"User agent string for HTTP requests"`

	// Schedule
	Timezone   string `long:"timezone" env:"TIMEZONE" default:"Asia/Bangkok" description:"IANA timezone for the digest time and header date"`
	DigestTime string `long:"digest-time" env:"DIGEST_TIME" default:"08:00" description:"Daily digest time of day (HH:MM)"`
	RunOnStart bool   `long:"run-on-start" env:"RUN_ON_START" description:"Run one cycle right after startup"`

	// AI
	AnthropicAPIKey    string        `long:"anthropic-api-key" env:"ANTHROPIC_API_KEY" description:"Anthropic API key (required)"`
	AnthropicBaseURL   string        `long:"anthropic-base-url" env:"ANTHROPIC_BASE_URL" default:"https://api.anthropic.com" description:"Anthropic API base URL"`
	AnthropicModel     string        `long:"anthropic-model" env:"ANTHROPIC_MODEL" default:"claude-3-5-sonnet-20241022" description:"Model used for summaries"`
	AnthropicMaxTokens int           `long:"anthropic-max-tokens" env:"ANTHROPIC_MAX_TOKENS" default:"300" description:"Maximum tokens per summary"`
	AITimeout          int           `long:"ai-timeout" env:"AI_TIMEOUT" default:"30" description:"Per request AI timeout in seconds"`
	AIMaxRetries       int           `long:"ai-max-retries" env:"AI_MAX_RETRIES" default:"3" description:"Maximum AI attempts per article"`
	AIRetryDelay       time.Duration `long:"ai-retry-delay" env:"AI_RETRY_DELAY" default:"1s" description:"Base delay between AI attempts, doubled each retry"`

	// Delivery
	TelegramToken  string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token (digest is logged when unset)"`
	TelegramChatID int64  `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat id"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses command line flags and environment. It returns nil, nil when
// help was requested.
func Load() (*Cfg, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		FeedsFile:          raw.FeedsFile,
		Port:               raw.Port,
		APIAccessKey:       raw.APIAccessKey,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		DigestTime:         raw.DigestTime,
		RunOnStart:         raw.RunOnStart,
		AnthropicAPIKey:    raw.AnthropicAPIKey,
		AnthropicBaseURL:   raw.AnthropicBaseURL,
		AnthropicModel:     raw.AnthropicModel,
		AnthropicMaxTokens: raw.AnthropicMaxTokens,
		AITimeout:          time.Duration(raw.AITimeout) * time.Second,
		AIMaxRetries:       raw.AIMaxRetries,
		AIRetryDelay:       raw.AIRetryDelay,
		TelegramToken:      raw.TelegramToken,
		TelegramChatID:     raw.TelegramChatID,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	return cfg, nil
}

// Validate reports every missing credential or malformed value at once.
// Secrets never appear in the returned error.
func (c *Cfg) Validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, errors.New("db-path is required"))
	}
	if c.AnthropicAPIKey == "" {
		errs = append(errs, errors.New("anthropic-api-key is required"))
	}
	if c.TelegramEnabled() && c.TelegramChatID == 0 {
		errs = append(errs, errors.New("telegram-chat-id is required when telegram-token is set"))
	}
	if c.Timezone == "" {
		errs = append(errs, errors.New("timezone is required"))
	} else if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone '%s'", c.Timezone))
	}
	if _, err := time.Parse("15:04", c.DigestTime); err != nil {
		errs = append(errs, fmt.Errorf("invalid digest-time '%s': expected HH:MM", c.DigestTime))
	}
	if c.AnthropicMaxTokens <= 0 {
		errs = append(errs, errors.New("anthropic-max-tokens must be positive"))
	}
	if c.AITimeout <= 0 {
		errs = append(errs, errors.New("ai-timeout must be positive"))
	}
	if c.AIMaxRetries < 1 {
		errs = append(errs, errors.New("ai-max-retries must be at least 1"))
	}
	if c.AIRetryDelay < 0 {
		errs = append(errs, errors.New("ai-retry-delay must not be negative"))
	}

	return errors.Join(errs...)
}

// Location returns the configured timezone, falling back to UTC.
func (c *Cfg) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
