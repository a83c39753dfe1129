package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"signals-systemv1/internal/feed"
)

// DefaultEndpoint is the broker's market data websocket.
const DefaultEndpoint = "wss://ws2.qxbroker.com/socket.io/?EIO=3&transport=websocket"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Broker session
	SessionID    string
	IsDemo       int
	TournamentID int
	WSURL        string
	UserAgent    string
	Cookie       string
	Origin       string

	// Watchlist
	Assets     string // comma-separated, e.g. "EURUSD,GBPUSD"
	Timeframes string // comma-separated seconds, e.g. "60,120,180,300"

	// Timings
	SyncInterval   time.Duration
	ReconnectDelay time.Duration

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	// Alerting (optional)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		SessionID:    mustEnv("SESSION_ID"),
		IsDemo:       getEnvInt("IS_DEMO", 1),
		TournamentID: getEnvInt("TOURNAMENT_ID", 0),
		WSURL:        getEnv("WS_URL", DefaultEndpoint),
		UserAgent:    getEnv("USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"),
		Cookie:       getEnv("COOKIE", ""),
		Origin:       getEnv("ORIGIN", "https://qxbroker.com"),

		Assets:     getEnv("ASSETS", "EURUSD"),
		Timeframes: getEnv("TIMEFRAMES", "60,120,180,300"),

		SyncInterval:   getEnvDuration("SYNC_INTERVAL", 5*time.Second),
		ReconnectDelay: getEnvDuration("RECONNECT_DELAY", 5*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

// ParseAssets splits the Assets list, dropping empties.
func (c *Config) ParseAssets() []string {
	parts := strings.Split(c.Assets, ",")
	assets := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		assets = append(assets, p)
	}
	return assets
}

// ParseTimeframes parses the Timeframes string into candle periods in seconds.
func (c *Config) ParseTimeframes() []int {
	parts := strings.Split(c.Timeframes, ",")
	periods := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			log.Printf("[config] skipping invalid timeframe value: %q", p)
			continue
		}
		periods = append(periods, n)
	}
	return periods
}

// Credentials returns a provider that re-reads the session token from
// the environment on every connect attempt, so a rotated token applies
// without a restart.
func (c *Config) Credentials() feed.CredentialProvider {
	return feed.CredentialProviderFunc(func() (feed.Credentials, error) {
		token := os.Getenv("SESSION_ID")
		if token == "" {
			token = c.SessionID
		}
		return feed.Credentials{
			SessionToken: token,
			IsDemo:       c.IsDemo,
			TournamentID: c.TournamentID,
			EndpointURL:  c.WSURL,
			UserAgent:    c.UserAgent,
			Cookie:       c.Cookie,
			Origin:       c.Origin,
		}, nil
	})
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
