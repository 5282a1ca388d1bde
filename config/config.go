package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// MEXC endpoints
	MexcWSURL      string
	MexcKlineURL   string
	MexcSymbolsURL string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	APIAddr       string

	// Streaming
	Symbols    string // comma-separated, e.g. "BTC_USDT,ETH_USDT"
	Interval   string // kline interval, e.g. "Min15"
	BufferSize int
	MinRows    int

	// Scoring
	UsePriceAction bool

	// Staging mode replaces the exchange feed with a deterministic
	// synthetic one.
	Staging bool

	// Notifications (optional; empty disables the backend)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Structured JSON log output instead of plain text.
	LogJSON bool

	PingInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		MexcWSURL:      getEnv("MEXC_WS_URL", "wss://contract.mexc.com/edge"),
		MexcKlineURL:   getEnv("MEXC_KLINE_URL", "https://contract.mexc.com/api/v1/contract/kline/"),
		MexcSymbolsURL: getEnv("MEXC_SYMBOLS_URL", "https://contract.mexc.com/api/v1/contract/detail"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),

		Symbols:    getEnv("SYMBOLS", "BTC_USDT,ETH_USDT"),
		Interval:   getEnv("INTERVAL", "Min15"),
		BufferSize: getEnvInt("BUFFER_SIZE", 1000),
		MinRows:    getEnvInt("MIN_ROWS", 50),

		UsePriceAction: getEnvBool("USE_PRICE_ACTION", true),
		Staging:        getEnvBool("STAGING", false),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogJSON: getEnvBool("LOG_JSON", false),

		PingInterval: time.Duration(getEnvInt("PING_INTERVAL_SECONDS", 15)) * time.Second,
	}
}

// ParseSymbols splits the Symbols string into a clean slice.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	syms := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		syms = append(syms, p)
	}
	return syms
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

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}
