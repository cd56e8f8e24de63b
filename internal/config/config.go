package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Search     SearchConfig     `yaml:"search"`
	Fetcher    FetcherConfig    `yaml:"fetcher"`
	Watcher    WatcherConfig    `yaml:"watcher"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Notify     NotifyConfig     `yaml:"notify"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
	Timezone   string           `yaml:"timezone"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// FetcherConfig contains page fetch settings
type FetcherConfig struct {
	RequestDelaySeconds int    `yaml:"request_delay_seconds"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	MaxRetries          int    `yaml:"max_retries"`
	RetryDelaySeconds   int    `yaml:"retry_delay_seconds"`
	ChromePath          string `yaml:"chrome_path"`
	UseBrowser          bool   `yaml:"use_browser"`
}

// WatcherConfig contains the watch-loop settings
type WatcherConfig struct {
	SearchURL            string `yaml:"search_url"`
	SeenFile             string `yaml:"seen_file"`
	CheckIntervalMinutes int    `yaml:"check_interval_minutes"`
	ItemDelaySeconds     int    `yaml:"item_delay_seconds"`
	DeepScrape           bool   `yaml:"deep_scrape"`
	MinPrice             int    `yaml:"min_price"`
	MaxPrice             int    `yaml:"max_price"`
	DailyRunEnabled      bool   `yaml:"daily_run_enabled"`
	DailyRunTime         string `yaml:"daily_run_time"`
}

// AggregatorConfig contains the settings for the RapidAPI-hosted
// aggregation API, an alternative listing source to crawling.
type AggregatorConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIKey       string `yaml:"api_key"`
	APIHost      string `yaml:"api_host"`
	LocationID   string `yaml:"location_id"`
	LocationName string `yaml:"location_name"`
	Operation    string `yaml:"operation"`
	Country      string `yaml:"country"`
	Locale       string `yaml:"locale"`
	Order        string `yaml:"order"`
	MaxItems     int    `yaml:"max_items"`
	MaxPages     int    `yaml:"max_pages"`
	MinSize      int    `yaml:"min_size"`
	MaxSize      int    `yaml:"max_size"`
}

// NotifyConfig contains notification channel settings
type NotifyConfig struct {
	Channels         []string `yaml:"channels"`
	TelegramBotToken string   `yaml:"telegram_bot_token"`
	TelegramChatID   string   `yaml:"telegram_chat_id"`
	SlackWebhookURL  string   `yaml:"slack_webhook_url"`
}

// RateLimitConfig contains API rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	LogRequests bool   `yaml:"log_requests"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Fetcher: FetcherConfig{
			RequestDelaySeconds: 2,
			TimeoutSeconds:      30,
			MaxRetries:          3,
			RetryDelaySeconds:   2,
			ChromePath:          "/usr/bin/google-chrome",
			UseBrowser:          false,
		},
		Watcher: WatcherConfig{
			SeenFile:             "seen_properties.json",
			CheckIntervalMinutes: 30,
			ItemDelaySeconds:     3,
			DeepScrape:           false,
			DailyRunEnabled:      false,
			DailyRunTime:         "09:00",
		},
		Aggregator: AggregatorConfig{
			APIHost:      "idealista7.p.rapidapi.com",
			LocationID:   "0-EU-ES-28-07-001-079",
			LocationName: "Madrid",
			Operation:    "sale",
			Country:      "es",
			Locale:       "es",
			Order:        "relevance",
			MaxItems:     40,
			MaxPages:     10,
		},
		Notify: NotifyConfig{
			Channels: []string{"console"},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 30,
			RequestsPerHour:   1800,
		},
		Logging: LoggingConfig{
			Level:       "info",
			LogRequests: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file, then applies any
// environment overrides. A missing file yields the defaults.
func LoadConfig(filepath string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(filepath); !os.IsNotExist(err) {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	return config, nil
}

// applyEnv overlays .env / environment settings on top of the file
// values. Environment always wins.
func (c *Config) applyEnv() {
	if err := godotenv.Load(); err == nil {
		log.Printf("[Config] Loaded .env file")
	}

	if v := os.Getenv("SEARCH_URL"); v != "" {
		c.Watcher.SearchURL = v
	}
	if v := os.Getenv("SEEN_PROPERTIES_FILE"); v != "" {
		c.Watcher.SeenFile = v
	}
	if v := envInt("CHECK_INTERVAL_MINUTES"); v > 0 {
		c.Watcher.CheckIntervalMinutes = v
	}
	if v := envInt("MIN_PRICE"); v > 0 {
		c.Watcher.MinPrice = v
	}
	if v := envInt("MAX_PRICE"); v > 0 {
		c.Watcher.MaxPrice = v
	}
	if v := os.Getenv("USE_RAPIDAPI"); v != "" {
		c.Aggregator.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" {
		c.Aggregator.APIKey = v
	}
	if v := os.Getenv("RAPIDAPI_HOST"); v != "" {
		c.Aggregator.APIHost = v
	}
	if v := os.Getenv("IDEALISTA_LOCATION_ID"); v != "" {
		c.Aggregator.LocationID = v
	}
	if v := os.Getenv("IDEALISTA_LOCATION_NAME"); v != "" {
		c.Aggregator.LocationName = v
	}
	if v := os.Getenv("IDEALISTA_OPERATION"); v != "" {
		c.Aggregator.Operation = v
	}
	if v := envInt("IDEALISTA_MIN_SIZE"); v > 0 {
		c.Aggregator.MinSize = v
	}
	if v := envInt("IDEALISTA_MAX_SIZE"); v > 0 {
		c.Aggregator.MaxSize = v
	}
	if v := os.Getenv("NOTIFICATION_CHANNELS"); v != "" {
		c.Notify.Channels = splitAndTrim(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.TelegramBotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.TelegramChatID = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		c.Notify.SlackWebhookURL = v
	}
	if v := os.Getenv("MEILISEARCH_HOST"); v != "" {
		c.Search.Meilisearch.Host = v
	}
	if v := os.Getenv("MEILISEARCH_API_KEY"); v != "" {
		c.Search.Meilisearch.APIKey = v
	}
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[Config] Invalid integer for %s: %q", key, v)
		return 0
	}
	return n
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// GetRequestDelay returns the request delay as a duration
func (c *FetcherConfig) GetRequestDelay() time.Duration {
	return time.Duration(c.RequestDelaySeconds) * time.Second
}

// GetTimeout returns the timeout as a duration
func (c *FetcherConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetRetryDelay returns the retry delay as a duration
func (c *FetcherConfig) GetRetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// GetCheckInterval returns the watch interval as a duration
func (c *WatcherConfig) GetCheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}

// GetItemDelay returns the politeness delay between items
func (c *WatcherConfig) GetItemDelay() time.Duration {
	return time.Duration(c.ItemDelaySeconds) * time.Second
}
