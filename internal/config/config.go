package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/technews/pkg/ingest"
	"github.com/elonfeng/technews/pkg/priority"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Retention RetentionConfig `yaml:"retention"`
	Trend     TrendConfig     `yaml:"trend"`
	Summary   SummaryConfig   `yaml:"summary"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
	Sources   []SourceItem    `yaml:"sources"`
	Keywords  []KeywordRule   `yaml:"keywords"`
	Tags      []TagRule       `yaml:"tags"`
}

// DatabaseConfig selects the SQL driver. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables distributed job locks when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScheduleConfig configures job cadences.
type ScheduleConfig struct {
	DueCheckInterval string `yaml:"due_check_interval"`
	RefreshInterval  string `yaml:"refresh_interval"`
	TrendInterval    string `yaml:"trend_interval"`
	HealthInterval   string `yaml:"health_interval"`
	CleanupInterval  string `yaml:"cleanup_interval"`
	PollWorkers      int    `yaml:"poll_workers"`
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ParseDueCheckInterval returns how often sources are checked for a due poll.
func (s ScheduleConfig) ParseDueCheckInterval() time.Duration {
	return parseDuration(s.DueCheckInterval, time.Minute)
}

// ParseRefreshInterval returns the priority refresh interval.
func (s ScheduleConfig) ParseRefreshInterval() time.Duration {
	return parseDuration(s.RefreshInterval, 30*time.Minute)
}

// ParseTrendInterval returns the trending detection interval.
func (s ScheduleConfig) ParseTrendInterval() time.Duration {
	return parseDuration(s.TrendInterval, time.Hour)
}

// ParseHealthInterval returns the health check interval.
func (s ScheduleConfig) ParseHealthInterval() time.Duration {
	return parseDuration(s.HealthInterval, 6*time.Hour)
}

// ParseCleanupInterval returns the retention cleanup interval.
func (s ScheduleConfig) ParseCleanupInterval() time.Duration {
	return parseDuration(s.CleanupInterval, 24*time.Hour)
}

// FetchConfig configures the feed fetcher.
type FetchConfig struct {
	Timeout      string `yaml:"timeout"`
	MaxAttempts  int    `yaml:"max_attempts"`
	BaseDelay    string `yaml:"base_delay"`
	UserAgent    string `yaml:"user_agent"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// ParseTimeout returns the per-request timeout.
func (f FetchConfig) ParseTimeout() time.Duration {
	return parseDuration(f.Timeout, 30*time.Second)
}

// ParseBaseDelay returns the first retry delay.
func (f FetchConfig) ParseBaseDelay() time.Duration {
	return parseDuration(f.BaseDelay, time.Second)
}

// RetentionConfig configures the cleanup job.
type RetentionConfig struct {
	ArticleDays int `yaml:"article_days"`
	LogDays     int `yaml:"log_days"`
}

// TrendConfig configures trending detection.
type TrendConfig struct {
	WindowHours  int `yaml:"window_hours"`
	MinFrequency int `yaml:"min_frequency"`
	MaxTopics    int `yaml:"max_topics"`
}

// SummaryConfig configures the optional model tier of the summary generator.
type SummaryConfig struct {
	Provider string `yaml:"provider"` // "gemini", "openai", "anthropic" or empty
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
	Batch    int    `yaml:"batch"`
}

// ParseTimeout returns the model call timeout.
func (s SummaryConfig) ParseTimeout() time.Duration {
	return parseDuration(s.Timeout, 30*time.Second)
}

// AlertsConfig configures where unhealthy-source notifications go.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SourceItem is a feed seeded by the setup command.
type SourceItem struct {
	Name            string  `yaml:"name"`
	URL             string  `yaml:"url"`
	IntervalMinutes int     `yaml:"interval_minutes"`
	Weight          float64 `yaml:"weight"`
}

// KeywordRule is one keyword table row.
type KeywordRule struct {
	Keyword string `yaml:"keyword"`
	Label   string `yaml:"label"`
}

// TagRule describes a tag and the substrings that assign it. Tags without
// triggers are only seeded by setup.
type TagRule struct {
	Name        string   `yaml:"name"`
	Color       string   `yaml:"color"`
	Description string   `yaml:"description"`
	Triggers    []string `yaml:"triggers"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "./technews.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Schedule: ScheduleConfig{
			DueCheckInterval: "1m",
			RefreshInterval:  "30m",
			TrendInterval:    "1h",
			HealthInterval:   "6h",
			CleanupInterval:  "24h",
			PollWorkers:      4,
		},
		Fetch: FetchConfig{
			Timeout:      "30s",
			MaxAttempts:  3,
			BaseDelay:    "1s",
			MaxBodyBytes: 10 << 20,
		},
		Retention: RetentionConfig{ArticleDays: 30, LogDays: 7},
		Trend:     TrendConfig{WindowHours: 6, MinFrequency: 3, MaxTopics: 20},
		Summary:   SummaryConfig{Timeout: "30s", Batch: 20},
		Server:    ServerConfig{Port: 8080},
		Sources: []SourceItem{
			{Name: "Techcrunch", URL: "https://techcrunch.com/feed/"},
			{Name: "Theverge", URL: "https://www.theverge.com/rss/index.xml"},
			{Name: "Android Authority", URL: "https://www.androidauthority.com/feed/"},
			{Name: "Gsmarena", URL: "https://www.gsmarena.com/rss-news-reviews.php3"},
			{Name: "Macrumors", URL: "https://www.macrumors.com/macrumors.xml"},
		},
		Keywords: []KeywordRule{
			{"iphone", "high"}, {"galaxy", "high"}, {"pixel", "high"}, {"oneplus", "high"},
			{"security breach", "high"}, {"recall", "high"}, {"acquisition", "high"}, {"vulnerability", "high"},
			{"android", "medium"}, {"ios", "medium"}, {"update", "medium"}, {"launch", "medium"},
			{"leak", "medium"}, {"review", "medium"}, {"artificial intelligence", "medium"}, {"chip", "medium"},
			{"app", "low"}, {"price", "low"}, {"deal", "low"}, {"rumor", "low"}, {"feature", "low"},
		},
		Tags: []TagRule{
			{Name: "Apple", Color: "#007AFF", Description: "Apple products and news", Triggers: []string{"iphone", "ipad", "mac", "apple", "ios", "macos", "airpods"}},
			{Name: "Samsung", Color: "#1428A0", Description: "Samsung devices and announcements", Triggers: []string{"samsung", "galaxy", "note"}},
			{Name: "Google", Color: "#4285F4", Description: "Google products and services", Triggers: []string{"google", "pixel", "android", "chrome"}},
			{Name: "OnePlus", Color: "#EB0028", Description: "OnePlus devices and updates", Triggers: []string{"oneplus", "oxygen"}},
			{Name: "Xiaomi", Color: "#FF6900", Description: "Xiaomi products and news", Triggers: []string{"xiaomi", "mi", "redmi"}},
			{Name: "Rumor", Color: "#FFC107", Description: "Rumors and speculation", Triggers: []string{"rumor", "leaked", "leak", "speculation"}},
			{Name: "Breaking", Color: "#DC3545", Description: "Breaking news and urgent updates", Triggers: []string{"breaking", "urgent", "exclusive"}},
			{Name: "India", Color: "#FF9500", Description: "India-specific tech news", Triggers: []string{"india", "indian"}},
			{Name: "Launch", Color: "#28A745", Description: "Product launches and announcements", Triggers: []string{"launch", "announced", "release", "unveil"}},
			{Name: "Android", Color: "#3DDC84", Description: "Android OS and ecosystem"},
			{Name: "iOS", Color: "#007AFF", Description: "iOS updates and features"},
			{Name: "Review", Color: "#6F42C1", Description: "Product reviews and analysis"},
			{Name: "AI", Color: "#6F42C1", Description: "Artificial Intelligence and ML"},
			{Name: "Gaming", Color: "#17A2B8", Description: "Gaming news and hardware"},
			{Name: "Security", Color: "#DC3545", Description: "Cybersecurity and privacy"},
		},
	}
}

// Load reads .env files, then configuration from a YAML file, and applies
// env var overrides.
func Load(path string) (*Config, error) {
	LoadDotEnvs("")
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TECHNEWS_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("TECHNEWS_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TECHNEWS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TECHNEWS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TECHNEWS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Summary.APIKey = v
		cfg.Summary.Provider = "gemini"
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Summary.Provider != "gemini" {
		cfg.Summary.APIKey = v
		cfg.Summary.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Summary.Provider == "" {
		cfg.Summary.APIKey = v
		cfg.Summary.Provider = "anthropic"
	}
}

// Validate rejects configuration the rest of the system cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("config: database dsn is empty")
	}
	if _, err := c.KeywordTable(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.TagRules(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("config: source needs both name and url")
		}
	}
	switch c.Summary.Provider {
	case "", "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("config: unknown summary provider %q", c.Summary.Provider)
	}
	return nil
}

// KeywordTable converts the keyword rows into the classifier's immutable table.
func (c *Config) KeywordTable() (*priority.Table, error) {
	rows := make([]priority.Keyword, 0, len(c.Keywords))
	for _, k := range c.Keywords {
		l, err := priority.ParseLabel(k.Label, false)
		if err != nil {
			return nil, fmt.Errorf("keyword %q: %w", k.Keyword, err)
		}
		rows = append(rows, priority.Keyword{Keyword: k.Keyword, Label: l})
	}
	return priority.NewTable(rows)
}

// TagRules converts the tag rows into the tagger's immutable rule set.
func (c *Config) TagRules() (*ingest.TagRules, error) {
	rules := make([]ingest.TagRule, 0, len(c.Tags))
	for _, t := range c.Tags {
		rules = append(rules, ingest.TagRule{
			Name:        t.Name,
			Color:       t.Color,
			Description: t.Description,
			Triggers:    t.Triggers,
		})
	}
	return ingest.NewTagRules(rules)
}
