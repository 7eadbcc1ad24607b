package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "Asia/Kolkata"
	configPathEnv     = "CIRCULARS_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	addrEnv           = "CIRCULARS_ADDR"
	feedSourceEnv     = "CIRCULARS_FEED_SOURCE"
	chromeBinEnv      = "CHROME_BIN"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Server        ServerConfig       `yaml:"server"`
	Feed          FeedConfig         `yaml:"feed"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Notifications NotificationConfig `yaml:"notifications"`
	Chrome        ChromeConfig       `yaml:"chrome"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig selects the slog level and handler ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// FeedConfig locates the feed documents.
type FeedConfig struct {
	// Source is where readers load the feed from: a URL or a file path.
	Source string `yaml:"source"`
	// Path is the file the pipeline writes.
	Path string `yaml:"path"`
	// BaselinePath is an older snapshot mixed in when a scrape yields little data.
	BaselinePath string `yaml:"baselinePath"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN disables the archive.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines how often the pipeline runs.
type SchedulerConfig struct {
	Interval string         `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Every parses Interval, defaulting to thirty minutes.
func (s SchedulerConfig) Every() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// PipelineConfig holds the merge limits.
type PipelineConfig struct {
	Concurrency     int `yaml:"concurrency"`
	PerSectionLimit int `yaml:"perSectionLimit"`
	TotalLimit      int `yaml:"totalLimit"`
	BaselineBelow   int `yaml:"baselineBelow"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// ChromeConfig configures the browser used to rasterize exports.
type ChromeConfig struct {
	Bin         string `yaml:"bin"`
	DebuggerURL string `yaml:"debuggerUrl"`
	NoSandbox   bool   `yaml:"noSandbox"`
}

// SiteConfig describes a single site with its scanner strategy.
type SiteConfig struct {
	Name     string            `yaml:"name"`
	Scanner  string            `yaml:"scanner"`
	BaseURL  string            `yaml:"baseUrl"`
	MaxRows  int               `yaml:"maxRows"`
	Sections []SectionConfig   `yaml:"sections"`
	Options  map[string]string `yaml:"options"`
}

// SectionConfig holds one listing page to crawl and its table layout.
type SectionConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Layout string `yaml:"layout"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit path; an empty path uses defaults only.
func LoadFile(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(addrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(feedSourceEnv); v != "" {
		c.Feed.Source = v
	}
	if v := os.Getenv(chromeBinEnv); v != "" {
		c.Chrome.Bin = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}

	if override.Feed.Source != "" {
		base.Feed.Source = override.Feed.Source
	}
	if override.Feed.Path != "" {
		base.Feed.Path = override.Feed.Path
	}
	if override.Feed.BaselinePath != "" {
		base.Feed.BaselinePath = override.Feed.BaselinePath
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.Interval != "" {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Pipeline.Concurrency > 0 {
		base.Pipeline.Concurrency = override.Pipeline.Concurrency
	}
	if override.Pipeline.PerSectionLimit > 0 {
		base.Pipeline.PerSectionLimit = override.Pipeline.PerSectionLimit
	}
	if override.Pipeline.TotalLimit > 0 {
		base.Pipeline.TotalLimit = override.Pipeline.TotalLimit
	}
	if override.Pipeline.BaselineBelow > 0 {
		base.Pipeline.BaselineBelow = override.Pipeline.BaselineBelow
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Chrome.Bin != "" {
		base.Chrome.Bin = override.Chrome.Bin
	}
	if override.Chrome.DebuggerURL != "" {
		base.Chrome.DebuggerURL = override.Chrome.DebuggerURL
	}
	if override.Chrome.NoSandbox {
		base.Chrome.NoSandbox = true
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Server:    ServerConfig{Addr: ":8080"},
		Feed:      FeedConfig{Source: "circulars.json", Path: "circulars.json", BaselinePath: "circulars-baseline.json"},
		Scheduler: SchedulerConfig{Interval: "30m", Timezone: defaultTimezone},
		Pipeline:  PipelineConfig{Concurrency: 2, PerSectionLimit: 200, TotalLimit: 400, BaselineBelow: 50},
		Sites: []SiteConfig{
			{
				Name:    "dte-karnataka",
				Scanner: "table",
				BaseURL: "https://dtek.karnataka.gov.in",
				MaxRows: 100,
				Sections: []SectionConfig{
					{Name: "Departmental", URL: "https://dtek.karnataka.gov.in/info-4/Departmental+Circulars/kn", Layout: "departmental"},
					{Name: "DVP", URL: "https://dtek.karnataka.gov.in/page/Circulars/DVP/kn", Layout: "dvp"},
					{Name: "EST", URL: "https://dtek.karnataka.gov.in/page/Circulars/EST/kn", Layout: "wide"},
					{Name: "ACM", URL: "https://dtek.karnataka.gov.in/page/Circulars/ACM-Polytechnic/kn", Layout: "wide"},
				},
			},
		},
	}
}
