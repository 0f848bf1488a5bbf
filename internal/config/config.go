package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"courtwatch/internal/schedule"
)

const (
	defaultTimezone  = "America/New_York"
	configPathEnv    = "COURTWATCH_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	httpAddrEnv      = "HTTP_ADDR"
	reasonerKeyEnv   = "REASONER_API_KEY"
	reasonerModelEnv = "REASONER_MODEL"
	newsAPIKeyEnv    = "NEWSAPI_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Reasoner   ReasonerConfig   `yaml:"reasoner"`
	NewsAPI    NewsAPIConfig    `yaml:"newsapi"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Sources    []SourceConfig   `yaml:"sources"`
}

// DatabaseConfig describes the record-store connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// HTTPConfig describes the trigger/dashboard listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SchedulerConfig defines the two trigger cadences.
type SchedulerConfig struct {
	FetchCron   string         `yaml:"fetchCron"`
	ExtractCron string         `yaml:"extractCron"`
	Timezone    string         `yaml:"timezone"`
	location    *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ReasonerConfig defines how to contact the reasoning service.
type ReasonerConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"apiKey"`
	MaxTokens int    `yaml:"maxTokens"`
}

// NewsAPIConfig carries the shared key for REST news-search sources.
type NewsAPIConfig struct {
	APIKey string `yaml:"apiKey"`
}

// ExtractionConfig tunes the extraction stage.
type ExtractionConfig struct {
	BackfillConcurrency   int `yaml:"backfillConcurrency"`
	RecentItemLimit       int `yaml:"recentItemLimit"`
	DeadlineLookaheadDays int `yaml:"deadlineLookaheadDays"`
	BootstrapWindowHours  int `yaml:"bootstrapWindowHours"`
}

// NewsQueryConfig is the search contract for REST news sources.
type NewsQueryConfig struct {
	Keyword     string `yaml:"keyword"`
	Language    string `yaml:"language"`
	Country     string `yaml:"country"`
	PageSize    int    `yaml:"pageSize"`
	WindowHours int    `yaml:"windowHours"`
}

// SourceConfig describes a single source with its fetch strategy.
type SourceConfig struct {
	Name        string          `yaml:"name"`
	Kind        string          `yaml:"kind"` // rss | newsapi | docket
	URL         string          `yaml:"url"`
	Filter      bool            `yaml:"filter"`
	ExtraTopics []string        `yaml:"extraTopics"`
	Query       NewsQueryConfig `yaml:"query"`
	Cooldown    schedule.Policy `yaml:"cooldown"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
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

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(reasonerKeyEnv); v != "" {
		c.Reasoner.APIKey = v
	}
	if v := os.Getenv(reasonerModelEnv); v != "" {
		c.Reasoner.Model = v
	}
	if v := os.Getenv(newsAPIKeyEnv); v != "" {
		c.NewsAPI.APIKey = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}
	if override.HTTP.Addr != "" {
		base.HTTP = override.HTTP
	}
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Scheduler.FetchCron != "" {
		base.Scheduler.FetchCron = override.Scheduler.FetchCron
	}
	if override.Scheduler.ExtractCron != "" {
		base.Scheduler.ExtractCron = override.Scheduler.ExtractCron
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Reasoner.Endpoint != "" {
		base.Reasoner.Endpoint = override.Reasoner.Endpoint
	}
	if override.Reasoner.Model != "" {
		base.Reasoner.Model = override.Reasoner.Model
	}
	if override.Reasoner.APIKey != "" {
		base.Reasoner.APIKey = override.Reasoner.APIKey
	}
	if override.Reasoner.MaxTokens > 0 {
		base.Reasoner.MaxTokens = override.Reasoner.MaxTokens
	}

	if override.NewsAPI.APIKey != "" {
		base.NewsAPI = override.NewsAPI
	}

	if override.Extraction.BackfillConcurrency > 0 {
		base.Extraction.BackfillConcurrency = override.Extraction.BackfillConcurrency
	}
	if override.Extraction.RecentItemLimit > 0 {
		base.Extraction.RecentItemLimit = override.Extraction.RecentItemLimit
	}
	if override.Extraction.DeadlineLookaheadDays > 0 {
		base.Extraction.DeadlineLookaheadDays = override.Extraction.DeadlineLookaheadDays
	}
	if override.Extraction.BootstrapWindowHours > 0 {
		base.Extraction.BootstrapWindowHours = override.Extraction.BootstrapWindowHours
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)

	newsCooldown := schedule.Policy{
		Timezone:       defaultTimezone,
		DefaultMinutes: 30,
		Windows: []schedule.Span{
			{From: "07:00", To: "19:00", Minutes: 15},
		},
		Quiet: []schedule.Span{
			{From: "01:00", To: "05:00"},
		},
	}
	slowCooldown := schedule.Policy{
		Timezone:       defaultTimezone,
		DefaultMinutes: 180,
		Quiet: []schedule.Span{
			{From: "00:00", To: "06:00"},
		},
	}

	return Config{
		Database:  DatabaseConfig{DSN: "courtwatch.db"},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Logging:   LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{FetchCron: "*/10 * * * *", ExtractCron: "0 6,18 * * *", Timezone: defaultTimezone, location: tz},
		Reasoner: ReasonerConfig{
			Endpoint:  "https://api.openai.com/v1/chat/completions",
			Model:     "gpt-4o-mini",
			MaxTokens: 2048,
		},
		Extraction: ExtractionConfig{
			BackfillConcurrency:   3,
			RecentItemLimit:       40,
			DeadlineLookaheadDays: 45,
			BootstrapWindowHours:  24,
		},
		Sources: []SourceConfig{
			{Name: "sportico-law", Kind: "rss", URL: "https://www.sportico.com/law/feed/", Cooldown: newsCooldown},
			{Name: "on3-nil", Kind: "rss", URL: "https://www.on3.com/nil/news/feed/", Cooldown: newsCooldown},
			{Name: "ncaa-press", Kind: "rss", URL: "https://www.ncaa.org/news/rss.xml", Cooldown: newsCooldown},
			{Name: "espn-college", Kind: "rss", URL: "https://www.espn.com/espn/rss/ncaa/news", Filter: true, Cooldown: newsCooldown},
			{Name: "cbs-college", Kind: "rss", URL: "https://www.cbssports.com/rss/headlines/college-football/", Filter: true, Cooldown: newsCooldown},
			{Name: "yahoo-college", Kind: "rss", URL: "https://sports.yahoo.com/college/rss/", Filter: true, Cooldown: newsCooldown},
			{Name: "gn-athlete-lawsuits", Kind: "rss", URL: "https://news.google.com/rss/search?q=%22college+athlete%22+lawsuit", Cooldown: newsCooldown},
			{Name: "gn-ncaa-enforcement", Kind: "rss", URL: "https://news.google.com/rss/search?q=NCAA+enforcement+OR+infractions", Cooldown: newsCooldown},
			{Name: "gn-nil-legislation", Kind: "rss", URL: "https://news.google.com/rss/search?q=NIL+legislation+college+sports", Cooldown: newsCooldown},
			{Name: "newsapi-nil", Kind: "newsapi", URL: "https://gnews.io/api/v4/search",
				Query:    NewsQueryConfig{Keyword: "college athlete NIL lawsuit", Language: "en", Country: "us", PageSize: 25, WindowHours: 24},
				Cooldown: slowCooldown},
			{Name: "docket-tracker", Kind: "docket", URL: "https://sportslawtracker.example.org/college-cases", Cooldown: slowCooldown},
		},
	}
}
