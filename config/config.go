package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Bot represents telegram bot parameters.
type Bot struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type Redis struct {
	URL string `yaml:"url"`
}

// Storage selects the key-value backend for alerts, saved jobs and settings.
type Storage struct {
	Backend    string `yaml:"backend"`
	Datasource string `yaml:"datasource"`
	Redis      Redis  `yaml:"redis"`
}

type Search struct {
	BaseURL            string        `yaml:"base_url"`
	ForegroundTimeout  time.Duration `yaml:"foreground_timeout"`
	BackgroundGrace    time.Duration `yaml:"background_grace"`
	HeadlessForeground bool          `yaml:"headless_foreground"`
	// KeptForeground caps visible result pages left open. Headless ones are always closed.
	KeptForeground int `yaml:"kept_foreground"`
}

type Notifier struct {
	MaxPerBatch int           `yaml:"max_per_batch"`
	Stagger     time.Duration `yaml:"stagger"`
}

// Defaults are the settings used until the user changes them.
type Defaults struct {
	CheckIntervalMinutes int   `yaml:"check_interval_minutes"`
	Notifications        *bool `yaml:"notifications"`
}

// API configures the panel HTTP server. An empty Listen disables it.
type API struct {
	Listen string `yaml:"listen"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents parent config group.
type Config struct {
	Bot      Bot      `yaml:"bot"`
	Storage  Storage  `yaml:"storage"`
	Search   Search   `yaml:"search"`
	Notifier Notifier `yaml:"notifier"`
	Defaults Defaults `yaml:"defaults"`
	API      API      `yaml:"api"`
	Log      Log      `yaml:"log"`
}

// GetConfig returns config.
func GetConfig(cfgPath string) (*Config, error) {
	filename, err := filepath.Abs(cfgPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", filename)
	}
	return Parse(yamlFile)
}

// Parse decodes raw yaml, applies env overrides and fills defaults.
func Parse(raw []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if config.Bot.Token == "" {
		config.Bot.Token = os.Getenv("BOT_TOKEN")
	}
	if config.Storage.Redis.URL == "" {
		config.Storage.Redis.URL = os.Getenv("REDIS_URL")
	}
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQLite
	}
	if c.Storage.Datasource == "" {
		c.Storage.Datasource = "./jobalert.db"
	}
	if c.Search.ForegroundTimeout <= 0 {
		c.Search.ForegroundTimeout = 30 * time.Second
	}
	if c.Search.BackgroundGrace <= 0 {
		c.Search.BackgroundGrace = 15 * time.Second
	}
	if c.Search.KeptForeground <= 0 {
		c.Search.KeptForeground = 3
	}
	if c.Notifier.MaxPerBatch <= 0 {
		c.Notifier.MaxPerBatch = 5
	}
	if c.Notifier.Stagger <= 0 {
		c.Notifier.Stagger = time.Second
	}
	if c.Defaults.CheckIntervalMinutes <= 0 {
		c.Defaults.CheckIntervalMinutes = 60
	}
	if c.Defaults.Notifications == nil {
		enabled := true
		c.Defaults.Notifications = &enabled
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.Storage.Redis.URL == "" {
			return errors.New("storage.redis.url is required for the redis backend")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Bot.Token == "" {
		return errors.New("bot token is required, set bot.token or BOT_TOKEN")
	}
	return nil
}
