package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dgnsrekt/ytchat-downloader/internal/notify"
)

type Config struct {
	YouTube YouTubeConfig `mapstructure:"youtube"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Output  OutputConfig  `mapstructure:"output"`
	Assets  AssetsConfig  `mapstructure:"assets"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
	Notify  notify.Config `mapstructure:"notify"`
}

type YouTubeConfig struct {
	BaseURL        string            `mapstructure:"base_url"`
	AcceptLanguage string            `mapstructure:"accept_language"`
	UserAgent      string            `mapstructure:"user_agent"`
	Headers        map[string]string `mapstructure:"headers"`
	TimeoutSec     int               `mapstructure:"timeout_sec"`
	RetryCount     int               `mapstructure:"retry_count"`
	RetryDelay     int               `mapstructure:"retry_delay_sec"`
	RatePerSecond  int               `mapstructure:"rate_per_second"`
	CookieFile     string            `mapstructure:"cookie_file"`
	SaveCookies    bool              `mapstructure:"save_cookies"`
	ForceCookies   bool              `mapstructure:"force_cookies"`
}

type ChatConfig struct {
	ReplayIntervalMs int `mapstructure:"replay_interval_ms"`
	BurstIntervalMs  int `mapstructure:"burst_interval_ms"`
	MaxBursts        int `mapstructure:"max_bursts"`
}

type OutputConfig struct {
	Pattern    string `mapstructure:"pattern"`
	WithAssets bool   `mapstructure:"with_assets"`
	Compress   bool   `mapstructure:"compress"`
}

type AssetsConfig struct {
	Workers         int `mapstructure:"workers"`
	RatePerSecond   int `mapstructure:"rate_per_second"`
	TimeoutSec      int `mapstructure:"timeout_sec"`
	DrainTimeoutSec int `mapstructure:"drain_timeout_sec"`
}

type RelayConfig struct {
	Listen string `mapstructure:"listen"`
}

type StoreConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("youtube.base_url", DefaultBaseURL)
	v.SetDefault("youtube.accept_language", DefaultAcceptLanguage)
	v.SetDefault("youtube.user_agent", DefaultUserAgent)
	v.SetDefault("youtube.timeout_sec", 30)
	v.SetDefault("youtube.retry_count", 2)
	v.SetDefault("youtube.retry_delay_sec", 1)
	v.SetDefault("youtube.rate_per_second", 5)
	v.SetDefault("youtube.save_cookies", false)
	v.SetDefault("youtube.force_cookies", false)
	v.SetDefault("chat.replay_interval_ms", 1000)
	v.SetDefault("chat.burst_interval_ms", 1000)
	v.SetDefault("chat.max_bursts", 2)
	v.SetDefault("output.pattern", DefaultPattern)
	v.SetDefault("output.with_assets", false)
	v.SetDefault("output.compress", false)
	v.SetDefault("assets.workers", 8)
	v.SetDefault("assets.rate_per_second", 20)
	v.SetDefault("assets.timeout_sec", 60)
	v.SetDefault("assets.drain_timeout_sec", 30)
	v.SetDefault("relay.listen", "")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", notify.DefaultServer)
	v.SetDefault("notify.priority", notify.DefaultPriority)
	v.SetDefault("notify.tags", notify.DefaultTags)

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Keys without a default are invisible to AutomaticEnv during Unmarshal
	_ = v.BindEnv("youtube.cookie_file")
	_ = v.BindEnv("notify.topic")
	_ = v.BindEnv("notify.token")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if !strings.HasPrefix(c.YouTube.BaseURL, "http://") && !strings.HasPrefix(c.YouTube.BaseURL, "https://") {
		errs.add("youtube.base_url", "must be an http(s) URL, got %q", c.YouTube.BaseURL)
	}
	if c.YouTube.TimeoutSec < 1 {
		errs.add("youtube.timeout_sec", "must be >= 1")
	}
	if c.YouTube.RetryCount < 0 {
		errs.add("youtube.retry_count", "must be >= 0")
	}
	if c.YouTube.RatePerSecond <= 0 {
		errs.add("youtube.rate_per_second", "must be > 0")
	}
	if c.YouTube.SaveCookies && c.YouTube.CookieFile == "" {
		errs.add("youtube.save_cookies", "requires youtube.cookie_file")
	}
	if c.Chat.ReplayIntervalMs < 0 {
		errs.add("chat.replay_interval_ms", "must be >= 0")
	}
	if c.Chat.BurstIntervalMs < 0 {
		errs.add("chat.burst_interval_ms", "must be >= 0")
	}
	if c.Chat.MaxBursts < 0 {
		errs.add("chat.max_bursts", "must be >= 0")
	}
	if c.Assets.Workers < 1 {
		errs.add("assets.workers", "must be >= 1")
	}
	if c.Assets.RatePerSecond <= 0 {
		errs.add("assets.rate_per_second", "must be > 0")
	}
	if !ValidLevels[strings.ToLower(c.Logging.Level)] {
		errs.add("logging.level", "unknown level %q", c.Logging.Level)
	}
	if err := c.Notify.Validate(); err != nil {
		errs.add("notify", "%v", err)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ReplayInterval is chat.replay_interval_ms as a duration.
func (c *Config) ReplayInterval() time.Duration {
	return time.Duration(c.Chat.ReplayIntervalMs) * time.Millisecond
}

// BurstInterval is chat.burst_interval_ms as a duration.
func (c *Config) BurstInterval() time.Duration {
	return time.Duration(c.Chat.BurstIntervalMs) * time.Millisecond
}
