package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Cache struct {
		Memory struct {
			MaxSize int `yaml:"max_size"`
		} `yaml:"memory"`
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Market struct {
		ListTTL  time.Duration `yaml:"list_ttl"`
		SpotTTL  time.Duration `yaml:"spot_ttl"`
		IndexTTL time.Duration `yaml:"index_ttl"`
		BarTTL   time.Duration `yaml:"bar_ttl"`
	} `yaml:"market"`
	Limits struct {
		ViewCeiling       int           `yaml:"view_ceiling"`
		ViewHorizon       time.Duration `yaml:"view_horizon"`
		ViewDedupWindow   time.Duration `yaml:"view_dedup_window"`
		ViewLimitPrivate  bool          `yaml:"view_limit_private"`
		AnalysisLimit     int           `yaml:"analysis_limit"`
		AnalysisWindow    time.Duration `yaml:"analysis_window"`
	} `yaml:"limits"`
	Advisor struct {
		APIKey  string        `yaml:"api_key"`
		ModelID string        `yaml:"model_id"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"advisor"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("DEEPSEEK_API_KEY"); v != "" {
		c.Advisor.APIKey = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Enabled = true
		c.Cache.Redis.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Store.Path == "" {
		c.Store.Path = "stockpulse.db"
	}
	if c.Cache.Memory.MaxSize == 0 {
		c.Cache.Memory.MaxSize = 1000
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "stockpulse"
	}
	if c.Market.ListTTL == 0 {
		c.Market.ListTTL = time.Hour
	}
	if c.Market.SpotTTL == 0 {
		c.Market.SpotTTL = 30 * time.Second
	}
	if c.Market.IndexTTL == 0 {
		c.Market.IndexTTL = 30 * time.Second
	}
	if c.Market.BarTTL == 0 {
		c.Market.BarTTL = 5 * time.Minute
	}
	if c.Limits.ViewCeiling == 0 {
		c.Limits.ViewCeiling = 100
	}
	if c.Limits.ViewHorizon == 0 {
		c.Limits.ViewHorizon = time.Hour
	}
	if c.Limits.ViewDedupWindow == 0 {
		c.Limits.ViewDedupWindow = 10 * time.Second
	}
	if c.Limits.AnalysisLimit == 0 {
		c.Limits.AnalysisLimit = 20
	}
	if c.Limits.AnalysisWindow == 0 {
		c.Limits.AnalysisWindow = time.Hour
	}
	if c.Advisor.ModelID == "" {
		c.Advisor.ModelID = "deepseek-chat"
	}
	if c.Advisor.BaseURL == "" {
		c.Advisor.BaseURL = "https://api.deepseek.com"
	}
	if c.Advisor.Timeout == 0 {
		c.Advisor.Timeout = 30 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Limits.ViewCeiling < 0 || c.Limits.AnalysisLimit < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Host == "" {
		return fmt.Errorf("cache.redis.host is required when redis is enabled")
	}
	return nil
}
