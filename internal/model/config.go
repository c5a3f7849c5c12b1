package model

import "time"

// Config is the complete cslbridge configuration
type Config struct {
	Engine      EngineConfig      `yaml:"engine" mapstructure:"engine"`
	Locale      LocaleConfig      `yaml:"locale" mapstructure:"locale"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// EngineConfig selects the citation-processing backend
type EngineConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // registered backend name, e.g. "basic"
	Format  string `yaml:"format" mapstructure:"format"`   // html, plain, rtf
}

// LocaleConfig controls locale retrieval
type LocaleConfig struct {
	Default       string        `yaml:"default" mapstructure:"default"`
	Dir           string        `yaml:"dir" mapstructure:"dir"`           // local directory with locales-xx-XX.xml files
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"` // remote locale repository
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RatePerSecond float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst         int           `yaml:"burst" mapstructure:"burst"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig controls the locale cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig controls batch rendering
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	JSON    bool `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Backend: "basic",
			Format:  "html",
		},
		Locale: LocaleConfig{
			Default:       "en-US",
			BaseURL:       "https://raw.githubusercontent.com/citation-style-language/locales/master",
			Timeout:       15 * time.Second,
			UserAgent:     "cslbridge/0.1 (+https://github.com/ppiankov/cslbridge)",
			MaxBodyBytes:  1 << 20,
			RatePerSecond: 2,
			Burst:         4,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".cslbridge-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
	}
}
