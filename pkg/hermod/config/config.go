// Package config defines and loads the daemon configuration from YAML,
// with environment variable expansion and .env support.
package config

import (
	"github.com/jholhewres/hermod/pkg/hermod/auth"
)

// Config holds all daemon configuration.
type Config struct {
	// Server configures the HTTP/WebSocket listener.
	Server ServerConfig `yaml:"server"`

	// Auth configures password login and token signing.
	Auth auth.Config `yaml:"auth"`

	// Engine configures the reasoning engine provider.
	Engine EngineConfig `yaml:"engine"`

	// Store configures the SQLite transcript store.
	Store StoreConfig `yaml:"store"`

	// Scheduler configures the cron job runner.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the listener.
type ServerConfig struct {
	// Address is the listen address (default ":8721").
	Address string `yaml:"address"`

	// AllowedOrigins restricts CORS and WebSocket origins.
	// Empty means allow all.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// EngineConfig configures the reasoning engine provider.
type EngineConfig struct {
	// BaseURL is the OpenAI-compatible endpoint (default api.openai.com/v1).
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `yaml:"model"`

	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature"`
}

// StoreConfig configures the transcript store.
type StoreConfig struct {
	// Path is the SQLite database file (default "./data/hermod.db").
	Path string `yaml:"path"`

	// TitleMaxLen is the auto-title truncation boundary in runes.
	TitleMaxLen int `yaml:"title_max_len"`
}

// SchedulerConfig configures the cron job runner.
type SchedulerConfig struct {
	// Enabled turns the scheduler on/off.
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "json" (default) or "text".
	Format string `yaml:"format"`

	// StoreLevel is the minimum level persisted to the logs table
	// (default "warn"). "off" disables persistence.
	StoreLevel string `yaml:"store_level"`
}

// Default returns the configuration defaults overlaid by the YAML file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8721",
		},
		Engine: EngineConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		Store: StoreConfig{
			Path:        "./data/hermod.db",
			TitleMaxLen: 60,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			StoreLevel: "warn",
		},
	}
}
