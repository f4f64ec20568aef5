// Package config loads mcp-mem0 configuration from file, environment,
// and .env.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigDir is the directory name for mcp-mem0 data under the
	// user's home.
	DefaultConfigDir = ".mcp-mem0"
	// DefaultConfigFile is the default config filename
	DefaultConfigFile = "config.yaml"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server,omitempty"`

	// Mem0 service client configuration
	Mem0 Mem0Config `mapstructure:"mem0" yaml:"mem0,omitempty"`

	// Search defaults
	Search SearchConfig `mapstructure:"search" yaml:"search,omitempty"`

	// Log level: "debug", "info", "warn", "error"
	LogLevel string `mapstructure:"log_level" yaml:"log_level,omitempty"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	// Host is the server bind address for the HTTP transport
	Host string `mapstructure:"host" yaml:"host,omitempty"`
	// Port is the server port for the HTTP transport
	Port int `mapstructure:"port" yaml:"port,omitempty"`
	// Transport selects how the MCP server is exposed: "stdio" or "http"
	Transport string `mapstructure:"transport" yaml:"transport,omitempty"`
}

// Mem0Config holds memory service client settings
type Mem0Config struct {
	// BaseURL is the memory service API URL
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	// APIKey authenticates against the memory service
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// UserID is the fixed identity memories are stored under
	UserID string `mapstructure:"user_id" yaml:"user_id,omitempty"`
	// TimeoutSeconds is the per-request timeout
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds,omitempty"`
	// MaxRetries is the number of attempts per request
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries,omitempty"`
}

// SearchConfig holds search defaults applied when a caller omits them
type SearchConfig struct {
	// DefaultLimit is the result count when the caller doesn't specify one
	DefaultLimit int `mapstructure:"default_limit" yaml:"default_limit,omitempty"`
	// MinScore is the similarity threshold for search results
	MinScore float64 `mapstructure:"min_score" yaml:"min_score,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8050,
			Transport: "stdio",
		},
		Mem0: Mem0Config{
			BaseURL:        "https://api.mem0.ai",
			UserID:         "user",
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Search: SearchConfig{
			DefaultLimit: 3,
			MinScore:     0.5,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from file and environment. A .env file in the
// working directory is folded into the environment first, matching how the
// server is usually deployed.
func Load() (*Config, error) {
	return load("")
}

// LoadFile loads configuration from a specific file plus the environment.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Look for config in the working directory, then the home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if dir, err := ConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	// Environment variables
	v.SetEnvPrefix("MEM0")
	v.AutomaticEnv()

	// Bind environment variables; the bare names are the legacy surface
	_ = v.BindEnv("server.host", "MEM0_HOST", "HOST")
	_ = v.BindEnv("server.port", "MEM0_PORT", "PORT")
	_ = v.BindEnv("server.transport", "MEM0_TRANSPORT", "TRANSPORT")
	_ = v.BindEnv("mem0.base_url", "MEM0_BASE_URL")
	_ = v.BindEnv("mem0.api_key", "MEM0_API_KEY")
	_ = v.BindEnv("mem0.user_id", "MEM0_USER_ID")
	_ = v.BindEnv("search.default_limit", "MEM0_SEARCH_LIMIT")
	_ = v.BindEnv("search.min_score", "MEM0_MIN_SCORE")
	_ = v.BindEnv("log_level", "MEM0_LOG_LEVEL")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// ConfigDir returns the per-user config directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigFilePath returns the path of the config file Load would read, or
// empty when none exists.
func ConfigFilePath() string {
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	dir, err := ConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, DefaultConfigFile)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// WriteDefaultConfig writes the default config file into the per-user
// config directory. Existing files are left alone.
func WriteDefaultConfig() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	configPath := filepath.Join(dir, DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	}

	cfg := DefaultConfig()
	v := viper.New()
	v.Set("server.host", cfg.Server.Host)
	v.Set("server.port", cfg.Server.Port)
	v.Set("server.transport", cfg.Server.Transport)
	v.Set("mem0.base_url", cfg.Mem0.BaseURL)
	v.Set("mem0.user_id", cfg.Mem0.UserID)
	v.Set("mem0.timeout_seconds", cfg.Mem0.TimeoutSeconds)
	v.Set("mem0.max_retries", cfg.Mem0.MaxRetries)
	v.Set("search.default_limit", cfg.Search.DefaultLimit)
	v.Set("search.min_score", cfg.Search.MinScore)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(configPath); err != nil {
		return "", err
	}
	return configPath, nil
}
