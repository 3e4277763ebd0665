package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// DocsDir is the root directory of the Markdown corpus
	DocsDir string `mapstructure:"docs_dir"`

	// ProjectRoot anchors source_refs paths; defaults to the working directory
	ProjectRoot string `mapstructure:"project_root"`

	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Search configuration
	Search SearchConfig `mapstructure:"search"`

	// Index configuration
	Index IndexConfig `mapstructure:"index"`

	// Watcher configuration
	Watcher WatcherConfig `mapstructure:"watcher"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider       string `mapstructure:"provider"` // openai, local
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Dimensions     int    `mapstructure:"dimensions"`
	BatchSize      int    `mapstructure:"batch_size"`
	RequestTimeout int    `mapstructure:"request_timeout"` // in seconds
}

// SearchConfig holds search ranking configuration
type SearchConfig struct {
	// Alpha is the vector-similarity weight; graph and fulltext share 1-alpha
	Alpha        float64 `mapstructure:"alpha"`
	DefaultLimit int     `mapstructure:"default_limit"`
	MaxDepth     int     `mapstructure:"max_depth"`
}

// IndexConfig holds vector index configuration
type IndexConfig struct {
	// CompactThreshold is the tombstone ratio that triggers compaction
	CompactThreshold float64 `mapstructure:"compact_threshold"`
}

// WatcherConfig holds file watcher configuration
type WatcherConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("docs_dir", "./docs")
	viper.SetDefault("project_root", ".")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8765)
	viper.SetDefault("server.mode", "release")

	// Database defaults
	viper.SetDefault("database.path", "./.mdgraph/index.db")

	// Embedding defaults
	viper.SetDefault("embedding.provider", "local")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	viper.SetDefault("embedding.dimensions", 384)
	viper.SetDefault("embedding.batch_size", 32)
	viper.SetDefault("embedding.request_timeout", 30)

	// Search defaults
	viper.SetDefault("search.alpha", 0.7)
	viper.SetDefault("search.default_limit", 10)
	viper.SetDefault("search.max_depth", 2)

	// Index defaults
	viper.SetDefault("index.compact_threshold", 0.2)

	// Watcher defaults
	viper.SetDefault("watcher.debounce_ms", 300)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if provider := os.Getenv("MDGRAPH_EMBEDDING_PROVIDER"); provider != "" {
		config.Embedding.Provider = provider
	}
	if model := os.Getenv("MDGRAPH_EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}

	if docsDir := os.Getenv("MDGRAPH_DOCS_DIR"); docsDir != "" {
		config.DocsDir = docsDir
	}
	if dbPath := os.Getenv("MDGRAPH_DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}
