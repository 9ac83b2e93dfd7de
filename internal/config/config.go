// ABOUTME: Centralized configuration for the movie recommendation service
// ABOUTME: Layers defaults, an optional TOML file, and environment variables, then validates
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/validation"
	"github.com/adrg/xdg"
)

// Store backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendCharm    = "charm"
)

// Config holds all configuration for the service
type Config struct {
	// OpenAI settings
	OpenAIKey      string
	OpenAIBaseURL  string
	ChatModel      string        `validate:"required"`
	EmbeddingModel string        `validate:"required"`
	Timeout        time.Duration `validate:"gt=0"`
	MaxRetries     int           `validate:"gte=0,lte=10"`
	RetryDelay     time.Duration `validate:"gte=0"`

	// Retrieval settings
	TopK          int           `validate:"gte=1,lte=50"`
	BatchSize     int           `validate:"gte=1,lte=2048"`
	BatchDelay    time.Duration `validate:"gte=0"`
	HistoryWindow int           `validate:"gte=0,lte=100"`

	// Storage settings
	StoreBackend string `validate:"oneof=sqlite postgres charm"`
	DataDir      string `validate:"required"`
	Collection   string `validate:"required"`
	PostgresDSN  string
	CharmHost    string
	CharmDBName  string

	// Embedding cache
	RedisAddr string
	RedisTTL  time.Duration `validate:"gte=0"`

	// Serving
	HTTPAddr   string        `validate:"required"`
	SessionTTL time.Duration `validate:"gt=0"`

	// Logging
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=console json"`

	// ConfigFile is the TOML file that was applied, if any
	ConfigFile string
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		ChatModel:      "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		TopK:           5,
		BatchSize:      100,
		BatchDelay:     500 * time.Millisecond,
		HistoryWindow:  6,
		StoreBackend:   BackendSQLite,
		DataDir:        DefaultDataDir(),
		Collection:     "netflix_movies",
		CharmHost:      "cloud.charm.sh",
		CharmDBName:    "ragui",
		RedisTTL:       24 * time.Hour,
		HTTPAddr:       ":8080",
		SessionTTL:     30 * time.Minute,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// DefaultDataDir returns the XDG data directory for ragui
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, "ragui")
}

// Load reads configuration from an optional TOML file and environment variables.
// The file is taken from path, then $RAGUI_CONFIG, then ./ragui.toml if present.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("RAGUI_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("ragui.toml"); err == nil {
			path = "ragui.toml"
		}
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.OpenAIKey = getEnv("OPENAI_API_KEY", c.OpenAIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.ChatModel = getEnv("RAGUI_CHAT_MODEL", c.ChatModel)
	c.EmbeddingModel = getEnv("RAGUI_EMBEDDING_MODEL", c.EmbeddingModel)
	c.Timeout = getEnvDuration("OPENAI_TIMEOUT", c.Timeout)
	c.MaxRetries = getEnvInt("OPENAI_MAX_RETRIES", c.MaxRetries)
	c.RetryDelay = getEnvDuration("OPENAI_RETRY_DELAY", c.RetryDelay)
	c.TopK = getEnvInt("RAGUI_TOP_K", c.TopK)
	c.BatchSize = getEnvInt("RAGUI_BATCH_SIZE", c.BatchSize)
	c.BatchDelay = getEnvDuration("RAGUI_BATCH_DELAY", c.BatchDelay)
	c.HistoryWindow = getEnvInt("RAGUI_HISTORY_WINDOW", c.HistoryWindow)
	c.StoreBackend = getEnv("RAGUI_STORE", c.StoreBackend)
	c.DataDir = getEnv("RAGUI_DATA_DIR", c.DataDir)
	c.Collection = getEnv("RAGUI_COLLECTION", c.Collection)
	c.PostgresDSN = getEnv("RAGUI_POSTGRES_DSN", c.PostgresDSN)
	c.CharmHost = getEnv("CHARM_HOST", c.CharmHost)
	c.CharmDBName = getEnv("CHARM_DB", c.CharmDBName)
	c.RedisAddr = getEnv("RAGUI_REDIS_ADDR", c.RedisAddr)
	c.RedisTTL = getEnvDuration("RAGUI_REDIS_TTL", c.RedisTTL)
	c.HTTPAddr = getEnv("RAGUI_HTTP_ADDR", c.HTTPAddr)
	c.SessionTTL = getEnvDuration("RAGUI_SESSION_TTL", c.SessionTTL)
	c.LogLevel = getEnv("RAGUI_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("RAGUI_LOG_FORMAT", c.LogFormat)
}

// Validate range-checks every option and rejects unrecognized values
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.StoreBackend == BackendPostgres && c.PostgresDSN == "" {
		return fmt.Errorf("RAGUI_POSTGRES_DSN is required when RAGUI_STORE=postgres")
	}
	return nil
}

// RequireAPIKey fails when no OpenAI credential is configured
func (c *Config) RequireAPIKey() error {
	if c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return nil
}

// CollectionDir is the directory holding the file-backed collection
func (c *Config) CollectionDir() string {
	return filepath.Join(c.DataDir, c.Collection)
}

// IngestDir is the default work directory for ingestion artifacts
func (c *Config) IngestDir() string {
	return filepath.Join(c.DataDir, "ingest")
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
