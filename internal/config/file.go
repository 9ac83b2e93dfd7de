// ABOUTME: TOML config file layer applied between defaults and environment
// ABOUTME: Only keys present in the file override the defaults
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors the TOML layout; pointers distinguish absent keys from zero values
type fileConfig struct {
	OpenAI struct {
		BaseURL        *string `toml:"base_url"`
		ChatModel      *string `toml:"chat_model"`
		EmbeddingModel *string `toml:"embedding_model"`
		Timeout        *string `toml:"timeout"`
		MaxRetries     *int    `toml:"max_retries"`
		RetryDelay     *string `toml:"retry_delay"`
	} `toml:"openai"`

	Retrieval struct {
		TopK          *int    `toml:"top_k"`
		BatchSize     *int    `toml:"batch_size"`
		BatchDelay    *string `toml:"batch_delay"`
		HistoryWindow *int    `toml:"history_window"`
	} `toml:"retrieval"`

	Store struct {
		Backend     *string `toml:"backend"`
		DataDir     *string `toml:"data_dir"`
		Collection  *string `toml:"collection"`
		PostgresDSN *string `toml:"postgres_dsn"`
		CharmHost   *string `toml:"charm_host"`
		CharmDB     *string `toml:"charm_db"`
	} `toml:"store"`

	Redis struct {
		Addr *string `toml:"addr"`
		TTL  *string `toml:"ttl"`
	} `toml:"redis"`

	Server struct {
		HTTPAddr   *string `toml:"http_addr"`
		SessionTTL *string `toml:"session_ttl"`
	} `toml:"server"`

	Log struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"log"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.OpenAIBaseURL, fc.OpenAI.BaseURL)
	setString(&cfg.ChatModel, fc.OpenAI.ChatModel)
	setString(&cfg.EmbeddingModel, fc.OpenAI.EmbeddingModel)
	setInt(&cfg.MaxRetries, fc.OpenAI.MaxRetries)
	setInt(&cfg.TopK, fc.Retrieval.TopK)
	setInt(&cfg.BatchSize, fc.Retrieval.BatchSize)
	setInt(&cfg.HistoryWindow, fc.Retrieval.HistoryWindow)
	setString(&cfg.StoreBackend, fc.Store.Backend)
	setString(&cfg.DataDir, fc.Store.DataDir)
	setString(&cfg.Collection, fc.Store.Collection)
	setString(&cfg.PostgresDSN, fc.Store.PostgresDSN)
	setString(&cfg.CharmHost, fc.Store.CharmHost)
	setString(&cfg.CharmDBName, fc.Store.CharmDB)
	setString(&cfg.RedisAddr, fc.Redis.Addr)
	setString(&cfg.HTTPAddr, fc.Server.HTTPAddr)
	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)

	durations := []struct {
		key string
		dst *time.Duration
		src *string
	}{
		{"openai.timeout", &cfg.Timeout, fc.OpenAI.Timeout},
		{"openai.retry_delay", &cfg.RetryDelay, fc.OpenAI.RetryDelay},
		{"retrieval.batch_delay", &cfg.BatchDelay, fc.Retrieval.BatchDelay},
		{"redis.ttl", &cfg.RedisTTL, fc.Redis.TTL},
		{"server.session_ttl", &cfg.SessionTTL, fc.Server.SessionTTL},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
