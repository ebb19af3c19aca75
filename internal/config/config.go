// Package config loads application configuration from a YAML file with
// environment overrides for deployment settings.
package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// QdrantConfig holds connection details for the vector store.
type QdrantConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// OpenAIConfig selects the models used for embedding and generation.
// The API key always comes from OPENAI_API_KEY, never from the file.
type OpenAIConfig struct {
	GenerationModel    string `yaml:"generation_model"`
	EmbeddingBatchSize int    `yaml:"embedding_batch_size"`
}

// ServerConfig configures the MCP/HTTP server entry point.
type ServerConfig struct {
	Port     string `yaml:"port"`
	HTTPMode bool   `yaml:"http_mode"`
}

// Config is the root configuration.
type Config struct {
	Qdrant QdrantConfig `yaml:"qdrant"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Server ServerConfig `yaml:"server"`
}

// Load reads the config at path, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Qdrant: QdrantConfig{Host: "localhost", Port: 6334},
		OpenAI: OpenAIConfig{},
		Server: ServerConfig{Port: "8080"},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Qdrant.Port = port
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		cfg.Server.HTTPMode = v == "true"
	}
}
