// Package config loads and validates the TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// GeneratorAPIKeyEnv names the environment variable holding the generator
// credential. Secrets stay out of the config file.
const GeneratorAPIKeyEnv = "OPSDECK_GENERATOR_API_KEY"

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
	Generator GeneratorConfig `toml:"generator"`
}

type ServerConfig struct {
	Bind        string `toml:"bind"`
	APIEndpoint string `toml:"api_endpoint"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// GeneratorConfig points at an OpenAI-compatible chat-completions endpoint.
// When disabled, overview highlights always use the deterministic fallback.
type GeneratorConfig struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

func Default(dbPath string) Config {
	return Config{
		Server: ServerConfig{
			Bind:        "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
		},
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Generator: GeneratorConfig{
			Enabled:   false,
			MaxTokens: 300,
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind is required")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	level := strings.TrimSpace(strings.ToLower(c.Logging.Level))
	if level != "" && !slices.Contains(validLogLevels, level) {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if c.Generator.Enabled {
		if strings.TrimSpace(c.Generator.BaseURL) == "" {
			return errors.New("generator.base_url is required when generator.enabled")
		}
		if strings.TrimSpace(c.Generator.Model) == "" {
			return errors.New("generator.model is required when generator.enabled")
		}
	}
	if c.Generator.MaxTokens < 0 {
		return errors.New("generator.max_tokens must be >= 0")
	}

	return nil
}

// GeneratorAPIKey reads the generator credential from the environment.
func GeneratorAPIKey() string {
	return strings.TrimSpace(os.Getenv(GeneratorAPIKeyEnv))
}
