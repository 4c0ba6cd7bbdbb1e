package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"paper-generator/internal/models"
)

// OllamaConfig controls how generate requests reach the Ollama server
type OllamaConfig struct {
	Host              string
	Model             string
	TimeoutSeconds    int
	MaxRetries        int
	RequestsPerSecond float64
}

// ServerConfig holds the HTTP server settings used by the serve command
type ServerConfig struct {
	Port string
}

// Config is the application configuration, read from the environment by Load
type Config struct {
	LogLevel  string
	Variant   string
	Title     string
	OutputDir string
	Ollama    OllamaConfig
	Server    ServerConfig
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Variant:   getEnv("PAPERGEN_VARIANT", "improved"),
		Title:     getEnv("PAPERGEN_TITLE", models.DefaultTitle),
		OutputDir: getEnv("PAPERGEN_OUTPUT_DIR", "."),
		Ollama: OllamaConfig{
			// empty host defers to the ollama client's own OLLAMA_HOST handling
			Host:              getEnv("OLLAMA_HOST", ""),
			Model:             getEnv("PAPERGEN_MODEL", "phi3:mini"),
			TimeoutSeconds:    getEnvInt("PAPERGEN_TIMEOUT_SECONDS", 45),
			MaxRetries:        getEnvInt("PAPERGEN_MAX_RETRIES", 2),
			RequestsPerSecond: getEnvFloat("PAPERGEN_REQUESTS_PER_SECOND", 0),
		},
		Server: ServerConfig{
			Port: getEnv("PAPERGEN_SERVER_PORT", "8080"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown variants and out of range Ollama settings
func (c *Config) Validate() error {
	if _, ok := models.VariantByName(c.Variant); !ok {
		return fmt.Errorf("unknown variant %q (expected simple or improved)", c.Variant)
	}
	if c.Ollama.TimeoutSeconds <= 0 {
		return fmt.Errorf("PAPERGEN_TIMEOUT_SECONDS must be positive, got %d", c.Ollama.TimeoutSeconds)
	}
	if c.Ollama.MaxRetries < 0 {
		return fmt.Errorf("PAPERGEN_MAX_RETRIES must not be negative, got %d", c.Ollama.MaxRetries)
	}
	if c.Ollama.RequestsPerSecond < 0 {
		return fmt.Errorf("PAPERGEN_REQUESTS_PER_SECOND must not be negative, got %v", c.Ollama.RequestsPerSecond)
	}
	return nil
}

// VariantPreset returns the variant selected by name; Validate guarantees it exists
func (c *Config) VariantPreset() models.Variant {
	v, _ := models.VariantByName(c.Variant)
	return v
}

// Timeout returns the per-call generation timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Ollama.TimeoutSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
