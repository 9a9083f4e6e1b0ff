package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort string
	ServerHost string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// JWT configuration
	JWTSecret string

	// Generation backend (chat completions API)
	LLMAPIKey string
	LLMAPIURL string

	// Image provider (image generations API)
	ImageAPIKey string
	ImageAPIURL string

	// Object storage
	S3Bucket  string
	AWSRegion string
}

// LoadConfig creates a new Config instance. Values come from environment
// variables first; sensitive values fall back to Docker-secret files in
// SECRETS_DIR (default /run/secrets).
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerPort: getValue("SERVER_PORT", "server_port"),
		ServerHost: getValue("SERVER_HOST", "server_host"),

		DBHost:     getValue("DB_HOST", "db_host"),
		DBPort:     getValue("DB_PORT", "db_port"),
		DBUser:     getValue("DB_USER", "db_user"),
		DBPassword: getValue("DB_PASSWORD", "db_password"),
		DBName:     getValue("DB_NAME", "db_name"),
		DBSSLMode:  getValue("DB_SSL_MODE", "db_ssl_mode"),

		RedisHost:     getValue("REDIS_HOST", "redis_host"),
		RedisPort:     getValue("REDIS_PORT", "redis_port"),
		RedisPassword: getValue("REDIS_PASSWORD", "redis_password"),
		RedisURL:      getValue("REDIS_URL", "redis_url"),

		JWTSecret: getValue("JWT_SECRET", "jwt_secret"),

		LLMAPIKey: getValue("LLM_API_KEY", "llm_api_key"),
		LLMAPIURL: os.Getenv("LLM_API_URL"),

		ImageAPIKey: getValue("IMAGE_API_KEY", "image_api_key"),
		ImageAPIURL: os.Getenv("IMAGE_API_URL"),

		S3Bucket:  os.Getenv("S3_BUCKET_NAME"),
		AWSRegion: os.Getenv("AWS_REGION"),
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.ServerHost == "" {
		cfg.ServerHost = "0.0.0.0"
	}
	if cfg.DBPort == "" {
		cfg.DBPort = "5432"
	}
	if cfg.DBSSLMode == "" {
		cfg.DBSSLMode = "disable"
	}
	if cfg.RedisHost == "" {
		cfg.RedisHost = "localhost"
	}
	if cfg.RedisPort == "" {
		cfg.RedisPort = "6379"
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.RedisDB = db
		}
	}
	if cfg.LLMAPIURL == "" {
		cfg.LLMAPIURL = "https://api.deepseek.com/v1/chat/completions"
	}
	if cfg.ImageAPIURL == "" {
		cfg.ImageAPIURL = "https://api.openai.com/v1/images/generations"
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// getValue reads an environment variable, falling back to the Docker secret
// of the same meaning when the variable is unset.
func getValue(envKey, secretName string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return readSecret(secretName)
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/run/secrets"
	}
	secretPath := filepath.Join(secretsDir, name)
	if data, err := os.ReadFile(secretPath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
