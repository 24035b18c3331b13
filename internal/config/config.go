package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server struct {
		Host string
		Port string
	}

	LogLevel string

	Storage struct {
		Backend     string
		BoltPath    string
		BoltTimeout time.Duration
	}

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	CORS struct {
		AllowOrigins []string
	}

	Auth struct {
		JWTSecret string
	}

	Scores struct {
		Min *float64
		Max *float64
	}

	Export struct {
		MinioEndpoint  string
		MinioAccessKey string
		MinioSecretKey string
		MinioBucket    string
		MinioUseSSL    bool
	}
}

// Load reads an optional .env file and then the environment. A missing .env
// file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{}

	config.Server.Host = getEnv("HOST", "127.0.0.1")
	config.Server.Port = getEnv("PORT", "3030")
	config.LogLevel = getEnv("LOG_LEVEL", "info")

	config.Storage.Backend = getEnv("STORAGE_BACKEND", "bolt")
	config.Storage.BoltPath = getEnv("BOLT_PATH", "polls.db")
	timeout, err := getEnvAsDuration("BOLT_TIMEOUT", time.Second)
	if err != nil {
		return nil, err
	}
	config.Storage.BoltTimeout = timeout

	config.DB.Host = getEnv("POSTGRES_HOST", "localhost")
	config.DB.Port = getEnv("POSTGRES_PORT", "5432")
	config.DB.User = getEnv("POSTGRES_USER", "poll")
	config.DB.Password = getEnv("POSTGRES_PASSWORD", "")
	config.DB.Name = getEnv("POSTGRES_DB", "poll")
	config.DB.SSLMode = getEnv("POSTGRES_SSLMODE", "disable")

	config.CORS.AllowOrigins = getEnvAsList("CORS_ALLOW_ORIGINS", []string{"*"})

	config.Auth.JWTSecret = getEnv("JWT_SECRET", "")

	if config.Scores.Min, err = getEnvAsFloat("POLL_SCORE_MIN"); err != nil {
		return nil, err
	}
	if config.Scores.Max, err = getEnvAsFloat("POLL_SCORE_MAX"); err != nil {
		return nil, err
	}
	if config.Scores.Min != nil && config.Scores.Max != nil && *config.Scores.Min > *config.Scores.Max {
		return nil, fmt.Errorf("POLL_SCORE_MIN (%g) is greater than POLL_SCORE_MAX (%g)", *config.Scores.Min, *config.Scores.Max)
	}

	config.Export.MinioEndpoint = getEnv("EXPORT_MINIO_ENDPOINT", "")
	config.Export.MinioAccessKey = getEnv("EXPORT_MINIO_ACCESS_KEY", "")
	config.Export.MinioSecretKey = getEnv("EXPORT_MINIO_SECRET_KEY", "")
	config.Export.MinioBucket = getEnv("EXPORT_MINIO_BUCKET", "poll-exports")
	config.Export.MinioUseSSL = getEnvAsBool("EXPORT_MINIO_USE_SSL", false)

	return config, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// GetDatabaseURL returns the database connection URL
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// getEnvAsFloat returns nil when the variable is unset.
func getEnvAsFloat(key string) (*float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &f, nil
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
