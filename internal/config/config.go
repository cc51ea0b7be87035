package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBType            string // mysql, mariadb, postgres, sqlite, sqlite-purego, sqlserver, memory
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int
	DBLogLevel        string

	// Content schema
	SchemaPath        string
	MaxComponentDepth int
	PrivateAttributes []string

	// SerialWrites overrides the dialect default: auto, true or false
	SerialWrites string

	// Logging
	LogLevel    string
	Environment string
}

var supportedDBTypes = []string{
	"mysql", "mariadb", "postgres", "postgresql", "sqlite", "sqlite-purego", "sqlserver", "mssql", "memory",
}

// Load loads configuration from environment variables, after applying a .env
// file when one is present in the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "3000"),
		DBType:            strings.ToLower(getEnv("DB_TYPE", "sqlite")),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBDatabase:        getEnv("DB_DATABASE", ""),
		DBUser:            getEnv("DB_USER", ""),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBConnectionLimit: getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		DBLogLevel:        strings.ToLower(getEnv("DB_LOG_LEVEL", "warn")),
		SchemaPath:        getEnv("SCHEMA_PATH", ""),
		MaxComponentDepth: getEnvAsInt("MAX_COMPONENT_DEPTH", 32),
		PrivateAttributes: getEnvAsList("PRIVATE_ATTRIBUTES"),
		SerialWrites:      strings.ToLower(getEnv("SERIAL_WRITES", "auto")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Environment:       getEnv("APP_ENV", "development"),
	}

	// Validate required fields
	if cfg.DBDatabase == "" && cfg.DBType != "memory" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.SchemaPath == "" {
		return nil, fmt.Errorf("SCHEMA_PATH is required")
	}
	if !contains(supportedDBTypes, cfg.DBType) {
		return nil, fmt.Errorf("unsupported DB_TYPE: %s", cfg.DBType)
	}
	switch cfg.SerialWrites {
	case "auto", "true", "false":
	default:
		return nil, fmt.Errorf("SERIAL_WRITES must be auto, true or false, got %q", cfg.SerialWrites)
	}
	switch cfg.DBLogLevel {
	case "silent", "error", "warn", "info":
	default:
		return nil, fmt.Errorf("unsupported DB_LOG_LEVEL: %s", cfg.DBLogLevel)
	}
	if cfg.MaxComponentDepth < 1 {
		return nil, fmt.Errorf("MAX_COMPONENT_DEPTH must be positive")
	}

	return cfg, nil
}

// SerialWritesOverride returns the configured override, or nil to use the dialect default
func (c *Config) SerialWritesOverride() *bool {
	switch c.SerialWrites {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated environment variable
func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
