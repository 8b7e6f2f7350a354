package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "course-graph/backend/pkg/errors"
)

// Storage backends accepted by COURSE_STORE / CONCEPT_STORE
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
)

// Policies for regenerating a topic that is already APPROVED
const (
	RegeneratePolicyDemote          = "demote"
	RegeneratePolicyRequireOverride = "require_override"
)

// Config holds all application configuration
type Config struct {
	// App
	Port        string
	Env         string
	LogLevel    string
	MetricsPort string

	// Storage
	CourseStore  string
	ConceptStore string
	SQLitePath   string
	PostgresDSN  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Redis snapshot cache (disabled when empty)
	RedisAddr string
	CacheTTL  time.Duration

	// Observability
	MetricsEnabled bool
	TracingEnabled bool

	// Approval workflow
	RegenerateApprovedPolicy string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		Env:                      getEnv("ENV", "development"),
		LogLevel:                 getEnv("LOG_LEVEL", ""),
		MetricsPort:              getEnv("METRICS_PORT", ""),
		CourseStore:              strings.ToLower(getEnv("COURSE_STORE", BackendMemory)),
		ConceptStore:             strings.ToLower(getEnv("CONCEPT_STORE", BackendMemory)),
		SQLitePath:               getEnv("SQLITE_PATH", "course-graph.db"),
		PostgresDSN:              getEnv("POSTGRES_DSN", ""),
		Neo4jURI:                 getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:                getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:            getEnv("NEO4J_PASSWORD", "password"),
		RedisAddr:                getEnv("REDIS_ADDR", ""),
		CacheTTL:                 time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		MetricsEnabled:           getEnvBool("METRICS_ENABLED", true),
		TracingEnabled:           getEnvBool("TRACING_ENABLED", false),
		RegenerateApprovedPolicy: strings.ToLower(getEnv("REGENERATE_APPROVED_POLICY", RegeneratePolicyDemote)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.CourseStore {
	case BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return apperrors.NewConfigValidationFailed("COURSE_STORE", fmt.Sprintf("unsupported backend %q", c.CourseStore))
	}
	switch c.ConceptStore {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendNeo4j:
	default:
		return apperrors.NewConfigValidationFailed("CONCEPT_STORE", fmt.Sprintf("unsupported backend %q", c.ConceptStore))
	}
	if c.uses(BackendPostgres) && c.PostgresDSN == "" {
		return apperrors.NewConfigMissingRequired("POSTGRES_DSN")
	}
	if c.uses(BackendSQLite) && c.SQLitePath == "" {
		return apperrors.NewConfigMissingRequired("SQLITE_PATH")
	}
	if c.ConceptStore == BackendNeo4j {
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
	}
	switch c.RegenerateApprovedPolicy {
	case RegeneratePolicyDemote, RegeneratePolicyRequireOverride:
	default:
		return apperrors.NewConfigValidationFailed("REGENERATE_APPROVED_POLICY",
			fmt.Sprintf("unsupported policy %q", c.RegenerateApprovedPolicy))
	}
	if c.Port == "" {
		return apperrors.NewConfigMissingRequired("PORT")
	}
	return nil
}

func (c *Config) uses(backend string) bool {
	return c.CourseStore == backend || c.ConceptStore == backend
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
