package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Store is the backing relational store
	Store StoreConfig

	// Server configuration
	Server ServerConfig

	// Security configuration
	Security SecurityConfig

	// CORS configuration
	CORS CORSConfig

	// Logging configuration
	Logging LoggingConfig

	// Scrape configuration
	Scrape ScrapeConfig
}

// StoreConfig describes how to reach the store. Credentials, when set, belong to
// the privileged ingestion role and replace the user info in Endpoint for writes.
type StoreConfig struct {
	Endpoint    string
	Credentials Credentials
	Timeout     time.Duration
}

// Credentials is a database role.
type Credentials struct {
	User     string
	Password string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int
	Host string
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// ScrapeConfig holds schedule scraping settings
type ScrapeConfig struct {
	UserAgent   string
	Timeout     time.Duration
	SourcesPath string
}

const defaultUserAgent = "livehouse-scraper/1.0"

// Load reads configuration from environment variables, after loading any local
// .env files.
func Load() (*Config, error) {
	_ = godotenv.Load("config/local.env")
	_ = godotenv.Load()

	cfg := &Config{}

	if err := cfg.loadStore(); err != nil {
		return nil, fmt.Errorf("load store config: %w", err)
	}

	if err := cfg.loadServer(); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}

	if err := cfg.loadSecurity(); err != nil {
		return nil, fmt.Errorf("load security config: %w", err)
	}

	if err := cfg.loadScrape(); err != nil {
		return nil, fmt.Errorf("load scrape config: %w", err)
	}

	cfg.loadCORS()
	cfg.loadLogging()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadStore() error {
	c.Store.Endpoint = os.Getenv("DATABASE_URL")

	// If not present, construct from individual parameters
	if c.Store.Endpoint == "" {
		host := getEnvOrDefault("DB_HOST", "localhost")
		user := os.Getenv("DB_USER")
		password := os.Getenv("DB_PASSWORD")
		name := os.Getenv("DB_NAME")
		sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

		port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
		if err != nil {
			return fmt.Errorf("invalid DB_PORT: %w", err)
		}

		if user != "" && name != "" {
			u := url.URL{
				Scheme:   "postgresql",
				User:     url.UserPassword(user, password),
				Host:     fmt.Sprintf("%s:%d", host, port),
				Path:     "/" + name,
				RawQuery: "sslmode=" + sslMode,
			}
			c.Store.Endpoint = u.String()
		}
	}

	c.Store.Credentials.User = os.Getenv("INGEST_DB_USER")
	c.Store.Credentials.Password = os.Getenv("INGEST_DB_PASSWORD")

	timeout, err := time.ParseDuration(getEnvOrDefault("STORE_TIMEOUT", "60s"))
	if err != nil {
		return fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}
	c.Store.Timeout = timeout
	return nil
}

func (c *Config) loadServer() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	c.Server.Port = port
	c.Server.Host = getEnvOrDefault("HOST", "0.0.0.0")
	return nil
}

func (c *Config) loadSecurity() error {
	c.Security.JWTSecret = os.Getenv("JWT_SECRET")
	ttl, err := time.ParseDuration(getEnvOrDefault("INGEST_TOKEN_TTL", "24h"))
	if err != nil {
		return fmt.Errorf("invalid INGEST_TOKEN_TTL: %w", err)
	}
	c.Security.TokenTTL = ttl
	return nil
}

func (c *Config) loadScrape() error {
	c.Scrape.UserAgent = getEnvOrDefault("SCRAPE_USER_AGENT", defaultUserAgent)
	c.Scrape.SourcesPath = getEnvOrDefault("SCRAPE_SOURCES", "config/sources.yaml")
	timeout, err := time.ParseDuration(getEnvOrDefault("SCRAPE_TIMEOUT", "10s"))
	if err != nil {
		return fmt.Errorf("invalid SCRAPE_TIMEOUT: %w", err)
	}
	c.Scrape.Timeout = timeout
	return nil
}

func (c *Config) loadCORS() {
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv != "" {
		origins := strings.Split(originsEnv, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		c.CORS.AllowedOrigins = origins
	} else {
		// Default for the local front end
		c.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}
}

func (c *Config) loadLogging() {
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", "info")
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", "json")
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	var errors []string

	if c.Store.Endpoint == "" {
		errors = append(errors, "DATABASE_URL is required (or DB_HOST, DB_USER, DB_NAME)")
	} else if _, err := url.Parse(c.Store.Endpoint); err != nil {
		errors = append(errors, "DATABASE_URL must be a valid URL")
	}
	if (c.Store.Credentials.User == "") != (c.Store.Credentials.Password == "") {
		errors = append(errors, "INGEST_DB_USER and INGEST_DB_PASSWORD must be set together")
	}
	if c.Store.Timeout <= 0 {
		errors = append(errors, "STORE_TIMEOUT must be positive")
	}

	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "PORT must be between 1 and 65535")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errors = append(errors, "LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		errors = append(errors, "LOG_FORMAT must be one of: json, text")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// StoreDSN returns the connection string for the store. With privileged set and
// ingestion credentials configured, the endpoint's user info is replaced so that
// writes run under the ingestion role.
func (c *Config) StoreDSN(privileged bool) (string, error) {
	if !privileged || c.Store.Credentials.User == "" {
		return c.Store.Endpoint, nil
	}
	u, err := url.Parse(c.Store.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse store endpoint: %w", err)
	}
	u.User = url.UserPassword(c.Store.Credentials.User, c.Store.Credentials.Password)
	return u.String(), nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
