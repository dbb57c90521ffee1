// Package config provides centralized configuration management for the city weather service.
// It loads configuration from environment variables, optionally seeded from a .env file,
// with sensible defaults for local development.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sean-rowe/city-weather-service/internal/resilience"
	"github.com/sean-rowe/city-weather-service/internal/secrets"
)

// Weather providers accepted by WEATHER_PROVIDER.
const (
	ProviderOpenWeather = "openweather"
	ProviderNWS         = "nws"
)

// Secret names looked up by ResolveSecrets.
const (
	SecretOpenWeatherAPIKey = "openweather-api-key"
	SecretDatabasePassword  = "db-password"
	SecretRedisPassword     = "redis-password"
)

// Config holds all configuration settings for the service.
type Config struct {
	Server        ServerConfig
	Redis         RedisConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Weather       WeatherConfig
	Cache         CacheConfig
	RateLimit     RateLimitConfig
	KeyVault      KeyVaultConfig
}

// ServerConfig contains HTTP server settings and timeouts.
type ServerConfig struct {
	Port            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig contains settings for the Redis cache and rate limiter.
type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	Enabled               bool
	AutoMigrate           bool
	Host                  string
	Port                  int
	User                  string
	Password              string
	Database              string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// ObservabilityConfig contains settings for tracing and metrics.
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64
}

// WeatherConfig selects and configures the weather provider.
type WeatherConfig struct {
	Provider    string
	OpenWeather OpenWeatherConfig
	NWSBaseURL  string
}

// OpenWeatherConfig configures the OpenWeather client and its retry policy.
type OpenWeatherConfig struct {
	BaseURL string
	APIKey  string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	RetryCount            int
	MedianFirstRetryDelay time.Duration
	MaxRetryDelay         time.Duration

	// RateLimitRPS caps outbound requests per second. Zero disables it.
	RateLimitRPS float64
}

// CacheConfig controls weather caching.
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig contains inbound rate limiting settings.
type RateLimitConfig struct {
	RPS    int
	Window time.Duration
}

// KeyVaultConfig locates the Azure Key Vault. An empty URL disables it.
type KeyVaultConfig struct {
	URL          string
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Load reads configuration from the environment. Variables from envFiles
// are loaded first without overriding the real environment; with no
// arguments an optional .env in the working directory is used.
//
// Returns:
//   - *Config: Configuration with values from environment or defaults
//   - error: A named env file could not be read
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	environment := getEnv("ENVIRONMENT", "development")

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     environment,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", true),
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:               getEnvAsBool("DATABASE_ENABLED", false),
			AutoMigrate:           getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
			Host:                  getEnv("DB_HOST", "localhost"),
			Port:                  getEnvAsInt("DB_PORT", 5432),
			User:                  getEnv("DB_USER", "weather"),
			Password:              getEnv("DB_PASSWORD", ""),
			Database:              getEnv("DB_NAME", "city_weather"),
			SSLMode:               getEnv("DB_SSLMODE", "disable"),
			MaxConnections:        getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConnections:    getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnectionMaxLifetime: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			ServiceName:    "city-weather-service",
			ServiceVersion: getEnv("VERSION", "1.0.0"),
			Environment:    environment,
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SampleRate:     getEnvAsFloat("OTEL_SAMPLE_RATE", 0.1),
		},
		Weather: WeatherConfig{
			Provider: strings.ToLower(getEnv("WEATHER_PROVIDER", ProviderOpenWeather)),
			OpenWeather: OpenWeatherConfig{
				BaseURL:               getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
				APIKey:                getEnv("OPENWEATHER_API_KEY", ""),
				Timeout:               getEnvAsSeconds("OPENWEATHER_TIMEOUT", 10*time.Second),
				RetryCount:            getEnvAsInt("OPENWEATHER_RETRY_COUNT", 3),
				MedianFirstRetryDelay: getEnvAsSeconds("OPENWEATHER_MEDIAN_FIRST_RETRY_DELAY", time.Second),
				MaxRetryDelay:         getEnvAsSeconds("OPENWEATHER_MAX_RETRY_DELAY", resilience.DefaultMaxDelay),
				RateLimitRPS:          getEnvAsFloat("OPENWEATHER_RATE_LIMIT_RPS", 10),
			},
			NWSBaseURL: getEnv("NWS_BASE_URL", "https://api.weather.gov"),
		},
		Cache: CacheConfig{
			TTL: getEnvAsSeconds("CACHE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RPS:    getEnvAsInt("RATE_LIMIT_RPS", 100),
			Window: getEnvAsSeconds("RATE_LIMIT_WINDOW", time.Minute),
		},
		KeyVault: KeyVaultConfig{
			URL:          getEnv("KEYVAULT_URL", ""),
			TenantID:     getEnv("KEYVAULT_TENANT_ID", ""),
			ClientID:     getEnv("KEYVAULT_CLIENT_ID", ""),
			ClientSecret: getEnv("KEYVAULT_CLIENT_SECRET", ""),
		},
	}, nil
}

// RetryPolicy returns the outbound retry policy for the weather provider.
func (c *Config) RetryPolicy() resilience.Policy {
	policy := resilience.NewPolicy(c.Weather.OpenWeather.RetryCount, c.Weather.OpenWeather.MedianFirstRetryDelay)
	policy.MaxDelay = c.Weather.OpenWeather.MaxRetryDelay

	return policy
}

// SecretsConfig returns the Key Vault settings in the form the secrets
// package expects.
func (c *Config) SecretsConfig() secrets.KeyVaultConfig {
	return secrets.KeyVaultConfig(c.KeyVault)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Weather.Provider {
	case ProviderOpenWeather:
		if c.Weather.OpenWeather.APIKey == "" {
			errs = append(errs, errors.New("OPENWEATHER_API_KEY is required for the openweather provider"))
		}
	case ProviderNWS:
	default:
		errs = append(errs, fmt.Errorf("unknown WEATHER_PROVIDER %q", c.Weather.Provider))
	}

	if c.Weather.OpenWeather.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("OPENWEATHER_TIMEOUT must be > 0, got %s", c.Weather.OpenWeather.Timeout))
	}

	if c.Weather.OpenWeather.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("OPENWEATHER_RATE_LIMIT_RPS must be >= 0, got %g", c.Weather.OpenWeather.RateLimitRPS))
	}

	if err := c.RetryPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry policy: %w", err))
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be > 0, got %s", c.Cache.TTL))
	}

	if c.RateLimit.RPS <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be > 0, got %d", c.RateLimit.RPS))
	}

	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be > 0, got %s", c.RateLimit.Window))
	}

	return errors.Join(errs...)
}

// ResolveSecrets replaces credentials with values from the provider. A
// secret the provider does not have leaves the current value alone.
func (c *Config) ResolveSecrets(ctx context.Context, provider secrets.Provider) error {
	targets := []struct {
		name  string
		field *string
	}{
		{SecretOpenWeatherAPIKey, &c.Weather.OpenWeather.APIKey},
		{SecretDatabasePassword, &c.Database.Password},
		{SecretRedisPassword, &c.Redis.Password},
	}

	for _, target := range targets {
		value, err := provider.GetSecret(ctx, target.name)
		if errors.Is(err, secrets.ErrSecretNotFound) {
			continue
		}

		if err != nil {
			return fmt.Errorf("resolve secret %s: %w", target.name, err)
		}

		*target.field = value
	}

	return nil
}

// getEnv retrieves an environment variable value with a fallback default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a fallback default.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}

	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float with a fallback default.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(floatValue) {
			return floatValue
		}
	}

	return defaultValue
}

// getEnvAsSeconds reads a duration given either in seconds ("1.5") or in
// time.ParseDuration form ("1500ms").
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if seconds, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(seconds) && !math.IsInf(seconds, 0) {
		return time.Duration(seconds * float64(time.Second))
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean with a fallback default.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}

	return defaultValue
}
