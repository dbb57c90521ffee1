// Package ports declares the contracts between the core services and the
// adapters that implement them.
package ports

import (
	"context"
	"time"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/dto"
)

// CityService resolves city names.
type CityService interface {
	FindByName(ctx context.Context, name string) (*dto.City, error)
}

// WeatherService serves weather lookups by coordinates or city.
type WeatherService interface {
	GetWeather(ctx context.Context, coords domain.Coordinates) (*domain.Weather, error)
	GetWeatherByCity(ctx context.Context, name string) (*dto.City, *domain.Weather, error)
}

// WeatherClient fetches current conditions from an external provider.
type WeatherClient interface {
	GetForecast(ctx context.Context, coords domain.Coordinates) (*WeatherData, error)
}

// WeatherData is the provider-neutral result of a forecast call.
type WeatherData struct {
	Temperature float64
	Unit        domain.TemperatureUnit
	Forecast    string
	Humidity    int
	WindSpeed   float64

	// UTCOffset is nil when the provider does not report it
	UTCOffset *time.Duration

	Sunrise time.Time
	Sunset  time.Time
}

// CityRepository looks up cities. Implementations return
// domain.ErrCityNotFound when nothing matches.
type CityRepository interface {
	FindByName(ctx context.Context, name string) (*domain.City, error)
}

// Observation is a served weather lookup.
type Observation struct {
	RequestID       string
	CityName        string
	Latitude        float64
	Longitude       float64
	Temperature     float64
	TemperatureUnit string
	Forecast        string
	Category        string
	ResponseTimeMs  int
	CacheHit        bool
}

// ObservationRepository persists served lookups and reports on them.
type ObservationRepository interface {
	Save(ctx context.Context, obs Observation) error
	Stats(ctx context.Context, since time.Time) (map[string]interface{}, error)
}

// CacheService stores serialized values with a TTL.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// RateLimitService implements a sliding-window limit per identifier.
type RateLimitService interface {
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, identifier string) error
}

// MetricsRecorder receives cache hit/miss events.
type MetricsRecorder interface {
	RecordCacheHit(ctx context.Context, key string)
	RecordCacheMiss(ctx context.Context, key string)
}
