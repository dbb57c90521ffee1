// Package services implements the core use cases of the city weather service.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/dto"
	"github.com/sean-rowe/city-weather-service/internal/core/ports"
)

// DefaultCacheTTL is how long a weather report is served from cache.
const DefaultCacheTTL = 10 * time.Minute

type weatherService struct {
	client       ports.WeatherClient
	cities       ports.CityService
	cache        ports.CacheService
	observations ports.ObservationRepository
	metrics      ports.MetricsRecorder
	logger       *zap.Logger
	cacheTTL     time.Duration
	now          func() time.Time
}

// WeatherOption customizes the weather service.
type WeatherOption func(*weatherService)

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) WeatherOption {
	return func(s *weatherService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithMetrics records cache hits and misses.
func WithMetrics(metrics ports.MetricsRecorder) WeatherOption {
	return func(s *weatherService) {
		s.metrics = metrics
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) WeatherOption {
	return func(s *weatherService) {
		s.now = now
	}
}

// NewWeatherService creates the weather lookup service.
//
// Parameters:
//   - client: Weather provider client
//   - cities: City lookup used by GetWeatherByCity
//   - cache: Optional cache, nil disables caching
//   - observations: Optional repository for served lookups, nil disables recording
//   - logger: Zap logger
//
// Returns:
//   - ports.WeatherService: Weather service implementation
func NewWeatherService(
	client ports.WeatherClient,
	cities ports.CityService,
	cache ports.CacheService,
	observations ports.ObservationRepository,
	logger *zap.Logger,
	opts ...WeatherOption,
) ports.WeatherService {
	s := &weatherService{
		client:       client,
		cities:       cities,
		cache:        cache,
		observations: observations,
		logger:       logger,
		cacheTTL:     DefaultCacheTTL,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// GetWeather returns the current weather at the given coordinates.
func (s *weatherService) GetWeather(ctx context.Context, coords domain.Coordinates) (*domain.Weather, error) {
	return s.getWeather(ctx, coords, "")
}

// GetWeatherByCity resolves the city and returns its current weather.
// City lookup errors are returned unchanged.
func (s *weatherService) GetWeatherByCity(ctx context.Context, name string) (*dto.City, *domain.Weather, error) {
	city, err := s.cities.FindByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	weather, err := s.getWeather(ctx, city.Coordinates(), city.Name)
	if err != nil {
		return nil, nil, err
	}

	return city, weather, nil
}

func (s *weatherService) getWeather(ctx context.Context, coords domain.Coordinates, cityName string) (*domain.Weather, error) {
	start := s.now()

	if err := coords.Validate(); err != nil {
		s.logger.Error("invalid coordinates", zap.Error(err))

		return nil, &domain.Error{
			Code:    domain.CodeInvalidCoordinates,
			Message: "The provided coordinates are invalid",
			Cause:   err,
		}
	}

	key := cacheKey(coords)

	if cached, ok := s.fromCache(ctx, key); ok {
		s.record(ctx, cityName, cached, start, true)
		return cached, nil
	}

	data, err := s.client.GetForecast(ctx, coords)
	if err != nil {
		s.logger.Error("failed to get forecast",
			zap.Float64("latitude", coords.Latitude),
			zap.Float64("longitude", coords.Longitude),
			zap.Error(err))

		return nil, &domain.Error{
			Code:    domain.CodeForecastRetrieval,
			Message: "Failed to retrieve weather forecast",
			Cause:   err,
		}
	}

	temperature := domain.Temperature{
		Value: data.Temperature,
		Unit:  data.Unit,
	}

	weather := &domain.Weather{
		ID:          uuid.New(),
		Coordinates: coords,
		Temperature: temperature,
		Forecast:    data.Forecast,
		Humidity:    data.Humidity,
		WindSpeed:   data.WindSpeed,
		Category:    domain.Categorize(temperature),
		UTCOffset:   data.UTCOffset,
		Sunrise:     data.Sunrise,
		Sunset:      data.Sunset,
		FetchedAt:   s.now().UTC(),
	}

	s.toCache(ctx, key, weather)
	s.record(ctx, cityName, weather, start, false)

	s.logger.Info("weather retrieved successfully",
		zap.String("city", cityName),
		zap.Float64("latitude", coords.Latitude),
		zap.Float64("longitude", coords.Longitude),
		zap.String("category", string(weather.Category)))

	return weather, nil
}

func (s *weatherService) fromCache(ctx context.Context, key string) (*domain.Weather, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordCacheMiss(ctx, "weather")
		}

		return nil, false
	}

	var weather domain.Weather
	if err := json.Unmarshal(data, &weather); err != nil {
		s.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	if s.metrics != nil {
		s.metrics.RecordCacheHit(ctx, "weather")
	}

	return &weather, true
}

func (s *weatherService) toCache(ctx context.Context, key string, weather *domain.Weather) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(weather)
	if err != nil {
		s.logger.Warn("failed to encode weather for cache", zap.Error(err))
		return
	}

	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache weather", zap.String("key", key), zap.Error(err))
	}
}

func (s *weatherService) record(ctx context.Context, cityName string, weather *domain.Weather, start time.Time, cacheHit bool) {
	if s.observations == nil {
		return
	}

	obs := ports.Observation{
		RequestID:       uuid.NewString(),
		CityName:        cityName,
		Latitude:        weather.Coordinates.Latitude,
		Longitude:       weather.Coordinates.Longitude,
		Temperature:     weather.Temperature.Value,
		TemperatureUnit: string(weather.Temperature.Unit),
		Forecast:        weather.Forecast,
		Category:        string(weather.Category),
		ResponseTimeMs:  int(s.now().Sub(start).Milliseconds()),
		CacheHit:        cacheHit,
	}

	if err := s.observations.Save(ctx, obs); err != nil {
		s.logger.Warn("failed to record weather observation", zap.Error(err))
	}
}

func cacheKey(coords domain.Coordinates) string {
	return fmt.Sprintf("weather:%.4f:%.4f", coords.Latitude, coords.Longitude)
}
