package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/dto"
	"github.com/sean-rowe/city-weather-service/internal/core/ports"
)

// MockWeatherClient is a mock implementation of the WeatherClient interface.
type MockWeatherClient struct {
	mock.Mock
}

func (m *MockWeatherClient) GetForecast(ctx context.Context, coords domain.Coordinates) (*ports.WeatherData, error) {
	args := m.Called(ctx, coords)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*ports.WeatherData), args.Error(1)
}

// MockCacheService is a mock implementation of the CacheService interface.
type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCityRepository is a mock implementation of the CityRepository interface.
type MockCityRepository struct {
	mock.Mock
}

func (m *MockCityRepository) FindByName(ctx context.Context, name string) (*domain.City, error) {
	args := m.Called(ctx, name)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.City), args.Error(1)
}

// MockCityService is a mock implementation of the CityService interface.
type MockCityService struct {
	mock.Mock
}

func (m *MockCityService) FindByName(ctx context.Context, name string) (*dto.City, error) {
	args := m.Called(ctx, name)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dto.City), args.Error(1)
}

// MockObservationRepository is a mock implementation of the ObservationRepository interface.
type MockObservationRepository struct {
	mock.Mock
}

func (m *MockObservationRepository) Save(ctx context.Context, obs ports.Observation) error {
	args := m.Called(ctx, obs)
	return args.Error(0)
}

func (m *MockObservationRepository) Stats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	args := m.Called(ctx, since)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]interface{}), args.Error(1)
}
