package rest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/dto"
)

// MockWeatherService is a mock implementation of the WeatherService interface.
type MockWeatherService struct {
	mock.Mock
}

func (m *MockWeatherService) GetWeather(ctx context.Context, coords domain.Coordinates) (*domain.Weather, error) {
	args := m.Called(ctx, coords)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*domain.Weather), args.Error(1)
}

func (m *MockWeatherService) GetWeatherByCity(ctx context.Context, name string) (*dto.City, *domain.Weather, error) {
	args := m.Called(ctx, name)

	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}

	return args.Get(0).(*dto.City), args.Get(1).(*domain.Weather), args.Error(2)
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
