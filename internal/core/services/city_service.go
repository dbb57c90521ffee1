package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/dto"
	"github.com/sean-rowe/city-weather-service/internal/core/ports"
)

type cityService struct {
	repository ports.CityRepository
	logger     *zap.Logger
}

// NewCityService creates the city lookup service.
//
// Parameters:
//   - repository: Store used to resolve city names
//   - logger: Zap logger for lookup misses and failures
//
// Returns:
//   - ports.CityService: City lookup implementation
func NewCityService(repository ports.CityRepository, logger *zap.Logger) ports.CityService {
	return &cityService{
		repository: repository,
		logger:     logger,
	}
}

// FindByName resolves a city name to its DTO.
//
// Returns:
//   - *dto.City: Resolved city
//   - error: INVALID_INPUT for a blank name, CITY_NOT_FOUND when the city does
//     not exist, CITY_LOOKUP_ERROR when the repository fails
func (s *cityService) FindByName(ctx context.Context, name string) (*dto.City, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return nil, &domain.Error{
			Code:    domain.CodeInvalidInput,
			Message: "A city name is required",
		}
	}

	city, err := s.repository.FindByName(ctx, name)

	if errors.Is(err, domain.ErrCityNotFound) {
		s.logger.Warn("city does not exist", zap.String("city", name))

		return nil, &domain.Error{
			Code:    domain.CodeCityNotFound,
			Message: "The requested city does not exist",
		}
	}

	if err != nil {
		s.logger.Error("failed to look up city",
			zap.String("city", name),
			zap.Error(err))

		return nil, &domain.Error{
			Code:    domain.CodeCityLookup,
			Message: "Failed to look up city",
			Cause:   err,
		}
	}

	result := dto.FromCity(city)

	return &result, nil
}
