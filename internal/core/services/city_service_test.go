package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/dto"
)

func TestCityService_FindByName(t *testing.T) {
	saoPaulo := &domain.City{
		Name:        "São Paulo",
		State:       "SP",
		Country:     "BR",
		Coordinates: domain.Coordinates{Latitude: -23.5505, Longitude: -46.6333},
	}

	tests := []struct {
		name         string
		input        string
		repoCity     *domain.City
		repoErr      error
		callsRepo    bool
		expected     *dto.City
		expectedCode string
	}{
		{
			name:      "found",
			input:     "São Paulo",
			repoCity:  saoPaulo,
			callsRepo: true,
			expected: &dto.City{
				Name:      "São Paulo",
				State:     "SP",
				Country:   "BR",
				Latitude:  -23.5505,
				Longitude: -46.6333,
			},
		},
		{
			name:         "empty name",
			input:        "",
			expectedCode: domain.CodeInvalidInput,
		},
		{
			name:         "blank name",
			input:        "   ",
			expectedCode: domain.CodeInvalidInput,
		},
		{
			name:         "not found",
			input:        "Atlantis",
			repoErr:      domain.ErrCityNotFound,
			callsRepo:    true,
			expectedCode: domain.CodeCityNotFound,
		},
		{
			name:         "repository failure",
			input:        "Recife",
			repoErr:      errors.New("connection refused"),
			callsRepo:    true,
			expectedCode: domain.CodeCityLookup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockCityRepository)
			service := NewCityService(repo, zap.NewNop())

			if tt.callsRepo {
				repo.On("FindByName", mock.Anything, tt.input).Return(tt.repoCity, tt.repoErr)
			}

			city, err := service.FindByName(context.Background(), tt.input)

			if tt.expectedCode != "" {
				var domainErr *domain.Error
				require.ErrorAs(t, err, &domainErr)
				assert.Equal(t, tt.expectedCode, domainErr.Code)
				assert.Nil(t, city)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, city)
			}

			repo.AssertExpectations(t)

			if !tt.callsRepo {
				repo.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCityService_FindByName_LogsWarningOnMiss(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	repo := new(MockCityRepository)
	repo.On("FindByName", mock.Anything, "Atlantis").Return(nil, domain.ErrCityNotFound)

	service := NewCityService(repo, zap.New(core))

	_, err := service.FindByName(context.Background(), "  Atlantis ")
	require.Error(t, err)

	entries := logs.FilterMessage("city does not exist").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "Atlantis", entries[0].ContextMap()["city"])
}
