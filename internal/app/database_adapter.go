package app

import (
	"context"
	"errors"
	"time"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/ports"
	"github.com/sean-rowe/city-weather-service/internal/infrastructure/database"
)

// cityFinder is implemented by both database.PostgresDB and
// database.MemoryCityStore.
type cityFinder interface {
	FindCityByName(ctx context.Context, name string) (*database.City, error)
}

// CityRepositoryAdapter adapts a database city store to ports.CityRepository.
type CityRepositoryAdapter struct {
	store cityFinder
}

// NewCityRepositoryAdapter creates a new city repository adapter.
func NewCityRepositoryAdapter(store cityFinder) *CityRepositoryAdapter {
	return &CityRepositoryAdapter{store: store}
}

// FindByName implements ports.CityRepository.
func (a *CityRepositoryAdapter) FindByName(ctx context.Context, name string) (*domain.City, error) {
	row, err := a.store.FindCityByName(ctx, name)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.ErrCityNotFound
	}

	if err != nil {
		return nil, err
	}

	return &domain.City{
		Name:    row.Name,
		State:   row.State,
		Country: row.Country,
		Coordinates: domain.Coordinates{
			Latitude:  row.Latitude,
			Longitude: row.Longitude,
		},
	}, nil
}

// observationStore is the part of database.PostgresDB used for observations.
type observationStore interface {
	SaveObservation(ctx context.Context, obs database.Observation) error
	ObservationStats(ctx context.Context, since time.Time) (map[string]interface{}, error)
}

// ObservationAdapter adapts the PostgresDB implementation to ports.ObservationRepository.
type ObservationAdapter struct {
	store observationStore
}

// NewObservationAdapter creates a new observation adapter.
func NewObservationAdapter(store observationStore) *ObservationAdapter {
	return &ObservationAdapter{store: store}
}

// Save implements ports.ObservationRepository.
func (a *ObservationAdapter) Save(ctx context.Context, obs ports.Observation) error {
	return a.store.SaveObservation(ctx, database.Observation{
		RequestID:       obs.RequestID,
		CityName:        obs.CityName,
		Latitude:        obs.Latitude,
		Longitude:       obs.Longitude,
		Temperature:     obs.Temperature,
		TemperatureUnit: obs.TemperatureUnit,
		Forecast:        obs.Forecast,
		Category:        obs.Category,
		ResponseTimeMs:  obs.ResponseTimeMs,
		CacheHit:        obs.CacheHit,
	})
}

// Stats implements ports.ObservationRepository.
func (a *ObservationAdapter) Stats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	return a.store.ObservationStats(ctx, since)
}
