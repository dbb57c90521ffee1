package database

import (
	"context"
	"strings"
)

// SeedCities is the city list loaded by the seed migration. The in-memory
// store uses it when no database is configured.
var SeedCities = []City{
	{ID: 1, Name: "São Paulo", State: "SP", Country: "BR", Latitude: -23.5505, Longitude: -46.6333},
	{ID: 2, Name: "Rio de Janeiro", State: "RJ", Country: "BR", Latitude: -22.9068, Longitude: -43.1729},
	{ID: 3, Name: "Brasília", State: "DF", Country: "BR", Latitude: -15.7939, Longitude: -47.8828},
	{ID: 4, Name: "Salvador", State: "BA", Country: "BR", Latitude: -12.9777, Longitude: -38.5016},
	{ID: 5, Name: "Fortaleza", State: "CE", Country: "BR", Latitude: -3.7319, Longitude: -38.5267},
	{ID: 6, Name: "Belo Horizonte", State: "MG", Country: "BR", Latitude: -19.9167, Longitude: -43.9345},
	{ID: 7, Name: "Manaus", State: "AM", Country: "BR", Latitude: -3.1190, Longitude: -60.0217},
	{ID: 8, Name: "Curitiba", State: "PR", Country: "BR", Latitude: -25.4284, Longitude: -49.2733},
	{ID: 9, Name: "Recife", State: "PE", Country: "BR", Latitude: -8.0476, Longitude: -34.8770},
	{ID: 10, Name: "Porto Alegre", State: "RS", Country: "BR", Latitude: -30.0346, Longitude: -51.2177},
	{ID: 11, Name: "New York", State: "NY", Country: "US", Latitude: 40.7128, Longitude: -74.0060},
	{ID: 12, Name: "Chicago", State: "IL", Country: "US", Latitude: 41.8781, Longitude: -87.6298},
	{ID: 13, Name: "London", Country: "GB", Latitude: 51.5074, Longitude: -0.1278},
	{ID: 14, Name: "Lisbon", Country: "PT", Latitude: 38.7223, Longitude: -9.1393},
	{ID: 15, Name: "Tokyo", Country: "JP", Latitude: 35.6762, Longitude: 139.6503},
}

// MemoryCityStore is a read-only city store held in memory.
type MemoryCityStore struct {
	cities map[string]City
}

// NewMemoryCityStore indexes cities by lower-cased name. The first city
// with a given name wins, as in FindCityByName.
func NewMemoryCityStore(cities []City) *MemoryCityStore {
	index := make(map[string]City, len(cities))

	for _, c := range cities {
		key := strings.ToLower(c.Name)
		if _, exists := index[key]; !exists {
			index[key] = c
		}
	}

	return &MemoryCityStore{cities: index}
}

// FindCityByName returns ErrNotFound when no city matches.
func (s *MemoryCityStore) FindCityByName(_ context.Context, name string) (*City, error) {
	c, ok := s.cities[strings.ToLower(name)]
	if !ok {
		return nil, ErrNotFound
	}

	return &c, nil
}
