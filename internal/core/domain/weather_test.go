package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		temp     Temperature
		expected TemperatureCategory
	}{
		{name: "cold fahrenheit", temp: Temperature{Value: 45, Unit: Fahrenheit}, expected: Cold},
		{name: "hot fahrenheit", temp: Temperature{Value: 90, Unit: Fahrenheit}, expected: Hot},
		{name: "moderate fahrenheit", temp: Temperature{Value: 70, Unit: Fahrenheit}, expected: Moderate},
		{name: "cold celsius", temp: Temperature{Value: 5, Unit: Celsius}, expected: Cold},
		{name: "hot celsius", temp: Temperature{Value: 35, Unit: Celsius}, expected: Hot},
		{name: "moderate celsius", temp: Temperature{Value: 20, Unit: Celsius}, expected: Moderate},
		{name: "boundary cold", temp: Temperature{Value: 50, Unit: Fahrenheit}, expected: Moderate},
		{name: "boundary hot", temp: Temperature{Value: 85, Unit: Fahrenheit}, expected: Moderate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.temp))
		})
	}
}

func TestCoordinates_Validate(t *testing.T) {
	assert.NoError(t, Coordinates{Latitude: -23.5505, Longitude: -46.6333}.Validate())
	assert.NoError(t, Coordinates{Latitude: 90, Longitude: -180}.Validate())
	assert.Error(t, Coordinates{Latitude: 91, Longitude: 0}.Validate())
	assert.Error(t, Coordinates{Latitude: 0, Longitude: 181}.Validate())
}

func TestWeather_LocalTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

	_, ok := Weather{}.LocalTime(now)
	assert.False(t, ok)

	offset := -3 * time.Hour
	local, ok := Weather{UTCOffset: &offset}.LocalTime(now)

	assert.True(t, ok)
	assert.Equal(t, 12, local.Hour())
	assert.True(t, local.Equal(now))

	name, _ := local.Zone()
	assert.Equal(t, "UTC-03:00", name)
}

func TestCity_Equal(t *testing.T) {
	a := City{Name: "São Paulo", Coordinates: Coordinates{Latitude: -23.5505, Longitude: -46.6333}}
	b := City{Name: "Sao Paulo", Coordinates: Coordinates{Latitude: -23.5505, Longitude: -46.6333}}
	c := City{Name: "São Paulo", Coordinates: Coordinates{Latitude: -23.55, Longitude: -46.63}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", &Error{Code: CodeCityNotFound, Message: "missing"})

	assert.True(t, errors.Is(err, &Error{Code: CodeCityNotFound}))
	assert.False(t, errors.Is(err, &Error{Code: CodeInvalidInput}))
}
