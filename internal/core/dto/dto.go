// Package dto holds the transport objects returned by the API and the
// functions that map domain entities onto them.
package dto

import (
	"time"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
)

// City is the transport form of domain.City.
type City struct {
	Name      string  `json:"name"`
	State     string  `json:"state,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Coordinates returns the coordinates carried by the DTO.
func (c City) Coordinates() domain.Coordinates {
	return domain.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude}
}

// Weather is the transport form of domain.Weather.
type Weather struct {
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	Forecast        string     `json:"forecast"`
	Temperature     float64    `json:"temperature"`
	TemperatureUnit string     `json:"temperatureUnit"`
	Category        string     `json:"category"`
	Humidity        int        `json:"humidity,omitempty"`
	WindSpeed       float64    `json:"windSpeed,omitempty"`
	LocalTime       string     `json:"localTime,omitempty"`
	UTCOffset       string     `json:"utcOffset,omitempty"`
	Sunrise         *time.Time `json:"sunrise,omitempty"`
	Sunset          *time.Time `json:"sunset,omitempty"`
	FetchedAt       time.Time  `json:"fetchedAt"`
}

// CityWeather combines a resolved city with its current weather.
type CityWeather struct {
	City    City    `json:"city"`
	Weather Weather `json:"weather"`
}

// FromCity maps a domain city.
func FromCity(c *domain.City) City {
	return City{
		Name:      c.Name,
		State:     c.State,
		Country:   c.Country,
		Latitude:  c.Coordinates.Latitude,
		Longitude: c.Coordinates.Longitude,
	}
}

// FromWeather maps a domain weather report. now is used to compute the
// local time at the location when its UTC offset is known.
func FromWeather(w *domain.Weather, now time.Time) Weather {
	out := Weather{
		Latitude:        w.Coordinates.Latitude,
		Longitude:       w.Coordinates.Longitude,
		Forecast:        w.Forecast,
		Temperature:     w.Temperature.Value,
		TemperatureUnit: string(w.Temperature.Unit),
		Category:        string(w.Category),
		Humidity:        w.Humidity,
		WindSpeed:       w.WindSpeed,
		FetchedAt:       w.FetchedAt,
	}

	if local, ok := w.LocalTime(now); ok {
		out.LocalTime = local.Format(time.RFC3339)
		out.UTCOffset, _ = local.Zone()
	}

	if !w.Sunrise.IsZero() {
		sunrise := w.Sunrise.UTC()
		out.Sunrise = &sunrise
	}

	if !w.Sunset.IsZero() {
		sunset := w.Sunset.UTC()
		out.Sunset = &sunset
	}

	return out
}
