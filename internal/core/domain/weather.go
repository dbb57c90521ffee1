// Package domain contains the core business entities of the city weather service.
// These types are independent of storage, transport and external providers.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Temperature represents a temperature measurement with its unit.
type Temperature struct {
	// Value is the numeric temperature measurement
	Value float64

	// Unit specifies whether the temperature is in Celsius or Fahrenheit
	Unit TemperatureUnit
}

// Fahrenheit returns the temperature converted to degrees Fahrenheit.
func (t Temperature) Fahrenheit() float64 {
	if t.Unit == Celsius {
		return t.Value*9/5 + 32
	}

	return t.Value
}

// TemperatureUnit defines the unit of temperature measurement.
type TemperatureUnit string

const (
	// Celsius represents temperature in Celsius scale
	Celsius TemperatureUnit = "C"

	// Fahrenheit represents temperature in Fahrenheit scale
	Fahrenheit TemperatureUnit = "F"
)

// TemperatureCategory classifies temperature into human-readable categories.
type TemperatureCategory string

const (
	// Hot indicates temperatures above 85°F
	Hot TemperatureCategory = "hot"

	// Cold indicates temperatures below 50°F
	Cold TemperatureCategory = "cold"

	// Moderate indicates temperatures between cold and hot, inclusive
	Moderate TemperatureCategory = "moderate"
)

const (
	coldThresholdF = 50.0
	hotThresholdF  = 85.0
)

// Categorize classifies a temperature. The thresholds themselves are moderate.
func Categorize(t Temperature) TemperatureCategory {
	f := t.Fahrenheit()

	switch {
	case f < coldThresholdF:
		return Cold
	case f > hotThresholdF:
		return Hot
	default:
		return Moderate
	}
}

// Coordinates represent a geographic location using latitude and longitude.
type Coordinates struct {
	// Latitude specifies the north-south position (-90 to 90 degrees)
	Latitude float64

	// Longitude specifies the east-west position (-180 to 180 degrees)
	Longitude float64
}

// Validate checks if the coordinates are within valid geographic bounds.
func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %f", c.Latitude)
	}

	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %f", c.Longitude)
	}

	return nil
}

// String formats the coordinates with four decimal places (about 11 m).
func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// Weather is a weather report for a location at the time it was fetched.
type Weather struct {
	// ID uniquely identifies this weather report
	ID uuid.UUID

	Coordinates Coordinates
	Temperature Temperature

	// Forecast provides a human-readable weather description
	Forecast string

	// Humidity in percent, zero when the provider does not report it
	Humidity int

	// WindSpeed in meters per second, zero when not reported
	WindSpeed float64

	Category TemperatureCategory

	// UTCOffset is the local offset at the location, nil when unknown
	UTCOffset *time.Duration

	// Sunrise and Sunset are zero when not reported
	Sunrise time.Time
	Sunset  time.Time

	// FetchedAt records when this weather data was retrieved
	FetchedAt time.Time
}

// LocalTime returns now in the location's time zone when the offset is known.
func (w Weather) LocalTime(now time.Time) (time.Time, bool) {
	if w.UTCOffset == nil {
		return time.Time{}, false
	}

	zone := time.FixedZone(formatOffset(*w.UTCOffset), int(w.UTCOffset.Seconds()))

	return now.In(zone), true
}

func formatOffset(offset time.Duration) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}

	minutes := int(offset.Minutes())

	return fmt.Sprintf("UTC%s%02d:%02d", sign, minutes/60, minutes%60)
}
