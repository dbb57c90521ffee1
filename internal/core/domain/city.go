package domain

import (
	"errors"
	"strings"
)

// ErrCityNotFound is returned by city repositories when no city matches.
var ErrCityNotFound = errors.New("city not found")

// City is a named place resolved to coordinates. Two cities with the same
// coordinates are the same city regardless of spelling.
type City struct {
	Name        string
	State       string
	Country     string
	Coordinates Coordinates
}

// Equal compares cities by their coordinates.
func (c City) Equal(other City) bool {
	return c.Coordinates == other.Coordinates
}

// NormalizeCityName trims surrounding space and lower-cases the name for
// case-insensitive lookups.
func NormalizeCityName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
