// Package nws implements a client for the National Weather Service API.
// This package serves as a secondary adapter, translating domain requests
// into NWS API calls and converting responses back to domain objects.
package nws

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/ports"
	"github.com/sean-rowe/city-weather-service/internal/resilience"
	"github.com/sean-rowe/city-weather-service/internal/version"
)

// ErrNoForecast is returned when NWS answers without a usable forecast.
var ErrNoForecast = errors.New("no forecast available")

// Client implements the WeatherClient interface for the National Weather Service API.
// It handles the two-step process required by NWS: first getting grid coordinates
// from lat/lon, then fetching the actual forecast from the grid endpoint.
// Each step is retried independently by the invoker.
type Client struct {
	// baseURL is the NWS API base endpoint
	baseURL string

	// httpClient bounds a single attempt with its Timeout
	httpClient *http.Client

	invoker *resilience.Invoker

	// logger records API interactions and errors
	logger *zap.Logger
}

// NewClient creates a new NWS API client with the specified configuration.
//
// Parameters:
//   - baseURL: NWS API base URL (typically https://api.weather.gov)
//   - httpClient: HTTP client with per-attempt timeout
//   - invoker: Retry policy applied to both NWS calls
//   - logger: Zap logger for API interaction logging
//
// Returns:
//   - *Client: Configured NWS API client
func NewClient(baseURL string, httpClient *http.Client, invoker *resilience.Invoker, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		invoker:    invoker,
		logger:     logger,
	}
}

// pointsResponse represents the NWS API response from the /points endpoint.
// This endpoint converts latitude/longitude coordinates to NWS grid coordinates.
type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

// forecastResponse represents the NWS API response from the forecast endpoint.
type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

// forecastPeriod represents a single time period in the weather forecast.
type forecastPeriod struct {
	Name            string `json:"name"`
	Temperature     int    `json:"temperature"`
	TemperatureUnit string `json:"temperatureUnit"`
	ShortForecast   string `json:"shortForecast"`
}

// GetForecast retrieves weather forecast data from the NWS API.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - coords: Geographic coordinates for the forecast location
//
// Return:
//   - *ports.WeatherData: Weather data including temperature and forecast text
//   - error: Returns error if the location is outside NWS coverage, retries
//     are exhausted, or no forecast data is available
func (c *Client) GetForecast(ctx context.Context, coords domain.Coordinates) (*ports.WeatherData, error) {
	pointsURL := fmt.Sprintf("%s/points/%s", c.baseURL, coords.String())

	points, err := resilience.DoJSON[pointsResponse](ctx, c.invoker, "nws.points", c.httpClient, c.get(pointsURL)).Unwrap()
	if err != nil {
		c.logger.Error("failed to resolve NWS grid point",
			zap.String("coordinates", coords.String()),
			zap.Error(err))

		return nil, fmt.Errorf("failed to get forecast URL: %w", err)
	}

	if points.Properties.Forecast == "" {
		return nil, fmt.Errorf("no forecast URL in response: %w", ErrNoForecast)
	}

	forecast, err := resilience.DoJSON[forecastResponse](ctx, c.invoker, "nws.forecast", c.httpClient, c.get(points.Properties.Forecast)).Unwrap()
	if err != nil {
		c.logger.Error("failed to fetch NWS forecast",
			zap.String("forecast_url", points.Properties.Forecast),
			zap.Error(err))

		return nil, fmt.Errorf("failed to fetch forecast: %w", err)
	}

	if len(forecast.Properties.Periods) == 0 {
		return nil, ErrNoForecast
	}

	todayPeriod := forecast.Properties.Periods[0]
	unit := domain.Fahrenheit

	if todayPeriod.TemperatureUnit == "C" {
		unit = domain.Celsius
	}

	// NWS does not report a UTC offset, so local time is left unknown.
	return &ports.WeatherData{
		Temperature: float64(todayPeriod.Temperature),
		Unit:        unit,
		Forecast:    todayPeriod.ShortForecast,
	}, nil
}

func (c *Client) get(url string) resilience.RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/geo+json")
		req.Header.Set("User-Agent", version.UserAgent())

		return req, nil
	}
}
