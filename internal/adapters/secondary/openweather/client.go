// Package openweather implements a client for the OpenWeather current
// weather API. It is the default weather provider.
package openweather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/ports"
	"github.com/sean-rowe/city-weather-service/internal/resilience"
	"github.com/sean-rowe/city-weather-service/internal/version"
)

const operation = "openweather.current"

// Client implements ports.WeatherClient for OpenWeather.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	invoker    *resilience.Invoker
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates an OpenWeather client.
//
// Parameters:
//   - baseURL: API base URL (typically https://api.openweathermap.org)
//   - apiKey: OpenWeather application id
//   - httpClient: HTTP client whose Timeout bounds a single attempt
//   - invoker: Retry policy applied to every request
//   - limiter: Outbound request limit, nil for none
//   - logger: Zap logger
//
// Returns:
//   - *Client: Configured OpenWeather client
func NewClient(
	baseURL, apiKey string,
	httpClient *http.Client,
	invoker *resilience.Invoker,
	limiter *rate.Limiter,
	logger *zap.Logger,
) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		invoker:    invoker,
		limiter:    limiter,
		logger:     logger,
	}
}

// currentResponse is the subset of /data/2.5/weather used by the service.
type currentResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`

	// Timezone is the shift in seconds from UTC
	Timezone *int `json:"timezone"`
}

// GetForecast retrieves current conditions for the coordinates. Transient
// failures are retried by the invoker; the error returned after exhaustion
// or a permanent failure wraps *resilience.AttemptsError.
func (c *Client) GetForecast(ctx context.Context, coords domain.Coordinates) (*ports.WeatherData, error) {
	endpoint, err := c.endpoint(coords)
	if err != nil {
		return nil, err
	}

	result := resilience.DoJSON[currentResponse](ctx, c.invoker, operation, c.httpClient,
		func(ctx context.Context) (*http.Request, error) {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return nil, fmt.Errorf("rate limiter: %w", err)
				}
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return nil, err
			}

			req.Header.Set("Accept", "application/json")
			req.Header.Set("User-Agent", version.UserAgent())

			return req, nil
		})

	current, err := result.Unwrap()
	if err != nil {
		c.logger.Error("openweather request failed",
			zap.String("coordinates", coords.String()),
			zap.Int("attempts", result.Attempts),
			zap.Error(err))

		return nil, fmt.Errorf("openweather: %w", err)
	}

	return toWeatherData(current), nil
}

func (c *Client) endpoint(coords domain.Coordinates) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid openweather base URL: %w", err)
	}

	u = u.JoinPath("data", "2.5", "weather")

	q := u.Query()
	q.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', 4, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func toWeatherData(r currentResponse) *ports.WeatherData {
	data := &ports.WeatherData{
		Temperature: r.Main.Temp,
		Unit:        domain.Celsius,
		Humidity:    r.Main.Humidity,
		WindSpeed:   r.Wind.Speed,
	}

	if len(r.Weather) > 0 {
		data.Forecast = r.Weather[0].Description
		if data.Forecast == "" {
			data.Forecast = r.Weather[0].Main
		}
	}

	if r.Timezone != nil {
		offset := time.Duration(*r.Timezone) * time.Second
		data.UTCOffset = &offset
	}

	if r.Sys.Sunrise > 0 {
		data.Sunrise = time.Unix(r.Sys.Sunrise, 0).UTC()
	}

	if r.Sys.Sunset > 0 {
		data.Sunset = time.Unix(r.Sys.Sunset, 0).UTC()
	}

	return data
}
