package app

import (
	"context"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/ports"
	"github.com/sean-rowe/city-weather-service/internal/infrastructure/circuitbreaker"
)

// CircuitBreakerWeatherClient wraps a weather client with circuit breaker protection
// to provide fault tolerance for external API calls. The wrapped client
// retries on its own, so the breaker sees one call per lookup.
type CircuitBreakerWeatherClient struct {
	client ports.WeatherClient
	cb     *circuitbreaker.Breaker
}

// NewCircuitBreakerWeatherClient wraps client with cb.
func NewCircuitBreakerWeatherClient(client ports.WeatherClient, cb *circuitbreaker.Breaker) *CircuitBreakerWeatherClient {
	return &CircuitBreakerWeatherClient{
		client: client,
		cb:     cb,
	}
}

// GetForecast retrieves weather forecast data with circuit breaker protection.
// It wraps the underlying weather client call to handle failures gracefully.
func (c *CircuitBreakerWeatherClient) GetForecast(ctx context.Context, coords domain.Coordinates) (*ports.WeatherData, error) {
	var result *ports.WeatherData

	err := c.cb.Execute(ctx, "get-forecast", func(ctx context.Context) error {
		var err error
		result, err = c.client.GetForecast(ctx, coords)

		return err
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}
