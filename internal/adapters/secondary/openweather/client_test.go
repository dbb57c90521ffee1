package openweather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/resilience"
)

const sampleResponse = `{
	"coord": {"lon": -46.6333, "lat": -23.5505},
	"weather": [{"id": 800, "main": "Clear", "description": "clear sky"}],
	"main": {"temp": 27.4, "humidity": 61},
	"wind": {"speed": 3.6},
	"sys": {"sunrise": 1714554000, "sunset": 1714595000},
	"timezone": -10800,
	"name": "São Paulo"
}`

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, baseURL string, retries int) *Client {
	t.Helper()

	inv, err := resilience.NewInvoker(
		resilience.Policy{MaxAttempts: retries, BaseDelay: time.Millisecond},
		zap.NewNop(),
		resilience.WithSleep(noSleep),
	)
	require.NoError(t, err)

	return NewClient(baseURL, "test-key", &http.Client{Timeout: 2 * time.Second}, inv, nil, zap.NewNop())
}

func TestClient_GetForecast(t *testing.T) {
	var query atomic.Pointer[url.Values]

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		q := r.URL.Query()
		query.Store(&q)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	data, err := client.GetForecast(context.Background(), domain.Coordinates{Latitude: -23.5505, Longitude: -46.6333})
	require.NoError(t, err)

	q := *query.Load()
	assert.Equal(t, "-23.5505", q.Get("lat"))
	assert.Equal(t, "-46.6333", q.Get("lon"))
	assert.Equal(t, "test-key", q.Get("appid"))
	assert.Equal(t, "metric", q.Get("units"))

	assert.Equal(t, 27.4, data.Temperature)
	assert.Equal(t, domain.Celsius, data.Unit)
	assert.Equal(t, "clear sky", data.Forecast)
	assert.Equal(t, 61, data.Humidity)
	assert.Equal(t, 3.6, data.WindSpeed)
	require.NotNil(t, data.UTCOffset)
	assert.Equal(t, -3*time.Hour, *data.UTCOffset)
	assert.Equal(t, time.Unix(1714554000, 0).UTC(), data.Sunrise)
}

func TestClient_GetForecast_RetriesServiceUnavailable(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	_, err := client.GetForecast(context.Background(), domain.Coordinates{Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_GetForecast_Failures(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantRequests int32
		wantStatus   int
	}{
		{name: "not found is not retried", status: http.StatusNotFound, wantRequests: 1, wantStatus: http.StatusNotFound},
		{name: "unauthorized is not retried", status: http.StatusUnauthorized, wantRequests: 1, wantStatus: http.StatusUnauthorized},
		{name: "server error exhausts retries", status: http.StatusInternalServerError, wantRequests: 3, wantStatus: http.StatusInternalServerError},
		{name: "malformed json is not retried", status: http.StatusOK, body: "not json", wantRequests: 1},
		{name: "unterminated json is not retried", status: http.StatusOK, body: `{"main": {"temp":`, wantRequests: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, 2)

			data, err := client.GetForecast(context.Background(), domain.Coordinates{Latitude: 1, Longitude: 1})
			require.Error(t, err)
			assert.Nil(t, data)
			assert.Equal(t, tt.wantRequests, hits.Load())

			var attemptsErr *resilience.AttemptsError
			require.ErrorAs(t, err, &attemptsErr)
			assert.Equal(t, int(tt.wantRequests), attemptsErr.Attempts)

			if tt.wantStatus != 0 {
				var statusErr *resilience.StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tt.wantStatus, statusErr.StatusCode)
			}
		})
	}
}

func TestClient_GetForecast_RateLimiterRespectsDeadline(t *testing.T) {
	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer server.Close()

	inv, err := resilience.NewInvoker(resilience.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	// One token per hour with the only token already spent.
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, limiter.Allow())

	client := NewClient(server.URL, "k", server.Client(), inv, limiter, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.GetForecast(ctx, domain.Coordinates{Latitude: 1, Longitude: 1})
	require.Error(t, err)
	assert.False(t, errors.Is(err, resilience.ErrMissingCause))
	assert.Equal(t, int32(0), hits.Load())
}
