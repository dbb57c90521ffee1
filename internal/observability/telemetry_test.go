package observability

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func counterValue(t *testing.T, reg *prometheus.Registry, prefix string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), prefix) {
			continue
		}

		for _, m := range family.GetMetric() {
			if matches(m.GetLabel(), labels) && m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
		}
	}

	return 0
}

func matches[L interface {
	GetName() string
	GetValue() string
}](pairs []L, want map[string]string) bool {
	found := 0

	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok && v == p.GetValue() {
			found++
		}
	}

	return found == len(want)
}

func TestTelemetry_RecordsToRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	tel, err := InitTelemetry(context.Background(), Config{
		ServiceName:    "city-weather-service",
		ServiceVersion: "test",
		Environment:    "test",
		SampleRate:     1,
		Registerer:     reg,
	}, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	ctx := context.Background()
	tel.RecordRequest(ctx, "GET", "/api/v1/weather", 200, 15*time.Millisecond)
	tel.RecordRequest(ctx, "GET", "/api/v1/weather", 503, 40*time.Millisecond)
	tel.RecordCacheHit(ctx, "weather:1:2")
	tel.RecordCacheMiss(ctx, "weather:1:2")
	tel.RecordCacheMiss(ctx, "weather:3:4")

	assert.Equal(t, 1.0, counterValue(t, reg, "http_requests", map[string]string{"status_code": "200"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "http_errors", map[string]string{"status_code": "503"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "cache_hits", nil))
	assert.Equal(t, 2.0, counterValue(t, reg, "cache_misses", nil))
}
