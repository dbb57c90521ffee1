package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return NewFromConn(db, zap.NewNop()), mock
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, User: "weather", Password: "secret", Database: "cities", SSLMode: "require"}

	assert.Equal(t, "host=db port=5433 user=weather password=secret dbname=cities sslmode=require", cfg.DSN())
}

func TestPostgresDB_FindCityByName(t *testing.T) {
	columns := []string{"id", "name", "state", "country", "latitude", "longitude"}
	query := regexp.QuoteMeta("FROM cities")

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectQuery(query).
			WithArgs("são paulo").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(1, "São Paulo", "SP", "BR", -23.5505, -46.6333))

		city, err := db.FindCityByName(context.Background(), "são paulo")
		require.NoError(t, err)

		assert.Equal(t, &City{ID: 1, Name: "São Paulo", State: "SP", Country: "BR", Latitude: -23.5505, Longitude: -46.6333}, city)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectQuery(query).
			WithArgs("Atlantis").
			WillReturnRows(sqlmock.NewRows(columns))

		city, err := db.FindCityByName(context.Background(), "Atlantis")

		assert.Nil(t, city)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectQuery(query).
			WithArgs("Recife").
			WillReturnError(errors.New("connection reset"))

		city, err := db.FindCityByName(context.Background(), "Recife")

		assert.Nil(t, city)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresDB_SaveObservation(t *testing.T) {
	db, mock := newMockDB(t)

	obs := Observation{
		RequestID:       "7f1c6a4e-0c55-4a55-9b8e-2f0f1b5a7c11",
		Latitude:        -8.0476,
		Longitude:       -34.877,
		Temperature:     29.5,
		TemperatureUnit: "C",
		Forecast:        "few clouds",
		Category:        "hot",
		ResponseTimeMs:  42,
		CacheHit:        true,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO weather_observations")).
		WithArgs(obs.RequestID, sql.NullString{}, obs.Latitude, obs.Longitude, obs.Temperature,
			obs.TemperatureUnit, obs.Forecast, obs.Category, obs.ResponseTimeMs, obs.CacheHit).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, db.SaveObservation(context.Background(), obs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_SaveObservation_Error(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO weather_observations")).
		WillReturnError(errors.New("duplicate key"))

	err := db.SaveObservation(context.Background(), Observation{RequestID: "dup", CityName: "Recife"})
	assert.EqualError(t, err, "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_ObservationStats(t *testing.T) {
	db, mock := newMockDB(t)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM weather_observations")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{
			"total_requests", "avg_response_time", "min_response_time", "max_response_time", "cache_hit_rate", "distinct_cities",
		}).AddRow(4, 12.5, 3, 30, 0.25, 2))

	stats, err := db.ObservationStats(context.Background(), since)
	require.NoError(t, err)

	assert.Equal(t, 4, stats["total_requests"])
	assert.Equal(t, 12.5, stats["avg_response_time"])
	assert.Equal(t, int64(3), stats["min_response_time"])
	assert.Equal(t, int64(30), stats["max_response_time"])
	assert.Equal(t, 0.25, stats["cache_hit_rate"])
	assert.Equal(t, 2, stats["distinct_cities"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_ObservationStats_Empty(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM weather_observations")).
		WillReturnRows(sqlmock.NewRows([]string{
			"total_requests", "avg_response_time", "min_response_time", "max_response_time", "cache_hit_rate", "distinct_cities",
		}).AddRow(0, nil, nil, nil, nil, 0))

	stats, err := db.ObservationStats(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 0, stats["total_requests"])
	assert.Equal(t, 0.0, stats["cache_hit_rate"])
}

func TestPostgresDB_Ping(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, db.Ping(context.Background()))

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}
