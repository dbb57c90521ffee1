// Package database implements PostgreSQL persistence for cities and served
// weather observations, and the migrations that create them.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// PostgresDB is the PostgreSQL store.
type PostgresDB struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config contains connection and pool settings.
type Config struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	Database              string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// DSN returns the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// NewPostgresDB opens and pings a connection pool. The schema is managed by
// migrations, not created here.
//
// Parameters:
//   - ctx: Bounds the initial ping
//   - cfg: Connection settings
//   - logger: Zap logger for query failures
//
// Returns:
//   - *PostgresDB: Connected store
//   - error: Open or ping failure
func NewPostgresDB(ctx context.Context, cfg Config, logger *zap.Logger) (*PostgresDB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnectionMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewFromConn(db, logger), nil
}

// NewFromConn wraps an existing pool.
func NewFromConn(db *sql.DB, logger *zap.Logger) *PostgresDB {
	return &PostgresDB{
		db:     db,
		logger: logger,
	}
}

// City is a row of the cities table.
type City struct {
	ID        int64
	Name      string
	State     string
	Country   string
	Latitude  float64
	Longitude float64
}

// FindCityByName returns the city whose name matches case-insensitively.
// When several cities share the name the oldest row wins.
//
// Returns:
//   - *City: Matching row
//   - error: ErrNotFound when nothing matches, or a query error
func (p *PostgresDB) FindCityByName(ctx context.Context, name string) (*City, error) {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "FindCityByName")
	defer span.End()

	span.SetAttributes(attribute.String("city.name", name))

	query := `
		SELECT id, name, COALESCE(state, ''), country, latitude, longitude
		FROM cities
		WHERE lower(name) = lower($1)
		ORDER BY id
		LIMIT 1
	`

	var city City

	err := p.db.QueryRowContext(ctx, query, name).Scan(
		&city.ID,
		&city.Name,
		&city.State,
		&city.Country,
		&city.Latitude,
		&city.Longitude,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		span.RecordError(err)
		p.logger.Error("failed to find city", zap.String("city", name), zap.Error(err))

		return nil, fmt.Errorf("find city %q: %w", name, err)
	}

	return &city, nil
}

// Observation is a row of the weather_observations table.
type Observation struct {
	RequestID       string
	CityName        string
	Latitude        float64
	Longitude       float64
	Temperature     float64
	TemperatureUnit string
	Forecast        string
	Category        string
	ResponseTimeMs  int
	CacheHit        bool
}

// SaveObservation records a served weather lookup.
func (p *PostgresDB) SaveObservation(ctx context.Context, obs Observation) error {
	tracer := otel.Tracer("database")
	ctx, span := tracer.Start(ctx, "SaveObservation")
	defer span.End()

	span.SetAttributes(
		attribute.String("request_id", obs.RequestID),
		attribute.Float64("latitude", obs.Latitude),
		attribute.Float64("longitude", obs.Longitude),
	)

	query := `
		INSERT INTO weather_observations (
			request_id, city_name, latitude, longitude, temperature, temperature_unit,
			forecast, category, response_time_ms, cache_hit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var cityName sql.NullString
	if obs.CityName != "" {
		cityName = sql.NullString{String: obs.CityName, Valid: true}
	}

	start := time.Now()
	_, err := p.db.ExecContext(ctx, query,
		obs.RequestID,
		cityName,
		obs.Latitude,
		obs.Longitude,
		obs.Temperature,
		obs.TemperatureUnit,
		obs.Forecast,
		obs.Category,
		obs.ResponseTimeMs,
		obs.CacheHit,
	)

	duration := time.Since(start)
	if err != nil {
		p.logger.Error("failed to save weather observation",
			zap.Error(err),
			zap.String("request_id", obs.RequestID),
			zap.Duration("duration", duration),
		)
		span.RecordError(err)

		return err
	}

	return nil
}

// ObservationStats summarizes observations recorded since the given time.
func (p *PostgresDB) ObservationStats(ctx context.Context, since time.Time) (map[string]interface{}, error) {
	query := `
		SELECT
			COUNT(*) AS total_requests,
			AVG(response_time_ms) AS avg_response_time,
			MIN(response_time_ms) AS min_response_time,
			MAX(response_time_ms) AS max_response_time,
			SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END)::float / NULLIF(COUNT(*), 0)::float AS cache_hit_rate,
			COUNT(DISTINCT city_name) AS distinct_cities
		FROM weather_observations
		WHERE observed_at >= $1
	`

	var stats struct {
		TotalRequests   int
		AvgResponseTime sql.NullFloat64
		MinResponseTime sql.NullInt64
		MaxResponseTime sql.NullInt64
		CacheHitRate    sql.NullFloat64
		DistinctCities  int
	}

	err := p.db.QueryRowContext(ctx, query, since).Scan(
		&stats.TotalRequests,
		&stats.AvgResponseTime,
		&stats.MinResponseTime,
		&stats.MaxResponseTime,
		&stats.CacheHitRate,
		&stats.DistinctCities,
	)

	if err != nil {
		return nil, fmt.Errorf("observation stats: %w", err)
	}

	return map[string]interface{}{
		"total_requests":    stats.TotalRequests,
		"avg_response_time": stats.AvgResponseTime.Float64,
		"min_response_time": stats.MinResponseTime.Int64,
		"max_response_time": stats.MaxResponseTime.Int64,
		"cache_hit_rate":    stats.CacheHitRate.Float64,
		"distinct_cities":   stats.DistinctCities,
	}, nil
}

// DB exposes the pool for migrations.
func (p *PostgresDB) DB() *sql.DB {
	return p.db
}

// Ping verifies the connection is alive.
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the pool.
func (p *PostgresDB) Close() error {
	return p.db.Close()
}
