// Package app provides application-level coordination and dependency injection.
// It orchestrates the initialization of all service components, manages their lifecycles,
// and wires the HTTP routes.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sean-rowe/city-weather-service/internal/adapters/primary/rest"
	"github.com/sean-rowe/city-weather-service/internal/adapters/secondary/nws"
	"github.com/sean-rowe/city-weather-service/internal/adapters/secondary/openweather"
	"github.com/sean-rowe/city-weather-service/internal/config"
	"github.com/sean-rowe/city-weather-service/internal/core/ports"
	"github.com/sean-rowe/city-weather-service/internal/core/services"
	"github.com/sean-rowe/city-weather-service/internal/health"
	"github.com/sean-rowe/city-weather-service/internal/infrastructure/cache"
	"github.com/sean-rowe/city-weather-service/internal/infrastructure/circuitbreaker"
	"github.com/sean-rowe/city-weather-service/internal/infrastructure/database"
	"github.com/sean-rowe/city-weather-service/internal/infrastructure/ratelimit"
	"github.com/sean-rowe/city-weather-service/internal/middleware"
	"github.com/sean-rowe/city-weather-service/internal/observability"
	"github.com/sean-rowe/city-weather-service/internal/resilience"
	"github.com/sean-rowe/city-weather-service/internal/secrets"
	"github.com/sean-rowe/city-weather-service/internal/version"
)

// weatherBreaker names the circuit breaker around the weather provider.
const weatherBreaker = "weather-api"

// statsWindow is how far back /stats summarizes observations.
const statsWindow = 24 * time.Hour

// App manages the application lifecycle and dependencies.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	server    *http.Server
	handler   http.Handler
	telemetry *observability.Telemetry
	db        *database.PostgresDB
	redis     *redis.Client
	breakers  *circuitbreaker.Manager

	// cancel stops background work started by Start.
	cancel context.CancelFunc
}

// New creates a new application instance from the environment.
//
// Returns:
//   - *App: Configured application instance
//   - error: Logger or configuration error
func New() (*App, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	return newApp(cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer), nil
}

func newApp(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		registerer: reg,
		gatherer:   gatherer,
		breakers:   circuitbreaker.NewManager(logger),
	}
}

// Start initializes all components and starts the HTTP server.
//
// Parameters:
//   - ctx: Context for initialization
//
// Returns:
//   - error: Secret, configuration or wiring error
func (a *App) Start(ctx context.Context) error {
	if err := a.build(ctx); err != nil {
		return err
	}

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      a.handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	go func() {
		a.logger.Info("starting HTTP server",
			zap.String("port", a.cfg.Server.Port),
			zap.String("provider", a.cfg.Weather.Provider),
			zap.String("version", version.Version))

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	return nil
}

// build wires every component and the router. It does not listen.
func (a *App) build(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.initTelemetry(ctx); err != nil {
		a.logger.Warn("failed to initialize telemetry, continuing without it", zap.Error(err))
	}

	invoker, err := a.newInvoker()
	if err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}

	if err := a.resolveSecrets(ctx, invoker); err != nil {
		return err
	}

	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cacheService, rateLimitService := a.initRedisServices(bgCtx)

	if err := a.initDatabase(ctx); err != nil {
		a.logger.Warn("failed to connect to database, using built-in city list", zap.Error(err))
	}

	var (
		cityRepo     ports.CityRepository
		observations ports.ObservationRepository
	)

	if a.db != nil {
		cityRepo = NewCityRepositoryAdapter(a.db)
		observations = NewObservationAdapter(a.db)
	} else {
		cityRepo = NewCityRepositoryAdapter(database.NewMemoryCityStore(database.SeedCities))
	}

	weatherOpts := []services.WeatherOption{services.WithCacheTTL(a.cfg.Cache.TTL)}
	if a.telemetry != nil {
		weatherOpts = append(weatherOpts, services.WithMetrics(a.telemetry))
	}

	cityService := services.NewCityService(cityRepo, a.logger)
	weatherService := services.NewWeatherService(
		a.initWeatherClient(invoker),
		cityService,
		cacheService,
		observations,
		a.logger,
		weatherOpts...,
	)

	registry, err := a.initHealth()
	if err != nil {
		return err
	}

	a.handler = a.setupRouter(
		rest.NewWeatherHandler(weatherService, a.logger),
		rest.NewCityHandler(cityService, weatherService, a.logger),
		middleware.NewRateLimitMiddleware(rateLimitService, a.cfg.RateLimit.RPS, a.cfg.RateLimit.Window, a.logger),
		registry,
		observations,
	)

	return nil
}

// Stop gracefully shuts down all application components.
func (a *App) Stop() {
	a.logger.Info("shutting down application...")

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown server gracefully", zap.Error(err))
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis client", zap.Error(err))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database connection", zap.Error(err))
		}
	}

	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown telemetry", zap.Error(err))
		}
	}

	// Sync fails on some platforms when stderr is a terminal.
	_ = a.logger.Sync()
}

// WaitForShutdown blocks until the process receives SIGINT or SIGTERM.
func (a *App) WaitForShutdown() {
	quit := make(chan os.Signal, 1)

	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	a.logger.Info("shutdown signal received")
}

// initTelemetry initializes OpenTelemetry providers.
func (a *App) initTelemetry(ctx context.Context) error {
	var err error

	a.telemetry, err = observability.InitTelemetry(ctx, observability.Config{
		ServiceName:    a.cfg.Observability.ServiceName,
		ServiceVersion: a.cfg.Observability.ServiceVersion,
		Environment:    a.cfg.Observability.Environment,
		OTLPEndpoint:   a.cfg.Observability.OTLPEndpoint,
		SampleRate:     a.cfg.Observability.SampleRate,
		Registerer:     a.registerer,
	}, a.logger)

	return err
}

// newInvoker builds the retry invoker shared by the weather provider and
// the Key Vault client.
func (a *App) newInvoker() (*resilience.Invoker, error) {
	var opts []resilience.Option

	if a.telemetry != nil {
		opts = append(opts,
			resilience.WithTracerProvider(a.telemetry.TracerProvider),
			resilience.WithMeterProvider(a.telemetry.MeterProvider),
		)
	}

	return resilience.NewInvoker(a.cfg.RetryPolicy(), a.logger, opts...)
}

// resolveSecrets overrides credentials from Key Vault when one is
// configured, otherwise from the environment.
func (a *App) resolveSecrets(ctx context.Context, invoker *resilience.Invoker) error {
	var provider secrets.Provider = secrets.NewEnvProvider()

	if a.cfg.KeyVault.URL != "" {
		vault, err := secrets.NewKeyVaultProvider(a.cfg.SecretsConfig(), invoker, a.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize key vault: %w", err)
		}

		provider = vault
	}

	if err := a.cfg.ResolveSecrets(ctx, provider); err != nil {
		return fmt.Errorf("failed to resolve secrets: %w", err)
	}

	return nil
}

// initRedisServices initializes Redis-based or memory-based cache and rate limiting.
//
// Parameters:
//   - ctx: Lifetime of background cleanup for the memory fallback
//
// Returns:
//   - ports.CacheService: Cache implementation (Redis or memory)
//   - ports.RateLimitService: Rate limiter implementation (Redis or memory)
func (a *App) initRedisServices(ctx context.Context) (ports.CacheService, ports.RateLimitService) {
	if a.cfg.Redis.Enabled {
		client := cache.NewRedisClient(cache.Config{
			Addr:         a.cfg.Redis.Addr,
			Password:     a.cfg.Redis.Password,
			DB:           a.cfg.Redis.DB,
			PoolSize:     a.cfg.Redis.PoolSize,
			MinIdleConns: a.cfg.Redis.MinIdleConns,
			MaxRetries:   a.cfg.Redis.MaxRetries,
			DialTimeout:  a.cfg.Redis.DialTimeout,
			ReadTimeout:  a.cfg.Redis.ReadTimeout,
			WriteTimeout: a.cfg.Redis.WriteTimeout,
		})

		pingCtx, cancel := context.WithTimeout(ctx, a.cfg.Redis.DialTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()

		if err == nil {
			a.logger.Info("Redis connected successfully", zap.String("addr", a.cfg.Redis.Addr))
			a.redis = client

			return cache.NewRedisCache(client, cache.DefaultPrefix, a.logger),
				ratelimit.NewRedisRateLimiter(client, a.logger)
		}

		a.logger.Warn("Redis connection failed, falling back to memory-based services", zap.Error(err))
		_ = client.Close()
	} else {
		a.logger.Info("Redis disabled, using memory-based services")
	}

	limiter := ratelimit.NewMemoryRateLimiter(a.logger)
	go limiter.Run(ctx, a.cfg.RateLimit.Window, a.cfg.RateLimit.Window)

	return cache.NewMemoryCache(a.cfg.Cache.TTL, 2*a.cfg.Cache.TTL, a.logger), limiter
}

// initDatabase connects to PostgreSQL and applies migrations when enabled.
func (a *App) initDatabase(ctx context.Context) error {
	if !a.cfg.Database.Enabled {
		return nil
	}

	db, err := database.NewPostgresDB(ctx, database.Config{
		Host:                  a.cfg.Database.Host,
		Port:                  a.cfg.Database.Port,
		User:                  a.cfg.Database.User,
		Password:              a.cfg.Database.Password,
		Database:              a.cfg.Database.Database,
		SSLMode:               a.cfg.Database.SSLMode,
		MaxConnections:        a.cfg.Database.MaxConnections,
		MaxIdleConnections:    a.cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: a.cfg.Database.ConnectionMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}

	if a.cfg.Database.AutoMigrate {
		// The migrator is not closed: closing it closes the shared pool.
		migrator, err := database.NewMigrator(db.DB(), a.logger)
		if err == nil {
			err = migrator.Up()
		}

		if err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	a.db = db

	return nil
}

// initWeatherClient creates the configured provider client wrapped in the
// weather-api circuit breaker.
func (a *App) initWeatherClient(invoker *resilience.Invoker) ports.WeatherClient {
	ow := a.cfg.Weather.OpenWeather
	httpClient := &http.Client{Timeout: ow.Timeout}

	var client ports.WeatherClient

	switch a.cfg.Weather.Provider {
	case config.ProviderNWS:
		client = nws.NewClient(a.cfg.Weather.NWSBaseURL, httpClient, invoker, a.logger)
	default:
		var limiter *rate.Limiter
		if ow.RateLimitRPS > 0 {
			limiter = rate.NewLimiter(rate.Limit(ow.RateLimitRPS), max(1, int(ow.RateLimitRPS)))
		}

		client = openweather.NewClient(ow.BaseURL, ow.APIKey, httpClient, invoker, limiter, a.logger)
	}

	return NewCircuitBreakerWeatherClient(client, a.breakers.GetBreaker(weatherBreaker, circuitbreaker.DefaultConfig()))
}

// initHealth registers a check per external dependency.
func (a *App) initHealth() (*health.Registry, error) {
	registry, err := health.NewRegistry(health.DefaultTimeout, a.registerer, a.logger)
	if err != nil {
		return nil, err
	}

	if a.db != nil {
		registry.Register(health.Check{
			Name:          "postgres",
			Tags:          []string{"db", "postgres"},
			FailureStatus: health.StatusDegraded,
			Func:          health.PingCheck(a.db),
		})
	}

	if a.redis != nil {
		registry.Register(health.Check{
			Name:          "redis",
			Tags:          []string{"cache", "redis"},
			FailureStatus: health.StatusDegraded,
			Func:          health.RedisCheck(a.redis),
		})
	}

	registry.Register(health.Check{
		Name:          weatherBreaker,
		Tags:          []string{"external", a.cfg.Weather.Provider},
		FailureStatus: health.StatusDegraded,
		Func:          health.BreakerCheck(a.breakers.GetBreaker(weatherBreaker, circuitbreaker.DefaultConfig())),
	})

	return registry, nil
}

// setupRouter creates and configures the HTTP router with all middleware.
func (a *App) setupRouter(
	weatherHandler *rest.WeatherHandler,
	cityHandler *rest.CityHandler,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	registry *health.Registry,
	observations ports.ObservationRepository,
) http.Handler {
	router := mux.NewRouter()

	var metrics middleware.RequestRecorder
	if a.telemetry != nil {
		metrics = a.telemetry
	}

	obs := middleware.NewObservabilityMiddleware(otel.Tracer(a.cfg.Observability.ServiceName), metrics, a.logger)
	router.Use(obs.TracingMiddleware, obs.MetricsMiddleware, obs.LoggingMiddleware)

	router.HandleFunc("/health", registry.ReadyHandler).Methods(http.MethodGet)
	router.HandleFunc("/health/live", registry.LiveHandler).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", registry.ReadyHandler).Methods(http.MethodGet)
	router.HandleFunc("/version", a.versionHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", a.statsHandler(observations)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(rateLimitMiddleware.Middleware)

	api.HandleFunc("/weather", weatherHandler.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/cities/{name}", cityHandler.GetCity).Methods(http.MethodGet)
	api.HandleFunc("/cities/{name}/weather", cityHandler.GetCityWeather).Methods(http.MethodGet)

	return router
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, version.Get())
}

// statsHandler reports circuit breaker counters and, with a database,
// observation statistics for the last day.
func (a *App) statsHandler(observations ports.ObservationRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]interface{}{
			"circuit_breakers": a.breakers.GetStats(),
		}

		if observations != nil {
			summary, err := observations.Stats(r.Context(), time.Now().Add(-statsWindow))
			if err != nil {
				a.logger.Warn("failed to load observation stats", zap.Error(err))
			} else {
				stats["observations"] = summary
			}
		}

		a.writeJSON(w, http.StatusOK, stats)
	}
}

func (a *App) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode response", zap.Error(err))
	}
}
