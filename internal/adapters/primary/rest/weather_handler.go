package rest

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/core/dto"
	"github.com/sean-rowe/city-weather-service/internal/core/ports"
)

// WeatherHandler handles HTTP requests for weather by coordinates.
type WeatherHandler struct {
	service ports.WeatherService
	logger  *zap.Logger
	now     func() time.Time
}

// NewWeatherHandler creates a new HTTP handler for weather operations.
//
// Parameters:
//   - service: WeatherService interface for business logic operations
//   - logger: Zap logger for request logging and error tracking
//
// Returns:
//   - *WeatherHandler: Configured handler instance
func NewWeatherHandler(service ports.WeatherService, logger *zap.Logger) *WeatherHandler {
	return &WeatherHandler{
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

// GetWeather handles GET /api/v1/weather?lat=&lon=.
//
// Response codes:
//   - 200: dto.Weather
//   - 400: MISSING_PARAMETERS, INVALID_LATITUDE, INVALID_LONGITUDE, INVALID_COORDINATES
//   - 503: FORECAST_RETRIEVAL_ERROR
//   - 500: INTERNAL_ERROR
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	coords, qerr := coordinatesFromQuery(r.URL.Query())
	if qerr != nil {
		respondWithError(h.logger, w, http.StatusBadRequest, qerr.Error, qerr.Message)
		return
	}

	weather, err := h.service.GetWeather(r.Context(), coords)
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, dto.FromWeather(weather, h.now()))
}

// coordinatesFromQuery parses lat and lon. Range checks are left to the
// service so they share the INVALID_COORDINATES code.
func coordinatesFromQuery(q url.Values) (domain.Coordinates, *ErrorResponse) {
	latStr, lonStr := q.Get("lat"), q.Get("lon")

	if latStr == "" || lonStr == "" {
		return domain.Coordinates{}, &ErrorResponse{
			Error:   "MISSING_PARAMETERS",
			Message: "Both 'lat' and 'lon' query parameters are required",
		}
	}

	latitude, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return domain.Coordinates{}, &ErrorResponse{Error: "INVALID_LATITUDE", Message: "Invalid latitude format"}
	}

	longitude, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return domain.Coordinates{}, &ErrorResponse{Error: "INVALID_LONGITUDE", Message: "Invalid longitude format"}
	}

	return domain.Coordinates{Latitude: latitude, Longitude: longitude}, nil
}
