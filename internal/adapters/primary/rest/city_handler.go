package rest

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/core/dto"
	"github.com/sean-rowe/city-weather-service/internal/core/ports"
)

// CityHandler serves city lookups and per-city weather.
type CityHandler struct {
	cities  ports.CityService
	weather ports.WeatherService
	logger  *zap.Logger
	now     func() time.Time
}

// NewCityHandler creates the city handler.
func NewCityHandler(cities ports.CityService, weather ports.WeatherService, logger *zap.Logger) *CityHandler {
	return &CityHandler{
		cities:  cities,
		weather: weather,
		logger:  logger,
		now:     time.Now,
	}
}

// GetCity handles GET /api/v1/cities/{name}.
//
// Response codes:
//   - 200: dto.City
//   - 400: INVALID_INPUT
//   - 404: CITY_NOT_FOUND
//   - 500: lookup failure
func (h *CityHandler) GetCity(w http.ResponseWriter, r *http.Request) {
	city, err := h.cities.FindByName(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, city)
}

// GetCityWeather handles GET /api/v1/cities/{name}/weather. The response
// carries the city's local time when the provider reports its UTC offset.
func (h *CityHandler) GetCityWeather(w http.ResponseWriter, r *http.Request) {
	city, weather, err := h.weather.GetWeatherByCity(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		handleServiceError(h.logger, w, r, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, dto.CityWeather{
		City:    *city,
		Weather: dto.FromWeather(weather, h.now()),
	})
}
