// Package rest implements HTTP handlers for the city weather service endpoints.
// This package serves as the primary adapter, translating HTTP requests
// into domain operations and formatting responses for clients.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/core/domain"
	"github.com/sean-rowe/city-weather-service/internal/middleware"
)

// ErrorResponse represents a standardized error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondWithJSON sends a JSON response with the specified status code.
//
// Parameters:
//   - w: HTTP response writer
//   - status: HTTP status code to return
//   - payload: Data to encode as JSON response body
func respondWithJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// respondWithError sends a standardized error response.
func respondWithError(logger *zap.Logger, w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(logger, w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// handleServiceError maps domain errors to appropriate HTTP responses.
//
// Error mappings:
//   - INVALID_INPUT, INVALID_COORDINATES -> 400 Bad Request
//   - CITY_NOT_FOUND -> 404 Not Found
//   - FORECAST_RETRIEVAL_ERROR -> 503 Service Unavailable
//   - Other errors -> 500 Internal Server Error
func handleServiceError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var e *domain.Error

	if errors.As(err, &e) {
		switch e.Code {
		case domain.CodeInvalidInput, domain.CodeInvalidCoordinates:
			respondWithError(logger, w, http.StatusBadRequest, e.Code, e.Message)
			return
		case domain.CodeCityNotFound:
			respondWithError(logger, w, http.StatusNotFound, e.Code, e.Message)
			return
		case domain.CodeForecastRetrieval:
			respondWithError(logger, w, http.StatusServiceUnavailable, e.Code,
				"Weather service is temporarily unavailable")
			return
		}
	}

	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
	)

	respondWithError(logger, w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
}
