package domain

import "fmt"

// Error codes returned to API clients.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidCoordinates = "INVALID_COORDINATES"
	CodeCityNotFound       = "CITY_NOT_FOUND"
	CodeCityLookup         = "CITY_LOOKUP_ERROR"
	CodeForecastRetrieval  = "FORECAST_RETRIEVAL_ERROR"
)

// Error is a domain failure with a machine-readable code and an optional
// underlying cause.
type Error struct {
	// Code identifies the type of error for programmatic handling
	Code string

	// Message provides a human-readable error description
	Message string

	// Cause wraps an underlying error if applicable
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code, so callers can write
// errors.Is(err, &domain.Error{Code: domain.CodeCityNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Code == e.Code
}
