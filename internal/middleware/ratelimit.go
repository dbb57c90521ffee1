package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/core/ports"
)

// RateLimitMiddleware enforces a per-client request limit over a sliding
// window.
type RateLimitMiddleware struct {
	service ports.RateLimitService
	limit   int
	window  time.Duration
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates the middleware.
//
// Parameters:
//   - service: Sliding-window limiter (Redis or memory)
//   - limit: Requests allowed per client in window
//   - window: Length of the sliding window
//   - logger: Zap logger
//
// Returns:
//   - *RateLimitMiddleware: Middleware ready for router.Use
func NewRateLimitMiddleware(service ports.RateLimitService, limit int, window time.Duration, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		service: service,
		limit:   limit,
		window:  window,
		logger:  logger,
	}
}

// Middleware rejects requests over the limit with 429 and Retry-After.
// A limiter failure lets the request through.
func (m *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := GetClientIP(r)

		allowed, err := m.service.Allow(r.Context(), clientIP, m.limit, m.window)
		if err != nil {
			m.logger.Warn("rate limiter unavailable, allowing request",
				zap.String("client_ip", clientIP),
				zap.Error(err))

			next.ServeHTTP(w, r)

			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))

		if !allowed {
			m.logger.Info("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("request_id", GetRequestID(r.Context())))

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(m.window.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "RATE_LIMIT_EXCEEDED",
				"message": "Too many requests, please retry later",
			})

			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetClientIP returns the first X-Forwarded-For address, then X-Real-IP,
// then the host part of RemoteAddr.
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
