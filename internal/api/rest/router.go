package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flowcomply/compliance-engine/internal/infrastructure/telemetry"
)

// Config holds API configuration
type Config struct {
	Version            string
	EnableMetrics      bool
	EnableRateLimiting bool
	RequestsPerSecond  float64
	RateBurst          int
	RequestTimeout     time.Duration
	Logger             *zap.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version:            "v1",
		EnableMetrics:      true,
		EnableRateLimiting: true,
		RequestsPerSecond:  100,
		RateBurst:          200,
		RequestTimeout:     60 * time.Second,
		Logger:             zap.NewNop(),
	}
}

// HealthChecker reports dependency health for /health.
type HealthChecker func(ctx context.Context) error

// NewRouter assembles the API handler: routes, /health, /metrics and the
// middleware chain.
func NewRouter(config *Config, services Services, health HealthChecker) http.Handler {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger.Named("http")

	mux := http.NewServeMux()
	handlers := NewHandlers(services, config.Version)
	handlers.RegisterRoutes(mux)

	mux.HandleFunc("GET /health", healthHandler(health, handlers.resp))
	if config.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	middlewares := []Middleware{
		RequestIDMiddleware(),
		TracingMiddleware(telemetry.Tracer("api.rest")),
		RecoveryMiddleware(logger, handlers.resp),
		LoggingMiddleware(logger),
	}
	if config.RequestTimeout > 0 {
		middlewares = append(middlewares, TimeoutMiddleware(config.RequestTimeout))
	}
	if config.EnableRateLimiting {
		middlewares = append(middlewares, RateLimitMiddleware(config.RequestsPerSecond, config.RateBurst))
	}
	// Innermost so it sees the pattern the mux matched.
	middlewares = append(middlewares, MetricsMiddleware())

	return NewMiddlewareChain(middlewares...).Then(mux)
}

// TimeoutMiddleware bounds the request context.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

func healthHandler(check HealthChecker, resp *responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthResponse{Status: "healthy", Timestamp: time.Now().UTC()}
		status := http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				body.Status = "unhealthy"
				body.Error = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		resp.writeJSON(w, status, body)
	}
}
