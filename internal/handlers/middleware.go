package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"classroom/internal/metrics"
	"classroom/internal/models"
	"classroom/internal/security"
	"classroom/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	sessions *service.SessionManager
	limiter  *security.RateLimiter
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(sessions *service.SessionManager, limiter *security.RateLimiter, m *metrics.Metrics, logger *zap.SugaredLogger) *Middleware {
	return &Middleware{
		sessions: sessions,
		limiter:  limiter,
		metrics:  m,
		logger:   logger,
	}
}

// RequireAuth resolves the bearer token to an active user and stores it in the context
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := security.BearerToken(r)
		if token == "" {
			writeFailure(w, http.StatusUnauthorized, ErrUnauthorized)
			return
		}

		user, err := m.sessions.Authenticate(r.Context(), token)
		if err != nil {
			respondWithError(w, m.logger, "authentication failed", err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimit rejects clients that exceed the per-IP request budget
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.limiter.ClientIP(r)
		if !m.limiter.Allow(ip) {
			m.logger.Warnw("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			m.metrics.AuthFailures.WithLabelValues("rate_limited").Inc()
			w.Header().Set("Retry-After", "60")
			writeFailure(w, http.StatusTooManyRequests, ErrTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Logging logs HTTP requests and records their count and latency
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		m.logger.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// routePattern returns the matched chi pattern so metric labels stay bounded
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
