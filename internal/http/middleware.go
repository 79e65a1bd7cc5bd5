package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Clark-Hu/dsmovie/internal/auth"
	"github.com/Clark-Hu/dsmovie/internal/logging"
)

func accessLog(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String(logging.FieldRequestID, middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}

// RateLimiter keeps one token bucket per caller. Authenticated callers are
// keyed by username, everyone else by remote address.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
	logger  *zap.Logger
}

// NewRateLimiter creates a limiter allowing limit requests per second with the given burst.
func NewRateLimiter(limit float64, burst int, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(limit),
		burst:   burst,
		logger:  logger,
	}
}

// Allow consumes one token for key and reports whether the request may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	l, ok := rl.buckets[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets[key] = l
	}
	rl.mu.Unlock()

	allowed := l.Allow()
	if !allowed {
		rl.logger.Debug("rate limited", zap.String("key", key))
	}
	return allowed
}

// Middleware returns 429 once a caller exhausts its bucket.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if p, ok := auth.PrincipalFromContext(r.Context()); ok {
			key = "user:" + p.Username
		}
		if !rl.Allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(errorResponse{
				Code:      "RATE_LIMITED",
				Message:   "Too many requests",
				RequestID: middleware.GetReqID(r.Context()),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
