package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// tenantLimiters hands out one token bucket per tenant. A zero rate
// disables limiting.
type tenantLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newTenantLimiters(rps float64, burst int) *tenantLimiters {
	if burst <= 0 {
		burst = 1
	}
	return &tenantLimiters{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (t *tenantLimiters) get(tenantID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[tenantID] = l
	}
	return l
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiters.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		tenantID := chi.URLParam(r, "tenantID")
		if !s.limiters.get(tenantID).Allow() {
			zap.L().Warn("api: rate limited", zap.String("tenant_id", tenantID))
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
