package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/user/opinion-manager/apperror"
)

const TooManyRequestsMessage = "Too many requests, please try again later"

// Limiter allows max requests per window for each client IP.
type Limiter struct {
	store  CounterStore
	max    int64
	window time.Duration
	now    func() time.Time
}

func New(store CounterStore, max int, window time.Duration) *Limiter {
	return &Limiter{store: store, max: int64(max), window: window, now: time.Now}
}

// Middleware counts the request and rejects it with 429 once the window is used
// up. When the counter store fails the request is let through and a warning logged.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, resetAt, err := l.store.Incr(r.Context(), clientIP(r), l.window)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("rate limit store unavailable, request allowed")
			next.ServeHTTP(w, r)
			return
		}

		remaining := max(l.max-count, 0)
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(l.max, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > l.max {
			wait := int64(math.Ceil(resetAt.Sub(l.now()).Seconds()))
			h.Set("Retry-After", strconv.FormatInt(max(wait, 1), 10))
			apperror.WriteError(w, r, apperror.NewRateLimitError(TooManyRequestsMessage))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. Forwarding headers are never read
// here; with TRUST_PROXY set, chi's RealIP has already replaced RemoteAddr with a
// bare address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
