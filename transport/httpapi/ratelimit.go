package httpapi

import (
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimiter gates inbound POST /v1/stream with a token bucket,
// generalizing the teacher's examples/middleware/rate-limiting
// TokenBucketLimiter (an `*rate.Limiter` plus an `Allow` check) from a
// client-side request throttle to a server-side inbound one: callers
// that can't open a new session immediately get a 429 rather than
// silently queuing, since a streaming session holds a goroutine and a
// provider connection open for its whole lifetime.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter.Allow() {
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
