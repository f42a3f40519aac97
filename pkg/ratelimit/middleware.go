package ratelimit

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// KeyFunc derives the rate limit identifier from a request.
type KeyFunc func(r *http.Request) string

// ClientIP is the default KeyFunc: the request's remote IP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware wraps a handler with an admission check under cfg. Denials map
// to 429, fail-closed store outages to 503, and every response carries
// X-RateLimit-Limit / X-RateLimit-Remaining / X-RateLimit-Reset headers
// derived from the check result.
func Middleware(limiter *Limiter, cfg Config, keyFn KeyFunc) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := limiter.Check(r.Context(), keyFn(r), cfg)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxAttempts))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))

			if !result.Success {
				status := http.StatusTooManyRequests
				if errors.Is(result.Err, ErrStoreUnavailable) {
					status = http.StatusServiceUnavailable
				}
				retryAfter := int(time.Until(result.ResetTime).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				fmt.Fprintf(w, `{"error":%q}`+"\n", result.Err.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
