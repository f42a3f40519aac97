// Package ratelimit implements the admission controller that gates sensitive
// endpoints (login, registration, password reset) and general API traffic.
//
// The scheme is a per-attempt expiring ticket, not a fixed window: each
// admitted attempt creates its own ticket that lives for the configured
// window, and a caller is throttled to at most MaxAttempts currently-live
// tickets at any instant. This avoids the thundering-herd reset of a fixed
// window boundary and must not be simplified to a single counter.
//
// The garbage-collect / count / conditional-insert sequence runs as one
// atomic unit inside the backing TicketStore, so two concurrent checks for
// the same identifier can never both observe headroom and both insert.
//
// Security modes on store failure:
//   - fail-closed (default for auth flows): deny, so a failing store never
//     becomes a brute-force bypass.
//   - fail-open (general traffic): allow, but log the bypass so it is
//     observable.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/metrics"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/observability/logging"
)

// Sentinel errors surfaced in Result.Err.
var (
	// ErrRateLimitExceeded marks a structured, user-facing denial.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrStoreUnavailable marks a fail-closed denial caused by a ticket
	// store outage, mapped to 503 by HTTP callers.
	ErrStoreUnavailable = errors.New("rate limit service unavailable")
)

// Config describes one endpoint class. Static, supplied by the caller.
type Config struct {
	Window      time.Duration
	MaxAttempts int
	KeyPrefix   string
	FailClosed  bool
}

// Endpoint-class configurations. The auth-adjacent flows are fail-closed by
// design; only general, non-security-critical traffic fails open.
var (
	LoginConfig         = Config{Window: 15 * time.Minute, MaxAttempts: 5, KeyPrefix: "login", FailClosed: true}
	PasswordResetConfig = Config{Window: 15 * time.Minute, MaxAttempts: 3, KeyPrefix: "password-reset", FailClosed: true}
	RegistrationConfig  = Config{Window: 60 * time.Minute, MaxAttempts: 3, KeyPrefix: "registration", FailClosed: true}
	GeneralAPIConfig    = Config{Window: time.Minute, MaxAttempts: 100, KeyPrefix: "api", FailClosed: false}
)

// Result is the outcome of an admission check.
type Result struct {
	Success   bool
	Remaining int
	ResetTime time.Time
	Err       error
}

// Limiter evaluates admission checks against a TicketStore.
type Limiter struct {
	store TicketStore
	now   func() time.Time
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store TicketStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Check runs one admission check for identifier under cfg. It never returns
// an error to the caller; failures are resolved into a Result per the
// fail-open/fail-closed policy.
func (l *Limiter) Check(ctx context.Context, identifier string, cfg Config) Result {
	now := l.now()
	reset := now.Add(cfg.Window)
	key := cfg.KeyPrefix + ":" + identifier

	adm, err := l.store.Admit(ctx, key, now, cfg.Window, cfg.MaxAttempts)
	if err != nil {
		if cfg.FailClosed {
			metrics.RateLimitDecisions.WithLabelValues(cfg.KeyPrefix, "unavailable").Inc()
			logging.Errorf("SECURITY: rate limit store unavailable, denying %s attempt for %s: %v",
				cfg.KeyPrefix, AnonymizeIdentifier(identifier), err)
			return Result{Success: false, Remaining: 0, ResetTime: reset, Err: ErrStoreUnavailable}
		}
		metrics.RateLimitDecisions.WithLabelValues(cfg.KeyPrefix, "bypassed").Inc()
		logging.Warnf("Rate limit bypassed due to store error for %s attempt by %s: %v",
			cfg.KeyPrefix, AnonymizeIdentifier(identifier), err)
		return Result{Success: true, Remaining: cfg.MaxAttempts - 1, ResetTime: reset}
	}

	if !adm.Allowed {
		metrics.RateLimitDecisions.WithLabelValues(cfg.KeyPrefix, "denied").Inc()
		logging.Infof("Rate limit DENIED for %s attempt by %s (live=%d, max=%d)",
			cfg.KeyPrefix, AnonymizeIdentifier(identifier), adm.Live, cfg.MaxAttempts)
		return Result{Success: false, Remaining: 0, ResetTime: reset, Err: ErrRateLimitExceeded}
	}

	metrics.RateLimitDecisions.WithLabelValues(cfg.KeyPrefix, "allowed").Inc()
	return Result{Success: true, Remaining: cfg.MaxAttempts - adm.Live - 1, ResetTime: reset}
}

// AnonymizeIdentifier masks an identifier for log output. "ip:email" shapes
// keep the IP and the first 2 characters of the email local part; anything
// else keeps the first 3 characters.
func AnonymizeIdentifier(identifier string) string {
	if ip, email, ok := strings.Cut(identifier, ":"); ok && strings.Contains(email, "@") {
		local, domain, _ := strings.Cut(email, "@")
		if len(local) > 2 {
			local = local[:2]
		}
		return ip + ":" + local + "***@" + domain
	}
	if len(identifier) > 3 {
		identifier = identifier[:3]
	}
	return identifier + "***"
}
