package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/metrics"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/observability/logging"
)

// AllProvidersExhaustedError is returned when every enabled provider failed
// for a single call. It carries the last provider's error.
type AllProvidersExhaustedError struct {
	Provider string
	Err      error
}

func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("all providers exhausted, last error from %s: %v", e.Provider, e.Err)
}

func (e *AllProvidersExhaustedError) Unwrap() error { return e.Err }

// ProviderStatus is one row of Orchestrator.Status.
type ProviderStatus struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Current bool   `json:"current"`
}

// Orchestrator is a stateful façade over the configured providers. Each call
// starts at the provider that most recently succeeded and tries every enabled
// provider once, round-robin, before giving up.
//
// The current index is a weak stickiness hint, not a source of truth:
// concurrent calls may interleave loads and stores, which only affects which
// provider is tried first. It is kept as an atomic so readers never see a
// torn value.
type Orchestrator struct {
	providers []Provider
	current   atomic.Int32
}

// NewOrchestrator builds an orchestrator over the given providers in order.
// Zero enabled providers is a configuration error and fails here rather than
// at call time.
func NewOrchestrator(providers ...Provider) (*Orchestrator, error) {
	enabled := 0
	for _, p := range providers {
		if p.Enabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return nil, fmt.Errorf("orchestrator: no enabled providers (configure at least one API key)")
	}
	logging.Infof("Orchestrator initialized with %d/%d providers enabled", enabled, len(providers))
	return &Orchestrator{providers: providers}, nil
}

// Generate runs the failover algorithm for a blocking completion.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (string, error) {
	var result string
	err := o.attempt(ctx, "generate", func(ctx context.Context, p Provider) error {
		text, err := p.Generate(ctx, req)
		if err != nil {
			return err
		}
		result = text
		return nil
	})
	return result, err
}

// StreamText runs the failover algorithm for a streaming completion.
// Failover applies to stream establishment only: a provider that fails after
// emitting chunks is not retried mid-stream.
func (o *Orchestrator) StreamText(ctx context.Context, req Request) (Stream, error) {
	var result Stream
	err := o.attempt(ctx, "stream", func(ctx context.Context, p Provider) error {
		s, err := p.Stream(ctx, req)
		if err != nil {
			return err
		}
		result = s
		return nil
	})
	return result, err
}

// attempt tries each enabled provider once starting at the current index.
// On success the index is updated to the winning provider; on total
// exhaustion it is left unchanged.
func (o *Orchestrator) attempt(ctx context.Context, mode string, call func(context.Context, Provider) error) error {
	start := int(o.current.Load())
	n := len(o.providers)

	var lastErr error
	lastName := "none"

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		p := o.providers[idx]
		if !p.Enabled() {
			continue
		}

		began := time.Now()
		err := call(ctx, p)
		if err == nil {
			o.current.Store(int32(idx))
			metrics.ProviderAttempts.WithLabelValues(p.Name(), "success").Inc()
			metrics.GenerationDuration.WithLabelValues(p.Name(), mode).Observe(time.Since(began).Seconds())
			if i > 0 {
				logging.Infof("Provider %q recovered the %s call after %d failed attempts", p.Name(), mode, i)
			}
			return nil
		}

		// Classification is informational: it does not change the iteration
		// strategy, but it must be computed and logged.
		retryable := classifyRetryable(err)
		metrics.ProviderAttempts.WithLabelValues(p.Name(), "failure").Inc()
		metrics.ProviderFailures.WithLabelValues(p.Name(), fmt.Sprintf("%t", retryable)).Inc()
		logging.Warnf("Provider %q failed %s call (retryable=%t): %v", p.Name(), mode, retryable, err)

		lastErr = err
		lastName = p.Name()
	}

	metrics.ProviderExhaustions.Inc()
	logging.Errorf("All providers exhausted for %s call, last error from %q: %v", mode, lastName, lastErr)
	return &AllProvidersExhaustedError{Provider: lastName, Err: lastErr}
}

// Status reports the configured providers in order, flagging the current one.
func (o *Orchestrator) Status() []ProviderStatus {
	current := int(o.current.Load())
	out := make([]ProviderStatus, len(o.providers))
	for i, p := range o.providers {
		out[i] = ProviderStatus{
			Name:    p.Name(),
			Enabled: p.Enabled(),
			Current: i == current,
		}
	}
	return out
}

// SwitchTo moves the current index to the named provider. The match is exact
// and case-sensitive; a miss is a no-op returning false.
func (o *Orchestrator) SwitchTo(name string) bool {
	for i, p := range o.providers {
		if p.Name() == name {
			o.current.Store(int32(i))
			logging.Infof("Switched current provider to %q", name)
			return true
		}
	}
	logging.Warnf("SwitchTo: unknown provider %q", name)
	return false
}

// retryableMarkers are message substrings that indicate a quota or billing
// class failure on providers that do not surface a structured status code.
var retryableMarkers = []string{"rate limit", "quota", "billing", "insufficient", "exceeded"}

// classifyRetryable reports whether a per-attempt failure looks like a
// transient quota/billing condition (HTTP 429/402/403 or a recognizable
// message) as opposed to a hard failure.
func classifyRetryable(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429, 402, 403:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
