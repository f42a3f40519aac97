package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// ── fakeProvider ──

type fakeProvider struct {
	name    string
	enabled bool
	err     error
	result  string
	calls   int
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Enabled() bool { return f.enabled }

func (f *fakeProvider) Generate(_ context.Context, _ Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	text, err := f.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return &sliceStream{chunks: []string{text}}, nil
}

type sliceStream struct {
	chunks []string
	pos    int
	cur    string
}

func (s *sliceStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.cur = s.chunks[s.pos]
	s.pos++
	return true
}

func (s *sliceStream) Current() string { return s.cur }
func (s *sliceStream) Err() error      { return nil }
func (s *sliceStream) Close() error    { return nil }

func currentName(t *testing.T, o *Orchestrator) string {
	t.Helper()
	for _, st := range o.Status() {
		if st.Current {
			return st.Name
		}
	}
	t.Fatal("no current provider in status")
	return ""
}

// ── construction ──

func TestNewOrchestratorRequiresEnabledProvider(t *testing.T) {
	_, err := NewOrchestrator(&fakeProvider{name: "a"}, &fakeProvider{name: "b"})
	if err == nil {
		t.Fatal("expected error with zero enabled providers")
	}
}

func TestNewOrchestratorAcceptsOneEnabled(t *testing.T) {
	o, err := NewOrchestrator(
		&fakeProvider{name: "a"},
		&fakeProvider{name: "b", enabled: true, result: "ok"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := currentName(t, o); got != "a" {
		t.Errorf("initial current = %q, want %q", got, "a")
	}
}

// ── failover ──

func TestGenerateFailsOverToThirdProvider(t *testing.T) {
	p1 := &fakeProvider{name: "p1", enabled: true, err: fmt.Errorf("rate limit exceeded")}
	p2 := &fakeProvider{name: "p2", enabled: true, err: fmt.Errorf("quota exhausted")}
	p3 := &fakeProvider{name: "p3", enabled: true, result: "from p3"}

	o, err := NewOrchestrator(p1, p2, p3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := o.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "from p3" {
		t.Errorf("result = %q, want %q", text, "from p3")
	}
	if got := currentName(t, o); got != "p3" {
		t.Errorf("current after success = %q, want %q", got, "p3")
	}

	// A subsequent call starts its iteration at p3.
	if _, err := o.Generate(context.Background(), Request{Prompt: "again"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1.calls != 1 || p2.calls != 1 || p3.calls != 2 {
		t.Errorf("call counts = %d/%d/%d, want 1/1/2", p1.calls, p2.calls, p3.calls)
	}
}

func TestGenerateSkipsDisabledProviders(t *testing.T) {
	p1 := &fakeProvider{name: "p1"} // disabled
	p2 := &fakeProvider{name: "p2", enabled: true, result: "ok"}

	o, err := NewOrchestrator(p1, p2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Generate(context.Background(), Request{Prompt: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1.calls != 0 {
		t.Errorf("disabled provider was called %d times", p1.calls)
	}
}

// ── exhaustion ──

func TestGenerateAllProvidersExhausted(t *testing.T) {
	p1 := &fakeProvider{name: "p1", enabled: true, err: fmt.Errorf("boom 1")}
	p2 := &fakeProvider{name: "p2", enabled: true, err: fmt.Errorf("boom 2")}
	p3 := &fakeProvider{name: "p3", enabled: true, err: fmt.Errorf("boom 3")}

	o, err := NewOrchestrator(p1, p2, p3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := currentName(t, o)

	_, err = o.Generate(context.Background(), Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}

	var exhausted *AllProvidersExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *AllProvidersExhaustedError", err)
	}
	if exhausted.Provider != "p3" {
		t.Errorf("last provider = %q, want %q", exhausted.Provider, "p3")
	}
	if got := err.Error(); !errors.Is(err, p3.err) || !strings.Contains(got, "boom 3") {
		t.Errorf("error %q should carry the last provider's error text", got)
	}
	if after := currentName(t, o); after != before {
		t.Errorf("current changed from %q to %q on exhaustion", before, after)
	}
}

// ── streaming ──

func TestStreamTextFailsOver(t *testing.T) {
	p1 := &fakeProvider{name: "p1", enabled: true, err: fmt.Errorf("billing hard stop")}
	p2 := &fakeProvider{name: "p2", enabled: true, result: "streamed"}

	o, err := NewOrchestrator(p1, p2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, err := o.StreamText(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	var full string
	for s.Next() {
		full += s.Current()
	}
	if s.Err() != nil {
		t.Fatalf("stream error: %v", s.Err())
	}
	if full != "streamed" {
		t.Errorf("streamed text = %q, want %q", full, "streamed")
	}
	if got := currentName(t, o); got != "p2" {
		t.Errorf("current after stream = %q, want %q", got, "p2")
	}
}

// ── SwitchTo ──

func TestSwitchTo(t *testing.T) {
	o, err := NewOrchestrator(
		&fakeProvider{name: "alpha", enabled: true, result: "a"},
		&fakeProvider{name: "beta", enabled: true, result: "b"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !o.SwitchTo("beta") {
		t.Error("SwitchTo(beta) = false, want true")
	}
	if got := currentName(t, o); got != "beta" {
		t.Errorf("current = %q, want %q", got, "beta")
	}

	// Exact, case-sensitive match; a miss is a no-op.
	if o.SwitchTo("Beta") {
		t.Error("SwitchTo(Beta) = true, want false (case-sensitive)")
	}
	if o.SwitchTo("gamma") {
		t.Error("SwitchTo(gamma) = true, want false")
	}
	if got := currentName(t, o); got != "beta" {
		t.Errorf("current after misses = %q, want %q", got, "beta")
	}
}

// ── error classification ──

func TestClassifyRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("rate limit reached"), true},
		{fmt.Errorf("monthly quota used up"), true},
		{fmt.Errorf("billing issue on account"), true},
		{fmt.Errorf("insufficient credits"), true},
		{fmt.Errorf("token budget exceeded"), true},
		{fmt.Errorf("connection refused"), false},
		{fmt.Errorf("invalid model"), false},
	}
	for _, tc := range tests {
		if got := classifyRetryable(tc.err); got != tc.want {
			t.Errorf("classifyRetryable(%q) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
