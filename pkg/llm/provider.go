// Package llm provides the completion-provider abstraction and the failover
// orchestrator that masks individual provider outages from callers. Providers
// are opaque capabilities: submit a prompt or message list, receive text or a
// text stream, or fail.
package llm

import "context"

// Role values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a conversation history.
type Message struct {
	Role    string
	Content string
}

// Request describes a single completion call. Prompt and Messages are
// mutually exclusive; when both are set, Messages wins and Prompt is dropped.
type Request struct {
	Prompt   string
	Messages []Message

	Options Options
}

// Options is the generation-options bag merged into each provider call.
type Options struct {
	Temperature *float64
	MaxTokens   *int64
}

// Stream is a lazy, single-pass, non-restartable sequence of text chunks.
// The caller concatenates Current values until Next returns false, then
// inspects Err. Close releases the underlying connection and is safe to call
// at any point.
type Stream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

// Provider is a single upstream completion capability with independent
// availability and quota characteristics.
type Provider interface {
	// Name returns the configured provider name (e.g. "openai", "groq").
	Name() string

	// Enabled reports whether the provider's required credential is
	// configured. Fixed for the process lifetime.
	Enabled() bool

	// Generate performs a blocking completion and returns the full text.
	Generate(ctx context.Context, req Request) (string, error)

	// Stream starts a streaming completion. Establishment failures are
	// returned as an error; a non-nil Stream means at least the connection
	// succeeded.
	Stream(ctx context.Context, req Request) (Stream, error)
}
