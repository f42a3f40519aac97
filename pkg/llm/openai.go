package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/config"
)

// OpenAIProvider adapts any OpenAI-compatible chat completions endpoint
// (OpenAI, Groq, Together, vLLM, ...) to the Provider interface.
type OpenAIProvider struct {
	name    string
	model   string
	enabled bool
	timeout time.Duration
	client  openai.Client
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider builds a provider from configuration. The provider is
// enabled iff its credential environment variable resolves non-empty.
func NewOpenAIProvider(cfg config.ProviderConfig) *OpenAIProvider {
	key := cfg.APIKey()

	opts := []option.RequestOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}

	return &OpenAIProvider{
		name:    cfg.Name,
		model:   cfg.Model,
		enabled: key != "",
		timeout: cfg.RequestTimeout,
		client:  openai.NewClient(opts...),
	}
}

func (p *OpenAIProvider) Name() string  { return p.name }
func (p *OpenAIProvider) Enabled() bool { return p.enabled }

// Generate performs a blocking chat completion bounded by the per-attempt
// timeout.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream starts a streaming chat completion. The first event is pulled
// eagerly so establishment failures (bad credentials, quota, refused
// connections) surface here instead of on the caller's first read. The
// timeout bounds the whole stream; Close cancels it.
func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)

	raw := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(req))
	s := &openaiStream{stream: raw, cancel: cancel}

	if !s.advance() {
		if err := raw.Err(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("chat completion stream failed: %w", err)
		}
		// Empty but well-formed stream.
		s.done = true
		return s, nil
	}
	s.primed = true
	return s, nil
}

func (p *OpenAIProvider) buildParams(req Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if len(req.Messages) > 0 {
		// Messages win over a raw prompt; the two are mutually exclusive.
		messages = make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
		for _, m := range req.Messages {
			switch m.Role {
			case RoleSystem:
				messages = append(messages, openai.SystemMessage(m.Content))
			case RoleAssistant:
				messages = append(messages, openai.AssistantMessage(m.Content))
			default:
				messages = append(messages, openai.UserMessage(m.Content))
			}
		}
	} else {
		messages = []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: messages,
	}
	if req.Options.Temperature != nil {
		params.Temperature = openai.Float(*req.Options.Temperature)
	}
	if req.Options.MaxTokens != nil {
		params.MaxTokens = openai.Int(*req.Options.MaxTokens)
	}
	return params
}

// openaiStream adapts the SSE chunk stream to the Stream interface, skipping
// events that carry no choices (role preambles, usage frames).
type openaiStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	cancel context.CancelFunc

	cur    string
	primed bool // cur holds the eagerly-pulled first chunk
	done   bool
}

func (s *openaiStream) advance() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) > 0 {
			s.cur = chunk.Choices[0].Delta.Content
			return true
		}
	}
	return false
}

func (s *openaiStream) Next() bool {
	if s.primed {
		s.primed = false
		return true
	}
	if s.done {
		return false
	}
	if s.advance() {
		return true
	}
	s.done = true
	return false
}

func (s *openaiStream) Current() string { return s.cur }
func (s *openaiStream) Err() error      { return s.stream.Err() }

func (s *openaiStream) Close() error {
	s.cancel()
	return s.stream.Close()
}
