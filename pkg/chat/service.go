// Package chat generates the user-facing assistant reply for a conversation
// and triggers the re-scoring cadence. The reply path and the scoring path
// are decoupled: scoring runs fire-and-forget and can never fail or delay a
// reply that has already been sent.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/config"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/llm"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/observability/logging"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/scoring"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/store"
)

// FallbackReply is sent when every provider is exhausted on the primary
// reply path. A generic message preserves the conversational UX instead of
// surfacing an error code.
const FallbackReply = "I'm having trouble connecting right now. Please try again in a moment."

// Streamer is the completion capability the reply path needs; satisfied by
// llm.Orchestrator.
type Streamer interface {
	StreamText(ctx context.Context, req llm.Request) (llm.Stream, error)
}

// Rescorer triggers an asynchronous scoring pass; satisfied by
// scoring.Pipeline.
type Rescorer interface {
	RescoreAsync(conversationID string)
}

// Service handles one conversational turn end to end.
type Service struct {
	streamer Streamer
	rescorer Rescorer
	store    *store.Store
	cfg      config.ChatConfig
}

// NewService wires the chat service.
func NewService(streamer Streamer, rescorer Rescorer, st *store.Store, cfg config.ChatConfig) *Service {
	return &Service{streamer: streamer, rescorer: rescorer, store: st, cfg: cfg}
}

// Respond appends the user message, streams the assistant reply through sink
// chunk by chunk, appends the full reply, and kicks off a scoring pass when
// the turn count hits the cadence. The returned string is the complete reply.
func (s *Service) Respond(ctx context.Context, conversationID, userMessage string, sink func(chunk string) error) (string, error) {
	if err := s.store.AppendMessage(ctx, conversationID, store.RoleUser, userMessage); err != nil {
		return "", fmt.Errorf("append user turn: %w", err)
	}

	turns, err := s.store.ListTurns(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	reply, sinkErr := s.generateReply(ctx, turns, sink)

	if err := s.store.AppendMessage(ctx, conversationID, store.RoleAssistant, reply); err != nil {
		return "", fmt.Errorf("append assistant turn: %w", err)
	}

	// Turn count now includes both the user turn and the reply.
	if scoring.ShouldScore(len(turns) + 1) {
		s.rescorer.RescoreAsync(conversationID)
	}

	return reply, sinkErr
}

// generateReply streams the completion, forwarding chunks to sink. Provider
// exhaustion degrades to the fallback reply; a stream that dies after
// emitting chunks keeps its partial output.
func (s *Service) generateReply(ctx context.Context, turns []store.Turn, sink func(string) error) (string, error) {
	stream, err := s.streamer.StreamText(ctx, llm.Request{
		Messages: s.buildMessages(turns),
		Options:  llm.Options{Temperature: s.cfg.Temperature, MaxTokens: s.cfg.MaxTokens},
	})
	if err != nil {
		var exhausted *llm.AllProvidersExhaustedError
		if errors.As(err, &exhausted) {
			logging.Errorf("Reply generation exhausted all providers: %v", err)
			return FallbackReply, sink(FallbackReply)
		}
		return "", fmt.Errorf("start reply stream: %w", err)
	}
	defer stream.Close()

	var reply string
	for stream.Next() {
		chunk := stream.Current()
		reply += chunk
		if err := sink(chunk); err != nil {
			// Client went away; persist what was actually delivered.
			return reply, err
		}
	}
	if err := stream.Err(); err != nil {
		logging.Warnf("Reply stream ended early after %d bytes: %v", len(reply), err)
		if reply == "" {
			return FallbackReply, sink(FallbackReply)
		}
	}
	return reply, nil
}

func (s *Service) buildMessages(turns []store.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns)+1)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.cfg.SystemPrompt})
	}
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == store.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	return messages
}
