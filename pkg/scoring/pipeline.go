package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/config"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/llm"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/metrics"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/observability/logging"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/store"
)

// rescoreTimeout bounds one asynchronous scoring pass end to end.
const rescoreTimeout = 2 * time.Minute

// Generator is the completion capability the pipeline needs; satisfied by
// llm.Orchestrator.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// Pipeline scores conversations and writes the results to the lead store.
// It is invoked asynchronously relative to the user-facing reply and must
// never fail or block that path.
type Pipeline struct {
	gen   Generator
	store *store.Store
	opts  llm.Options
}

// NewPipeline wires the pipeline to the orchestrator and store.
func NewPipeline(gen Generator, st *store.Store, cfg config.ScoringConfig) *Pipeline {
	return &Pipeline{
		gen:   gen,
		store: st,
		opts:  llm.Options{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
	}
}

// ScoreConversation asks the orchestrator to assess the transcript and parses
// the structured payload. It always returns a usable Assessment: provider
// exhaustion and malformed payloads both degrade to the neutral fallback.
func (p *Pipeline) ScoreConversation(ctx context.Context, turns []store.Turn, lead *store.Lead) Assessment {
	text, err := p.gen.Generate(ctx, llm.Request{
		Prompt:  BuildScoringPrompt(turns, lead),
		Options: p.opts,
	})
	if err != nil {
		metrics.ScoringPasses.WithLabelValues("fallback").Inc()
		logging.Warnf("Scoring generation failed for lead %s, using neutral defaults: %v", lead.ID, err)
		return NeutralAssessment()
	}

	a, ok := ParseAssessment(text)
	if !ok {
		metrics.ScoringPasses.WithLabelValues("fallback").Inc()
		logging.Warnf("Scoring payload malformed for lead %s, using neutral defaults", lead.ID)
		return a
	}
	metrics.ScoringPasses.WithLabelValues("scored").Inc()
	return a
}

// Summarize produces a 2-3 sentence free-text summary of the transcript.
// Best effort: callers must tolerate a missing summary rather than fail.
func (p *Pipeline) Summarize(ctx context.Context, turns []store.Turn) (string, error) {
	text, err := p.gen.Generate(ctx, llm.Request{
		Prompt:  BuildSummaryPrompt(turns),
		Options: p.opts,
	})
	if err != nil {
		metrics.SummaryFailures.Inc()
		return "", fmt.Errorf("summarize conversation: %w", err)
	}
	return text, nil
}

// Rescore runs one full scoring pass for a conversation: load the transcript
// and lead, assess, upsert the score row, update the lead's qualification,
// and refresh the conversation summary.
func (p *Pipeline) Rescore(ctx context.Context, conversationID string) error {
	conv, err := p.store.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	lead, err := p.store.GetLead(ctx, conv.LeadID)
	if err != nil {
		return fmt.Errorf("load lead %s: %w", conv.LeadID, err)
	}
	turns, err := p.store.ListTurns(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load turns for %s: %w", conversationID, err)
	}

	a := p.ScoreConversation(ctx, turns, lead)
	total := Total(a)

	if err := p.store.UpsertLeadScore(ctx, store.LeadScore{
		LeadID:          lead.ID,
		CompanyFit:      a.CompanyFit,
		BudgetAlignment: a.BudgetAlignment,
		Timeline:        a.Timeline,
		Authority:       a.Authority,
		Need:            a.Need,
		Engagement:      a.Engagement,
		Total:           total,
		Reasoning:       a.Reasoning,
	}); err != nil {
		return err
	}
	if err := p.store.UpdateQualification(ctx, lead.ID, total, Classify(total), DeriveStatus(total)); err != nil {
		return err
	}

	logging.Infof("Rescored lead %s: total=%d classification=%s", lead.ID, total, Classify(total))

	// Summary is best effort and must not fail the pass.
	if summary, err := p.Summarize(ctx, turns); err != nil {
		logging.Warnf("Summary skipped for conversation %s: %v", conversationID, err)
	} else if err := p.store.SetConversationSummary(ctx, conversationID, summary, a.Sentiment); err != nil {
		logging.Warnf("Summary write failed for conversation %s: %v", conversationID, err)
	}

	return nil
}

// RescoreAsync runs Rescore in a goroutine, fire-and-forget. The reply
// already sent to the user is never affected: errors and panics are captured
// and logged here, not rethrown across the boundary.
func (p *Pipeline) RescoreAsync(conversationID string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Errorf("Scoring pass panicked for conversation %s: %v", conversationID, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), rescoreTimeout)
		defer cancel()

		if err := p.Rescore(ctx, conversationID); err != nil {
			logging.Errorf("Scoring pass failed for conversation %s: %v", conversationID, err)
		}
	}()
}
