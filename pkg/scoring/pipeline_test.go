package scoring

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/config"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/llm"
	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/store"
)

type scriptedGenerator struct {
	responses []string
	err       error
	prompts   []string
}

func (g *scriptedGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.prompts = append(g.prompts, req.Prompt)
	if g.err != nil {
		return "", g.err
	}
	i := len(g.prompts) - 1
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i], nil
}

func setupConversation(t *testing.T) (*store.Store, *store.Lead, *store.Conversation) {
	t.Helper()
	s, err := store.Open("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	lead, err := s.CreateLead(context.Background(), "lead@example.com", "Lee", "Example Inc")
	require.NoError(t, err)
	conv, err := s.CreateConversation(context.Background(), lead.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendMessage(context.Background(), conv.ID, store.RoleUser, fmt.Sprintf("question %d", i)))
		require.NoError(t, s.AppendMessage(context.Background(), conv.ID, store.RoleAssistant, fmt.Sprintf("answer %d", i)))
	}
	return s, lead, conv
}

const hotAssessment = `{"companyFit": 90, "budgetAlignment": 85, "timeline": 80, "authority": 85,
	"need": 90, "engagement": 80, "reasoning": "ready to buy", "sentiment": "positive",
	"buyingSignals": ["asked for contract"], "nextSteps": "send contract"}`

func TestRescoreWritesScoreAndQualification(t *testing.T) {
	s, lead, conv := setupConversation(t)
	gen := &scriptedGenerator{responses: []string{hotAssessment, "A promising conversation about contracts."}}
	p := NewPipeline(gen, s, config.ScoringConfig{})

	require.NoError(t, p.Rescore(context.Background(), conv.ID))

	// 90*.25+85*.20+80*.20+85*.15+90*.10+80*.10 = 85.25 → 85
	ls, err := s.GetLeadScore(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 85, ls.Total)
	assert.Equal(t, "ready to buy", ls.Reasoning)

	got, err := s.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 85, got.Score)
	assert.Equal(t, store.ClassificationHot, got.Classification)
	assert.Equal(t, store.StatusQualified, got.Status)

	c, err := s.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "A promising conversation about contracts.", c.Summary)
	assert.Equal(t, SentimentPositive, c.Sentiment)
}

func TestRescoreMalformedPayloadDegradesToNeutral(t *testing.T) {
	s, lead, conv := setupConversation(t)
	gen := &scriptedGenerator{responses: []string{"I will not produce JSON today.", "summary"}}
	p := NewPipeline(gen, s, config.ScoringConfig{})

	require.NoError(t, p.Rescore(context.Background(), conv.ID))

	ls, err := s.GetLeadScore(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, ls.Total)
	assert.Equal(t, "Unable to analyze conversation", ls.Reasoning)

	got, err := s.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ClassificationCold, got.Classification)
	assert.Equal(t, store.StatusQualifying, got.Status)
}

func TestRescoreProviderExhaustionDegradesToNeutral(t *testing.T) {
	s, lead, conv := setupConversation(t)
	gen := &scriptedGenerator{err: &llm.AllProvidersExhaustedError{Provider: "p3", Err: fmt.Errorf("quota")}}
	p := NewPipeline(gen, s, config.ScoringConfig{})

	// The scoring write still happens with neutral defaults; only the summary
	// is skipped.
	require.NoError(t, p.Rescore(context.Background(), conv.ID))

	ls, err := s.GetLeadScore(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, ls.Total)

	c, err := s.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Summary)
}

func TestRescoreUnknownConversation(t *testing.T) {
	s, _, _ := setupConversation(t)
	p := NewPipeline(&scriptedGenerator{responses: []string{hotAssessment}}, s, config.ScoringConfig{})

	err := p.Rescore(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestScoringPromptContainsDimensionsAndTranscript(t *testing.T) {
	s, lead, conv := setupConversation(t)
	turns, err := s.ListTurns(context.Background(), conv.ID)
	require.NoError(t, err)

	prompt := BuildScoringPrompt(turns, lead)
	for _, needle := range []string{"companyFit", "budgetAlignment", "timeline", "authority", "need", "engagement", "question 0", "answer 2", "Example Inc"} {
		assert.Contains(t, prompt, needle)
	}
}
