// Package scoring turns a conversation transcript into a weighted lead score,
// a classification, and a status transition. The assessment itself is
// delegated to the provider orchestrator; everything downstream of the raw
// model output (parsing, weighting, classification, cadence) is deterministic
// and lives here.
package scoring

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/store"
)

// Dimension weights. They must sum to exactly 1.0, which keeps the weighted
// total inside [0,100] for in-range inputs.
const (
	WeightCompanyFit      = 0.25
	WeightBudgetAlignment = 0.20
	WeightTimeline        = 0.20
	WeightAuthority       = 0.15
	WeightNeed            = 0.10
	WeightEngagement      = 0.10
)

// Sentiment values accepted from the model.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

const fallbackReasoning = "Unable to analyze conversation"

// Assessment is the structured payload expected from the orchestrator for a
// scoring pass. All dimensions are in [0,100].
type Assessment struct {
	CompanyFit      int      `json:"companyFit"`
	BudgetAlignment int      `json:"budgetAlignment"`
	Timeline        int      `json:"timeline"`
	Authority       int      `json:"authority"`
	Need            int      `json:"need"`
	Engagement      int      `json:"engagement"`
	Reasoning       string   `json:"reasoning"`
	Sentiment       string   `json:"sentiment"`
	BuyingSignals   []string `json:"buyingSignals"`
	NextSteps       string   `json:"nextSteps"`
}

// NeutralAssessment is the documented fallback when a scoring payload cannot
// be parsed: 50 on every dimension, neutral sentiment, no signals.
func NeutralAssessment() Assessment {
	return Assessment{
		CompanyFit:      50,
		BudgetAlignment: 50,
		Timeline:        50,
		Authority:       50,
		Need:            50,
		Engagement:      50,
		Reasoning:       fallbackReasoning,
		Sentiment:       SentimentNeutral,
		BuyingSignals:   []string{},
	}
}

// assessmentPayload uses pointers so missing numeric fields are detectable.
type assessmentPayload struct {
	CompanyFit      *float64 `json:"companyFit"`
	BudgetAlignment *float64 `json:"budgetAlignment"`
	Timeline        *float64 `json:"timeline"`
	Authority       *float64 `json:"authority"`
	Need            *float64 `json:"need"`
	Engagement      *float64 `json:"engagement"`
	Reasoning       string   `json:"reasoning"`
	Sentiment       string   `json:"sentiment"`
	BuyingSignals   []string `json:"buyingSignals"`
	NextSteps       string   `json:"nextSteps"`
}

// ParseAssessment decodes the model's text output into an Assessment. Models
// frequently wrap JSON in markdown fences, so the outermost JSON object is
// extracted first. Any failure (malformed JSON, missing dimension,
// non-numeric score) yields the neutral fallback with ok=false; parsing
// never fails the caller.
func ParseAssessment(text string) (Assessment, bool) {
	raw := extractJSON(text)
	if raw == "" {
		return NeutralAssessment(), false
	}

	var p assessmentPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return NeutralAssessment(), false
	}
	dims := []*float64{p.CompanyFit, p.BudgetAlignment, p.Timeline, p.Authority, p.Need, p.Engagement}
	for _, d := range dims {
		if d == nil {
			return NeutralAssessment(), false
		}
	}

	a := Assessment{
		CompanyFit:      clampDim(*p.CompanyFit),
		BudgetAlignment: clampDim(*p.BudgetAlignment),
		Timeline:        clampDim(*p.Timeline),
		Authority:       clampDim(*p.Authority),
		Need:            clampDim(*p.Need),
		Engagement:      clampDim(*p.Engagement),
		Reasoning:       p.Reasoning,
		Sentiment:       normalizeSentiment(p.Sentiment),
		BuyingSignals:   p.BuyingSignals,
		NextSteps:       p.NextSteps,
	}
	if a.BuyingSignals == nil {
		a.BuyingSignals = []string{}
	}
	return a, true
}

func clampDim(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// extractJSON returns the outermost JSON object in text, tolerating markdown
// code fences around it.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// Total is the weighted sum of the six dimensions, rounded. For in-range
// inputs the result is in [0,100] because the weights sum to 1.
func Total(a Assessment) int {
	sum := float64(a.CompanyFit)*WeightCompanyFit +
		float64(a.BudgetAlignment)*WeightBudgetAlignment +
		float64(a.Timeline)*WeightTimeline +
		float64(a.Authority)*WeightAuthority +
		float64(a.Need)*WeightNeed +
		float64(a.Engagement)*WeightEngagement
	return int(math.Round(sum))
}

// Classify maps a total score to its categorical label. A pure step function:
// >=80 hot, >=60 warm, >=40 cold, else unqualified.
func Classify(total int) string {
	switch {
	case total >= 80:
		return store.ClassificationHot
	case total >= 60:
		return store.ClassificationWarm
	case total >= 40:
		return store.ClassificationCold
	default:
		return store.ClassificationUnqualified
	}
}

// DeriveStatus maps a total score to the pipeline-owned status half:
// >=70 qualified, else qualifying.
func DeriveStatus(total int) string {
	if total >= 70 {
		return store.StatusQualified
	}
	return store.StatusQualifying
}

// ShouldScore is the re-scoring cadence: scoring runs only when the running
// turn count (after both the user turn and the assistant reply are appended)
// is at least 4 and divisible by 3. A deliberate sampling policy to bound
// completion cost.
func ShouldScore(turnCount int) bool {
	return turnCount >= 4 && turnCount%3 == 0
}
