package scoring

import (
	"fmt"
	"strings"

	"github.com/SIRI-bit-tech/LeadFlow-AI-sub000/pkg/store"
)

const scoringInstructions = `You are a B2B sales analyst. Assess the lead qualification signals in the conversation below.

Score each dimension from 0 to 100:
- companyFit (weight 0.25): how well the lead's company matches the ideal customer profile
- budgetAlignment (weight 0.20): evidence the lead has budget for a purchase
- timeline (weight 0.20): urgency and concreteness of the buying timeline
- authority (weight 0.15): whether the contact can make or influence the decision
- need (weight 0.10): strength of the stated problem or need
- engagement (weight 0.10): responsiveness and depth of engagement in the conversation

Respond with ONLY a JSON object, no prose, with exactly these fields:
{"companyFit": int, "budgetAlignment": int, "timeline": int, "authority": int, "need": int, "engagement": int, "reasoning": string, "sentiment": "positive"|"neutral"|"negative", "buyingSignals": [string], "nextSteps": string}`

const summaryInstructions = `Summarize the following sales conversation in 2-3 sentences. Focus on what the lead wants, their constraints, and any commitments made. Respond with the summary text only.`

// BuildScoringPrompt renders the structured assessment prompt for one
// conversation and lead.
func BuildScoringPrompt(turns []store.Turn, lead *store.Lead) string {
	var b strings.Builder
	b.WriteString(scoringInstructions)
	b.WriteString("\n\nLead context:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orUnknown(lead.Name))
	fmt.Fprintf(&b, "- Company: %s\n", orUnknown(lead.Company))
	fmt.Fprintf(&b, "- Email: %s\n", orUnknown(lead.Email))
	b.WriteString("\nConversation transcript:\n")
	b.WriteString(renderTranscript(turns))
	return b.String()
}

// BuildSummaryPrompt renders the free-text summary prompt.
func BuildSummaryPrompt(turns []store.Turn) string {
	return summaryInstructions + "\n\n" + renderTranscript(turns)
}

func renderTranscript(turns []store.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		role := "Lead"
		if t.Role == store.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, t.Content)
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
