package store

import "time"

// Lead classifications, derived purely from the numeric score.
const (
	ClassificationHot         = "hot"
	ClassificationWarm        = "warm"
	ClassificationCold        = "cold"
	ClassificationUnqualified = "unqualified"
)

// Lead statuses. The scoring pipeline owns only the qualifying/qualified
// transition; meeting_scheduled and closed are set by other workflows and
// must never be clobbered by a scoring pass.
const (
	StatusNew              = "new"
	StatusQualifying       = "qualifying"
	StatusQualified        = "qualified"
	StatusMeetingScheduled = "meeting_scheduled"
	StatusClosed           = "closed"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Lead is a prospective customer tracked through the qualification lifecycle.
type Lead struct {
	ID             string
	Email          string
	Name           string
	Company        string
	Score          int
	Classification string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Conversation groups the message history for one lead, plus the best-effort
// summary and sentiment written by the scoring pipeline.
type Conversation struct {
	ID        string
	LeadID    string
	Summary   string
	Sentiment string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Turn is one message in a conversation's append-only history.
type Turn struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// LeadScore is the weighted assessment of a lead. Exactly one row per lead;
// each scoring pass fully replaces it (no history is retained).
type LeadScore struct {
	LeadID          string
	CompanyFit      int
	BudgetAlignment int
	Timeline        int
	Authority       int
	Need            int
	Engagement      int
	Total           int
	Reasoning       string
	UpdatedAt       time.Time
}
