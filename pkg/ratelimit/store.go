package ratelimit

import (
	"context"
	"time"
)

// Admission is the outcome of an atomic ticket-store admission.
type Admission struct {
	// Allowed reports whether a new ticket was inserted.
	Allowed bool

	// Live is the number of live tickets observed before the insert.
	Live int
}

// TicketStore persists expiring admission tickets. Admit must execute the
// full sequence (delete tickets with expiry <= now, count the remainder,
// insert a new ticket only if the count is under max) as one atomic unit,
// so concurrent admissions for the same key cannot over-admit.
type TicketStore interface {
	Admit(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Admission, error)
}
