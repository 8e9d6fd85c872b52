package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusCreated    TicketStatus = "CREATED"
	TicketStatusTodo       TicketStatus = "TODO"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

var statusOrder = []TicketStatus{
	TicketStatusCreated,
	TicketStatusTodo,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Rank returns the position of the status in the lifecycle, or -1 when unknown.
func (s TicketStatus) Rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// StatusesBefore lists the statuses strictly earlier than s.
func StatusesBefore(s TicketStatus) []TicketStatus {
	rank := s.Rank()
	if rank <= 0 {
		return nil
	}
	out := make([]TicketStatus, rank)
	copy(out, statusOrder[:rank])
	return out
}

// CanAdvance reports whether moving from the current status to next goes forward.
func CanAdvance(current, next TicketStatus) bool {
	return current.Rank() < next.Rank()
}

// TicketPriority enumerates triage urgency as emitted by analysis.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// NormalizePriority keeps raw only when it is a known priority, falling back to medium.
func NormalizePriority(raw string) TicketPriority {
	switch p := TicketPriority(raw); p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return p
	default:
		return TicketPriorityMedium
	}
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID            string
	Title         string
	Description   string
	Status        TicketStatus
	Priority      *TicketPriority
	HelpfulNotes  *string
	RelatedSkills []string
	AssignedTo    *string
	CreatedBy     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsAssigned reports whether a moderator or admin owns the ticket.
func (t *Ticket) IsAssigned() bool {
	return t.AssignedTo != nil && strings.TrimSpace(*t.AssignedTo) != ""
}
