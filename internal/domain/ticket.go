package domain

import "time"

// TicketPriority enumerates SLA urgency on incoming tickets.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the read-only snapshot view of a support ticket. The engine
// never mutates tickets; it only groups and counts them.
type Ticket struct {
	ID              string
	Title           string
	Description     string
	Category        string
	Priority        TicketPriority
	CreatedByUserID string
	TagIDs          []string
	CreatedAt       time.Time
}
