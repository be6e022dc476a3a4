package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen               TicketStatus = "open"
	TicketStatusInProgress         TicketStatus = "in-progress"
	TicketStatusWaitingForCustomer TicketStatus = "waiting-for-customer"
	TicketStatusWaitingForAgent    TicketStatus = "waiting-for-agent"
	TicketStatusResolved           TicketStatus = "resolved"
	TicketStatusClosed             TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingForCustomer,
		TicketStatusWaitingForAgent, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates ticket urgency bands.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
//
// Version increases by one on every persisted write and is the token for
// compare-and-swap updates.
type Ticket struct {
	ID          string
	Subject     string
	Description string
	Category    string
	Subcategory string
	Priority    TicketPriority
	Status      TicketStatus
	AssignedTo  *string
	IsRemoved   bool
	HasRating   bool
	CreatedBy   string
	CreatedAt   time.Time
	LastUpdated time.Time
	Version     int64
}

// IsAssigned reports whether the ticket currently has an assignee.
func (t *Ticket) IsAssigned() bool {
	return t.AssignedTo != nil && *t.AssignedTo != ""
}

// AssignedToID returns the assignee id or an empty string.
func (t *Ticket) AssignedToID() string {
	if t.AssignedTo == nil {
		return ""
	}
	return *t.AssignedTo
}
