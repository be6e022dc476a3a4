package events

import (
	"time"

	"github.com/spec-kit/ticket-routing/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketReplyAdded      EventType = "ticket_reply_added"
	EventTicketRated           EventType = "ticket_rated"
	EventTicketRemovedFromView EventType = "ticket_removed_from_view"
	EventAssignmentFixed       EventType = "assignment_fixed"
)

// AllEventTypes lists every event the engine emits.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketAssigned,
	EventTicketReplyAdded,
	EventTicketRated,
	EventTicketRemovedFromView,
	EventAssignmentFixed,
}

// Actor encapsulates actor metadata for an event. System-initiated events
// carry an empty ID.
type Actor struct {
	Role domain.Role `json:"role"`
	ID   string      `json:"id,omitempty"`
}

// ActorFrom converts an authenticated caller.
func ActorFrom(a domain.Actor) Actor {
	return Actor{Role: a.Role, ID: a.ID}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CustomerID  string                `json:"customer_id"`
	Category    string                `json:"category"`
	Subcategory string                `json:"subcategory"`
	Priority    domain.TicketPriority `json:"priority"`
	Subject     string                `json:"subject"`
}

// TicketStatusChangedPayload payload. Reason is "reply" for implicit
// transitions and the transition kind for notable customer moves.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousAgentID *string `json:"previous_agent_id,omitempty"`
	AgentID         string  `json:"agent_id"`
	ByAdmin         bool    `json:"by_admin"`
}

// TicketReplyAddedPayload payload.
type TicketReplyAddedPayload struct {
	ReplyID     string             `json:"reply_id"`
	Sender      domain.ReplySender `json:"sender"`
	IsInternal  bool               `json:"is_internal"`
	BodyPreview string             `json:"body_preview"`
}

// TicketRatedPayload payload.
type TicketRatedPayload struct {
	RatingID string  `json:"rating_id"`
	Rating   int     `json:"rating"`
	AgentID  *string `json:"agent_id,omitempty"`
}

// AssignmentFixedPayload payload.
type AssignmentFixedPayload struct {
	StaleAgentID string `json:"stale_agent_id"`
}
