package dto

import (
	"time"

	"github.com/spec-kit/ticket-routing/internal/domain"
)

// CreateTicketRequest payload. CustomerID and Priority are staff-only.
type CreateTicketRequest struct {
	CustomerID  string                 `json:"customer_id"`
	Subject     string                 `json:"subject"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Subcategory string                 `json:"subcategory"`
	Priority    *domain.TicketPriority `json:"priority"`
}

// SetStatusRequest payload for PATCH /tickets/:id/status.
type SetStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignRequest payload for POST /tickets/:id/assign. Agents may omit
// AgentID to take the ticket themselves.
type AssignRequest struct {
	AgentID string `json:"agent_id"`
}

// TicketResponse is the public view of a ticket.
type TicketResponse struct {
	ID          string                `json:"id"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Subcategory string                `json:"subcategory"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	AssignedTo  *string               `json:"assigned_to"`
	IsRemoved   bool                  `json:"is_removed"`
	HasRating   bool                  `json:"has_rating"`
	CreatedBy   string                `json:"created_by"`
	CreatedAt   time.Time             `json:"created_at"`
	LastUpdated time.Time             `json:"last_updated"`
}

// CreateReplyRequest payload.
type CreateReplyRequest struct {
	Message    string `json:"message"`
	IsInternal bool   `json:"is_internal"`
}

// ReplyResponse represents a thread message.
type ReplyResponse struct {
	ID         string             `json:"id"`
	TicketID   string             `json:"ticket_id"`
	AuthorID   string             `json:"author_id"`
	Sender     domain.ReplySender `json:"sender"`
	IsInternal bool               `json:"is_internal"`
	Message    string             `json:"message"`
	CreatedAt  time.Time          `json:"created_at"`
}

// RatingRequest payload.
type RatingRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// RatingResponse is a stored rating.
type RatingResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	AgentID   *string   `json:"agent_id"`
	Rating    int       `json:"rating"`
	Feedback  string    `json:"feedback"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketHistoryResponse describes one audit entry.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByRole domain.Role             `json:"changed_by_role"`
	ChangedByID   *string                 `json:"changed_by_id"`
	OldValue      map[string]any          `json:"old_value"`
	NewValue      map[string]any          `json:"new_value"`
	CreatedAt     time.Time               `json:"created_at"`
}
