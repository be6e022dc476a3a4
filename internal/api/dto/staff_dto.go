package dto

import (
	"time"

	"github.com/spec-kit/ticket-routing/internal/domain"
)

// AgentCreateRequest payload for POST /admin/agents.
type AgentCreateRequest struct {
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Password  string           `json:"password"`
	Role      domain.Role      `json:"role"`
	AgentType domain.AgentType `json:"agent_type"`
}

// AgentTypeRequest payload for PATCH /admin/agents/:id/type.
type AgentTypeRequest struct {
	AgentType domain.AgentType `json:"agent_type"`
}

// AgentResponse is the public view of a staff member.
type AgentResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Role      domain.Role      `json:"role"`
	AgentType domain.AgentType `json:"agent_type"`
	Active    bool             `json:"active"`
	CreatedAt time.Time        `json:"created_at"`
}

// AgentRatingsResponse aggregates an agent's ratings.
type AgentRatingsResponse struct {
	AgentID string           `json:"agent_id"`
	Ratings []RatingResponse `json:"ratings"`
	Total   int              `json:"total"`
	Average float64          `json:"average"`
}
