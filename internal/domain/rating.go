package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Rating is a customer's score for a finished ticket. AgentID is the
// ticket's assignee at submission time and may be nil.
type Rating struct {
	ID        string
	TicketID  string
	UserID    string
	AgentID   *string
	Rating    int
	Feedback  string
	CreatedAt time.Time
}

// AgentRatings aggregates all ratings recorded against one agent.
type AgentRatings struct {
	AgentID string
	Ratings []Rating
	Total   int
	Average float64
}
