package domain

import "time"

// ReplySender indicates which side of the conversation wrote a reply.
type ReplySender string

const (
	SenderCustomer ReplySender = "customer"
	SenderAgent    ReplySender = "agent"
)

// Reply is a message in a ticket thread. Internal replies are agent-only
// notes and are never shown to customers.
type Reply struct {
	ID         string
	TicketID   string
	AuthorID   string
	Sender     ReplySender
	IsInternal bool
	Message    string
	CreatedAt  time.Time
}
