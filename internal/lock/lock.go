package lock

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when a lock backend cannot be reached.
var ErrUnavailable = errors.New("lock backend unavailable")

// Locker grants exclusive ownership of a key. The returned unlock func must
// be called exactly once; calling it releases the key for the next waiter.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// TicketKey names the per-ticket critical section.
func TicketKey(ticketID string) string {
	return "ticket:" + ticketID
}

// AssignCapKey names the critical section guarding an agent's
// per-customer assignment count. Take it before any ticket lock.
func AssignCapKey(agentID, customerID string) string {
	return "assign-cap:" + agentID + ":" + customerID
}
