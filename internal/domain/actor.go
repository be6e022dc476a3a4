package domain

// Role is the caller's role as established by authentication.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"

	// RoleSystem attributes automated changes. It has no capabilities.
	RoleSystem Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := capabilityTable[r]
	return ok
}

// IsStaff reports whether r is an agent or an admin.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// Sender maps the role to the reply sender recorded on new replies.
func (r Role) Sender() ReplySender {
	if r.IsStaff() {
		return SenderAgent
	}
	return SenderCustomer
}

// Actor is an authenticated caller.
type Actor struct {
	ID   string
	Role Role
}

// Capabilities is the fixed set of permissions attached to a role.
type Capabilities struct {
	Role                 Role
	CanSetInternalNote   bool
	CanReassign          bool
	AllowedStatusTargets map[TicketStatus]struct{}
}

// AllowsStatus reports whether the role may explicitly set status s.
func (c Capabilities) AllowsStatus(s TicketStatus) bool {
	_, ok := c.AllowedStatusTargets[s]
	return ok
}

var staffStatusTargets = statusSet(
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusWaitingForCustomer,
	TicketStatusResolved,
	TicketStatusClosed,
)

var capabilityTable = map[Role]Capabilities{
	RoleCustomer: {
		Role:                 RoleCustomer,
		AllowedStatusTargets: statusSet(TicketStatusClosed, TicketStatusWaitingForAgent),
	},
	RoleAgent: {
		Role:                 RoleAgent,
		CanSetInternalNote:   true,
		AllowedStatusTargets: staffStatusTargets,
	},
	RoleAdmin: {
		Role:                 RoleAdmin,
		CanSetInternalNote:   true,
		CanReassign:          true,
		AllowedStatusTargets: staffStatusTargets,
	},
}

// CapabilitiesFor returns the capabilities of role r. Unknown roles get
// the zero value, which allows nothing.
func CapabilitiesFor(r Role) Capabilities {
	return capabilityTable[r]
}

// Capabilities returns the capabilities of the actor's role.
func (a Actor) Capabilities() Capabilities {
	return CapabilitiesFor(a.Role)
}

func statusSet(statuses ...TicketStatus) map[TicketStatus]struct{} {
	set := make(map[TicketStatus]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}
