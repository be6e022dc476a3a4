package domain

// TransitionKind labels notable customer-driven transitions for the audit
// trail.
type TransitionKind string

const (
	TransitionManual              TransitionKind = ""
	TransitionResolutionConfirmed TransitionKind = "resolution_confirmed"
	TransitionReopened            TransitionKind = "reopened"
)

// TransitionDecision is the outcome of evaluating an explicit status change.
type TransitionDecision struct {
	From TicketStatus
	To   TicketStatus
	Kind TransitionKind
}

// TransitionError explains why an explicit status change was refused.
type TransitionError int

const (
	TransitionOK TransitionError = iota
	TransitionUnknownStatus
	TransitionNotPermitted
	TransitionFromTerminal
)

// EvaluateTransition checks whether role may move a ticket from current to
// target. Closed is terminal: only a repeated close is accepted from it.
func EvaluateTransition(role Role, current, target TicketStatus) (TransitionDecision, TransitionError) {
	decision := TransitionDecision{From: current, To: target}
	if !target.Valid() {
		return decision, TransitionUnknownStatus
	}
	if !CapabilitiesFor(role).AllowsStatus(target) {
		return decision, TransitionNotPermitted
	}
	if current == TicketStatusClosed && target != TicketStatusClosed {
		return decision, TransitionFromTerminal
	}
	if role == RoleCustomer && current == TicketStatusResolved {
		switch target {
		case TicketStatusClosed:
			decision.Kind = TransitionResolutionConfirmed
		case TicketStatusWaitingForAgent:
			decision.Kind = TransitionReopened
		}
	}
	return decision, TransitionOK
}

// ImplicitReplyStatus returns the status a ticket moves to when a reply from
// sender arrives outside the debounce window. Resolved and closed tickets
// keep their status; the second result is false when nothing changes.
func ImplicitReplyStatus(current TicketStatus, sender ReplySender) (TicketStatus, bool) {
	if current == TicketStatusResolved || current == TicketStatusClosed {
		return current, false
	}
	next := TicketStatusWaitingForAgent
	if sender == SenderAgent {
		next = TicketStatusWaitingForCustomer
	}
	return next, next != current
}
