package domain

var priorityBands = map[AgentType][]TicketPriority{
	AgentTypeJunior: {TicketPriorityLow, TicketPriorityMedium},
	AgentTypeSenior: {TicketPriorityHigh},
}

// Compatible reports whether an agent of the given type may hold a ticket
// of the given priority. Each agent type owns exactly one priority band.
func Compatible(priority TicketPriority, agentType AgentType) bool {
	for _, p := range priorityBands[agentType] {
		if p == priority {
			return true
		}
	}
	return false
}

// CompatiblePriorities returns the priority band for agentType, or nil for
// an unknown type.
func CompatiblePriorities(agentType AgentType) []TicketPriority {
	band := priorityBands[agentType]
	if band == nil {
		return nil
	}
	return append([]TicketPriority(nil), band...)
}
