package domain

import "time"

// AgentType restricts which priority band an agent may hold.
type AgentType string

const (
	AgentTypeJunior AgentType = "Junior"
	AgentTypeSenior AgentType = "Senior"
)

// Valid reports whether t is a known agent type.
func (t AgentType) Valid() bool {
	return t == AgentTypeJunior || t == AgentTypeSenior
}

// Agent models a support agent or administrator.
type Agent struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	AgentType    AgentType
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
