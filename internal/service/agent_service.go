package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-routing/internal/auth"
	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/repository"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

// AgentService manages agent and admin accounts.
type AgentService struct {
	engine
}

// NewAgentService constructs the service.
func NewAgentService(deps Dependencies) *AgentService {
	return &AgentService{engine: newEngine(deps)}
}

// CreateAgentInput describes a new staff account.
type CreateAgentInput struct {
	Name      string
	Email     string
	Password  string
	Role      domain.Role
	AgentType domain.AgentType
}

// AgentListFilter defines listing parameters.
type AgentListFilter struct {
	Role      *domain.Role
	AgentType *domain.AgentType
	Active    *bool
	Limit     int
	Offset    int
}

func requireAdmin(actor domain.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateAgent registers a staff member.
func (s *AgentService) CreateAgent(ctx context.Context, actor domain.Actor, input CreateAgentInput) (*domain.Agent, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if input.Role == "" {
		input.Role = domain.RoleAgent
	}
	if !input.Role.IsStaff() {
		return nil, apperrors.NewValidationError("role must be agent or admin", map[string]any{"role": input.Role})
	}
	if !input.AgentType.Valid() {
		return nil, apperrors.NewValidationError("unknown agent type", map[string]any{"agent_type": input.AgentType})
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password too short", map[string]any{"min_length": minPasswordLength})
	}

	hash, err := auth.HashPassword(input.Password, s.settings.BcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	agent := &domain.Agent{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		AgentType:    input.AgentType,
		Active:       true,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repos.Agents.Create(ctx, agent); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("agent created",
		zap.String("agent_id", agent.ID),
		zap.String("role", string(agent.Role)),
		zap.String("agent_type", string(agent.AgentType)),
	)
	return agent, nil
}

// SetAgentType changes the priority band an agent may hold. Tickets the
// agent already holds are left as they are.
func (s *AgentService) SetAgentType(ctx context.Context, actor domain.Actor, agentID string, agentType domain.AgentType) (*domain.Agent, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !agentType.Valid() {
		return nil, apperrors.NewValidationError("unknown agent type", map[string]any{"agent_type": agentType})
	}
	agent, err := s.repos.Agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(agentLookupError(err, agentID))
	}
	if agent.AgentType == agentType {
		return agent, nil
	}
	previous := agent.AgentType
	agent.AgentType = agentType
	agent.UpdatedAt = s.clock.Now()
	if err := s.repos.Agents.Update(ctx, agent); err != nil {
		return nil, apperrors.MapError(agentLookupError(err, agentID))
	}
	s.logger.Info("agent type changed",
		zap.String("agent_id", agentID),
		zap.String("from", string(previous)),
		zap.String("to", string(agentType)),
	)
	return agent, nil
}

// DeleteAgent removes a staff account. Tickets it held keep the stale
// reference until FixAssignments clears them.
func (s *AgentService) DeleteAgent(ctx context.Context, actor domain.Actor, agentID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if agentID == actor.ID {
		return apperrors.NewValidationError("admins cannot delete themselves", nil)
	}
	if err := s.repos.Agents.Delete(ctx, agentID); err != nil {
		return apperrors.MapError(agentLookupError(err, agentID))
	}
	s.logger.Info("agent deleted", zap.String("agent_id", agentID))
	return nil
}

// GetAgent returns one staff record to staff callers.
func (s *AgentService) GetAgent(ctx context.Context, actor domain.Actor, agentID string) (*domain.Agent, error) {
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	agent, err := s.repos.Agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(agentLookupError(err, agentID))
	}
	return agent, nil
}

// ListAgents lists staff accounts for admins.
func (s *AgentService) ListAgents(ctx context.Context, actor domain.Actor, filter AgentListFilter) ([]domain.Agent, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	agents, err := s.repos.Agents.List(ctx, repository.AgentFilter{
		Role:      filter.Role,
		AgentType: filter.AgentType,
		Active:    filter.Active,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return "", apperrors.NewValidationError("invalid email", map[string]any{"email": raw})
	}
	return email, nil
}
