package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/events"
	"github.com/spec-kit/ticket-routing/internal/lock"
	"github.com/spec-kit/ticket-routing/internal/repository"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

// AssignKind says who is asking for an assignment.
type AssignKind int

const (
	AssignSelf AssignKind = iota
	AssignAdmin
)

// AssignActor identifies the caller of Assign.
type AssignActor struct {
	Kind AssignKind
	ID   string
}

// SelfAssign is an agent taking a ticket for themselves.
func SelfAssign(agentID string) AssignActor {
	return AssignActor{Kind: AssignSelf, ID: agentID}
}

// AdminAssign is an admin routing a ticket to any agent.
func AdminAssign(adminID string) AssignActor {
	return AssignActor{Kind: AssignAdmin, ID: adminID}
}

// FixResult reports what a fix-assignments sweep changed.
type FixResult struct {
	FixedCount int `json:"fixed_count"`
}

// Page bounds a listing.
type Page struct {
	Limit  int
	Offset int
}

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	engine
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps Dependencies) *AssignmentService {
	return &AssignmentService{engine: newEngine(deps)}
}

// Assign gives ticketID to agentID. Checks run in a fixed order: existence,
// ownership, the per-customer cap, then priority compatibility.
func (s *AssignmentService) Assign(ctx context.Context, ticketID, agentID string, actor AssignActor) (result *domain.Ticket, err error) {
	defer func() { s.observe("assign", err) }()

	// createdBy never changes, so the cap lock key can come from an
	// unlocked read.
	probe, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(ticketLookupError(err, ticketID))
	}
	target, err := s.repos.Agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(agentLookupError(err, agentID))
	}
	historyActor, err := s.authorizeAssignActor(ctx, target, actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	var previous *string
	keys := []string{lock.AssignCapKey(agentID, probe.CreatedBy), lock.TicketKey(ticketID)}
	err = s.mutateTicket(ctx, keys, ticketID, func(ctx context.Context, ticket *domain.Ticket) error {
		agent, err := s.repos.Agents.GetByID(ctx, agentID)
		if err != nil {
			return agentLookupError(err, agentID)
		}
		if !agent.Active {
			return apperrors.NewInvalidState("agent is inactive", map[string]any{"agent_id": agentID})
		}
		if ticket.Status == domain.TicketStatusClosed {
			return apperrors.NewInvalidState("ticket is closed", map[string]any{"ticket_id": ticketID})
		}
		if actor.Kind == AssignSelf && ticket.IsAssigned() && ticket.AssignedToID() != agentID {
			return apperrors.NewAlreadyAssigned(map[string]any{"ticket_id": ticketID})
		}

		held, err := s.repos.Tickets.CountAssignedForCustomer(ctx, agentID, ticket.CreatedBy, ticket.ID)
		if err != nil {
			return err
		}
		if held >= s.settings.CustomerCap {
			return apperrors.NewCustomerCapExceeded(map[string]any{
				"agent_id":    agentID,
				"customer_id": ticket.CreatedBy,
				"cap":         s.settings.CustomerCap,
			})
		}
		if !domain.Compatible(ticket.Priority, agent.AgentType) {
			return apperrors.NewPriorityMismatch(map[string]any{
				"priority":   ticket.Priority,
				"agent_type": agent.AgentType,
			})
		}

		previous = ticket.AssignedTo
		oldStatus := ticket.Status
		ticket.AssignedTo = ptr(agentID)
		ticket.Status = domain.TicketStatusInProgress
		ticket.LastUpdated = s.clock.Now()
		if err := s.repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := s.recordHistory(ctx, historyActor, ticket.ID, domain.ChangeTypeAssignee,
			map[string]any{"assigned_to": previous, "status": oldStatus},
			map[string]any{"assigned_to": agentID, "status": ticket.Status},
		); err != nil {
			return err
		}
		result = ticket
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTicketAssigned, result.ID, events.ActorFrom(historyActor), events.TicketAssignedPayload{
		PreviousAgentID: previous,
		AgentID:         agentID,
		ByAdmin:         actor.Kind == AssignAdmin,
	})
	return result, nil
}

func (s *AssignmentService) authorizeAssignActor(ctx context.Context, target *domain.Agent, actor AssignActor) (domain.Actor, error) {
	switch actor.Kind {
	case AssignSelf:
		if actor.ID != target.ID {
			return domain.Actor{}, apperrors.NewForbidden("agents may only assign tickets to themselves")
		}
		return domain.Actor{ID: target.ID, Role: target.Role}, nil
	case AssignAdmin:
		admin, err := s.repos.Agents.GetByID(ctx, actor.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Actor{}, apperrors.NewForbidden("admin role required")
		}
		if err != nil {
			return domain.Actor{}, err
		}
		if admin.Role != domain.RoleAdmin {
			return domain.Actor{}, apperrors.NewForbidden("admin role required")
		}
		return domain.Actor{ID: admin.ID, Role: domain.RoleAdmin}, nil
	default:
		return domain.Actor{}, apperrors.NewForbidden("unknown assignment actor")
	}
}

// ListUnassignedTickets returns open work an agent of agentType could take:
// unassigned, not closed, and within the type's priority band.
func (s *AssignmentService) ListUnassignedTickets(ctx context.Context, agentType domain.AgentType, page Page) ([]domain.Ticket, error) {
	band := domain.CompatiblePriorities(agentType)
	if band == nil {
		return nil, apperrors.NewValidationError("unknown agent type", map[string]any{"agent_type": agentType})
	}
	tickets, err := s.repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{
		Unassigned:      true,
		ExcludeStatuses: []domain.TicketStatus{domain.TicketStatusClosed},
		Priorities:      band,
		Limit:           page.Limit,
		Offset:          page.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// FixAssignments clears assignee references that no longer resolve to an
// agent. Each ticket is cleared with a compare-and-clear, so the sweep is
// idempotent and safe alongside live traffic.
func (s *AssignmentService) FixAssignments(ctx context.Context) (result FixResult, err error) {
	defer func() { s.observe("fix_assignments", err) }()

	dangling, err := s.repos.Tickets.ListDanglingAssignments(ctx)
	if err != nil {
		return FixResult{}, apperrors.MapError(err)
	}

	for _, d := range dangling {
		cleared := false
		err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
			ok, err := s.repos.Tickets.ClearAssignee(ctx, d.TicketID, d.AssignedTo, s.clock.Now())
			if err != nil || !ok {
				return err
			}
			cleared = true
			return s.recordHistory(ctx, systemActor, d.TicketID, domain.ChangeTypeAssignee,
				map[string]any{"assigned_to": d.AssignedTo},
				map[string]any{"assigned_to": nil},
			)
		})
		if err != nil {
			return result, apperrors.MapError(err)
		}
		if !cleared {
			continue
		}
		result.FixedCount++
		s.logger.Info("cleared dangling assignment",
			zap.String("ticket_id", d.TicketID),
			zap.String("stale_agent_id", d.AssignedTo),
		)
		s.publish(ctx, events.EventAssignmentFixed, d.TicketID, events.ActorFrom(systemActor), events.AssignmentFixedPayload{
			StaleAgentID: d.AssignedTo,
		})
	}
	return result, nil
}
