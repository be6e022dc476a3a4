package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-routing/internal/catalog"
	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/events"
	"github.com/spec-kit/ticket-routing/internal/lock"
	"github.com/spec-kit/ticket-routing/internal/repository"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

// TicketService coordinates ticket creation, status changes and visibility.
type TicketService struct {
	engine
	catalog *catalog.Catalog
}

// NewTicketService constructs the service.
func NewTicketService(deps Dependencies) *TicketService {
	return &TicketService{engine: newEngine(deps), catalog: deps.Catalog}
}

// CreateTicketInput describes ticket creation payload. CustomerID is only
// read for staff callers; Priority may only be set by staff.
type CreateTicketInput struct {
	CustomerID  string
	Subject     string
	Description string
	Category    string
	Subcategory string
	Priority    *domain.TicketPriority
}

// ListFilter narrows ListTickets. Role rules are applied on top.
type ListFilter struct {
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	AssignedTo     *string
	Unassigned     bool
	IncludeRemoved bool
	Limit          int
	Offset         int
}

// CreateTicket opens a ticket. The initial priority comes from the
// category table unless staff override it.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input CreateTicketInput) (result *domain.Ticket, err error) {
	defer func() { s.observe("create_ticket", err) }()

	customerID := input.CustomerID
	switch {
	case actor.Role == domain.RoleCustomer:
		if input.Priority != nil {
			return nil, apperrors.NewForbidden("customers cannot set ticket priority")
		}
		customerID = actor.ID
	case actor.Role.IsStaff():
		if strings.TrimSpace(customerID) == "" {
			return nil, apperrors.NewValidationError("customer_id is required", nil)
		}
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}

	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError("subject is required", nil)
	}
	priority, ok := s.catalog.Lookup(input.Category, input.Subcategory)
	if !ok {
		return nil, apperrors.NewValidationError("unknown category or subcategory", map[string]any{
			"category":    input.Category,
			"subcategory": input.Subcategory,
		})
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		priority = *input.Priority
	}

	if _, err := s.repos.Customers.GetByID(ctx, customerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": customerID})
		}
		return nil, apperrors.MapError(err)
	}

	now := s.clock.Now()
	ticket := &domain.Ticket{
		Subject:     subject,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.ToLower(strings.TrimSpace(input.Category)),
		Subcategory: strings.ToLower(strings.TrimSpace(input.Subcategory)),
		Priority:    priority,
		Status:      domain.TicketStatusOpen,
		CreatedBy:   customerID,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := s.repos.Tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTicketCreated, ticket.ID, events.ActorFrom(actor), events.TicketCreatedPayload{
		CustomerID:  customerID,
		Category:    ticket.Category,
		Subcategory: ticket.Subcategory,
		Priority:    ticket.Priority,
		Subject:     ticket.Subject,
	})
	return ticket, nil
}

// SetStatus applies an explicit status change requested by actor.
func (s *TicketService) SetStatus(ctx context.Context, ticketID string, newStatus domain.TicketStatus, actor domain.Actor) (result *domain.Ticket, err error) {
	defer func() { s.observe("set_status", err) }()

	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	if !actor.Capabilities().AllowsStatus(newStatus) {
		return nil, apperrors.NewForbidden("role may not set this status")
	}

	var decision domain.TransitionDecision
	err = s.mutateTicket(ctx, []string{lock.TicketKey(ticketID)}, ticketID, func(ctx context.Context, ticket *domain.Ticket) error {
		if err := authorizeTicketAccess(actor, ticket); err != nil {
			return err
		}
		var verdict domain.TransitionError
		decision, verdict = domain.EvaluateTransition(actor.Role, ticket.Status, newStatus)
		switch verdict {
		case domain.TransitionOK:
		case domain.TransitionFromTerminal:
			return apperrors.NewInvalidState("closed tickets cannot be reopened", map[string]any{"ticket_id": ticketID})
		case domain.TransitionUnknownStatus:
			return apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
		default:
			return apperrors.NewForbidden("role may not set this status")
		}

		ticket.Status = newStatus
		ticket.LastUpdated = s.clock.Now()
		if err := s.repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if decision.From != decision.To {
			newValue := map[string]any{"status": decision.To}
			if decision.Kind != domain.TransitionManual {
				newValue["comment"] = string(decision.Kind)
			}
			if err := s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeStatus,
				map[string]any{"status": decision.From}, newValue); err != nil {
				return err
			}
		}
		result = ticket
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if decision.Kind != domain.TransitionManual {
		s.logger.Info("customer transition",
			zap.String("ticket_id", ticketID),
			zap.String("kind", string(decision.Kind)),
			zap.String("from", string(decision.From)),
			zap.String("to", string(decision.To)),
		)
	}
	if decision.From != decision.To {
		s.publish(ctx, events.EventTicketStatusChanged, ticketID, events.ActorFrom(actor), events.TicketStatusChangedPayload{
			OldStatus: decision.From,
			NewStatus: decision.To,
			Reason:    string(decision.Kind),
		})
	}
	return result, nil
}

// ListTickets returns the tickets actor may see, narrowed by filter.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter ListFilter) ([]domain.Ticket, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": st})
		}
	}
	for _, p := range filter.Priorities {
		if !p.Valid() {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": p})
		}
	}
	if filter.Unassigned && filter.AssignedTo != nil {
		return nil, apperrors.NewValidationError("assigned_to and unassigned are mutually exclusive", nil)
	}

	repoFilter := repository.TicketFilter{
		AssignedTo: filter.AssignedTo,
		Unassigned: filter.Unassigned,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}

	switch actor.Role {
	case domain.RoleCustomer:
		repoFilter.CreatedBy = ptr(actor.ID)
	case domain.RoleAgent:
		repoFilter.IsRemoved = ptr(false)
		if filter.AssignedTo != nil && *filter.AssignedTo != actor.ID {
			return nil, apperrors.NewForbidden("agents may only list their own or unassigned tickets")
		}
		if !filter.Unassigned {
			repoFilter.AssignedTo = ptr(actor.ID)
		}
	case domain.RoleAdmin:
		if !filter.IncludeRemoved {
			repoFilter.IsRemoved = ptr(false)
		}
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}

	tickets, err := s.repos.Tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket returns a single ticket if actor may see it.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(ticketLookupError(err, ticketID))
	}
	if err := authorizeTicketAccess(actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListHistory returns the audit trail of a ticket to staff.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string, actor domain.Actor) ([]domain.TicketHistory, error) {
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if _, err := s.GetTicket(ctx, ticketID, actor); err != nil {
		return nil, err
	}
	history, err := s.repos.History.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// RemoveFromView hides a closed ticket from agent views. Nothing else about
// the ticket changes.
func (s *TicketService) RemoveFromView(ctx context.Context, ticketID string, actor domain.Actor) (result *domain.Ticket, err error) {
	defer func() { s.observe("remove_from_view", err) }()

	changed := false
	err = s.mutateTicket(ctx, []string{lock.TicketKey(ticketID)}, ticketID, func(ctx context.Context, ticket *domain.Ticket) error {
		if ticket.Status != domain.TicketStatusClosed {
			return apperrors.NewInvalidState("only closed tickets can be removed from view", map[string]any{
				"ticket_id": ticketID,
				"status":    ticket.Status,
			})
		}
		isAssignee := actor.Role == domain.RoleAgent && ticket.AssignedToID() == actor.ID
		if actor.Role != domain.RoleAdmin && !isAssignee {
			return apperrors.NewForbidden("only an admin or the assignee can remove a ticket from view")
		}
		result = ticket
		if ticket.IsRemoved {
			return nil
		}

		ticket.IsRemoved = true
		if err := s.repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		changed = true
		return s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeVisibility,
			map[string]any{"is_removed": false},
			map[string]any{"is_removed": true},
		)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if changed {
		s.publish(ctx, events.EventTicketRemovedFromView, ticketID, events.ActorFrom(actor), nil)
	}
	return result, nil
}
