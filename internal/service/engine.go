package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-routing/internal/catalog"
	"github.com/spec-kit/ticket-routing/internal/clock"
	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/events"
	"github.com/spec-kit/ticket-routing/internal/lock"
	"github.com/spec-kit/ticket-routing/internal/observability"
	"github.com/spec-kit/ticket-routing/internal/repository"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

const (
	DefaultDebounceWindow = 60 * time.Second
	DefaultCustomerCap    = 5
)

// Settings holds the engine's tunables.
type Settings struct {
	DebounceWindow time.Duration
	CustomerCap    int
	BcryptCost     int
}

// Dependencies bundles everything the engine services share.
type Dependencies struct {
	Repos      *repository.Repositories
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Catalog    *catalog.Catalog
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Settings   Settings
}

// engine is embedded by every service that mutates tickets.
type engine struct {
	repos      *repository.Repositories
	locker     lock.Locker
	dispatcher events.Dispatcher
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
	settings   Settings
}

func newEngine(deps Dependencies) engine {
	e := engine{
		repos:      deps.Repos,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		settings:   deps.Settings,
	}
	if e.locker == nil {
		e.locker = lock.NewKeyedMutex()
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.settings.DebounceWindow < 0 {
		e.settings.DebounceWindow = 0
	}
	if e.settings.CustomerCap <= 0 {
		e.settings.CustomerCap = DefaultCustomerCap
	}
	return e
}

// mutateTicket runs fn as one critical section on ticketID: it takes the
// locks named by keys in order, opens a store transaction, reads a fresh
// copy of the ticket and hands it to fn. A lost version check re-runs the
// whole read-check-write once; a second loss is reported as CONFLICT.
func (e *engine) mutateTicket(ctx context.Context, keys []string, ticketID string, fn func(ctx context.Context, ticket *domain.Ticket) error) error {
	unlock, err := e.lockAll(ctx, keys)
	if err != nil {
		return apperrors.MapError(err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		err := e.repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
			ticket, err := e.repos.Tickets.GetByID(ctx, ticketID)
			if err != nil {
				return ticketLookupError(err, ticketID)
			}
			return fn(ctx, ticket)
		})
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		if attempt >= 1 {
			return apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticketID})
		}
		e.logger.Debug("retrying ticket write after version conflict", zap.String("ticket_id", ticketID))
	}
}

func (e *engine) lockAll(ctx context.Context, keys []string) (func(), error) {
	unlocks := make([]func(), 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, key := range keys {
		unlock, err := e.locker.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

func (e *engine) recordHistory(ctx context.Context, actor domain.Actor, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) error {
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByRole: actor.Role,
		ChangeType:    changeType,
		OldValue:      oldValue,
		NewValue:      newValue,
		CreatedAt:     e.clock.Now(),
	}
	if actor.ID != "" {
		id := actor.ID
		entry.ChangedByID = &id
	}
	return e.repos.History.Create(ctx, entry)
}

func (e *engine) publish(ctx context.Context, eventType events.EventType, ticketID string, actor events.Actor, payload any) {
	if e.dispatcher == nil {
		return
	}
	_ = e.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: e.clock.Now(),
		Payload:   payload,
	})
}

func (e *engine) observe(operation string, err error) {
	e.metrics.RecordOutcome(operation, apperrors.CodeOf(apperrors.MapError(err)))
}

var systemActor = domain.Actor{Role: domain.RoleSystem}

func ticketLookupError(err error, ticketID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return err
}

func agentLookupError(err error, agentID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
	}
	return err
}

// authorizeTicketAccess applies the read/write visibility rules shared by
// every ticket operation: customers own, agents hold or find unassigned,
// admins see all. Removed tickets do not exist for agents.
func authorizeTicketAccess(actor domain.Actor, ticket *domain.Ticket) error {
	switch actor.Role {
	case domain.RoleCustomer:
		if ticket.CreatedBy != actor.ID {
			return apperrors.NewForbidden("ticket belongs to another customer")
		}
	case domain.RoleAgent:
		if ticket.IsRemoved {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
		}
		if ticket.IsAssigned() && ticket.AssignedToID() != actor.ID {
			return apperrors.NewForbidden("ticket assigned to another agent")
		}
	case domain.RoleAdmin:
	default:
		return apperrors.NewForbidden("unknown role")
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
