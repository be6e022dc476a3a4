package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/events"
	"github.com/spec-kit/ticket-routing/internal/lock"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

const replyPreviewRunes = 120

// ReplyService appends replies to ticket threads and drives the implicit
// status changes they cause.
type ReplyService struct {
	engine
}

// NewReplyService constructs the service.
func NewReplyService(deps Dependencies) *ReplyService {
	return &ReplyService{engine: newEngine(deps)}
}

// AddReply stores a reply and, outside the debounce window, hands the
// ticket to the other side of the conversation. lastUpdated moves on every
// reply, so a burst of replies only changes status once.
func (s *ReplyService) AddReply(ctx context.Context, ticketID string, actor domain.Actor, message string, isInternal bool) (result *domain.Reply, err error) {
	defer func() { s.observe("add_reply", err) }()

	if isInternal && !actor.Capabilities().CanSetInternalNote {
		return nil, apperrors.NewForbidden("customers cannot post internal notes")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", nil)
	}

	var (
		oldStatus domain.TicketStatus
		newStatus domain.TicketStatus
	)
	err = s.mutateTicket(ctx, []string{lock.TicketKey(ticketID)}, ticketID, func(ctx context.Context, ticket *domain.Ticket) error {
		if err := authorizeTicketAccess(actor, ticket); err != nil {
			return err
		}

		now := s.clock.Now()
		reply := &domain.Reply{
			TicketID:   ticket.ID,
			AuthorID:   actor.ID,
			Sender:     actor.Role.Sender(),
			IsInternal: isInternal,
			Message:    message,
			CreatedAt:  now,
		}
		if err := s.repos.Replies.Create(ctx, reply); err != nil {
			return err
		}

		oldStatus, newStatus = ticket.Status, ticket.Status
		if now.Sub(ticket.LastUpdated) >= s.settings.DebounceWindow {
			if next, changed := domain.ImplicitReplyStatus(ticket.Status, reply.Sender); changed {
				newStatus = next
			}
		}
		ticket.Status = newStatus
		ticket.LastUpdated = now
		if err := s.repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if newStatus != oldStatus {
			if err := s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeStatus,
				map[string]any{"status": oldStatus},
				map[string]any{"status": newStatus, "comment": "reply"},
			); err != nil {
				return err
			}
		}
		result = reply
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	evActor := events.ActorFrom(actor)
	s.publish(ctx, events.EventTicketReplyAdded, ticketID, evActor, events.TicketReplyAddedPayload{
		ReplyID:     result.ID,
		Sender:      result.Sender,
		IsInternal:  result.IsInternal,
		BodyPreview: preview(result.Message),
	})
	if newStatus != oldStatus {
		s.publish(ctx, events.EventTicketStatusChanged, ticketID, evActor, events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Reason:    "reply",
		})
	}
	return result, nil
}

// ListReplies returns the thread of a ticket. Customers never see internal
// notes.
func (s *ReplyService) ListReplies(ctx context.Context, ticketID string, actor domain.Actor) ([]domain.Reply, error) {
	ticket, err := s.repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(ticketLookupError(err, ticketID))
	}
	if err := authorizeTicketAccess(actor, ticket); err != nil {
		return nil, err
	}
	replies, err := s.repos.Replies.ListByTicket(ctx, ticketID, actor.Role.IsStaff())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return replies, nil
}

func preview(message string) string {
	if utf8.RuneCountInString(message) <= replyPreviewRunes {
		return message
	}
	runes := []rune(message)
	return string(runes[:replyPreviewRunes]) + "…"
}
