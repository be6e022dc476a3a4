package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/events"
	"github.com/spec-kit/ticket-routing/internal/lock"
	"github.com/spec-kit/ticket-routing/internal/repository"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

// RatingService records customer ratings and aggregates them per agent.
type RatingService struct {
	engine
}

// NewRatingService constructs the service.
func NewRatingService(deps Dependencies) *RatingService {
	return &RatingService{engine: newEngine(deps)}
}

// SubmitRating records userID's rating of a resolved or closed ticket and
// closes it. A ticket can be rated once per user.
func (s *RatingService) SubmitRating(ctx context.Context, ticketID, userID string, rating int, feedback string) (result *domain.Rating, err error) {
	defer func() { s.observe("submit_rating", err) }()

	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}

	var oldStatus domain.TicketStatus
	err = s.mutateTicket(ctx, []string{lock.TicketKey(ticketID)}, ticketID, func(ctx context.Context, ticket *domain.Ticket) error {
		if ticket.CreatedBy != userID {
			return apperrors.NewForbidden("only the ticket's customer can rate it")
		}
		if ticket.Status != domain.TicketStatusClosed && ticket.Status != domain.TicketStatusResolved {
			return apperrors.NewInvalidState("ticket must be resolved or closed before rating", map[string]any{
				"ticket_id": ticketID,
				"status":    ticket.Status,
			})
		}
		if _, err := s.repos.Ratings.GetByTicketAndUser(ctx, ticketID, userID); err == nil {
			return ratingExists(ticketID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := s.clock.Now()
		record := &domain.Rating{
			TicketID:  ticket.ID,
			UserID:    userID,
			Rating:    rating,
			Feedback:  strings.TrimSpace(feedback),
			CreatedAt: now,
		}
		if ticket.IsAssigned() {
			record.AgentID = ptr(ticket.AssignedToID())
		}
		if err := s.repos.Ratings.Create(ctx, record); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ratingExists(ticketID)
			}
			return err
		}

		oldStatus = ticket.Status
		ticket.Status = domain.TicketStatusClosed
		ticket.HasRating = true
		ticket.LastUpdated = now
		if err := s.repos.Tickets.Update(ctx, ticket); err != nil {
			return err
		}
		if err := s.recordHistory(ctx, domain.Actor{ID: userID, Role: domain.RoleCustomer}, ticket.ID, domain.ChangeTypeRating,
			map[string]any{"status": oldStatus, "has_rating": false},
			map[string]any{"status": ticket.Status, "has_rating": true, "rating": rating},
		); err != nil {
			return err
		}
		result = record
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	actor := events.Actor{Role: domain.RoleCustomer, ID: userID}
	s.publish(ctx, events.EventTicketRated, ticketID, actor, events.TicketRatedPayload{
		RatingID: result.ID,
		Rating:   result.Rating,
		AgentID:  result.AgentID,
	})
	if oldStatus != domain.TicketStatusClosed {
		s.publish(ctx, events.EventTicketStatusChanged, ticketID, actor, events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: domain.TicketStatusClosed,
			Reason:    "rated",
		})
	}
	return result, nil
}

// GetAgentRatings aggregates every rating recorded against agentID. The
// average is zero when there are no ratings.
func (s *RatingService) GetAgentRatings(ctx context.Context, agentID string) (*domain.AgentRatings, error) {
	ratings, err := s.repos.Ratings.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := &domain.AgentRatings{AgentID: agentID, Ratings: ratings, Total: len(ratings)}
	if out.Ratings == nil {
		out.Ratings = []domain.Rating{}
	}
	if out.Total == 0 {
		return out, nil
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Rating
	}
	out.Average = float64(sum) / float64(out.Total)
	return out, nil
}

func ratingExists(ticketID string) error {
	return apperrors.NewConflict("ticket already rated", map[string]any{"ticket_id": ticketID})
}
