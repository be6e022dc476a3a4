package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-routing/internal/api/dto"
	"github.com/spec-kit/ticket-routing/internal/auth"
	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/service"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints shared by every role.
type TicketsHandler struct {
	tickets *service.TicketService
	replies *service.ReplyService
	ratings *service.RatingService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, replies *service.ReplyService, ratings *service.RatingService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, replies: replies, ratings: ratings}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.CreateTicketInput{
		CustomerID:  req.CustomerID,
		Subject:     req.Subject,
		Description: req.Description,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// SetStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) SetStatus(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.SetStatus(c.UserContext(), c.Params("id"), req.Status, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.ListHistory(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// ListReplies GET /tickets/:id/replies.
func (h *TicketsHandler) ListReplies(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	replies, err := h.replies.ListReplies(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	resp := make([]dto.ReplyResponse, 0, len(replies))
	for i := range replies {
		resp = append(resp, replyResponse(&replies[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// AddReply POST /tickets/:id/replies.
func (h *TicketsHandler) AddReply(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	reply, err := h.replies.AddReply(c.UserContext(), c.Params("id"), actor, req.Message, req.IsInternal)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": replyResponse(reply)})
}

// SubmitRating POST /tickets/:id/rating.
func (h *TicketsHandler) SubmitRating(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.RatingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rating, err := h.ratings.SubmitRating(c.UserContext(), c.Params("id"), actor.ID, req.Rating, req.Feedback)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ratingResponse(rating)})
}

// RemoveFromView POST /tickets/:id/remove.
func (h *TicketsHandler) RemoveFromView(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.RemoveFromView(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func parseTicketFilter(c *fiber.Ctx) (service.ListFilter, error) {
	filter := service.ListFilter{}
	for _, part := range splitList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(part))
	}
	for _, part := range splitList(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(part))
	}
	if assignee := strings.TrimSpace(c.Query("assigned_to")); assignee != "" {
		filter.AssignedTo = &assignee
	}
	var err error
	if filter.Unassigned, err = parseBoolQuery(c, "unassigned"); err != nil {
		return filter, err
	}
	if filter.IncludeRemoved, err = parseBoolQuery(c, "include_removed"); err != nil {
		return filter, err
	}
	filter.Limit, filter.Offset = parsePage(c)
	return filter, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolQuery(c *fiber.Ctx, key string) (bool, error) {
	val := c.Query(key)
	if val == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, apperrors.NewValidationError("invalid boolean query parameter", map[string]any{key: val})
	}
	return parsed, nil
}

func parsePage(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	return pageSize, (page - 1) * pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          ticket.ID,
		Subject:     ticket.Subject,
		Description: ticket.Description,
		Category:    ticket.Category,
		Subcategory: ticket.Subcategory,
		Priority:    ticket.Priority,
		Status:      ticket.Status,
		AssignedTo:  ticket.AssignedTo,
		IsRemoved:   ticket.IsRemoved,
		HasRating:   ticket.HasRating,
		CreatedBy:   ticket.CreatedBy,
		CreatedAt:   ticket.CreatedAt,
		LastUpdated: ticket.LastUpdated,
	}
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func replyResponse(reply *domain.Reply) dto.ReplyResponse {
	return dto.ReplyResponse{
		ID:         reply.ID,
		TicketID:   reply.TicketID,
		AuthorID:   reply.AuthorID,
		Sender:     reply.Sender,
		IsInternal: reply.IsInternal,
		Message:    reply.Message,
		CreatedAt:  reply.CreatedAt,
	}
}

func ratingResponse(rating *domain.Rating) dto.RatingResponse {
	return dto.RatingResponse{
		ID:        rating.ID,
		TicketID:  rating.TicketID,
		UserID:    rating.UserID,
		AgentID:   rating.AgentID,
		Rating:    rating.Rating,
		Feedback:  rating.Feedback,
		CreatedAt: rating.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByRole: entry.ChangedByRole,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}
