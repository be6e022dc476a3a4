package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-routing/internal/api/dto"
	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/observability"
	"github.com/spec-kit/ticket-routing/internal/service"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

// StaffHandler exposes staff login and agent administration.
type StaffHandler struct {
	authService *service.AuthService
	agents      *service.AgentService
	ratings     *service.RatingService
	metrics     *observability.Metrics
}

// NewStaffHandler constructs handler.
func NewStaffHandler(authService *service.AuthService, agents *service.AgentService, ratings *service.RatingService, metrics *observability.Metrics) *StaffHandler {
	return &StaffHandler{authService: authService, agents: agents, ratings: ratings, metrics: metrics}
}

// Login handles POST /auth/staff/login.
func (h *StaffHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	agent, session, err := h.authService.LoginStaff(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"staff": agentResponse(agent),
			"auth":  dto.AuthResponse{Token: session.Token, ExpiresAt: session.ExpiresAt},
		},
	})
}

// CreateAgent handles POST /admin/agents.
func (h *StaffHandler) CreateAgent(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.AgentCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	agent, err := h.agents.CreateAgent(c.UserContext(), actor, service.CreateAgentInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		AgentType: req.AgentType,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": agentResponse(agent)})
}

// ListAgents handles GET /admin/agents.
func (h *StaffHandler) ListAgents(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	filter, err := parseAgentListFilter(c)
	if err != nil {
		return err
	}
	list, err := h.agents.ListAgents(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	resp := make([]dto.AgentResponse, 0, len(list))
	for i := range list {
		resp = append(resp, agentResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// SetAgentType handles PATCH /admin/agents/:id/type.
func (h *StaffHandler) SetAgentType(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.AgentTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	agent, err := h.agents.SetAgentType(c.UserContext(), actor, c.Params("id"), req.AgentType)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": agentResponse(agent)})
}

// DeleteAgent handles DELETE /admin/agents/:id.
func (h *StaffHandler) DeleteAgent(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.agents.DeleteAgent(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AgentRatings handles GET /agents/:id/ratings.
func (h *StaffHandler) AgentRatings(c *fiber.Ctx) error {
	agg, err := h.ratings.GetAgentRatings(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	ratings := make([]dto.RatingResponse, 0, len(agg.Ratings))
	for i := range agg.Ratings {
		ratings = append(ratings, ratingResponse(&agg.Ratings[i]))
	}
	return c.JSON(fiber.Map{"data": dto.AgentRatingsResponse{
		AgentID: agg.AgentID,
		Ratings: ratings,
		Total:   agg.Total,
		Average: agg.Average,
	}})
}

// Metrics handles GET /admin/metrics.
func (h *StaffHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

func parseAgentListFilter(c *fiber.Ctx) (service.AgentListFilter, error) {
	var filter service.AgentListFilter
	if roleStr := c.Query("role"); roleStr != "" {
		role := domain.Role(roleStr)
		filter.Role = &role
	}
	if typeStr := c.Query("agent_type"); typeStr != "" {
		agentType := domain.AgentType(typeStr)
		filter.AgentType = &agentType
	}
	if active := c.Query("active"); active != "" {
		val, err := strconv.ParseBool(active)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid boolean query parameter", map[string]any{"active": active})
		}
		filter.Active = &val
	}
	filter.Limit, filter.Offset = parsePage(c)
	return filter, nil
}

func agentResponse(agent *domain.Agent) dto.AgentResponse {
	return dto.AgentResponse{
		ID:        agent.ID,
		Name:      agent.Name,
		Email:     agent.Email,
		Role:      agent.Role,
		AgentType: agent.AgentType,
		Active:    agent.Active,
		CreatedAt: agent.CreatedAt,
	}
}
