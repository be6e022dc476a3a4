package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-routing/internal/api/dto"
	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/service"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

// StaffTicketsHandler handles the routing endpoints used by staff.
type StaffTicketsHandler struct {
	assignments *service.AssignmentService
	agents      *service.AgentService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(assignments *service.AssignmentService, agents *service.AgentService) *StaffTicketsHandler {
	return &StaffTicketsHandler{assignments: assignments, agents: agents}
}

// Assign POST /tickets/:id/assign.
func (h *StaffTicketsHandler) Assign(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	agentID := strings.TrimSpace(req.AgentID)

	var assignActor service.AssignActor
	switch actor.Role {
	case domain.RoleAdmin:
		if agentID == "" {
			return apperrors.NewValidationError("agent_id required", nil)
		}
		assignActor = service.AdminAssign(actor.ID)
	case domain.RoleAgent:
		if agentID == "" {
			agentID = actor.ID
		}
		assignActor = service.SelfAssign(actor.ID)
	default:
		return apperrors.NewForbidden("staff role required")
	}

	ticket, err := h.assignments.Assign(c.UserContext(), c.Params("id"), agentID, assignActor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListUnassigned GET /tickets/unassigned. Agents default to their own
// agent type.
func (h *StaffTicketsHandler) ListUnassigned(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	agentType := domain.AgentType(strings.TrimSpace(c.Query("agent_type")))
	if agentType == "" {
		agent, err := h.agents.GetAgent(c.UserContext(), actor, actor.ID)
		if err != nil {
			return err
		}
		agentType = agent.AgentType
	}
	limit, offset := parsePage(c)
	tickets, err := h.assignments.ListUnassignedTickets(c.UserContext(), agentType, service.Page{Limit: limit, Offset: offset})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// FixAssignments POST /admin/maintenance/fix-assignments.
func (h *StaffTicketsHandler) FixAssignments(c *fiber.Ctx) error {
	result, err := h.assignments.FixAssignments(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}
