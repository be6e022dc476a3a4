package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/repository"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// AuthMiddleware validates bearer tokens and resolves the caller. Staff
// roles are read from the agent record, so a role change takes effect
// without reissuing tokens.
type AuthMiddleware struct {
	tokens    *TokenManager
	customers repository.CustomerRepository
	agents    repository.AgentRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, customers repository.CustomerRepository, agents repository.AgentRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, customers: customers, agents: agents}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	ctx := c.UserContext()
	var actor domain.Actor
	switch claims.SubjectType {
	case domain.SubjectTypeCustomer:
		customer, err := m.customers.GetByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("customer not found")
			}
			return apperrors.MapError(err)
		}
		actor = domain.Actor{ID: customer.ID, Role: domain.RoleCustomer}
	case domain.SubjectTypeStaff:
		agent, err := m.agents.GetByID(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("staff not found")
			}
			return apperrors.MapError(err)
		}
		if !agent.Active {
			return apperrors.NewUnauthorized("staff inactive")
		}
		actor = domain.Actor{ID: agent.ID, Role: agent.Role}
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(actorKey, actor)
	return c.Next()
}

// ActorFromContext retrieves the authenticated caller.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}

// SetActor stores actor on the request. Used by tests and internal routes.
func SetActor(c *fiber.Ctx, actor domain.Actor) {
	c.Locals(actorKey, actor)
}
