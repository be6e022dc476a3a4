package service_test

import (
	"testing"

	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/service"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

func TestRegisterAndLoginCustomer(t *testing.T) {
	h := newHarness(t)

	customer, session, err := h.auth.RegisterCustomer(h.ctx, "Ana", "Ana@Example.com", "s3cret-pass")
	requireNoErr(t, err)
	if customer.Email != "ana@example.com" {
		t.Fatalf("email = %q", customer.Email)
	}
	if session.Token == "" || session.Actor.Role != domain.RoleCustomer || session.Actor.ID != customer.ID {
		t.Fatalf("session = %+v", session)
	}

	_, _, err = h.auth.RegisterCustomer(h.ctx, "Ana again", "ana@example.com", "s3cret-pass")
	requireCode(t, err, apperrors.CodeConflict)

	_, session, err = h.auth.LoginCustomer(h.ctx, "ana@example.com", "s3cret-pass")
	requireNoErr(t, err)
	if session.Actor.ID != customer.ID {
		t.Fatalf("login actor = %+v", session.Actor)
	}

	_, _, err = h.auth.LoginCustomer(h.ctx, "ana@example.com", "wrong-pass")
	requireCode(t, err, apperrors.CodeUnauthorized)
	_, _, err = h.auth.LoginCustomer(h.ctx, "nobody@example.com", "s3cret-pass")
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestRegisterCustomerValidation(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.auth.RegisterCustomer(h.ctx, "", "a@example.com", "s3cret-pass")
	requireCode(t, err, apperrors.CodeValidation)
	_, _, err = h.auth.RegisterCustomer(h.ctx, "Ana", "nope", "s3cret-pass")
	requireCode(t, err, apperrors.CodeValidation)
	_, _, err = h.auth.RegisterCustomer(h.ctx, "Ana", "a@example.com", "short")
	requireCode(t, err, apperrors.CodeValidation)
}

func TestLoginStaff(t *testing.T) {
	h := newHarness(t)
	admin := h.admin(t)

	created, err := h.agents.CreateAgent(h.ctx, admin, service.CreateAgentInput{
		Name:      "Sam",
		Email:     "sam@support.example.com",
		Password:  "correct horse",
		AgentType: domain.AgentTypeJunior,
	})
	requireNoErr(t, err)

	agent, session, err := h.auth.LoginStaff(h.ctx, "sam@support.example.com", "correct horse")
	requireNoErr(t, err)
	if agent.ID != created.ID || session.Actor.Role != domain.RoleAgent {
		t.Fatalf("session = %+v", session)
	}

	_, _, err = h.auth.LoginStaff(h.ctx, "sam@support.example.com", "battery staple")
	requireCode(t, err, apperrors.CodeUnauthorized)

	created.Active = false
	requireNoErr(t, h.repos.Agents.Update(h.ctx, created))
	_, _, err = h.auth.LoginStaff(h.ctx, "sam@support.example.com", "correct horse")
	requireCode(t, err, apperrors.CodeUnauthorized)
}
