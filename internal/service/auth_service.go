package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/ticket-routing/internal/auth"
	"github.com/spec-kit/ticket-routing/internal/domain"
	"github.com/spec-kit/ticket-routing/internal/repository"
	apperrors "github.com/spec-kit/ticket-routing/pkg/util/errorutil"
)

const minPasswordLength = 8

// AuthService coordinates registration and login flows.
type AuthService struct {
	engine
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(deps Dependencies, tokens *auth.TokenManager) *AuthService {
	return &AuthService{engine: newEngine(deps), tokenMgr: tokens}
}

// Session is an issued access token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Actor     domain.Actor
}

// RegisterCustomer creates a customer account and signs it in.
func (s *AuthService) RegisterCustomer(ctx context.Context, name, email, password string) (*domain.Customer, *Session, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, apperrors.NewValidationError("name is required", nil)
	}
	if len(password) < minPasswordLength {
		return nil, nil, apperrors.NewValidationError("password too short", map[string]any{"min_length": minPasswordLength})
	}

	hash, err := auth.HashPassword(password, s.settings.BcryptCost)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	customer := &domain.Customer{
		Name:         name,
		Email:        normalized,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repos.Customers.Create(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, apperrors.NewConflict("email already registered", map[string]any{"email": normalized})
		}
		return nil, nil, apperrors.MapError(err)
	}

	session, err := s.issue(customer.ID, domain.SubjectTypeCustomer, domain.RoleCustomer)
	if err != nil {
		return nil, nil, err
	}
	return customer, session, nil
}

// LoginCustomer authenticates a customer.
func (s *AuthService) LoginCustomer(ctx context.Context, email, password string) (*domain.Customer, *Session, error) {
	customer, err := s.repos.Customers.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(customer.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	session, err := s.issue(customer.ID, domain.SubjectTypeCustomer, domain.RoleCustomer)
	if err != nil {
		return nil, nil, err
	}
	return customer, session, nil
}

// LoginStaff authenticates staff and returns a role-bearing token.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.Agent, *Session, error) {
	agent, err := s.repos.Agents.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, apperrors.MapError(err)
	}
	if !agent.Active {
		return nil, nil, apperrors.NewUnauthorized("staff inactive")
	}
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	session, err := s.issue(agent.ID, domain.SubjectTypeStaff, agent.Role)
	if err != nil {
		return nil, nil, err
	}
	return agent, session, nil
}

func (s *AuthService) issue(subjectID string, subjectType domain.SubjectType, role domain.Role) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(subjectID, subjectType, role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: exp, Actor: domain.Actor{ID: subjectID, Role: role}}, nil
}
