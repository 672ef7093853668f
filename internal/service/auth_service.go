package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/service-portal/internal/auth"
	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/repository"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository, tokens *auth.TokenManager) *AuthService {
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	}
	return &AuthService{
		users:      users,
		tokenMgr:   tokens,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates a new account holder and signs them in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, string, domain.Token, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	details := map[string]any{}
	if name == "" {
		details["name"] = "required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "invalid email"
	}
	switch {
	case len(password) < auth.MinPasswordLength:
		details["password"] = "too short"
	case len(password) > auth.MaxPasswordLength:
		details["password"] = "too long"
	}
	if len(details) > 0 {
		return nil, "", domain.Token{}, apperrors.NewValidationError("invalid registration", details)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", domain.Token{}, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", domain.Token{}, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", domain.Token{}, err
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", domain.Token{}, err
	}

	token, meta, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", domain.Token{}, err
	}
	return user, token, meta, nil
}

// Login authenticates a user or an admin.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, domain.Token, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", domain.Token{}, err
	}
	if !auth.PasswordMatches(user.PasswordHash, password) {
		return nil, "", domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, meta, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", domain.Token{}, err
	}
	return user, token, meta, nil
}

// Tokens exposes the token manager for middleware wiring.
func (s *AuthService) Tokens() *auth.TokenManager {
	return s.tokenMgr
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	admin := &domain.User{Name: name, Email: email, PasswordHash: hash, Role: domain.RoleAdmin}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}
