package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-portal/internal/auth"
	"github.com/spec-kit/service-portal/internal/config"
	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/repository/memory"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

func newAuthService() *AuthService {
	users := memory.NewStore().Users()
	cfg := config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: 4}
	return NewAuthService(cfg, users, auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes))
}

func TestRegisterThenLogin(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	user, token, meta, err := svc.Register(ctx, "Alice", "Alice@Example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, meta.SubjectID)

	claims, err := svc.Tokens().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)

	logged, _, _, err := svc.Login(ctx, "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	_, _, _, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))

	_, _, _, err = svc.Login(ctx, "nobody@example.com", "password123")
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, "Alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, _, _, err = svc.Register(ctx, "Alice 2", "ALICE@example.com", "password123")
	assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))

	_, _, _, err = svc.Register(ctx, "", "not-an-email", "short")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestOutletServiceScopesToCaller(t *testing.T) {
	svc := NewOutletService(memory.NewStore().Outlets())
	ctx := context.Background()
	alice := &domain.User{ID: "a", Name: "Alice"}
	bob := &domain.User{ID: "b", Name: "Bob"}

	_, err := svc.Create(ctx, alice, "Branch B", "2 Side St", domain.Location{Lat: 1, Lng: 2})
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, "Branch A", "", domain.Location{})
	require.NoError(t, err)

	_, err = svc.Create(ctx, alice, " ", "", domain.Location{})
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.Create(ctx, alice, "Nowhere", "", domain.Location{Lat: 91})
	assert.True(t, apperrors.IsValidation(err))

	mine, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Branch A", mine[0].Name)

	theirs, err := svc.List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, theirs)
	assert.NotNil(t, theirs)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	none, err := svc.EnsureAdmin(ctx, "Support", "", "")
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := svc.EnsureAdmin(ctx, "Support", "admin@example.com", "changeme!")
	require.NoError(t, err)
	assert.True(t, first.IsAdmin())

	second, err := svc.EnsureAdmin(ctx, "Support", "ADMIN@example.com", "other")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, _, meta, err := svc.Login(ctx, "admin@example.com", "changeme!")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, meta.Role)
}
