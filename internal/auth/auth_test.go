package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-portal/internal/domain"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

type stubUsers map[string]*domain.User

func (s stubUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := s[id]; ok {
		return user, nil
	}
	return nil, pgx.ErrNoRows
}

func newTestApp(t *testing.T, tokens *TokenManager, users stubUsers, guard fiber.Handler) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	mw := NewAuthMiddleware(tokens, users)
	app.Get("/me", mw.Handle, guard, func(c *fiber.Ctx) error {
		user, _ := UserFromContext(c)
		return c.SendString(user.Name)
	})
	return app
}

func request(t *testing.T, app *fiber.App, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := make([]byte, 64)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n])
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	signed, meta, err := tm.GenerateToken("user-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, meta.Role)
	assert.WithinDuration(t, meta.IssuedAt.Add(30*time.Minute), meta.ExpiresAt, time.Second)

	claims, err := tm.ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, meta.ID, claims.ID)
	assert.Equal(t, TokenIssuer, claims.Issuer)

	_, err = NewTokenManager("other", 30).ParseToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestForeignIssuerRejected(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = tm.ParseToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	signed, _, err := tm.GenerateToken("user-1", domain.RoleUser)
	require.NoError(t, err)

	_, err = tm.ParseToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareAndRoles(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	users := stubUsers{
		"u1": {ID: "u1", Name: "Alice", Role: domain.RoleUser},
		"a1": {ID: "a1", Name: "Root", Role: domain.RoleAdmin},
	}
	app := newTestApp(t, tm, users, RequireAdmin())

	userToken, _, err := tm.GenerateToken("u1", domain.RoleUser)
	require.NoError(t, err)
	adminToken, _, err := tm.GenerateToken("a1", domain.RoleAdmin)
	require.NoError(t, err)
	ghostToken, _, err := tm.GenerateToken("ghost", domain.RoleAdmin)
	require.NoError(t, err)

	status, body := request(t, app, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, body)

	status, _ = request(t, app, "garbage")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = request(t, app, ghostToken)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = request(t, app, userToken)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, body)

	status, body = request(t, app, adminToken)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Root", body)
}

func TestRoleFromStoredUserNotToken(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	users := stubUsers{"u1": {ID: "u1", Name: "Alice", Role: domain.RoleUser}}
	app := newTestApp(t, tm, users, RequireAdmin())

	forged, _, err := tm.GenerateToken("u1", domain.RoleAdmin)
	require.NoError(t, err)

	status, _ := request(t, app, forged)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!", 4)
	require.NoError(t, err)
	assert.True(t, PasswordMatches(hash, "s3cret!"))
	assert.False(t, PasswordMatches(hash, "wrong"))

	hash, err = HashPassword("s3cret!", 0)
	require.NoError(t, err)
	assert.True(t, PasswordMatches(hash, "s3cret!"))
}
