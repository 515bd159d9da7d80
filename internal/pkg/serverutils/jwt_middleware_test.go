package serverutils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newAuthedApp() *fiber.App {
	app := fiber.New()
	app.Get("/protected", JwtMiddleware, func(ctx *fiber.Ctx) error {
		// The middleware guarantees this assertion never panics.
		userID := ctx.Locals("user_id").(string)
		return ctx.SendString(userID)
	})
	return app
}

func TestJwtMiddlewareRequiresStringUserID(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	app := newAuthedApp()

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{
			name:       "valid user_id claim",
			token:      signToken(t, jwt.MapClaims{"user_id": "0b946435-9c35-4a91-b176-c0c7ef94dcba"}),
			wantStatus: http.StatusOK,
		},
		{
			name:       "user_id claim absent",
			token:      signToken(t, jwt.MapClaims{"sub": "someone"}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "user_id claim not a string",
			token:      signToken(t, jwt.MapClaims{"user_id": 42}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "user_id claim empty",
			token:      signToken(t, jwt.MapClaims{"user_id": ""}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestJwtMiddlewareRejectsMissingOrInvalidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	app := newAuthedApp()

	tests := []struct {
		name   string
		header string
	}{
		{name: "no authorization header", header: ""},
		{name: "not a bearer token", header: "Basic abc"},
		{name: "wrong signing key", header: "Bearer " + func() string {
			token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256,
				jwt.MapClaims{"user_id": "u1"}).SignedString([]byte("other-secret"))
			return token
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}
