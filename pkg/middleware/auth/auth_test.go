package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Skotchmaster/watch_store/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret")

func sign(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := tokens.SignAccessToken(testSecret, userID, role, time.Now().Add(time.Minute))
	require.NoError(t, err)
	return tok
}

func newServer() *echo.Echo {
	e := echo.New()
	m := NewAuthMiddleware(testSecret)

	whoami := func(c echo.Context) error {
		id, ok := UserID(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.String(http.StatusOK, id.String())
	}
	e.GET("/me", whoami, m.RequireAuth)
	e.GET("/admin", whoami, m.RequireAdmin)
	return e
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	e := newServer()
	userID := uuid.NewString()
	userTok := sign(t, userID, "user")
	adminTok := sign(t, userID, tokens.RoleAdmin)

	tests := []struct {
		name   string
		path   string
		setup  func(r *http.Request)
		status int
	}{
		{
			name:   "missing token",
			path:   "/me",
			setup:  func(r *http.Request) {},
			status: http.StatusUnauthorized,
		},
		{
			name: "bearer header",
			path: "/me",
			setup: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization, "Bearer "+userTok)
			},
			status: http.StatusOK,
		},
		{
			name: "cookie",
			path: "/me",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: AccessCookie, Value: userTok})
			},
			status: http.StatusOK,
		},
		{
			name: "basic scheme rejected",
			path: "/me",
			setup: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization, "Basic abc")
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "tampered",
			path: "/me",
			setup: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization, "Bearer "+userTok+"x")
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "admin route as user",
			path: "/admin",
			setup: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization, "Bearer "+userTok)
			},
			status: http.StatusForbidden,
		},
		{
			name: "admin route as admin",
			path: "/admin",
			setup: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization, "Bearer "+adminTok)
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, userID, rec.Body.String())
			}
		})
	}
}
