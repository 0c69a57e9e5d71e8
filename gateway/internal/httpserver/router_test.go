package httpserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/watch_store/pkg/logging"
	"github.com/Skotchmaster/watch_store/pkg/tokens"
)

var secret = []byte("gateway-test-secret")

func upstream(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", name)
		w.Header().Set("X-Seen-Path", r.URL.Path)
		w.Header().Set("X-Seen-Auth", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_ProxiesWithAuth(t *testing.T) {
	cart := upstream(t, "cart")
	orders := upstream(t, "order")

	e := echo.New()
	require.NoError(t, Register(e, &Deps{
		CartURL:   cart.URL,
		OrderURL:  orders.URL,
		JWTSecret: secret,
		Logger:    logging.Discard(),
	}))

	tok, err := tokens.SignAccessToken(secret, uuid.NewString(), "user", time.Now().Add(time.Minute))
	require.NoError(t, err)

	tests := []struct {
		method   string
		path     string
		upstream string
		seen     string
	}{
		{http.MethodGet, "/api/v1/cart", "cart", "/cart"},
		{http.MethodPatch, "/api/v1/cart/items/42", "cart", "/cart/items/42"},
		{http.MethodPost, "/api/v1/orders", "order", "/orders"},
		{http.MethodGet, "/api/v1/orders/my-orders", "order", "/orders/my-orders"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, tt.path)
		assert.Equal(t, tt.upstream, rec.Header().Get("X-Upstream"), tt.path)
		assert.Equal(t, tt.seen, rec.Header().Get("X-Seen-Path"), tt.path)
		assert.Equal(t, "Bearer "+tok, rec.Header().Get("X-Seen-Auth"), tt.path)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_UpstreamDown(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	e := echo.New()
	require.NoError(t, Register(e, &Deps{CartURL: dead.URL, OrderURL: dead.URL, JWTSecret: secret, Logger: logging.Discard()}))

	tok, err := tokens.SignAccessToken(secret, uuid.NewString(), "user", time.Now().Add(time.Minute))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.JSONEq(t, `{"message":"upstream unavailable"}`, string(body))
}
