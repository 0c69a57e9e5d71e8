package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewStore(client, time.Minute)
}

func TestStore_ReserveCompleteRelease(t *testing.T) {
	t.Parallel()

	mr, store := setupRedis(t)
	ctx := context.Background()

	reserved, stored, err := store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Nil(t, stored)
	assert.True(t, mr.Exists("idem:u1:k1"))

	reserved, stored, err = store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Nil(t, stored, "in flight")

	require.NoError(t, store.Complete(ctx, "u1:k1", Response{Status: 201, ContentType: "application/json", Body: []byte(`{"id":1}`)}))
	reserved, stored, err = store.Reserve(ctx, "u1:k1")
	require.NoError(t, err)
	assert.False(t, reserved)
	require.NotNil(t, stored)
	assert.Equal(t, 201, stored.Status)
	assert.JSONEq(t, `{"id":1}`, string(stored.Body))

	require.NoError(t, store.Release(ctx, "u1:k1"))
	assert.False(t, mr.Exists("idem:u1:k1"))
}

func TestStore_TTLExpiry(t *testing.T) {
	t.Parallel()

	mr, store := setupRedis(t)
	ctx := context.Background()

	_, _, err := store.Reserve(ctx, "k")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	reserved, _, err := store.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.True(t, reserved)
}

func newEcho(store *Store, calls *int32, status int) *echo.Echo {
	e := echo.New()
	scope := func(c echo.Context) string { return c.Request().Header.Get("X-User") }
	e.POST("/orders", func(c echo.Context) error {
		n := atomic.AddInt32(calls, 1)
		if status >= 400 {
			return echo.NewHTTPError(status, "failed")
		}
		return c.JSON(status, map[string]int32{"n": n})
	}, Middleware(store, scope))
	return e
}

func post(e *echo.Echo, user, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("X-User", user)
	if key != "" {
		req.Header.Set(Header, key)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_ReplaysCompletedResponse(t *testing.T) {
	t.Parallel()

	_, store := setupRedis(t)
	var calls int32
	e := newEcho(store, &calls, http.StatusCreated)

	first := post(e, "u1", "abc")
	require.Equal(t, http.StatusCreated, first.Code)

	second := post(e, "u1", "abc")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	other := post(e, "u2", "abc")
	assert.Equal(t, http.StatusCreated, other.Code)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	post(e, "u1", "")
	post(e, "u1", "")
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))
}

func TestMiddleware_StoresClientErrorsButReleasesServerErrors(t *testing.T) {
	t.Parallel()

	_, store := setupRedis(t)

	var badCalls int32
	bad := newEcho(store, &badCalls, http.StatusBadRequest)
	assert.Equal(t, http.StatusBadRequest, post(bad, "u1", "k-400").Code)
	assert.Equal(t, http.StatusBadRequest, post(bad, "u1", "k-400").Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(&badCalls))

	var failCalls int32
	failing := newEcho(store, &failCalls, http.StatusInternalServerError)
	assert.Equal(t, http.StatusInternalServerError, post(failing, "u1", "k-500").Code)
	assert.Equal(t, http.StatusInternalServerError, post(failing, "u1", "k-500").Code)
	assert.EqualValues(t, 2, atomic.LoadInt32(&failCalls))
}

func TestMiddleware_InFlightConflict(t *testing.T) {
	t.Parallel()

	_, store := setupRedis(t)
	_, _, err := store.Reserve(context.Background(), "u1:busy")
	require.NoError(t, err)

	var calls int32
	e := newEcho(store, &calls, http.StatusCreated)
	assert.Equal(t, http.StatusConflict, post(e, "u1", "busy").Code)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestMiddleware_NilStoreIsNoop(t *testing.T) {
	t.Parallel()

	var calls int32
	e := newEcho(nil, &calls, http.StatusCreated)
	post(e, "u1", "k")
	post(e, "u1", "k")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
