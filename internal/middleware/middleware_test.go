package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-settlement/internal/config"
	"github.com/iliyamo/table-settlement/internal/session"
	"github.com/iliyamo/table-settlement/internal/utils"
)

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(e *echo.Echo, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucketFallsBackToLocalLimiter(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Prefix: "rl", KeyStrategy: "ip_route", LocalRPS: 0.001, LocalBurst: 2}
	e := echo.New()
	e.GET("/ping", ok, NewTokenBucket(cfg, nil))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", nil).Code)
	}
	rec := serve(e, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketSharedThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Prefix:         "rl",
		KeyStrategy:    "ip",
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		LocalRPS:       1000,
		LocalBurst:     1000,
	}
	// two instances sharing one bucket
	a, b := echo.New(), echo.New()
	a.GET("/ping", ok, NewTokenBucket(cfg, rdb))
	b.GET("/ping", ok, NewTokenBucket(cfg, rdb))

	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, serve(b, http.MethodGet, "/ping", nil).Code)
	rec := serve(a, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Len(t, mr.Keys(), 1)

	// a broken Redis falls back to the generous local limiter
	mr.Close()
	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/ping", nil).Code)
}

func TestTokenBucketDisabled(t *testing.T) {
	e := echo.New()
	e.GET("/ping", ok, NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping", nil).Code)
	}
}

func TestSessionToken(t *testing.T) {
	reg := session.NewMemoryRegistry()
	token, err := reg.Issue(context.Background(), "s1")
	require.NoError(t, err)

	e := echo.New()
	e.GET("/sessions/:id/state", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(CtxSessionID).(string))
	}, SessionToken(reg))

	rec := serve(e, http.MethodGet, "/sessions/s1/state", map[string]string{SessionTokenHeader: token})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", rec.Body.String())

	for name, tc := range map[string]struct{ path, token string }{
		"missing token":  {"/sessions/s1/state", ""},
		"wrong token":    {"/sessions/s1/state", "nope"},
		"other session":  {"/sessions/s2/state", token},
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, tc.path, map[string]string{SessionTokenHeader: tc.token})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestStaffAuthAndRole(t *testing.T) {
	const secret = "test-secret"
	e := echo.New()
	e.POST("/staff/close", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(CtxStaffID).(string)+"@"+c.Get(CtxVenueID).(string))
	}, StaffAuth(secret), RequireRole(RoleStaff, RoleOwner))

	staff, err := utils.NewStaffToken(secret, "staff-1", RoleStaff, "venue-1", time.Hour)
	require.NoError(t, err)
	rec := serve(e, http.MethodPost, "/staff/close", map[string]string{"Authorization": "Bearer " + staff.Token})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "staff-1@venue-1", rec.Body.String())

	guest, err := utils.NewStaffToken(secret, "guest-1", "GUEST", "venue-1", time.Hour)
	require.NoError(t, err)
	rec = serve(e, http.MethodPost, "/staff/close", map[string]string{"Authorization": "Bearer " + guest.Token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	forged, err := utils.NewStaffToken("other-secret", "staff-1", RoleStaff, "venue-1", time.Hour)
	require.NoError(t, err)
	rec = serve(e, http.MethodPost, "/staff/close", map[string]string{"Authorization": "Bearer " + forged.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := utils.NewStaffToken(secret, "staff-1", RoleStaff, "venue-1", -time.Minute)
	require.NoError(t, err)
	rec = serve(e, http.MethodPost, "/staff/close", map[string]string{"Authorization": "Bearer " + expired.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodPost, "/staff/close", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMenuCachePassThroughWithoutRedis(t *testing.T) {
	calls := 0
	e := echo.New()
	e.GET("/menu", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "menu")
	}, NewMenuCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil, nil))

	serve(e, http.MethodGet, "/menu", nil)
	serve(e, http.MethodGet, "/menu", nil)
	assert.Equal(t, 2, calls)
}

func TestCacheKeyDependsOnVersion(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/venues/v1/menu?lang=en", nil), httptest.NewRecorder())
	cfg := config.CacheConfig{Prefix: "menu"}
	k3 := cacheKeyFrom(cfg, c, 3)
	assert.Equal(t, k3, cacheKeyFrom(cfg, c, 3))
	assert.NotEqual(t, k3, cacheKeyFrom(cfg, c, 4))
	assert.Contains(t, k3, "menu:")
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{1, 2})
	assert.False(t, ok)
}
