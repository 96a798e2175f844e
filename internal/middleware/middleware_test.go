package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/cinema-booking/internal/config"
)

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestTokenBucketLocalFallback(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/v1/films", ok, NewTokenBucket(cfg, nil, zap.NewNop()))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/films").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/films").Code)

	rec := serve(e, http.MethodGet, "/v1/films")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
}

func TestTokenBucketDisabled(t *testing.T) {
	e := echo.New()
	e.GET("/x", ok, NewTokenBucket(config.RateLimitConfig{Enabled: false, Capacity: 1}, nil, zap.NewNop()))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/x").Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/tickets", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/tickets")

	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
	assert.Equal(t, "rl:ip:10.0.0.1:route:POST /v1/tickets", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}, c))
}

func TestRequestIDAndAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := echo.New()
	e.Use(RequestID(), AccessLog(zap.New(core)))
	e.GET("/ok", ok)
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError) })

	rec := serve(e, http.MethodGet, "/ok")
	id := rec.Header().Get(echo.HeaderXRequestID)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	given := uuid.NewString()
	req.Header.Set(echo.HeaderXRequestID, given)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, given, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	serve(e, http.MethodGet, "/boom")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, id, entries[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusNotFound), entries[1].ContextMap()["status"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestAccessLogAbandonedRequestIsWarn(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := echo.New()
	e.Use(AccessLog(zap.New(core)))
	e.GET("/slow", func(c echo.Context) error {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "canceled"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/slow", nil).WithContext(ctx)
	e.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestCacheGroupAndPayload(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", PathPrefixes: []string{"/v1/films", "/v1/ticket-types"}}

	g, ok := cacheGroup(cfg, "/v1/films/F1")
	assert.True(t, ok)
	assert.Equal(t, "/v1/films", g)
	_, ok = cacheGroup(cfg, "/v1/filmsX")
	assert.False(t, ok)
	_, ok = cacheGroup(cfg, "/v1/tickets")
	assert.False(t, ok)
	assert.Equal(t, "cache:v1_ticket-types:", groupPrefix(cfg, "/v1/ticket-types"))

	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestCacheWithoutRedisPassesThrough(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, Prefix: "cache", PathPrefixes: []string{"/v1/films"}, Methods: map[string]bool{"GET": true}}
	e := echo.New()
	e.GET("/v1/films", ok, NewRedisCache(cfg, nil, zap.NewNop()))

	rec := serve(e, http.MethodGet, "/v1/films")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}
