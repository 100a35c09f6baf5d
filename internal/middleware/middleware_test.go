package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/seat-allotment/internal/config"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func serve(t *testing.T, e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newProtected() *echo.Echo {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(testSecret))
	g.GET("/me", func(c echo.Context) error {
		id, ok := UserID(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
	})
	g.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireRole(RoleAdmin))
	return e
}

func TestJWTAuth(t *testing.T) {
	e := newProtected()
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("missing token", func(t *testing.T) {
		rec := serve(t, e, http.MethodGet, "/v1/me", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "missing bearer token")
	})

	t.Run("numeric subject", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": 42, "role": RoleStudent, "exp": exp})
		rec := serve(t, e, http.MethodGet, "/v1/me", tok)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":42,"role":"STUDENT"}`, rec.Body.String())
	})

	t.Run("string subject", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "7", "role": RoleAdmin, "exp": exp})
		rec := serve(t, e, http.MethodGet, "/v1/me", tok)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":7,"role":"ADMIN"}`, rec.Body.String())
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": 42, "exp": exp})
		assert.Equal(t, http.StatusUnauthorized, serve(t, e, http.MethodGet, "/v1/me", tok).Code)
	})

	t.Run("expired", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": 42, "exp": time.Now().Add(-time.Minute).Unix()})
		assert.Equal(t, http.StatusUnauthorized, serve(t, e, http.MethodGet, "/v1/me", tok).Code)
	})

	t.Run("unsigned token", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": 42, "exp": exp})
		assert.Equal(t, http.StatusUnauthorized, serve(t, e, http.MethodGet, "/v1/me", tok).Code)
	})

	t.Run("missing subject", func(t *testing.T) {
		tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": RoleAdmin, "exp": exp})
		rec := serve(t, e, http.MethodGet, "/v1/me", tok)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid subject")
	})
}

func TestRequireRole(t *testing.T) {
	e := newProtected()
	exp := time.Now().Add(time.Hour).Unix()

	student := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": 1, "role": RoleStudent, "exp": exp})
	assert.Equal(t, http.StatusForbidden, serve(t, e, http.MethodGet, "/v1/admin", student).Code)

	admin := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": 2, "role": RoleAdmin, "exp": exp})
	assert.Equal(t, http.StatusNoContent, serve(t, e, http.MethodGet, "/v1/admin", admin).Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "boom") })

	serve(t, e, http.MethodGet, "/ok?x=1", "")
	rec := serve(t, e, http.MethodGet, "/boom", "")
	serve(t, e, http.MethodGet, "/missing", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "x=1", entries[0].ContextMap()["query"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusInternalServerError), entries[1].ContextMap()["status"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
}

func TestNewTokenBucket_DisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, zap.NewNop()))
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for i := 0; i < 3; i++ {
		rec := serve(t, e, http.MethodGet, "/", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/allotments/9/accept", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/allotments/:id/accept")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	assert.Equal(t, "rl:ip:10.0.0.1:user:anon:route:POST /v1/allotments/:id/accept", buildRateKey(cfg, c))

	c.Set(userIDKey, uint64(42))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:42", buildRateKey(cfg, c))
	cfg.KeyStrategy = "IP"
	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(cfg, c))
}

func TestCacheKeyFrom_IncludesPathParams(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}

	key := func(id string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/admin/rounds/"+id+"/statistics", nil), httptest.NewRecorder())
		c.SetPath("/v1/admin/rounds/:id/statistics")
		c.SetParamNames("id")
		c.SetParamValues(id)
		return cacheKeyFrom(cfg, c)
	}
	assert.True(t, strings.HasPrefix(key("1"), "cache:"))
	assert.Equal(t, key("1"), key("1"))
	assert.NotEqual(t, key("1"), key("2"))
}

func TestCachePayload(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:6])
	assert.False(t, ok)
	_, _, _, ok = decodePayload(append([]byte{0, 0, 0, 200, 0, 0, 1, 0}, 'x'))
	assert.False(t, ok)
}

func TestNewRedisCache_DisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.Use(NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil))
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "fresh") })

	rec := serve(t, e, http.MethodGet, "/", "")
	assert.Equal(t, "fresh", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestToUint64(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want uint64
		ok   bool
	}{
		{uint64(5), 5, true},
		{float64(12), 12, true},
		{float64(1.5), 0, false},
		{"77", 77, true},
		{"abc", 0, false},
		{-3, 0, false},
		{nil, 0, false},
	} {
		got, ok := toUint64(tc.in)
		assert.Equal(t, tc.ok, ok, "%#v", tc.in)
		assert.Equal(t, tc.want, got, "%#v", tc.in)
	}
}
