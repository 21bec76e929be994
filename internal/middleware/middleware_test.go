package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/campus-marketplace/internal/config"
	"github.com/iliyamo/campus-marketplace/internal/utils"
)

const secret = "test-secret"

func serveWith(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	var seen string
	e.GET("/v1/me/listings", func(c echo.Context) error {
		seen = ActorID(c)
		return c.NoContent(http.StatusOK)
	}, mw)

	req := httptest.NewRequest(http.MethodGet, "/v1/me/listings", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	tok, err := utils.MintToken(secret, "seller-1", time.Hour)
	require.NoError(t, err)

	rec, actor := serveWith(t, JWTAuth(secret), "Bearer "+tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "seller-1", actor)
}

func TestJWTAuthRejects(t *testing.T) {
	wrongKey, err := utils.MintToken("other-secret", "seller-1", time.Hour)
	require.NoError(t, err)
	expired, err := utils.MintToken(secret, "seller-1", -time.Minute)
	require.NoError(t, err)
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "seller-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not-a-token"},
		{"wrong key", "Bearer " + wrongKey.Token},
		{"expired", "Bearer " + expired.Token},
		{"no subject", "Bearer " + noSub},
		{"other algorithm", "Bearer " + hs512},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, actor := serveWith(t, JWTAuth(secret), tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, actor)
			assert.Contains(t, rec.Body.String(), `"error":"unauthorized"`)
		})
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/listings/l-1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/listings/:id/reservations")

	cfg := config.RateLimitConfig{Prefix: "mkt:rl"}

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "mkt:rl:all:ip:10.0.0.7", buildRateKey(cfg, "all", c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "mkt:rl:write:user:anon", buildRateKey(cfg, "write", c))

	c.Set(actorKey, "buyer-1")
	cfg.KeyStrategy = "ip_user_route"
	assert.Equal(t, "mkt:rl:write:ip:10.0.0.7:user:buyer-1:route:POST /v1/listings/:id/reservations",
		buildRateKey(cfg, "write", c))
}

func TestLimiterPassesThroughWithoutRedis(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	rec, _ := serveWith(t, NewTokenBucket(cfg, nil, nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = serveWith(t, NewWriteBucket(cfg, nil, nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, retryAfterSeconds(-5))
	assert.Equal(t, 1, retryAfterSeconds(1))
	assert.Equal(t, 6, retryAfterSeconds(5001))
	assert.EqualValues(t, 3, asInt64("3"))
	assert.EqualValues(t, 0, asInt64(nil))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"items":[]}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"items":[]}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 0, 99})
	assert.False(t, ok)
}

func TestCaptureWriterStopsAtLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("de"))
	assert.True(t, cw.truncated)
	assert.Equal(t, "abc", cw.buf.String())
	assert.Equal(t, "abcde", rec.Body.String())
}

func TestCacheKeyVariesByQuery(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "mkt:cache"}
	key := func(url string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, url, nil), httptest.NewRecorder())
		c.SetPath("/v1/listings")
		return cacheKeyFrom(cfg, c)
	}
	a := key("/v1/listings?q=lamp")
	assert.Equal(t, a, key("/v1/listings?q=lamp"))
	assert.NotEqual(t, a, key("/v1/listings?q=desk"))
	assert.Contains(t, a, "mkt:cache:")
}

func TestMetricsCountsByRoute(t *testing.T) {
	e := echo.New()
	e.Use(Metrics())
	e.GET("/v1/listings/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpReqTotal.WithLabelValues(http.MethodGet, "/v1/listings/:id", "404"))
	for _, id := range []string{"a", "b"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/listings/"+id, nil))
	}
	after := testutil.ToFloat64(httpReqTotal.WithLabelValues(http.MethodGet, "/v1/listings/:id", "404"))
	assert.Equal(t, 2.0, after-before)
}
