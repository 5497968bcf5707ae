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

    "github.com/iliyamo/seat-inventory/internal/config"
    "github.com/iliyamo/seat-inventory/internal/tenant"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims) string {
    t.Helper()
    s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    require.NoError(t, err)
    return s
}

// serve runs h behind mws and returns the recorder and the tenant the
// handler observed.
func serve(req *http.Request, mws ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, tenant.ID) {
    e := echo.New()
    var seen tenant.ID
    h := func(c echo.Context) error {
        seen, _ = tenant.FromContext(c.Request().Context())
        return c.NoContent(http.StatusNoContent)
    }
    for i := len(mws) - 1; i >= 0; i-- {
        h = mws[i](h)
    }
    rec := httptest.NewRecorder()
    _ = h(e.NewContext(req, rec))
    return rec, seen
}

func TestTenantScope_Header(t *testing.T) {
    req := httptest.NewRequest(http.MethodGet, "/events/1/seating", nil)
    req.Header.Set(HeaderTenantID, "7")
    rec, seen := serve(req, TenantScope())
    assert.Equal(t, http.StatusNoContent, rec.Code)
    assert.Equal(t, tenant.ID(7), seen)
}

func TestTenantScope_MissingOrInvalid(t *testing.T) {
    for _, v := range []string{"", "0", "abc"} {
        req := httptest.NewRequest(http.MethodGet, "/", nil)
        if v != "" {
            req.Header.Set(HeaderTenantID, v)
        }
        rec, _ := serve(req, TenantScope())
        assert.Equal(t, http.StatusBadRequest, rec.Code, "header %q", v)
    }
}

func TestJWTAuth_TenantClaimWinsOverHeader(t *testing.T) {
    tok := sign(t, jwt.MapClaims{"sub": "orders", "role": RoleOrderService, "tid": 9, "exp": time.Now().Add(time.Minute).Unix()})
    req := httptest.NewRequest(http.MethodPost, "/internal/seats/confirm", nil)
    req.Header.Set("Authorization", "Bearer "+tok)
    req.Header.Set(HeaderTenantID, "7")

    rec, seen := serve(req, JWTAuth(secret), RequireRole(RoleOrderService), TenantScope())
    assert.Equal(t, http.StatusNoContent, rec.Code)
    assert.Equal(t, tenant.ID(9), seen)
}

func TestJWTAuth_Rejects(t *testing.T) {
    expired := sign(t, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(-time.Minute).Unix()})
    wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("other"))
    require.NoError(t, err)

    for name, header := range map[string]string{
        "missing":   "",
        "not bearer": "Basic abc",
        "expired":   "Bearer " + expired,
        "wrong key": "Bearer " + wrongKey,
    } {
        req := httptest.NewRequest(http.MethodGet, "/", nil)
        if header != "" {
            req.Header.Set("Authorization", header)
        }
        rec, _ := serve(req, JWTAuth(secret))
        assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
    }
}

func TestRequireRole_Forbidden(t *testing.T) {
    tok := sign(t, jwt.MapClaims{"sub": "ops", "role": RoleOrderService, "tid": 1})
    req := httptest.NewRequest(http.MethodGet, "/admin/reports/seat-status", nil)
    req.Header.Set("Authorization", "Bearer "+tok)
    rec, _ := serve(req, JWTAuth(secret), RequireRole(RoleAdmin))
    assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCacheKey_IncludesTenantAndPath(t *testing.T) {
    e := echo.New()
    cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
    key := func(tid tenant.ID, path string) string {
        req := httptest.NewRequest(http.MethodGet, path, nil)
        req = req.WithContext(tenant.WithID(req.Context(), tid))
        return cacheKeyFrom(cfg, e.NewContext(req, httptest.NewRecorder()))
    }
    assert.NotEqual(t, key(1, "/events/5/seating"), key(2, "/events/5/seating"))
    assert.NotEqual(t, key(1, "/events/5/seating"), key(1, "/events/6/seating"))
    assert.Equal(t, key(1, "/events/5/seating"), key(1, "/events/5/seating"))
    assert.True(t, strings.HasPrefix(key(1, "/events/5/seating"), "cache:1:"))
}

func TestBuildRateKey_SessionStrategy(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/seats/hold", nil)
    req.Header.Set(HeaderSessionID, "sess-1")
    req.Header.Set("X-Real-IP", "10.0.0.1")
    req = req.WithContext(tenant.WithID(req.Context(), 3))
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/seats/hold")

    key := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_session_route"}, c)
    assert.Equal(t, "rl:t:3:ip:10.0.0.1:session:sess-1:route:POST /seats/hold", key)

    key = buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "session"}, c)
    assert.Equal(t, "rl:t:3:session:sess-1", key)
}

func TestEncodeDecodePayload(t *testing.T) {
    hdr := http.Header{"Content-Type": []string{"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
    require.NoError(t, err)
    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, "application/json", got.Get("Content-Type"))
    assert.JSONEq(t, `{"ok":true}`, string(body))

    _, _, _, ok = decodePayload([]byte{1, 2})
    assert.False(t, ok)
}
