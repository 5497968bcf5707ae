package middleware

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// Context keys written by JWTAuth.
const (
    CtxSubject = "subject"
    CtxRole    = "role"
    CtxTenant  = "tenant_claim"
)

// JWTAuth validates an HS256 bearer token and copies its sub, role and tid
// claims into the echo context.  Tokens are issued to the order service and
// to operators, never to end users.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            if sub, err := claims.GetSubject(); err == nil {
                c.Set(CtxSubject, sub)
            }
            if role, ok := claims["role"].(string); ok {
                c.Set(CtxRole, role)
            }
            // tid may arrive as a JSON number or a string
            switch v := claims["tid"].(type) {
            case float64:
                if v > 0 {
                    c.Set(CtxTenant, uint64(v))
                }
            case string:
                c.Set(CtxTenant, v)
            }
            return next(c)
        }
    }
}
