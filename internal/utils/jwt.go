// Package utils holds small helpers shared by the binaries.
package utils

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT with its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// NewServiceToken signs an HS256 token for a machine caller (the order
// pipeline or an operator tool).  The tid claim scopes every request made
// with it to one tenant.
func NewServiceToken(secret, subject, role string, tenantID uint64, ttl time.Duration) (AccessToken, error) {
    if secret == "" {
        return AccessToken{}, errors.New("empty signing secret")
    }
    if tenantID == 0 {
        return AccessToken{}, errors.New("tenant id is required")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":  subject,
        "role": role,
        "tid":  tenantID,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
