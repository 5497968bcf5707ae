// Package tenant carries the caller's tenant through context.Context. Every
// scoped repository reads it from there; nothing in the process holds a
// "current tenant" global.
package tenant

import (
	"context"
	"errors"
	"strconv"
)

// ID identifies one tenant (an event organiser).
type ID uint64

// ErrMissing is returned when a scoped data-access call runs without a tenant.
var ErrMissing = errors.New("tenant: no tenant in context")

// ErrInvalid is returned by Parse for empty, zero or non-numeric input.
var ErrInvalid = errors.New("tenant: invalid tenant id")

type ctxKey struct{}

// WithID returns a copy of ctx scoped to the given tenant.
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the tenant stored in ctx.
func FromContext(ctx context.Context) (ID, error) {
	id, ok := ctx.Value(ctxKey{}).(ID)
	if !ok || id == 0 {
		return 0, ErrMissing
	}
	return id, nil
}

// Parse converts a header or claim value into an ID.
func Parse(s string) (ID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, ErrInvalid
	}
	return ID(n), nil
}

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }
