package repository

import (
    "context"
    "errors"
    "fmt"
    "testing"

    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/seat-inventory/internal/tenant"
)

func TestInClause(t *testing.T) {
    assert.Equal(t, "", inClause(0))
    assert.Equal(t, "?", inClause(1))
    assert.Equal(t, "?,?,?", inClause(3))
}

func TestIsDuplicateKey(t *testing.T) {
    dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
    assert.True(t, isDuplicateKey(dup))
    assert.True(t, isDuplicateKey(fmt.Errorf("insert: %w", dup)))
    assert.False(t, isDuplicateKey(&mysql.MySQLError{Number: 1213}))
    assert.False(t, isDuplicateKey(errors.New("boom")))
}

func TestScopeRequiresTenant(t *testing.T) {
    _, err := scope(context.Background())
    assert.ErrorIs(t, err, tenant.ErrMissing)

    id, err := scope(tenant.WithID(context.Background(), 12))
    require.NoError(t, err)
    assert.Equal(t, uint64(12), id)
}

func TestNullHelpers(t *testing.T) {
    assert.Nil(t, nullString(nil))
    s := "sess"
    assert.Equal(t, "sess", nullString(&s))
    assert.Nil(t, nullUint64(nil))
    assert.Nil(t, nullInt64(nil))
}

func TestScopedReadsFailWithoutTenant(t *testing.T) {
    // scope is checked before the db is touched, so a nil handle is enough.
    _, err := NewEventSeatRepo(nil).SeatsByUID(context.Background(), 1, []string{"A-1-1"})
    assert.ErrorIs(t, err, tenant.ErrMissing)
    _, err = NewPricingRepo(nil).BasePrices(context.Background(), 1, []string{"A-1-1"})
    assert.ErrorIs(t, err, tenant.ErrMissing)
}
