package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_Missing(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrMissing)
}

func TestWithID_RoundTrip(t *testing.T) {
	ctx := WithID(context.Background(), 42)
	id, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, ID(42), id)
}

func TestWithID_InnerScopeWins(t *testing.T) {
	outer := WithID(context.Background(), 1)
	inner := WithID(outer, 2)

	id, _ := FromContext(inner)
	assert.Equal(t, ID(2), id)
	id, _ = FromContext(outer)
	assert.Equal(t, ID(1), id)
}

func TestParse(t *testing.T) {
	id, err := Parse("17")
	require.NoError(t, err)
	assert.Equal(t, "17", id.String())

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}
