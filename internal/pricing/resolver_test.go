package pricing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-inventory/internal/clock"
	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/pricing"
	"github.com/iliyamo/seat-inventory/internal/repository"
	"github.com/iliyamo/seat-inventory/internal/repository/memory"
	"github.com/iliyamo/seat-inventory/internal/tenant"
)

const esid = uint64(1)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func seed(t *testing.T, ctx context.Context, store *memory.Store, tierPrice int64) uint64 {
	t.Helper()
	tierID, err := store.PutTier(ctx, model.PriceTier{Name: "Stalls", PriceCents: tierPrice})
	require.NoError(t, err)
	require.NoError(t, store.CreateSeats(ctx, []model.EventSeat{
		{EventSeatingID: esid, SeatUID: "A-1-1", Status: model.SeatAvailable, PriceTierID: &tierID},
		{EventSeatingID: esid, SeatUID: "A-1-2", Status: model.SeatAvailable, PriceTierID: &tierID, PriceCentsOverride: ptr(int64(6000))},
		{EventSeatingID: esid, SeatUID: "A-1-3", Status: model.SeatAvailable},
	}))
	return tierID
}

func TestComputeEffectivePrice_BaseThenOverride(t *testing.T) {
	ctx := tenant.WithID(context.Background(), 7)
	store := memory.New(nil)
	seed(t, ctx, store, 5000)
	clk := clock.NewManual(t0)
	r := pricing.NewResolver(store, pricing.WithClock(clk))

	d, err := r.ComputeEffectivePrice(ctx, esid, "A-1-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), d.EffectivePriceCents)
	assert.Equal(t, pricing.StrategyBase, d.Strategy)
	assert.False(t, d.WasChanged)

	_, err = store.PutOverride(ctx, model.PriceOverride{
		EventSeatingID: esid, SeatUID: "A-1-1", PriceCents: 7500,
		EffectiveFrom: t0.Add(-time.Hour), EffectiveTo: t0.Add(time.Hour),
		SourceRuleID: ptr(uint64(42)),
	})
	require.NoError(t, err)

	// cached until invalidated
	d, err = r.ComputeEffectivePrice(ctx, esid, "A-1-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), d.EffectivePriceCents)

	require.NoError(t, r.ClearCache(ctx, esid))
	d, err = r.ComputeEffectivePrice(ctx, esid, "A-1-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), d.BasePriceCents)
	assert.Equal(t, int64(7500), d.EffectivePriceCents)
	assert.Equal(t, pricing.StrategyOverride, d.Strategy)
	assert.Equal(t, int64(2500), d.DifferenceCents)
	assert.InDelta(t, 50.0, d.ChangePercentage, 0.0001)
	assert.True(t, d.WasChanged)
	require.NotNil(t, d.SourceRuleID)
	assert.Equal(t, uint64(42), *d.SourceRuleID)
}

func TestComputeEffectivePrice_SeatOverrideIsBase(t *testing.T) {
	ctx := tenant.WithID(context.Background(), 7)
	store := memory.New(nil)
	seed(t, ctx, store, 5000)
	r := pricing.NewResolver(store)

	d, err := r.ComputeEffectivePrice(ctx, esid, "A-1-2")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), d.BasePriceCents)
	assert.Equal(t, pricing.StrategyBase, d.Strategy)
}

func TestComputeEffectivePrice_Errors(t *testing.T) {
	ctx := tenant.WithID(context.Background(), 7)
	store := memory.New(nil)
	seed(t, ctx, store, 5000)
	r := pricing.NewResolver(store)

	_, err := r.ComputeEffectivePrice(ctx, esid, "A-1-3")
	assert.ErrorIs(t, err, pricing.ErrPricingDataMissing)

	_, err = r.ComputeEffectivePrice(ctx, esid, "Z-9-9")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	other := tenant.WithID(context.Background(), 8)
	_, err = r.ComputeEffectivePrice(other, esid, "A-1-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = r.ComputeEffectivePrice(context.Background(), esid, "A-1-1")
	assert.ErrorIs(t, err, tenant.ErrMissing)
}

func TestComputeEffectivePrice_OverrideWindow(t *testing.T) {
	ctx := tenant.WithID(context.Background(), 7)
	store := memory.New(nil)
	seed(t, ctx, store, 5000)
	clk := clock.NewManual(t0)
	r := pricing.NewResolver(store, pricing.WithClock(clk))

	_, err := store.PutOverride(ctx, model.PriceOverride{
		EventSeatingID: esid, SeatUID: "A-1-1", PriceCents: 4000,
		EffectiveFrom: t0.Add(-2 * time.Hour), EffectiveTo: t0.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	_, err = store.PutOverride(ctx, model.PriceOverride{
		EventSeatingID: esid, SeatUID: "A-1-1", PriceCents: 4500,
		EffectiveFrom: t0.Add(-time.Hour), EffectiveTo: t0,
	})
	require.NoError(t, err)

	d, err := r.ComputeEffectivePrice(ctx, esid, "A-1-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4500), d.EffectivePriceCents, "latest effective_from wins, window end inclusive")
	assert.InDelta(t, -10.0, d.ChangePercentage, 0.0001)

	clk.Advance(time.Second)
	require.NoError(t, r.ClearCache(ctx, esid))
	d, err = r.ComputeEffectivePrice(ctx, esid, "A-1-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), d.EffectivePriceCents)
}

type countingSource struct {
	pricing.Source
	base, overrides int
}

func (c *countingSource) BasePrices(ctx context.Context, id uint64, uids []string) (map[string]model.SeatPriceBasis, error) {
	c.base++
	return c.Source.BasePrices(ctx, id, uids)
}

func (c *countingSource) ActiveOverrides(ctx context.Context, id uint64, uids []string, at time.Time) (map[string]model.PriceOverride, error) {
	c.overrides++
	return c.Source.ActiveOverrides(ctx, id, uids, at)
}

func TestComputeBulkPrices_BatchesAndCaches(t *testing.T) {
	ctx := tenant.WithID(context.Background(), 7)
	store := memory.New(nil)
	seed(t, ctx, store, 5000)
	src := &countingSource{Source: store}
	r := pricing.NewResolver(src)

	out, err := r.ComputeBulkPrices(ctx, esid, []string{"A-1-1", "A-1-2", "A-1-1"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, src.base)
	assert.Equal(t, 1, src.overrides)

	_, err = r.ComputeBulkPrices(ctx, esid, []string{"A-1-1", "A-1-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, src.base, "second call served from cache")

	_, err = r.ComputeBulkPrices(ctx, esid, []string{"A-1-1", "A-1-3"})
	assert.ErrorIs(t, err, pricing.ErrPricingDataMissing)
}

func TestMemoryCache_ScopedByTenant(t *testing.T) {
	ctx := context.Background()
	c := pricing.NewMemoryCache(time.Minute, clock.NewManual(t0))
	require.NoError(t, c.Set(ctx, 1, esid, map[string]pricing.Decision{"A": {SeatUID: "A", EffectivePriceCents: 10}}))

	got, err := c.Get(ctx, 2, esid, []string{"A"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.Get(ctx, 1, esid, []string{"A", "B"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, c.Clear(ctx, 1, esid))
	got, _ = c.Get(ctx, 1, esid, []string{"A"})
	assert.Empty(t, got)
}

func TestMemoryCache_EntriesExpireAfterTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(t0)
	c := pricing.NewMemoryCache(time.Minute, clk)
	require.NoError(t, c.Set(ctx, 1, esid, map[string]pricing.Decision{"A": {SeatUID: "A", EffectivePriceCents: 10}}))

	clk.Advance(59 * time.Second)
	got, err := c.Get(ctx, 1, esid, []string{"A"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	clk.Advance(time.Second)
	got, err = c.Get(ctx, 1, esid, []string{"A"})
	require.NoError(t, err)
	assert.Empty(t, got, "entry lapses at ttl")
}

// A worker that never sees the invalidation message still picks up a new
// override once its cached decision lapses.
func TestComputeEffectivePrice_UninvalidatedWorkerConvergesAfterTTL(t *testing.T) {
	ctx := tenant.WithID(context.Background(), 7)
	store := memory.New(nil)
	seed(t, ctx, store, 5000)
	clk := clock.NewManual(t0)
	r := pricing.NewResolver(store, pricing.WithClock(clk),
		pricing.WithCache(pricing.NewMemoryCache(5*time.Minute, clk)))

	d, err := r.ComputeEffectivePrice(ctx, esid, "A-1-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), d.EffectivePriceCents)

	_, err = store.PutOverride(ctx, model.PriceOverride{
		EventSeatingID: esid, SeatUID: "A-1-1", PriceCents: 6000,
		EffectiveFrom: t0.Add(-time.Hour), EffectiveTo: t0.Add(time.Hour),
	})
	require.NoError(t, err)

	d, err = r.ComputeEffectivePrice(ctx, esid, "A-1-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), d.EffectivePriceCents, "still cached")

	clk.Advance(5 * time.Minute)
	d, err = r.ComputeEffectivePrice(ctx, esid, "A-1-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), d.EffectivePriceCents)
	assert.Equal(t, pricing.StrategyOverride, d.Strategy)
}
