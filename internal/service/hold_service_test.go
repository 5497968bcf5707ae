package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-inventory/internal/clock"
	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/pricing"
	"github.com/iliyamo/seat-inventory/internal/queue"
	"github.com/iliyamo/seat-inventory/internal/repository/memory"
	"github.com/iliyamo/seat-inventory/internal/tenant"
)

const testES = uint64(1)

var t0 = time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	store *memory.Store
	clk   *clock.Manual
	svc   *HoldService
}

func newFixture(t *testing.T, seats int, opts ...HoldOption) *fixture {
	t.Helper()
	clk := clock.NewManual(t0)
	store := memory.New(clk.Now)
	ctx := tenant.WithID(context.Background(), 7)
	rows := make([]model.EventSeat, seats)
	for i := range rows {
		rows[i] = model.EventSeat{
			EventSeatingID: testES,
			SeatUID:        fmt.Sprintf("A-1-%d", i+1),
			SectionName:    "Stalls",
			RowLabel:       "1",
			SeatLabel:      fmt.Sprint(i + 1),
			Status:         model.SeatAvailable,
		}
	}
	require.NoError(t, store.CreateSeats(ctx, rows))
	opts = append([]HoldOption{WithClock(clk)}, opts...)
	return &fixture{ctx: ctx, store: store, clk: clk, svc: NewHoldService(store, opts...)}
}

func (f *fixture) seat(t *testing.T, uid string) model.EventSeat {
	t.Helper()
	seats, err := f.store.SeatsByUID(f.ctx, testES, []string{uid})
	require.NoError(t, err)
	require.Len(t, seats, 1)
	return seats[0]
}

func (f *fixture) holds(t *testing.T, uids ...string) []model.SeatHold {
	t.Helper()
	h, err := f.store.HoldsBySeat(f.ctx, testES, uids)
	require.NoError(t, err)
	return h
}

func heldUIDs(r HoldResult) []string {
	out := make([]string, len(r.Held))
	for i, h := range r.Held {
		out[i] = h.SeatUID
	}
	return out
}

func TestHoldSeats_GrantsAndCreatesHold(t *testing.T) {
	f := newFixture(t, 3)

	res, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1", "A-1-2"}, "s1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A-1-1", "A-1-2"}, heldUIDs(res))
	assert.Empty(t, res.Failed)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, t0.Add(600*time.Second), *res.ExpiresAt)
	assert.NotEmpty(t, res.Held[0].HoldToken)

	st := f.seat(t, "A-1-1")
	assert.Equal(t, model.SeatHeld, st.Status)
	assert.Equal(t, uint32(2), st.Version)
	assert.Len(t, f.holds(t, "A-1-1", "A-1-2"), 2)
}

func TestHoldSeats_ConcurrentSessionsExactlyOneWins(t *testing.T) {
	for i := 0; i < 25; i++ {
		f := newFixture(t, 1)
		var wg sync.WaitGroup
		start := make(chan struct{})
		results := make([]HoldResult, 2)
		for j, session := range []string{"s1", "s2"} {
			wg.Add(1)
			go func(j int, session string) {
				defer wg.Done()
				<-start
				r, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1"}, session)
				assert.NoError(t, err)
				results[j] = r
			}(j, session)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, 1, len(results[0].Held)+len(results[1].Held))
		assert.Equal(t, 1, len(results[0].Failed)+len(results[1].Failed))
		assert.Len(t, f.holds(t, "A-1-1"), 1)
		assert.Equal(t, uint32(2), f.seat(t, "A-1-1").Version)
	}
}

func TestHoldSeats_PartialBatchAndReasons(t *testing.T) {
	f := newFixture(t, 4)
	_, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1"}, "s1")
	require.NoError(t, err)
	_, err = f.svc.HoldSeats(f.ctx, testES, []string{"A-1-2"}, "s2")
	require.NoError(t, err)
	_, err = f.svc.BlockSeats(f.ctx, testES, []string{"A-1-3"})
	require.NoError(t, err)

	res, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1", "A-1-2", "A-1-3", "A-1-4", "Z-9-9"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1-4"}, heldUIDs(res))
	assert.ElementsMatch(t, []SeatFailure{
		{"A-1-1", ReasonAlreadyHeld},
		{"A-1-2", ReasonUnavailable},
		{"A-1-3", ReasonUnavailable},
		{"Z-9-9", ReasonNotFound},
	}, res.Failed)
}

func TestHoldSeats_Quota(t *testing.T) {
	f := newFixture(t, 5, WithMaxPerSession(2))

	res, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1", "A-1-2", "A-1-3"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1-1", "A-1-2"}, heldUIDs(res))
	assert.Equal(t, []SeatFailure{{"A-1-3", ReasonQuotaExceeded}}, res.Failed)

	res, err = f.svc.HoldSeats(f.ctx, testES, []string{"A-1-4"}, "s1")
	require.NoError(t, err)
	assert.Empty(t, res.Held)
	assert.Nil(t, res.ExpiresAt)
	assert.Equal(t, ReasonQuotaExceeded, res.Failed[0].Reason)

	res, err = f.svc.HoldSeats(f.ctx, testES, []string{"A-1-4"}, "s2")
	require.NoError(t, err)
	assert.Len(t, res.Held, 1, "quota is per session")

	// expired holds no longer count
	f.clk.Advance(601 * time.Second)
	res, err = f.svc.HoldSeats(f.ctx, testES, []string{"A-1-5"}, "s1")
	require.NoError(t, err)
	assert.Len(t, res.Held, 1)
}

// pausedCountInventory makes every HoldSeats call wait after its up-front
// quota count until all expected callers have counted, so concurrent calls
// of one session all start from the same stale count.
type pausedCountInventory struct {
	*memory.Store
	counted sync.WaitGroup
}

type inTxKey struct{}

func (p *pausedCountInventory) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.Store.WithinTx(ctx, func(ctx context.Context) error {
		return fn(context.WithValue(ctx, inTxKey{}, true))
	})
}

func (p *pausedCountInventory) CountActiveHolds(ctx context.Context, eventSeatingID uint64, sessionUID string, now time.Time) (int, error) {
	n, err := p.Store.CountActiveHolds(ctx, eventSeatingID, sessionUID, now)
	if ctx.Value(inTxKey{}) == nil {
		p.counted.Done()
		p.counted.Wait()
	}
	return n, err
}

func TestHoldSeats_QuotaHoldsUnderConcurrentSameSessionCalls(t *testing.T) {
	f := newFixture(t, 4)
	inv := &pausedCountInventory{Store: f.store}
	inv.counted.Add(2)
	svc := NewHoldService(inv, WithClock(f.clk), WithMaxPerSession(2))

	var wg sync.WaitGroup
	results := make([]HoldResult, 2)
	for i, batch := range [][]string{{"A-1-1", "A-1-2"}, {"A-1-3", "A-1-4"}} {
		wg.Add(1)
		go func(i int, batch []string) {
			defer wg.Done()
			r, err := svc.HoldSeats(f.ctx, testES, batch, "s1")
			assert.NoError(t, err)
			results[i] = r
		}(i, batch)
	}
	wg.Wait()

	held := len(results[0].Held) + len(results[1].Held)
	assert.Equal(t, 2, held)
	for _, r := range results {
		for _, fail := range r.Failed {
			assert.Equal(t, ReasonQuotaExceeded, fail.Reason, fail.SeatUID)
		}
	}
	active, err := f.store.CountActiveHolds(f.ctx, testES, "s1", f.clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, active)
}

func TestHoldSeats_ReclaimsLapsedLease(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1"}, "s1")
	require.NoError(t, err)

	f.clk.Advance(601 * time.Second)
	res, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1"}, "s2")
	require.NoError(t, err)
	require.Len(t, res.Held, 1)

	st := f.seat(t, "A-1-1")
	assert.True(t, st.HeldBy("s2"))
	assert.Equal(t, uint32(4), st.Version, "held, reclaimed, held again")
	h := f.holds(t, "A-1-1")
	require.Len(t, h, 1)
	assert.Equal(t, "s2", h[0].SessionUID)
}

func TestHoldSeats_TenantIsolation(t *testing.T) {
	f := newFixture(t, 1)
	other := tenant.WithID(context.Background(), 8)

	res, err := f.svc.HoldSeats(other, testES, []string{"A-1-1"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, []SeatFailure{{"A-1-1", ReasonNotFound}}, res.Failed)
	assert.Equal(t, model.SeatAvailable, f.seat(t, "A-1-1").Status)

	_, err = f.svc.HoldSeats(context.Background(), testES, []string{"A-1-1"}, "s1")
	assert.ErrorIs(t, err, tenant.ErrMissing)
}

func TestHoldSeats_InvalidInput(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.HoldSeats(f.ctx, testES, nil, "s1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1"}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type fakeQuoter struct{ err error }

func (q fakeQuoter) ComputeBulkPrices(_ context.Context, _ uint64, uids []string) (map[string]pricing.Decision, error) {
	if q.err != nil {
		return nil, q.err
	}
	out := map[string]pricing.Decision{}
	for _, u := range uids {
		out[u] = pricing.Decision{SeatUID: u, EffectivePriceCents: 4200}
	}
	return out, nil
}

func TestHoldSeats_AttachesPrices(t *testing.T) {
	f := newFixture(t, 2, WithPriceQuoter(fakeQuoter{}))
	res, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1"}, "s1")
	require.NoError(t, err)
	require.NotNil(t, res.Held[0].PriceCents)
	assert.Equal(t, int64(4200), *res.Held[0].PriceCents)

	f = newFixture(t, 2, WithPriceQuoter(fakeQuoter{err: assert.AnError}))
	res, err = f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1"}, "s1")
	require.NoError(t, err, "a pricing failure never fails the hold")
	assert.Nil(t, res.Held[0].PriceCents)
}

func TestReleaseSeats_Idempotent(t *testing.T) {
	f := newFixture(t, 2)
	_, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1", "A-1-2"}, "s1")
	require.NoError(t, err)

	released, err := f.svc.ReleaseSeats(f.ctx, testES, []string{"A-1-1", "A-1-2"}, "s2")
	require.NoError(t, err)
	assert.Empty(t, released, "foreign session is a no-op")

	released, err = f.svc.ReleaseSeats(f.ctx, testES, []string{"A-1-1"}, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1-1"}, released)
	assert.Equal(t, uint32(3), f.seat(t, "A-1-1").Version)
	assert.Empty(t, f.holds(t, "A-1-1"))

	released, err = f.svc.ReleaseSeats(f.ctx, testES, []string{"A-1-1"}, "s1")
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.Equal(t, uint32(3), f.seat(t, "A-1-1").Version)
	assert.Equal(t, model.SeatHeld, f.seat(t, "A-1-2").Status)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.SeatsConfirmedEvent
}

func (p *recordingPublisher) PublishSeatsConfirmed(_ context.Context, ev queue.SeatsConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func TestConfirmPurchase_Success(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, 2, WithPublisher(pub))
	_, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1", "A-1-2"}, "s1")
	require.NoError(t, err)

	res, err := f.svc.ConfirmPurchase(f.ctx, testES, []string{"A-1-1", "A-1-2"}, "s1", "ORD-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)

	for _, uid := range []string{"A-1-1", "A-1-2"} {
		st := f.seat(t, uid)
		assert.Equal(t, model.SeatSold, st.Status)
		assert.Equal(t, uint32(3), st.Version)
		require.NotNil(t, st.OrderReference)
		assert.Equal(t, "ORD-1", *st.OrderReference)
	}
	assert.Empty(t, f.holds(t, "A-1-1", "A-1-2"))
	require.Len(t, pub.events, 1)
	assert.Equal(t, uint64(7), pub.events[0].TenantID)
	assert.Equal(t, "ORD-1", pub.events[0].OrderReference)
}

func TestConfirmPurchase_ExpiredHoldAbortsBatch(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, 2, WithPublisher(pub))
	_, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1"}, "s1")
	require.NoError(t, err)
	f.clk.Advance(300 * time.Second)
	_, err = f.svc.HoldSeats(f.ctx, testES, []string{"A-1-2"}, "s1")
	require.NoError(t, err)
	f.clk.Advance(301 * time.Second) // first lease lapsed, second still valid

	res, err := f.svc.ConfirmPurchase(f.ctx, testES, []string{"A-1-1", "A-1-2"}, "s1", "ORD-2")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, map[string]string{"A-1-1": ConfirmHoldExpired}, res.Errors)
	assert.Equal(t, model.SeatHeld, f.seat(t, "A-1-1").Status)
	assert.Equal(t, model.SeatHeld, f.seat(t, "A-1-2").Status)
	assert.Empty(t, pub.events)
}

func TestConfirmPurchase_RequiresOwnHold(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-1"}, "s1")
	require.NoError(t, err)
	_, err = f.svc.HoldSeats(f.ctx, testES, []string{"A-1-2"}, "s2")
	require.NoError(t, err)

	res, err := f.svc.ConfirmPurchase(f.ctx, testES, []string{"A-1-1", "A-1-2", "A-1-3", "X"}, "s1", "ORD-3")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, map[string]string{
		"A-1-2": ConfirmNotHeld,
		"A-1-3": ConfirmNotHeld,
		"X":     ConfirmNotFound,
	}, res.Errors)
	assert.Equal(t, model.SeatHeld, f.seat(t, "A-1-1").Status)

	_, err = f.svc.ConfirmPurchase(f.ctx, testES, []string{"A-1-1"}, "s1", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBlockSeats(t *testing.T) {
	f := newFixture(t, 3)
	_, err := f.svc.HoldSeats(f.ctx, testES, []string{"A-1-2"}, "s1")
	require.NoError(t, err)
	_, err = f.svc.HoldSeats(f.ctx, testES, []string{"A-1-3"}, "s1")
	require.NoError(t, err)
	_, err = f.svc.ConfirmPurchase(f.ctx, testES, []string{"A-1-3"}, "s1", "ORD-4")
	require.NoError(t, err)

	blocked, err := f.svc.BlockSeats(f.ctx, testES, []string{"A-1-1", "A-1-2", "A-1-3"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A-1-1", "A-1-2"}, blocked)
	assert.Empty(t, f.holds(t, "A-1-2"))
	assert.Nil(t, f.seat(t, "A-1-2").SessionUID)
	assert.Equal(t, model.SeatSold, f.seat(t, "A-1-3").Status)
}
