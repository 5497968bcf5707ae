// Package pricing resolves the price a seat sells for at a given instant.
//
// The base price is the seat's own override when set, otherwise its tier
// price. A dynamic override whose window contains the current instant
// replaces it. Decisions are cached per seat until ClearCache is called for
// the event seating; writers of overrides or tier data must call it.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/iliyamo/seat-inventory/internal/clock"
	"github.com/iliyamo/seat-inventory/internal/logger"
	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/repository"
	"github.com/iliyamo/seat-inventory/internal/tenant"
)

// ErrPricingDataMissing is returned for a seat that has neither a per-seat
// price nor a priced tier. Such a seat is never priced at zero.
var ErrPricingDataMissing = errors.New("pricing data missing")

// Strategy names how the effective price was chosen.
type Strategy string

const (
	StrategyBase     Strategy = "base"
	StrategyOverride Strategy = "override"
)

// Decision is the resolved price of one seat.
type Decision struct {
	SeatUID             string   `json:"seat_uid"`
	BasePriceCents      int64    `json:"base_price_cents"`
	EffectivePriceCents int64    `json:"effective_price_cents"`
	Strategy            Strategy `json:"strategy"`
	DifferenceCents     int64    `json:"difference_cents"`
	ChangePercentage    float64  `json:"change_percentage"`
	WasChanged          bool     `json:"was_changed"`
	SourceRuleID        *uint64  `json:"source_rule_id,omitempty"`
}

// Source is the storage the resolver reads. Both methods are batched.
type Source interface {
	BasePrices(ctx context.Context, eventSeatingID uint64, seatUIDs []string) (map[string]model.SeatPriceBasis, error)
	ActiveOverrides(ctx context.Context, eventSeatingID uint64, seatUIDs []string, at time.Time) (map[string]model.PriceOverride, error)
}

// Cache stores decisions per (tenant, event seating, seat).
type Cache interface {
	Get(ctx context.Context, tenantID, eventSeatingID uint64, seatUIDs []string) (map[string]Decision, error)
	Set(ctx context.Context, tenantID, eventSeatingID uint64, decisions map[string]Decision) error
	Clear(ctx context.Context, tenantID, eventSeatingID uint64) error
}

// Resolver computes price decisions.
type Resolver struct {
	source Source
	cache  Cache
	clock  clock.Clock
	log    *logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache replaces the default in-process cache.
func WithCache(c Cache) Option { return func(r *Resolver) { r.cache = c } }

// WithClock sets the clock used to decide which overrides are active.
func WithClock(c clock.Clock) Option { return func(r *Resolver) { r.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(r *Resolver) { r.log = l } }

// NewResolver builds a Resolver over source. Without WithCache it uses a
// MemoryCache bounded by DefaultCacheTTL on the resolver's clock.
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source: source,
		clock:  clock.NewSystem(),
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewMemoryCache(DefaultCacheTTL, r.clock)
	}
	return r
}

// ComputeEffectivePrice resolves one seat. An unknown seat yields
// repository.ErrNotFound.
func (r *Resolver) ComputeEffectivePrice(ctx context.Context, eventSeatingID uint64, seatUID string) (Decision, error) {
	out, err := r.ComputeBulkPrices(ctx, eventSeatingID, []string{seatUID})
	if err != nil {
		return Decision{}, err
	}
	return out[seatUID], nil
}

// ComputeBulkPrices resolves many seats with at most one base-price query
// and one override query for the cache misses. The call fails as a whole if
// any seat is unknown or cannot be priced.
func (r *Resolver) ComputeBulkPrices(ctx context.Context, eventSeatingID uint64, seatUIDs []string) (map[string]Decision, error) {
	tid, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	uids := dedupe(seatUIDs)
	out := make(map[string]Decision, len(uids))
	if len(uids) == 0 {
		return out, nil
	}

	cached, err := r.cache.Get(ctx, uint64(tid), eventSeatingID, uids)
	if err != nil {
		// a broken cache only costs a round trip
		r.log.WarnContext(ctx, "pricing cache read failed", "error", err)
		cached = nil
	}
	var misses []string
	for _, uid := range uids {
		if d, ok := cached[uid]; ok {
			out[uid] = d
			continue
		}
		misses = append(misses, uid)
	}
	if len(misses) == 0 {
		return out, nil
	}

	bases, err := r.source.BasePrices(ctx, eventSeatingID, misses)
	if err != nil {
		return nil, fmt.Errorf("load base prices: %w", err)
	}
	overrides, err := r.source.ActiveOverrides(ctx, eventSeatingID, misses, r.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}

	fresh := make(map[string]Decision, len(misses))
	for _, uid := range misses {
		basis, ok := bases[uid]
		if !ok {
			return nil, fmt.Errorf("seat %s: %w", uid, repository.ErrNotFound)
		}
		base, ok := baseCents(basis)
		if !ok {
			return nil, fmt.Errorf("seat %s: %w", uid, ErrPricingDataMissing)
		}
		var ov *model.PriceOverride
		if o, ok := overrides[uid]; ok {
			ov = &o
		}
		d := decide(uid, base, ov)
		fresh[uid] = d
		out[uid] = d
	}
	if err := r.cache.Set(ctx, uint64(tid), eventSeatingID, fresh); err != nil {
		r.log.WarnContext(ctx, "pricing cache write failed", "error", err)
	}
	return out, nil
}

// ClearCache drops every cached decision of the event seating for the
// caller's tenant.
func (r *Resolver) ClearCache(ctx context.Context, eventSeatingID uint64) error {
	tid, err := tenant.FromContext(ctx)
	if err != nil {
		return err
	}
	if err := r.cache.Clear(ctx, uint64(tid), eventSeatingID); err != nil {
		return fmt.Errorf("clear pricing cache: %w", err)
	}
	r.log.InfoContext(ctx, "pricing cache cleared", "tenant_id", uint64(tid), "event_seating_id", eventSeatingID)
	return nil
}

func baseCents(b model.SeatPriceBasis) (int64, bool) {
	if b.PriceCentsOverride != nil {
		return *b.PriceCentsOverride, true
	}
	if b.TierPriceCents != nil {
		return *b.TierPriceCents, true
	}
	return 0, false
}

func decide(seatUID string, base int64, ov *model.PriceOverride) Decision {
	d := Decision{
		SeatUID:             seatUID,
		BasePriceCents:      base,
		EffectivePriceCents: base,
		Strategy:            StrategyBase,
	}
	if ov != nil {
		d.EffectivePriceCents = ov.PriceCents
		d.Strategy = StrategyOverride
		d.SourceRuleID = ov.SourceRuleID
	}
	d.DifferenceCents = d.EffectivePriceCents - base
	d.WasChanged = d.DifferenceCents != 0
	if base != 0 {
		pct := float64(d.DifferenceCents) / float64(base) * 100
		d.ChangePercentage = math.Round(pct*100) / 100
	}
	return d
}

func dedupe(uids []string) []string {
	seen := make(map[string]bool, len(uids))
	out := make([]string, 0, len(uids))
	for _, u := range uids {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
