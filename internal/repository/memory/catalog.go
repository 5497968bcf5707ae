package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/repository"
)

// CreateLayout stores a layout for the caller's tenant.
func (s *Store) CreateLayout(ctx context.Context, l model.SeatingLayout) (uint64, error) {
	tid, err := scope(ctx)
	if err != nil {
		return 0, err
	}
	defer s.lock(ctx)()
	l.ID = s.id()
	l.TenantID = tid
	l.CreatedAt = s.now()
	s.layouts[l.ID] = l
	return l.ID, nil
}

// LayoutByID loads a layout of the caller's tenant.
func (s *Store) LayoutByID(ctx context.Context, id uint64) (model.SeatingLayout, error) {
	tid, err := scope(ctx)
	if err != nil {
		return model.SeatingLayout{}, err
	}
	defer s.lock(ctx)()
	l, ok := s.layouts[id]
	if !ok || l.TenantID != tid {
		return model.SeatingLayout{}, repository.ErrNotFound
	}
	return l, nil
}

// CreateEventSeating stores the binding; one per event and tenant.
func (s *Store) CreateEventSeating(ctx context.Context, es model.EventSeatingLayout) (uint64, error) {
	tid, err := scope(ctx)
	if err != nil {
		return 0, err
	}
	defer s.lock(ctx)()
	for _, existing := range s.seatings {
		if existing.TenantID == tid && existing.EventID == es.EventID {
			return 0, repository.ErrConflict
		}
	}
	es.ID = s.id()
	es.TenantID = tid
	s.seatings[es.ID] = es
	return es.ID, nil
}

// EventSeatingByEventID returns the active binding for an event.
func (s *Store) EventSeatingByEventID(ctx context.Context, eventID uint64) (model.EventSeatingLayout, error) {
	return s.findSeating(ctx, func(es model.EventSeatingLayout) bool { return es.EventID == eventID })
}

// EventSeatingByID returns a binding by id.
func (s *Store) EventSeatingByID(ctx context.Context, id uint64) (model.EventSeatingLayout, error) {
	return s.findSeating(ctx, func(es model.EventSeatingLayout) bool { return es.ID == id })
}

func (s *Store) findSeating(ctx context.Context, match func(model.EventSeatingLayout) bool) (model.EventSeatingLayout, error) {
	tid, err := scope(ctx)
	if err != nil {
		return model.EventSeatingLayout{}, err
	}
	defer s.lock(ctx)()
	for _, es := range s.seatings {
		if es.TenantID == tid && es.Status == model.EventSeatingActive && match(es) {
			return es, nil
		}
	}
	return model.EventSeatingLayout{}, repository.ErrNotFound
}

// PutTier creates or replaces a price tier for the caller's tenant. A zero
// ID allocates one. Tiers are owned by the external catalogue; this is how
// it feeds the in-process store.
func (s *Store) PutTier(ctx context.Context, t model.PriceTier) (uint64, error) {
	tid, err := scope(ctx)
	if err != nil {
		return 0, err
	}
	defer s.lock(ctx)()
	if t.ID == 0 {
		t.ID = s.id()
	}
	t.TenantID = tid
	s.tiers[t.ID] = t
	return t.ID, nil
}

// PutOverride records a dynamic price override for the caller's tenant.
func (s *Store) PutOverride(ctx context.Context, o model.PriceOverride) (uint64, error) {
	tid, err := scope(ctx)
	if err != nil {
		return 0, err
	}
	defer s.lock(ctx)()
	o.ID = s.id()
	o.TenantID = tid
	s.overrides = append(s.overrides, o)
	return o.ID, nil
}

// BasePrices returns the price basis of each requested seat.
func (s *Store) BasePrices(ctx context.Context, eventSeatingID uint64, seatUIDs []string) (map[string]model.SeatPriceBasis, error) {
	tid, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	defer s.lock(ctx)()
	out := make(map[string]model.SeatPriceBasis, len(seatUIDs))
	for _, uid := range seatUIDs {
		st, ok := s.seats[seatKey{eventSeatingID, uid}]
		if !ok || st.TenantID != tid {
			continue
		}
		b := model.SeatPriceBasis{SeatUID: uid, PriceCentsOverride: st.PriceCentsOverride, TierID: st.PriceTierID}
		if st.PriceTierID != nil {
			if t, ok := s.tiers[*st.PriceTierID]; ok && t.TenantID == tid {
				p := t.PriceCents
				b.TierPriceCents = &p
			}
		}
		out[uid] = b
	}
	return out, nil
}

// ActiveOverrides returns, per seat, the override active at the instant;
// the latest effective_from wins, then the highest id.
func (s *Store) ActiveOverrides(ctx context.Context, eventSeatingID uint64, seatUIDs []string, at time.Time) (map[string]model.PriceOverride, error) {
	tid, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	defer s.lock(ctx)()
	wanted := make(map[string]bool, len(seatUIDs))
	for _, uid := range seatUIDs {
		wanted[uid] = true
	}
	out := make(map[string]model.PriceOverride)
	for _, o := range s.overrides {
		if o.TenantID != tid || o.EventSeatingID != eventSeatingID || !wanted[o.SeatUID] || !o.ActiveAt(at) {
			continue
		}
		cur, seen := out[o.SeatUID]
		if !seen || o.EffectiveFrom.After(cur.EffectiveFrom) ||
			(o.EffectiveFrom.Equal(cur.EffectiveFrom) && o.ID > cur.ID) {
			out[o.SeatUID] = o
		}
	}
	return out, nil
}

// TiersForEventSeating lists the tiers referenced by an event seating.
func (s *Store) TiersForEventSeating(ctx context.Context, eventSeatingID uint64) ([]model.PriceTier, error) {
	tid, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	defer s.lock(ctx)()
	ids := map[uint64]bool{}
	for k, st := range s.seats {
		if k.eventSeatingID == eventSeatingID && st.TenantID == tid && st.PriceTierID != nil {
			ids[*st.PriceTierID] = true
		}
	}
	var out []model.PriceTier
	for id := range ids {
		if t, ok := s.tiers[id]; ok && t.TenantID == tid {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriceCents != out[j].PriceCents {
			return out[i].PriceCents > out[j].PriceCents
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// TierIDs returns the subset of ids that exist in the caller's tenant.
func (s *Store) TierIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error) {
	tid, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	defer s.lock(ctx)()
	out := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if t, ok := s.tiers[id]; ok && t.TenantID == tid {
			out[id] = true
		}
	}
	return out, nil
}
