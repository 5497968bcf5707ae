// Package memory is an in-process implementation of the inventory store. It
// honours the same contract as the MySQL repositories: tenant scoping from
// context, conditional transitions on version, unique holds per seat and
// all-or-nothing transactions. It backs STORE_DRIVER=memory and the tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/repository"
	"github.com/iliyamo/seat-inventory/internal/tenant"
)

type seatKey struct {
	eventSeatingID uint64
	seatUID        string
}

type txKey struct{}

// Store keeps every table in maps guarded by one mutex. A transaction holds
// the mutex for its whole duration, so transactions are serial.
type Store struct {
	mu     sync.Mutex
	nextID uint64
	now    func() time.Time

	layouts   map[uint64]model.SeatingLayout
	seatings  map[uint64]model.EventSeatingLayout
	seats     map[seatKey]model.EventSeat
	holds     map[seatKey]model.SeatHold
	tiers     map[uint64]model.PriceTier
	overrides []model.PriceOverride
}

// New returns an empty store. now stamps UpdatedAt/CreatedAt; nil means
// time.Now in UTC.
func New(now func() time.Time) *Store {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		now:      now,
		layouts:  map[uint64]model.SeatingLayout{},
		seatings: map[uint64]model.EventSeatingLayout{},
		seats:    map[seatKey]model.EventSeat{},
		holds:    map[seatKey]model.SeatHold{},
		tiers:    map[uint64]model.PriceTier{},
	}
}

// lock takes the mutex unless ctx already belongs to a transaction on s.
func (s *Store) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

type snapshot struct {
	nextID    uint64
	layouts   map[uint64]model.SeatingLayout
	seatings  map[uint64]model.EventSeatingLayout
	seats     map[seatKey]model.EventSeat
	holds     map[seatKey]model.SeatHold
	tiers     map[uint64]model.PriceTier
	overrides []model.PriceOverride
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithinTx runs fn with exclusive access to the store and restores every
// table if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		nextID:    s.nextID,
		layouts:   copyMap(s.layouts),
		seatings:  copyMap(s.seatings),
		seats:     copyMap(s.seats),
		holds:     copyMap(s.holds),
		tiers:     copyMap(s.tiers),
		overrides: append([]model.PriceOverride(nil), s.overrides...),
	}
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.nextID = snap.nextID
		s.layouts, s.seatings, s.seats = snap.layouts, snap.seatings, snap.seats
		s.holds, s.tiers, s.overrides = snap.holds, snap.tiers, snap.overrides
		return err
	}
	return nil
}

func scope(ctx context.Context) (uint64, error) {
	id, err := tenant.FromContext(ctx)
	return uint64(id), err
}

// --- seats ---

// SeatsByUID returns the requested seats of the caller's tenant.
func (s *Store) SeatsByUID(ctx context.Context, eventSeatingID uint64, seatUIDs []string) ([]model.EventSeat, error) {
	tid, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	defer s.lock(ctx)()
	var out []model.EventSeat
	for _, uid := range seatUIDs {
		if st, ok := s.seats[seatKey{eventSeatingID, uid}]; ok && st.TenantID == tid {
			out = append(out, st)
		}
	}
	return out, nil
}

// ListSeats returns the seats of an event seating in label order.
func (s *Store) ListSeats(ctx context.Context, eventSeatingID uint64) ([]model.EventSeat, error) {
	tid, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	defer s.lock(ctx)()
	var out []model.EventSeat
	for k, st := range s.seats {
		if k.eventSeatingID == eventSeatingID && st.TenantID == tid {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SectionName != b.SectionName {
			return a.SectionName < b.SectionName
		}
		if a.RowLabel != b.RowLabel {
			return a.RowLabel < b.RowLabel
		}
		if a.SeatLabel != b.SeatLabel {
			return a.SeatLabel < b.SeatLabel
		}
		return a.SeatUID < b.SeatUID
	})
	return out, nil
}

// TransitionSeat is the conditional update: it applies only when version,
// status and (optionally) owner still match.
func (s *Store) TransitionSeat(ctx context.Context, t model.SeatTransition) (bool, error) {
	tid, err := scope(ctx)
	if err != nil {
		return false, err
	}
	defer s.lock(ctx)()
	k := seatKey{t.EventSeatingID, t.SeatUID}
	st, ok := s.seats[k]
	if !ok || st.TenantID != tid || st.Version != t.ExpectedVersion || st.Status != t.From {
		return false, nil
	}
	if t.ExpectSession != nil && (st.SessionUID == nil || *st.SessionUID != *t.ExpectSession) {
		return false, nil
	}
	st.Status = t.To
	st.Version++
	st.SessionUID = t.SessionUID
	if t.OrderReference != nil {
		st.OrderReference = t.OrderReference
	}
	st.UpdatedAt = s.now()
	s.seats[k] = st
	return true, nil
}

// CreateSeats inserts materialized seats stamped with the caller's tenant.
func (s *Store) CreateSeats(ctx context.Context, seats []model.EventSeat) error {
	tid, err := scope(ctx)
	if err != nil {
		return err
	}
	defer s.lock(ctx)()
	for _, st := range seats {
		if _, dup := s.seats[seatKey{st.EventSeatingID, st.SeatUID}]; dup {
			return repository.ErrConflict
		}
	}
	for _, st := range seats {
		st.ID = s.id()
		st.TenantID = tid
		st.Version = 1
		st.UpdatedAt = s.now()
		s.seats[seatKey{st.EventSeatingID, st.SeatUID}] = st
	}
	return nil
}

// CountActiveHolds counts the session's unexpired holds at now.
func (s *Store) CountActiveHolds(ctx context.Context, eventSeatingID uint64, sessionUID string, now time.Time) (int, error) {
	tid, err := scope(ctx)
	if err != nil {
		return 0, err
	}
	defer s.lock(ctx)()
	n := 0
	for k, h := range s.holds {
		if k.eventSeatingID == eventSeatingID && h.TenantID == tid && h.SessionUID == sessionUID && !h.Expired(now) {
			n++
		}
	}
	return n, nil
}

// LockSessionHolds is a no-op: transactions on the store already run one at
// a time.
func (s *Store) LockSessionHolds(ctx context.Context, eventSeatingID uint64, sessionUID string) error {
	_, err := scope(ctx)
	return err
}

// --- holds ---

// CreateHold inserts a hold; a second hold on the same seat is ErrConflict.
func (s *Store) CreateHold(ctx context.Context, h model.SeatHold) error {
	tid, err := scope(ctx)
	if err != nil {
		return err
	}
	defer s.lock(ctx)()
	k := seatKey{h.EventSeatingID, h.SeatUID}
	if _, dup := s.holds[k]; dup {
		return repository.ErrConflict
	}
	h.ID = s.id()
	h.TenantID = tid
	if h.HoldToken == "" {
		h.HoldToken = uuid.NewString()
	}
	h.CreatedAt = s.now()
	s.holds[k] = h
	return nil
}

// DeleteHold removes the hold on a seat if the caller's tenant owns it.
func (s *Store) DeleteHold(ctx context.Context, eventSeatingID uint64, seatUID string) error {
	tid, err := scope(ctx)
	if err != nil {
		return err
	}
	defer s.lock(ctx)()
	k := seatKey{eventSeatingID, seatUID}
	if h, ok := s.holds[k]; ok && h.TenantID == tid {
		delete(s.holds, k)
	}
	return nil
}

// HoldsBySeat returns the holds on the given seats.
func (s *Store) HoldsBySeat(ctx context.Context, eventSeatingID uint64, seatUIDs []string) ([]model.SeatHold, error) {
	tid, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	defer s.lock(ctx)()
	var out []model.SeatHold
	for _, uid := range seatUIDs {
		if h, ok := s.holds[seatKey{eventSeatingID, uid}]; ok && h.TenantID == tid {
			out = append(out, h)
		}
	}
	return out, nil
}

// --- unscoped ---

// ExpiredHolds lists holds of every tenant that expired before the instant.
func (s *Store) ExpiredHolds(ctx context.Context, before time.Time, limit int) ([]model.SeatHold, error) {
	defer s.lock(ctx)()
	var out []model.SeatHold
	for _, h := range s.holds {
		if h.ExpiresAt.Before(before) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SeatStatusReport counts seats per tenant, event seating and status.
func (s *Store) SeatStatusReport(ctx context.Context) ([]model.SeatStatusCount, error) {
	defer s.lock(ctx)()
	type key struct {
		tenantID, eventSeatingID uint64
		status                   model.SeatStatus
	}
	counts := map[key]int{}
	for _, st := range s.seats {
		counts[key{st.TenantID, st.EventSeatingID, st.Status}]++
	}
	out := make([]model.SeatStatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, model.SeatStatusCount{TenantID: k.tenantID, EventSeatingID: k.eventSeatingID, Status: k.status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TenantID != b.TenantID {
			return a.TenantID < b.TenantID
		}
		if a.EventSeatingID != b.EventSeatingID {
			return a.EventSeatingID < b.EventSeatingID
		}
		return a.Status < b.Status
	})
	return out, nil
}
