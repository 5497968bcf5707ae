// Package service holds the seat inventory use cases: the hold/lease engine,
// the expired-hold sweeper and seating activation.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seat-inventory/internal/clock"
	"github.com/iliyamo/seat-inventory/internal/logger"
	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/pricing"
	"github.com/iliyamo/seat-inventory/internal/queue"
	"github.com/iliyamo/seat-inventory/internal/repository"
	"github.com/iliyamo/seat-inventory/internal/tenant"
)

// Per-seat failure reasons returned by HoldSeats.
const (
	ReasonNotFound      = "not_found"
	ReasonUnavailable   = "unavailable"
	ReasonAlreadyHeld   = "already_held"
	ReasonQuotaExceeded = "quota_exceeded"
	ReasonConflict      = "conflict"
)

// Per-seat confirm errors.
const (
	ConfirmNotFound    = "not_found"
	ConfirmNotHeld     = "not_held"
	ConfirmHoldExpired = "hold_expired"
	ConfirmConflict    = "conflict"
)

// ErrInvalidInput is returned for malformed requests (empty seat list,
// missing session, zero ids).
var ErrInvalidInput = errors.New("invalid input")

// errAbort rolls a transaction back without surfacing a storage error.
var errAbort = errors.New("abort")

const (
	defaultHoldTTL       = 600 * time.Second
	defaultMaxPerSession = 10
)

// Inventory is the storage the engine mutates. Every method is tenant
// scoped through ctx.
type Inventory interface {
	SeatsByUID(ctx context.Context, eventSeatingID uint64, seatUIDs []string) ([]model.EventSeat, error)
	TransitionSeat(ctx context.Context, t model.SeatTransition) (bool, error)
	CountActiveHolds(ctx context.Context, eventSeatingID uint64, sessionUID string, now time.Time) (int, error)
	// LockSessionHolds serializes transactions that add holds for the same
	// session until the surrounding transaction ends.
	LockSessionHolds(ctx context.Context, eventSeatingID uint64, sessionUID string) error
	CreateHold(ctx context.Context, h model.SeatHold) error
	DeleteHold(ctx context.Context, eventSeatingID uint64, seatUID string) error
	HoldsBySeat(ctx context.Context, eventSeatingID uint64, seatUIDs []string) ([]model.SeatHold, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PriceQuoter attaches display prices to freshly held seats.
type PriceQuoter interface {
	ComputeBulkPrices(ctx context.Context, eventSeatingID uint64, seatUIDs []string) (map[string]pricing.Decision, error)
}

// ConfirmPublisher announces committed purchases.
type ConfirmPublisher interface {
	PublishSeatsConfirmed(ctx context.Context, ev queue.SeatsConfirmedEvent) error
}

// HeldSeat is one granted hold.
type HeldSeat struct {
	SeatUID    string `json:"seat_uid"`
	HoldToken  string `json:"hold_token"`
	PriceCents *int64 `json:"price_cents,omitempty"`
}

// SeatFailure is one seat that could not be held.
type SeatFailure struct {
	SeatUID string `json:"seat_uid"`
	Reason  string `json:"reason"`
}

// HoldResult is the per-seat outcome of HoldSeats. ExpiresAt is nil when
// nothing was held.
type HoldResult struct {
	Held      []HeldSeat    `json:"held"`
	Failed    []SeatFailure `json:"failed"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

// ConfirmResult reports a confirm. Errors is keyed by seat uid and is only
// set when Success is false.
type ConfirmResult struct {
	Success   bool              `json:"success"`
	Confirmed []string          `json:"confirmed,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// HoldService is the hold/lease engine. Every status change is a
// conditional transition on the seat version; losing a race is reported per
// seat and never retried.
type HoldService struct {
	inv           Inventory
	ttl           time.Duration
	maxPerSession int
	clock         clock.Clock
	prices        PriceQuoter
	publisher     ConfirmPublisher
	log           *logger.Logger
}

// HoldOption configures a HoldService.
type HoldOption func(*HoldService)

// WithHoldTTL sets the lease lifetime.
func WithHoldTTL(ttl time.Duration) HoldOption {
	return func(s *HoldService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxPerSession sets the per-session seat quota.
func WithMaxPerSession(n int) HoldOption {
	return func(s *HoldService) {
		if n > 0 {
			s.maxPerSession = n
		}
	}
}

// WithClock injects the time source.
func WithClock(c clock.Clock) HoldOption { return func(s *HoldService) { s.clock = c } }

// WithPriceQuoter attaches prices to held seats.
func WithPriceQuoter(p PriceQuoter) HoldOption { return func(s *HoldService) { s.prices = p } }

// WithPublisher publishes confirmed purchases.
func WithPublisher(p ConfirmPublisher) HoldOption { return func(s *HoldService) { s.publisher = p } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) HoldOption { return func(s *HoldService) { s.log = l } }

// NewHoldService builds the engine over inv.
func NewHoldService(inv Inventory, opts ...HoldOption) *HoldService {
	s := &HoldService{
		inv:           inv,
		ttl:           defaultHoldTTL,
		maxPerSession: defaultMaxPerSession,
		clock:         clock.NewSystem(),
		log:           logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validate(eventSeatingID uint64, seatUIDs []string, sessionUID string) error {
	if eventSeatingID == 0 || len(seatUIDs) == 0 || sessionUID == "" {
		return ErrInvalidInput
	}
	return nil
}

// HoldSeats tries to hold each seat for the session. Seats are independent:
// some may be held while others fail.
func (s *HoldService) HoldSeats(ctx context.Context, eventSeatingID uint64, seatUIDs []string, sessionUID string) (HoldResult, error) {
	res := HoldResult{Held: []HeldSeat{}, Failed: []SeatFailure{}}
	if err := validate(eventSeatingID, seatUIDs, sessionUID); err != nil {
		return res, err
	}
	if _, err := tenant.FromContext(ctx); err != nil {
		return res, err
	}
	uids := uniqueUIDs(seatUIDs)
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	seats, err := s.inv.SeatsByUID(ctx, eventSeatingID, uids)
	if err != nil {
		return res, fmt.Errorf("load seats: %w", err)
	}
	holds, err := s.inv.HoldsBySeat(ctx, eventSeatingID, uids)
	if err != nil {
		return res, fmt.Errorf("load holds: %w", err)
	}
	active, err := s.inv.CountActiveHolds(ctx, eventSeatingID, sessionUID, now)
	if err != nil {
		return res, fmt.Errorf("count holds: %w", err)
	}
	bySeat := indexSeats(seats)
	holdBySeat := make(map[string]model.SeatHold, len(holds))
	for _, h := range holds {
		holdBySeat[h.SeatUID] = h
	}

	for _, uid := range uids {
		seat, ok := bySeat[uid]
		if !ok {
			res.Failed = append(res.Failed, SeatFailure{uid, ReasonNotFound})
			continue
		}
		var stale *model.SeatHold
		if seat.Status == model.SeatHeld {
			h, ok := holdBySeat[uid]
			switch {
			case ok && h.Expired(now):
				stale = &h
			case ok && h.SessionUID == sessionUID:
				res.Failed = append(res.Failed, SeatFailure{uid, ReasonAlreadyHeld})
				continue
			default:
				res.Failed = append(res.Failed, SeatFailure{uid, ReasonUnavailable})
				continue
			}
		} else if seat.Status != model.SeatAvailable {
			res.Failed = append(res.Failed, SeatFailure{uid, ReasonUnavailable})
			continue
		}
		if active+len(res.Held) >= s.maxPerSession {
			res.Failed = append(res.Failed, SeatFailure{uid, ReasonQuotaExceeded})
			continue
		}

		token, reason, err := s.holdOne(ctx, seat, stale, sessionUID, now, expiresAt)
		if err != nil {
			return res, err
		}
		if reason != "" {
			res.Failed = append(res.Failed, SeatFailure{uid, reason})
			continue
		}
		res.Held = append(res.Held, HeldSeat{SeatUID: uid, HoldToken: token})
	}

	if len(res.Held) > 0 {
		res.ExpiresAt = &expiresAt
		s.attachPrices(ctx, eventSeatingID, res.Held)
	}
	return res, nil
}

// holdOne runs the transitions for one seat in a transaction. The session
// quota is counted again under the session lock; the count HoldSeats took
// up front only short-circuits. A lapsed lease that the sweeper has not
// reached yet is reclaimed first.
func (s *HoldService) holdOne(ctx context.Context, seat model.EventSeat, stale *model.SeatHold, sessionUID string, now, expiresAt time.Time) (string, string, error) {
	token := uuid.NewString()
	reason := ""
	err := s.inv.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.inv.LockSessionHolds(ctx, seat.EventSeatingID, sessionUID); err != nil {
			return err
		}
		active, err := s.inv.CountActiveHolds(ctx, seat.EventSeatingID, sessionUID, now)
		if err != nil {
			return err
		}
		if active >= s.maxPerSession {
			reason = ReasonQuotaExceeded
			return errAbort
		}

		version := seat.Version
		if stale != nil {
			ok, err := s.inv.TransitionSeat(ctx, model.SeatTransition{
				EventSeatingID:  seat.EventSeatingID,
				SeatUID:         seat.SeatUID,
				ExpectedVersion: version,
				From:            model.SeatHeld,
				To:              model.SeatAvailable,
				ExpectSession:   &stale.SessionUID,
			})
			if err != nil {
				return err
			}
			s.log.LogSeatTransition(ctx, seat.EventSeatingID, seat.SeatUID, string(model.SeatHeld), string(model.SeatAvailable), ok)
			if !ok {
				reason = ReasonConflict
				return errAbort
			}
			if err := s.inv.DeleteHold(ctx, seat.EventSeatingID, seat.SeatUID); err != nil {
				return err
			}
			version++
		}

		ok, err := s.inv.TransitionSeat(ctx, model.SeatTransition{
			EventSeatingID:  seat.EventSeatingID,
			SeatUID:         seat.SeatUID,
			ExpectedVersion: version,
			From:            model.SeatAvailable,
			To:              model.SeatHeld,
			SessionUID:      &sessionUID,
		})
		if err != nil {
			return err
		}
		s.log.LogSeatTransition(ctx, seat.EventSeatingID, seat.SeatUID, string(model.SeatAvailable), string(model.SeatHeld), ok)
		if !ok {
			reason = ReasonConflict
			return errAbort
		}
		err = s.inv.CreateHold(ctx, model.SeatHold{
			EventSeatingID: seat.EventSeatingID,
			SeatUID:        seat.SeatUID,
			SessionUID:     sessionUID,
			HoldToken:      token,
			ExpiresAt:      expiresAt,
			CreatedAt:      now,
		})
		if errors.Is(err, repository.ErrConflict) {
			reason = ReasonConflict
			return errAbort
		}
		return err
	})
	if errors.Is(err, errAbort) {
		return "", reason, nil
	}
	if err != nil {
		return "", "", fmt.Errorf("hold seat %s: %w", seat.SeatUID, err)
	}
	return token, "", nil
}

func (s *HoldService) attachPrices(ctx context.Context, eventSeatingID uint64, held []HeldSeat) {
	if s.prices == nil {
		return
	}
	uids := make([]string, len(held))
	for i, h := range held {
		uids[i] = h.SeatUID
	}
	decisions, err := s.prices.ComputeBulkPrices(ctx, eventSeatingID, uids)
	if err != nil {
		s.log.WarnContext(ctx, "price lookup for held seats failed", "event_seating_id", eventSeatingID, "error", err)
		return
	}
	for i := range held {
		if d, ok := decisions[held[i].SeatUID]; ok {
			p := d.EffectivePriceCents
			held[i].PriceCents = &p
		}
	}
}

// ReleaseSeats releases the session's holds on the given seats and returns
// the uids actually released. Seats that are not held by the session are
// skipped silently.
func (s *HoldService) ReleaseSeats(ctx context.Context, eventSeatingID uint64, seatUIDs []string, sessionUID string) ([]string, error) {
	released := []string{}
	if err := validate(eventSeatingID, seatUIDs, sessionUID); err != nil {
		return released, err
	}
	seats, err := s.inv.SeatsByUID(ctx, eventSeatingID, uniqueUIDs(seatUIDs))
	if err != nil {
		return released, fmt.Errorf("load seats: %w", err)
	}
	for _, seat := range seats {
		if !seat.HeldBy(sessionUID) {
			continue
		}
		ok := false
		err := s.inv.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			ok, err = s.inv.TransitionSeat(ctx, model.SeatTransition{
				EventSeatingID:  eventSeatingID,
				SeatUID:         seat.SeatUID,
				ExpectedVersion: seat.Version,
				From:            model.SeatHeld,
				To:              model.SeatAvailable,
				ExpectSession:   &sessionUID,
			})
			if err != nil || !ok {
				return err
			}
			return s.inv.DeleteHold(ctx, eventSeatingID, seat.SeatUID)
		})
		if err != nil {
			return released, fmt.Errorf("release seat %s: %w", seat.SeatUID, err)
		}
		s.log.LogSeatTransition(ctx, eventSeatingID, seat.SeatUID, string(model.SeatHeld), string(model.SeatAvailable), ok)
		if ok {
			released = append(released, seat.SeatUID)
		}
	}
	return released, nil
}

// ConfirmPurchase turns the session's holds into sold seats. It is all or
// nothing: if any seat is missing, not held by the session or past its
// lease, no seat changes and Success is false.
func (s *HoldService) ConfirmPurchase(ctx context.Context, eventSeatingID uint64, seatUIDs []string, sessionUID, orderReference string) (ConfirmResult, error) {
	if err := validate(eventSeatingID, seatUIDs, sessionUID); err != nil || orderReference == "" {
		return ConfirmResult{}, ErrInvalidInput
	}
	tid, err := tenant.FromContext(ctx)
	if err != nil {
		return ConfirmResult{}, err
	}
	uids := uniqueUIDs(seatUIDs)
	now := s.clock.Now()
	res := ConfirmResult{Errors: map[string]string{}}

	err = s.inv.WithinTx(ctx, func(ctx context.Context) error {
		seats, err := s.inv.SeatsByUID(ctx, eventSeatingID, uids)
		if err != nil {
			return err
		}
		holds, err := s.inv.HoldsBySeat(ctx, eventSeatingID, uids)
		if err != nil {
			return err
		}
		bySeat := indexSeats(seats)
		holdBySeat := make(map[string]model.SeatHold, len(holds))
		for _, h := range holds {
			holdBySeat[h.SeatUID] = h
		}

		for _, uid := range uids {
			seat, ok := bySeat[uid]
			if !ok {
				res.Errors[uid] = ConfirmNotFound
				continue
			}
			h, hasHold := holdBySeat[uid]
			switch {
			case !seat.HeldBy(sessionUID) || !hasHold || h.SessionUID != sessionUID:
				res.Errors[uid] = ConfirmNotHeld
			case h.Expired(now):
				res.Errors[uid] = ConfirmHoldExpired
			}
		}
		if len(res.Errors) > 0 {
			return errAbort
		}

		for _, uid := range uids {
			seat := bySeat[uid]
			ok, err := s.inv.TransitionSeat(ctx, model.SeatTransition{
				EventSeatingID:  eventSeatingID,
				SeatUID:         uid,
				ExpectedVersion: seat.Version,
				From:            model.SeatHeld,
				To:              model.SeatSold,
				ExpectSession:   &sessionUID,
				OrderReference:  &orderReference,
			})
			if err != nil {
				return err
			}
			s.log.LogSeatTransition(ctx, eventSeatingID, uid, string(model.SeatHeld), string(model.SeatSold), ok)
			if !ok {
				res.Errors[uid] = ConfirmConflict
				return errAbort
			}
			if err := s.inv.DeleteHold(ctx, eventSeatingID, uid); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errAbort) {
		return res, nil
	}
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("confirm purchase: %w", err)
	}

	res.Success = true
	res.Confirmed = uids
	res.Errors = nil
	s.log.InfoContext(ctx, "seats confirmed",
		"tenant_id", uint64(tid), "event_seating_id", eventSeatingID,
		"order_reference", orderReference, "seats", len(uids))

	if s.publisher != nil {
		ev := queue.SeatsConfirmedEvent{
			TenantID:       uint64(tid),
			EventSeatingID: eventSeatingID,
			SessionUID:     sessionUID,
			OrderReference: orderReference,
			SeatUIDs:       uids,
			ConfirmedAt:    now,
		}
		if err := s.publisher.PublishSeatsConfirmed(ctx, ev); err != nil {
			// the purchase is committed; downstream reconciles from storage
			s.log.ErrorContext(ctx, "publish seats.confirmed failed", "order_reference", orderReference, "error", err)
		}
	}
	return res, nil
}

// BlockSeats takes seats out of sale. Available and held seats are blocked
// (a hold on a blocked seat is dropped); sold seats are left alone. It
// returns the uids actually blocked.
func (s *HoldService) BlockSeats(ctx context.Context, eventSeatingID uint64, seatUIDs []string) ([]string, error) {
	blocked := []string{}
	if eventSeatingID == 0 || len(seatUIDs) == 0 {
		return blocked, ErrInvalidInput
	}
	seats, err := s.inv.SeatsByUID(ctx, eventSeatingID, uniqueUIDs(seatUIDs))
	if err != nil {
		return blocked, fmt.Errorf("load seats: %w", err)
	}
	for _, seat := range seats {
		if seat.Status != model.SeatAvailable && seat.Status != model.SeatHeld {
			continue
		}
		ok := false
		err := s.inv.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			ok, err = s.inv.TransitionSeat(ctx, model.SeatTransition{
				EventSeatingID:  eventSeatingID,
				SeatUID:         seat.SeatUID,
				ExpectedVersion: seat.Version,
				From:            seat.Status,
				To:              model.SeatBlocked,
				ExpectSession:   seat.SessionUID,
			})
			if err != nil || !ok || seat.Status != model.SeatHeld {
				return err
			}
			return s.inv.DeleteHold(ctx, eventSeatingID, seat.SeatUID)
		})
		if err != nil {
			return blocked, fmt.Errorf("block seat %s: %w", seat.SeatUID, err)
		}
		s.log.LogSeatTransition(ctx, eventSeatingID, seat.SeatUID, string(seat.Status), string(model.SeatBlocked), ok)
		if ok {
			blocked = append(blocked, seat.SeatUID)
		}
	}
	return blocked, nil
}

func indexSeats(seats []model.EventSeat) map[string]model.EventSeat {
	m := make(map[string]model.EventSeat, len(seats))
	for _, st := range seats {
		m[st.SeatUID] = st
	}
	return m
}

func uniqueUIDs(uids []string) []string {
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
