package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/seat-inventory/internal/clock"
	"github.com/iliyamo/seat-inventory/internal/logger"
	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/tenant"
)

// ExpiredHoldLister finds lapsed holds across every tenant. Only the
// sweeper is given one.
type ExpiredHoldLister interface {
	ExpiredHolds(ctx context.Context, before time.Time, limit int) ([]model.SeatHold, error)
}

// SessionLockPurger is implemented by listers whose store keeps per-session
// lock rows for the hold quota.
type SessionLockPurger interface {
	PurgeSessionLocks(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper reclaims expired holds on a fixed interval.
type Sweeper struct {
	inv       Inventory
	lister    ExpiredHoldLister
	clock     clock.Clock
	log       *logger.Logger
	interval  time.Duration
	batchSize int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper builds a sweeper. A zero interval or batch size falls back to
// 30s and 500.
func NewSweeper(inv Inventory, lister ExpiredHoldLister, clk clock.Clock, log *logger.Logger, interval time.Duration, batchSize int) *Sweeper {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = logger.Discard()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Sweeper{inv: inv, lister: lister, clock: clk, log: log, interval: interval, batchSize: batchSize}
}

// ReleaseExpiredHolds runs one sweep and returns how many seats went back to
// available. Each hold is handled in its own tenant scope and transaction
// and is re-read first, so a hold consumed by a concurrent confirm or
// release is a no-op.
func (s *Sweeper) ReleaseExpiredHolds(ctx context.Context) (int, error) {
	now := s.clock.Now()
	expired, err := s.lister.ExpiredHolds(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired holds: %w", err)
	}
	released := 0
	for _, h := range expired {
		ok, err := s.reclaim(tenant.WithID(ctx, tenant.ID(h.TenantID)), h, now)
		if err != nil {
			s.log.ErrorContext(ctx, "reclaim hold failed",
				"tenant_id", h.TenantID, "event_seating_id", h.EventSeatingID, "seat_uid", h.SeatUID, "error", err)
			continue
		}
		if ok {
			released++
		}
	}
	if released > 0 {
		s.log.InfoContext(ctx, "expired holds released", "count", released)
	}
	s.purgeSessionLocks(ctx, now)
	return released, nil
}

// purgeSessionLocks drops lock rows idle for a full sweep interval. Hold
// transactions last far less than that.
func (s *Sweeper) purgeSessionLocks(ctx context.Context, now time.Time) {
	p, ok := s.lister.(SessionLockPurger)
	if !ok {
		return
	}
	n, err := p.PurgeSessionLocks(ctx, now.Add(-s.interval))
	if err != nil {
		s.log.WarnContext(ctx, "purge session locks failed", "error", err)
		return
	}
	if n > 0 {
		s.log.DebugContext(ctx, "session locks purged", "count", n)
	}
}

func (s *Sweeper) reclaim(ctx context.Context, h model.SeatHold, now time.Time) (bool, error) {
	released := false
	err := s.inv.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.inv.HoldsBySeat(ctx, h.EventSeatingID, []string{h.SeatUID})
		if err != nil {
			return err
		}
		if len(current) == 0 || current[0].HoldToken != h.HoldToken || !current[0].Expired(now) {
			return nil
		}
		seats, err := s.inv.SeatsByUID(ctx, h.EventSeatingID, []string{h.SeatUID})
		if err != nil {
			return err
		}
		if len(seats) == 1 && seats[0].HeldBy(h.SessionUID) {
			released, err = s.inv.TransitionSeat(ctx, model.SeatTransition{
				EventSeatingID:  h.EventSeatingID,
				SeatUID:         h.SeatUID,
				ExpectedVersion: seats[0].Version,
				From:            model.SeatHeld,
				To:              model.SeatAvailable,
				ExpectSession:   &h.SessionUID,
			})
			if err != nil {
				return err
			}
			s.log.LogSeatTransition(ctx, h.EventSeatingID, h.SeatUID, string(model.SeatHeld), string(model.SeatAvailable), released)
			if !released {
				return nil
			}
		}
		// the seat no longer belongs to this hold; drop the orphan row too
		return s.inv.DeleteHold(ctx, h.EventSeatingID, h.SeatUID)
	})
	return released, err
}

// Start launches the sweep loop. Calling Start twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.log.Info("hold sweeper started", "interval", s.interval.String(), "batch_size", s.batchSize)
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReleaseExpiredHolds(ctx); err != nil {
				s.log.Error("hold sweep failed", "error", err)
			}
		}
	}
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("hold sweeper stopped")
}
