package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/iliyamo/seat-inventory/internal/clock"
	"github.com/iliyamo/seat-inventory/internal/importer"
	"github.com/iliyamo/seat-inventory/internal/logger"
	"github.com/iliyamo/seat-inventory/internal/model"
	"github.com/iliyamo/seat-inventory/internal/pricing"
)

// ErrEmptyLayout is returned when imported markup yields no seats.
var ErrEmptyLayout = errors.New("layout has no seats")

// ErrUnknownTier is returned when activation references a tier the tenant
// does not own.
var ErrUnknownTier = errors.New("unknown price tier")

// Catalog is the storage behind layouts and seating activation.
type Catalog interface {
	CreateLayout(ctx context.Context, l model.SeatingLayout) (uint64, error)
	LayoutByID(ctx context.Context, id uint64) (model.SeatingLayout, error)
	CreateEventSeating(ctx context.Context, es model.EventSeatingLayout) (uint64, error)
	EventSeatingByEventID(ctx context.Context, eventID uint64) (model.EventSeatingLayout, error)
	CreateSeats(ctx context.Context, seats []model.EventSeat) error
	ListSeats(ctx context.Context, eventSeatingID uint64) ([]model.EventSeat, error)
	TierIDs(ctx context.Context, ids []uint64) (map[uint64]bool, error)
	TiersForEventSeating(ctx context.Context, eventSeatingID uint64) ([]model.PriceTier, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ImportStats summarises an import.
type ImportStats struct {
	Sections    int      `json:"sections"`
	Seats       int      `json:"seats"`
	Unassigned  int      `json:"unassigned"`
	CategoryIDs []string `json:"category_ids"`
}

// ActivateRequest binds a layout to an event. TierByCategory maps a layout
// category id to the tier its seats sell at; DefaultTierID covers seats
// without a mapped category.
type ActivateRequest struct {
	EventID        uint64
	LayoutID       uint64
	TierByCategory map[string]uint64
	DefaultTierID  *uint64
}

// SeatingView is what a seat map client needs to draw an event.
type SeatingView struct {
	EventSeating model.EventSeatingLayout `json:"event_seating"`
	Tiers        []model.PriceTier        `json:"tiers"`
}

// SeatView is one seat with its current display price.
type SeatView struct {
	model.EventSeat
	Price *pricing.Decision `json:"price,omitempty"`
}

// SeatingService imports layouts and activates them for events.
type SeatingService struct {
	store  Catalog
	prices PriceQuoter
	clock  clock.Clock
	log    *logger.Logger
}

// NewSeatingService builds the service. prices may be nil, in which case
// seat listings carry no prices.
func NewSeatingService(store Catalog, prices PriceQuoter, clk clock.Clock, log *logger.Logger) *SeatingService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &SeatingService{store: store, prices: prices, clock: clk, log: log}
}

// Import parses markup, optionally normalizes it to a canvas and stores the
// result as a layout template.
func (s *SeatingService) Import(ctx context.Context, name, markup string, width, height float64) (model.SeatingLayout, ImportStats, error) {
	layout, stats, err := BuildLayout(name, markup, width, height)
	if err != nil {
		return model.SeatingLayout{}, stats, err
	}
	id, err := s.store.CreateLayout(ctx, layout)
	if err != nil {
		return model.SeatingLayout{}, stats, fmt.Errorf("store layout: %w", err)
	}
	layout.ID = id
	s.log.InfoContext(ctx, "layout imported", "layout_id", id, "sections", stats.Sections, "seats", stats.Seats)
	return layout, stats, nil
}

// BuildLayout runs the importer and converts its output to a storable
// template without touching storage. The import CLI uses it for dry runs.
func BuildLayout(name, markup string, width, height float64) (model.SeatingLayout, ImportStats, error) {
	parsed, err := importer.Import(markup)
	if err != nil {
		return model.SeatingLayout{}, ImportStats{}, err
	}
	if width > 0 && height > 0 {
		parsed.NormalizeToCanvas(width, height)
	}
	stats := ImportStats{
		Sections:    parsed.SectionCount(),
		Seats:       parsed.SeatCount(),
		Unassigned:  len(parsed.Unassigned),
		CategoryIDs: parsed.CategoryIDs(),
	}
	if stats.Seats-stats.Unassigned == 0 {
		return model.SeatingLayout{}, stats, ErrEmptyLayout
	}
	if name == "" {
		name = "Untitled layout"
	}
	return model.SeatingLayout{Name: name, Geometry: toGeometry(parsed)}, stats, nil
}

func toGeometry(l *importer.Layout) model.LayoutGeometry {
	g := model.LayoutGeometry{
		CanvasWidth:   l.CanvasWidth,
		CanvasHeight:  l.CanvasHeight,
		BackgroundURL: l.BackgroundURL,
		Sections:      make([]model.GeometrySection, 0, len(l.Sections)),
	}
	if l.ViewBox != nil {
		g.ViewBox = &model.ViewBox{X: l.ViewBox.X, Y: l.ViewBox.Y, Width: l.ViewBox.Width, Height: l.ViewBox.Height}
	}
	codes := map[string]bool{}
	for _, sec := range l.Sections {
		code := sectionCode(sec.Name, codes)
		gs := model.GeometrySection{
			ExternalID: sec.ExternalID,
			Code:       code,
			Name:       sec.Name,
			CategoryID: sec.CategoryID,
			Selectable: sec.Selectable,
			Points:     make([][2]float64, len(sec.Points)),
			Bounds:     model.BoundingBox(sec.CalculateBoundingBox()),
			Seats:      make([]model.GeometrySeat, 0, len(sec.Seats)),
		}
		for i, p := range sec.Points {
			gs.Points[i] = [2]float64{p.X, p.Y}
		}
		for _, st := range sec.Seats {
			gs.Seats = append(gs.Seats, model.GeometrySeat{
				ExternalID: st.ExternalID,
				UID:        code + "-" + st.RowLabel + "-" + st.SeatLabel,
				CX:         st.CX,
				CY:         st.CY,
				CategoryID: st.CategoryID,
				Selectable: st.Selectable && sec.Selectable,
				Allocated:  st.Allocated,
				RowLabel:   st.RowLabel,
				SeatLabel:  st.SeatLabel,
			})
		}
		g.Sections = append(g.Sections, gs)
	}
	return g
}

// sectionCode derives a short code from a section name: the first three
// letters or digits, upper-cased. A code already issued gets the lowest
// numeric suffix that is still free, so seat uids stay unique.
func sectionCode(name string, issued map[string]bool) string {
	var b strings.Builder
	for _, r := range name {
		if b.Len() >= 3 {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if r > unicode.MaxASCII {
				continue
			}
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	base := b.String()
	if base == "" {
		base = "SEC"
	}
	code := base
	for n := 2; issued[code]; n++ {
		code = base + strconv.Itoa(n)
	}
	issued[code] = true
	return code
}

// Activate binds a stored layout to an event and materializes one seat per
// template seat. Seats that are not selectable or already allocated start
// blocked. A second activation for the same event fails with
// repository.ErrConflict.
func (s *SeatingService) Activate(ctx context.Context, req ActivateRequest) (model.EventSeatingLayout, int, error) {
	if req.EventID == 0 || req.LayoutID == 0 {
		return model.EventSeatingLayout{}, 0, ErrInvalidInput
	}
	layout, err := s.store.LayoutByID(ctx, req.LayoutID)
	if err != nil {
		return model.EventSeatingLayout{}, 0, err
	}
	if err := s.checkTiers(ctx, req); err != nil {
		return model.EventSeatingLayout{}, 0, err
	}

	es := model.EventSeatingLayout{
		EventID:     req.EventID,
		LayoutID:    layout.ID,
		Status:      model.EventSeatingActive,
		Geometry:    layout.Geometry,
		PublishedAt: s.clock.Now(),
	}
	var seats []model.EventSeat
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		id, err := s.store.CreateEventSeating(ctx, es)
		if err != nil {
			return err
		}
		es.ID = id
		seats = materialize(id, layout.Geometry, req)
		return s.store.CreateSeats(ctx, seats)
	})
	if err != nil {
		return model.EventSeatingLayout{}, 0, fmt.Errorf("activate seating: %w", err)
	}
	s.log.InfoContext(ctx, "seating activated", "event_id", req.EventID, "event_seating_id", es.ID, "seats", len(seats))
	return es, len(seats), nil
}

func (s *SeatingService) checkTiers(ctx context.Context, req ActivateRequest) error {
	var ids []uint64
	for _, id := range req.TierByCategory {
		ids = append(ids, id)
	}
	if req.DefaultTierID != nil {
		ids = append(ids, *req.DefaultTierID)
	}
	if len(ids) == 0 {
		return nil
	}
	known, err := s.store.TierIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load tiers: %w", err)
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("tier %d: %w", id, ErrUnknownTier)
		}
	}
	return nil
}

func materialize(eventSeatingID uint64, g model.LayoutGeometry, req ActivateRequest) []model.EventSeat {
	seats := make([]model.EventSeat, 0, g.SeatCount())
	for _, sec := range g.Sections {
		for _, st := range sec.Seats {
			status := model.SeatAvailable
			if !st.Selectable || st.Allocated {
				status = model.SeatBlocked
			}
			seats = append(seats, model.EventSeat{
				EventSeatingID: eventSeatingID,
				SeatUID:        st.UID,
				SectionName:    sec.Name,
				RowLabel:       st.RowLabel,
				SeatLabel:      st.SeatLabel,
				Status:         status,
				PriceTierID:    tierFor(st.CategoryID, sec.CategoryID, req),
			})
		}
	}
	return seats
}

func tierFor(seatCat, sectionCat *string, req ActivateRequest) *uint64 {
	for _, c := range []*string{seatCat, sectionCat} {
		if c == nil {
			continue
		}
		if id, ok := req.TierByCategory[*c]; ok {
			return &id
		}
	}
	if req.DefaultTierID != nil {
		id := *req.DefaultTierID
		return &id
	}
	return nil
}

// Seating returns the active seating of an event with the tiers it uses.
func (s *SeatingService) Seating(ctx context.Context, eventID uint64) (SeatingView, error) {
	es, err := s.store.EventSeatingByEventID(ctx, eventID)
	if err != nil {
		return SeatingView{}, err
	}
	tiers, err := s.store.TiersForEventSeating(ctx, es.ID)
	if err != nil {
		return SeatingView{}, fmt.Errorf("load tiers: %w", err)
	}
	if tiers == nil {
		tiers = []model.PriceTier{}
	}
	return SeatingView{EventSeating: es, Tiers: tiers}, nil
}

// SeatsWithPrices lists the event's seats with their effective prices. Seats
// without any price source are listed unpriced; a tier that cannot be
// resolved fails the call with pricing.ErrPricingDataMissing.
func (s *SeatingService) SeatsWithPrices(ctx context.Context, eventID uint64) ([]SeatView, error) {
	es, err := s.store.EventSeatingByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	seats, err := s.store.ListSeats(ctx, es.ID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	var priced []string
	for _, st := range seats {
		if st.PriceCentsOverride != nil || st.PriceTierID != nil {
			priced = append(priced, st.SeatUID)
		}
	}
	var decisions map[string]pricing.Decision
	if s.prices != nil && len(priced) > 0 {
		decisions, err = s.prices.ComputeBulkPrices(ctx, es.ID, priced)
		if err != nil {
			return nil, err
		}
	}
	out := make([]SeatView, len(seats))
	for i, st := range seats {
		out[i] = SeatView{EventSeat: st}
		if d, ok := decisions[st.SeatUID]; ok {
			d := d
			out[i].Price = &d
		}
	}
	return out, nil
}
