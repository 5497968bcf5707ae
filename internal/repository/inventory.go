package repository

import "database/sql"

// Inventory bundles the seat, hold and transaction repositories that the
// hold/lease engine needs behind a single value.
type Inventory struct {
    *EventSeatRepo
    *SeatHoldRepo
    *TxManager
}

// NewInventory builds an Inventory over db.
func NewInventory(db *sql.DB) *Inventory {
    return &Inventory{
        EventSeatRepo: NewEventSeatRepo(db),
        SeatHoldRepo:  NewSeatHoldRepo(db),
        TxManager:     NewTxManager(db),
    }
}

// Catalog bundles layouts, event seatings, seats and tiers for seating
// activation and the read endpoints.
type Catalog struct {
    *LayoutRepo
    *EventSeatingRepo
    *EventSeatRepo
    *PricingRepo
    *TxManager
}

// NewCatalog builds a Catalog over db.
func NewCatalog(db *sql.DB) *Catalog {
    return &Catalog{
        LayoutRepo:       NewLayoutRepo(db),
        EventSeatingRepo: NewEventSeatingRepo(db),
        EventSeatRepo:    NewEventSeatRepo(db),
        PricingRepo:      NewPricingRepo(db),
        TxManager:        NewTxManager(db),
    }
}
