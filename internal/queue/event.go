// Package queue defines the messages exchanged over RabbitMQ and the
// publisher/consumer that move them.
package queue

import "time"

const (
    // SeatsConfirmedQueue carries SeatsConfirmedEvent to the order pipeline.
    SeatsConfirmedQueue = "seats.confirmed"
    // PricingInvalidatedQueue carries PricingInvalidatedEvent from the
    // pricing-rules engine.
    PricingInvalidatedQueue = "pricing.invalidated"
)

// SeatsConfirmedEvent is published after a confirm commits.  It carries
// enough for downstream consumers to reconcile without reading the
// inventory database.
type SeatsConfirmedEvent struct {
    MessageID      string    `json:"message_id"`
    TenantID       uint64    `json:"tenant_id"`
    EventSeatingID uint64    `json:"event_seating_id"`
    SessionUID     string    `json:"session_uid"`
    OrderReference string    `json:"order_reference"`
    SeatUIDs       []string  `json:"seat_uids"`
    ConfirmedAt    time.Time `json:"confirmed_at"`
}

// PricingInvalidatedEvent asks the service to drop cached prices of one
// event seating.
type PricingInvalidatedEvent struct {
    TenantID       uint64 `json:"tenant_id" validate:"required"`
    EventSeatingID uint64 `json:"event_seating_id" validate:"required"`
}
