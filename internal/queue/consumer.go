package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/go-playground/validator/v10"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/seat-inventory/internal/logger"
    "github.com/iliyamo/seat-inventory/internal/tenant"
)

// CacheClearer is the pricing hook the consumer drives.
type CacheClearer interface {
    ClearCache(ctx context.Context, eventSeatingID uint64) error
}

// InvalidationConsumer listens on pricing.invalidated and clears the
// matching pricing cache.
type InvalidationConsumer struct {
    url      string
    pricing  CacheClearer
    log      *logger.Logger
    validate *validator.Validate
}

// NewInvalidationConsumer builds a consumer.
func NewInvalidationConsumer(url string, pricing CacheClearer, log *logger.Logger) *InvalidationConsumer {
    if log == nil {
        log = logger.Discard()
    }
    return &InvalidationConsumer{url: url, pricing: pricing, log: log, validate: validator.New()}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.  It returns ctx.Err() on shutdown.
func (c *InvalidationConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := dialBroker(c.url)
        if err != nil {
            c.log.Warn("pricing-consumer: dial failed", "error", err, "retry_in", backoff.String())
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("pricing-consumer: consume loop ended, reconnecting", "error", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *InvalidationConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("pricing-consumer: set QoS failed", "error", err)
    }
    if _, err := ch.QueueDeclare(PricingInvalidatedQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(PricingInvalidatedQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(ctx, d.Body); err != nil {
                c.log.Error("pricing-consumer: handle message failed", "error", err)
                _ = d.Nack(false, false) // do not requeue poison messages
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle decodes one message body and clears the cache under the message's
// tenant.
func (c *InvalidationConsumer) Handle(ctx context.Context, body []byte) error {
    var ev PricingInvalidatedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if err := c.validate.Struct(ev); err != nil {
        return fmt.Errorf("invalid message: %w", err)
    }
    tctx := tenant.WithID(ctx, tenant.ID(ev.TenantID))
    return c.pricing.ClearCache(tctx, ev.EventSeatingID)
}
