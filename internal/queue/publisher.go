package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/seat-inventory/internal/logger"
)

const (
    // dialTimeout caps the TCP connect to the broker.
    dialTimeout = 2 * time.Second
    // redialAfter is how long a publisher fails fast after a failed dial.
    redialAfter = 5 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher waits out a failed
// dial before trying the broker again.
var ErrBrokerUnavailable = errors.New("rabbitmq unavailable")

// dialBroker opens a connection with a short connect timeout.
func dialBroker(url string) (*amqp.Connection, error) {
    return amqp.DialConfig(url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(dialTimeout),
    })
}

// Publisher sends SeatsConfirmedEvent messages.  The connection is opened on
// first use and re-dialled after a failure, so a broker outage never blocks
// startup.  After a failed dial it fails fast for redialAfter, so confirms
// do not each wait on a dead broker.
type Publisher struct {
    url  string
    log  *logger.Logger
    dial func(url string) (*amqp.Connection, error)
    now  func() time.Time

    mu         sync.Mutex
    conn       *amqp.Connection
    ch         *amqp.Channel
    nextDialAt time.Time
}

// NewPublisher returns a publisher for url.
func NewPublisher(url string, log *logger.Logger) *Publisher {
    if log == nil {
        log = logger.Discard()
    }
    return &Publisher{url: url, log: log, dial: dialBroker, now: time.Now}
}

// channel returns an open channel with the queue declared.  Caller holds mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    if p.conn == nil || p.conn.IsClosed() {
        if now := p.now(); now.Before(p.nextDialAt) {
            return nil, ErrBrokerUnavailable
        }
        conn, err := p.dial(p.url)
        if err != nil {
            p.nextDialAt = p.now().Add(redialAfter)
            return nil, fmt.Errorf("dial broker: %w", err)
        }
        p.conn = conn
    }
    ch, err := p.conn.Channel()
    if err != nil {
        return nil, fmt.Errorf("open channel: %w", err)
    }
    // durable so messages survive broker restarts
    if _, err := ch.QueueDeclare(SeatsConfirmedQueue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        return nil, fmt.Errorf("declare %s: %w", SeatsConfirmedQueue, err)
    }
    p.ch = ch
    return ch, nil
}

// PublishSeatsConfirmed publishes ev as a persistent JSON message.  A missing
// MessageID is filled in.
func (p *Publisher) PublishSeatsConfirmed(ctx context.Context, ev SeatsConfirmedEvent) error {
    if p.url == "" {
        return errors.New("rabbitmq url not configured")
    }
    if ev.MessageID == "" {
        ev.MessageID = uuid.NewString()
    }
    body, err := json.Marshal(ev)
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    ch, err := p.channel()
    if err != nil {
        p.log.WarnContext(ctx, "rabbitmq unavailable", "error", err)
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.MessageID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", SeatsConfirmedQueue, false, false, pub); err != nil {
        // drop the channel so the next publish re-opens it
        _ = ch.Close()
        p.ch = nil
        return fmt.Errorf("publish %s: %w", SeatsConfirmedQueue, err)
    }
    return nil
}

// Close releases the connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        err := p.conn.Close()
        p.conn = nil
        return err
    }
    return nil
}
