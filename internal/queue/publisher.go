package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/box-office/internal/metrics"
)

const (
	// DefaultDialTimeout bounds the TCP dial and the AMQP handshake.
	DefaultDialTimeout = 3 * time.Second

	publishBuffer  = 256
	publishTimeout = 5 * time.Second
	flushTimeout   = 5 * time.Second
)

// ErrPublishBufferFull is returned when the background sender is too far
// behind to accept another event.
var ErrPublishBufferFull = errors.New("booking notification buffer is full")

// Publisher delivers booking notifications.  Callers treat failures as
// best-effort: a failed publish never undoes a booking.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error
}

// NopPublisher drops every event.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishBookingConfirmed(context.Context, BookingConfirmedEvent) error {
	return nil
}

// AMQPPublisher queues events in memory and sends them to RabbitMQ from
// Run.  Only the Run goroutine touches the broker connection, so callers
// never wait on the network.
type AMQPPublisher struct {
	url         string
	dialTimeout time.Duration
	events      chan BookingConfirmedEvent
	log         *logrus.Entry

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string, log *logrus.Entry) *AMQPPublisher {
	return &AMQPPublisher{
		url:         url,
		dialTimeout: DefaultDialTimeout,
		events:      make(chan BookingConfirmedEvent, publishBuffer),
		log:         log.WithField("component", "booking-publisher"),
	}
}

// PublishBookingConfirmed hands event to the sender without blocking.
func (p *AMQPPublisher) PublishBookingConfirmed(_ context.Context, event BookingConfirmedEvent) error {
	select {
	case p.events <- event:
		return nil
	default:
		return ErrPublishBufferFull
	}
}

// Run sends queued events until ctx is done, then makes one bounded
// attempt to flush what is still buffered.  Failed sends are logged and
// counted; the event is dropped.
func (p *AMQPPublisher) Run(ctx context.Context) error {
	defer p.reset()
	for {
		select {
		case ev := <-p.events:
			sctx, cancel := context.WithTimeout(ctx, publishTimeout)
			p.deliver(sctx, ev)
			cancel()
		case <-ctx.Done():
			p.flush()
			return nil
		}
	}
}

func (p *AMQPPublisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case ev := <-p.events:
			if ctx.Err() != nil {
				metrics.NotificationsFailed.Inc()
				continue
			}
			p.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (p *AMQPPublisher) deliver(ctx context.Context, ev BookingConfirmedEvent) {
	if err := p.send(ctx, ev); err != nil {
		metrics.NotificationsFailed.Inc()
		p.log.WithError(err).WithField("booking_id", ev.BookingID).Warn("booking notification failed")
	}
}

// send publishes ev to the booking.confirmed queue as a persistent JSON
// message.
func (p *AMQPPublisher) send(ctx context.Context, ev BookingConfirmedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.BookingID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",               // default exchange
		BookingQueueName, // routing key = queue name
		false,            // mandatory
		false,            // immediate
		pub,
	); err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// channel returns the open channel, dialling and declaring the queue first
// when needed.
func (p *AMQPPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := dial(ctx, p.url, p.dialTimeout)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareBookingQueue(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// dial connects to the broker.  The TCP dial and the AMQP handshake share
// one deadline: timeout, or sooner if ctx expires first.
func dial(ctx context.Context, url string, timeout time.Duration) (*amqp.Connection, error) {
	if dl, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(dl))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("dial broker: %w", context.DeadlineExceeded)
	}
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	return conn, nil
}

// declareBookingQueue ensures the queue exists (idempotent).  Durable so
// messages survive broker restarts.
func declareBookingQueue(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(
		BookingQueueName, // name
		true,             // durable
		false,            // autoDelete
		false,            // exclusive
		false,            // noWait
		nil,              // args
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}
