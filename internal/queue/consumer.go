package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Consumer listens to the booking.confirmed queue and appends one
// human-readable line per booking to a log file.
type Consumer struct {
	url     string
	logPath string
	log     *logrus.Entry
}

// NewConsumer builds a consumer writing to <logDir>/booking.log.
func NewConsumer(url, logDir string, log *logrus.Entry) *Consumer {
	return &Consumer{
		url:     url,
		logPath: filepath.Join(logDir, "booking.log"),
		log:     log.WithField("component", "booking-consumer"),
	}
}

// Run connects, declares the queue and consumes until ctx is cancelled.
// Lost connections are redialled with exponential backoff.  Processing
// errors reject the offending message and never stop the loop.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		conn, err := dial(ctx, c.url, DefaultDialTimeout)
		if err != nil {
			c.log.WithError(err).Warnf("failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = minBackoff // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("set QoS failed")
	}
	if err := declareBookingQueue(ch); err != nil {
		return err
	}

	msgs, err := ch.ConsumeWithContext(ctx, BookingQueueName, "", false, false, false, false, nil)
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
			if err := c.handleMessage(d.Body); err != nil {
				c.log.WithError(err).Error("handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders the single log line written for a confirmed booking.
func FormatLine(ev BookingConfirmedEvent) string {
	return fmt.Sprintf("[%s] Booking confirmed | booking_id=%s | hold_id=%s | event_id=%s | event=%q | seats=%d\n",
		ev.ConfirmedAt, ev.BookingID, ev.HoldID, ev.EventID, ev.EventName, ev.Quantity)
}

func nextBackoff(d time.Duration) time.Duration {
	if d*2 > maxBackoff {
		return maxBackoff
	}
	return d * 2
}

// sleep waits for d and reports false when ctx ended first.
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
