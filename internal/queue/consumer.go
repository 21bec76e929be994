package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ActivityConsumer reads reservation events from RabbitMQ and appends one
// line per event to an activity log file.
type ActivityConsumer struct {
	url   string
	queue string
	path  string
	log   *slog.Logger

	mu sync.Mutex // serializes file appends
}

// NewActivityConsumer returns a consumer for queue on url writing to path.
func NewActivityConsumer(url, queue, path string, log *slog.Logger) *ActivityConsumer {
	if queue == "" {
		queue = ActivityQueue
	}
	if path == "" {
		path = filepath.Join("logs", "activity.log")
	}
	return &ActivityConsumer{url: url, queue: queue, path: path, log: log}
}

// Run dials the broker and consumes until ctx is cancelled.  Dial failures
// and dropped connections are retried with exponential backoff capped at
// 30s.  It returns ctx.Err() once ctx is done.
func (c *ActivityConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("activity consumer dial failed", "err", err, "retry_in", backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("activity consumer loop ended; reconnecting", "err", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *ActivityConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("activity consumer set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
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
			if err := c.HandleMessage(d.Body); err != nil {
				c.log.Error("activity consumer handle message failed", "err", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event and appends it to the activity log.
func (c *ActivityConsumer) HandleMessage(body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ListingID == "" {
		return errors.New("event missing type or listing_id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatActivity(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatActivity renders ev as a single human-friendly log line ending in
// a newline.
func FormatActivity(ev ReservationEvent) string {
	var what string
	switch ev.Type {
	case EventRequested:
		what = "Reservation requested"
	case EventCancelled:
		what = "Reservation cancelled"
	case EventConfirmed:
		what = "Reservation confirmed"
	case EventSold:
		what = "Listing sold"
	default:
		what = string(ev.Type)
	}
	return fmt.Sprintf("[%s] %s | listing_id=%s | title=%q | buyer_id=%s | seller_id=%s | actor_id=%s | status=%s\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), what, ev.ListingID, ev.ListingTitle,
		ev.BuyerID, ev.SellerID, ev.ActorID, ev.ListingStatus)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
