package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/logger"
	"github.com/iliyamo/hangout-reservations/internal/pointer"
)

// Repairer re-runs the pointer sync of a hangout.
type Repairer interface {
	RepairPointers(ctx context.Context, hangoutID string) (pointer.Report, error)
}

// StartDriftConsumer consumes DriftQueueName until ctx is cancelled,
// reconnecting with exponential backoff whenever the broker goes away.
// Messages that cannot be handled are rejected without requeue.
func StartDriftConsumer(ctx context.Context, url string, r Repairer, log *logger.Logger) error {
	log = logger.OrNop(log).With("component", "drift-consumer")
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("failed to dial broker", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, r, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, r Repairer, log *logger.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Warn("set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(DriftQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(DriftQueueName, "", false, false, false, false, nil)
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
			if err := handleMessage(ctx, d.Body, r, log); err != nil {
				log.Error("handle drift message failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage repairs the hangout named by one drift event.  A hangout
// that no longer exists has nothing to repair.
func handleMessage(ctx context.Context, body []byte, r Repairer, log *logger.Logger) error {
	var ev PointerDriftEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.HangoutID == "" {
		return errors.New("drift event without hangout id")
	}
	report, err := r.RepairPointers(WithAttempt(ctx, ev.Attempt+1), ev.HangoutID)
	if apperr.IsKind(err, apperr.NotFound) {
		log.Info("drift for deleted hangout dropped", "hangout_id", ev.HangoutID)
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("pointers repaired", "hangout_id", ev.HangoutID, "group_id", ev.GroupID,
		"attempt", ev.Attempt, "updated", len(report.Updated), "stale", len(report.Stale))
	return nil
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
