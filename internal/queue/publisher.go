package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/hangout-reservations/internal/logger"
	"github.com/iliyamo/hangout-reservations/internal/pointer"
)

// Publisher sends drift events to DriftQueueName.  Errors are logged and
// returned so the caller can ignore them without interrupting the request.
type Publisher struct {
	url  string
	log  *logger.Logger
	send func(ctx context.Context, body []byte) error
}

func NewPublisher(url string, log *logger.Logger) *Publisher {
	p := &Publisher{url: url, log: logger.OrNop(log)}
	p.send = p.publishAMQP
	return p
}

// Publish marshals ev and sends it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev PointerDriftEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("drift event marshal failed", "error", err)
		return err
	}
	if err := p.send(ctx, body); err != nil {
		p.log.Error("drift event publish failed", "hangout_id", ev.HangoutID, "group_id", ev.GroupID, "error", err)
		return err
	}
	return nil
}

// RecordDrift implements pointer.DriftRecorder.  Drift found while
// repairing is re-published with the repair's attempt number; past
// MaxRepairAttempts it is only logged.
func (p *Publisher) RecordDrift(ctx context.Context, d pointer.Drift) {
	attempt := attemptFrom(ctx)
	fields := []any{"hangout_id", d.HangoutID, "group_id", d.GroupID, "reason", d.Reason, "attempt", attempt}
	if attempt > MaxRepairAttempts {
		p.log.Error("pointer drift not repaired, giving up", fields...)
		return
	}
	p.log.Warn("pointer drift", fields...)
	_ = p.Publish(ctx, PointerDriftEvent{
		HangoutID:  d.HangoutID,
		GroupID:    d.GroupID,
		Reason:     d.Reason,
		Attempt:    attempt,
		DetectedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) publishAMQP(ctx context.Context, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(DriftQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return ch.PublishWithContext(ctx, "", DriftQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
