// Package queue carries pointer drift notifications over RabbitMQ.  The
// maintainer publishes one event per pointer it could not update; the
// consumer answers each event with an idempotent resync of the hangout.
package queue

import "context"

// DriftQueueName is the durable queue drift events travel on.
const DriftQueueName = "pointer.drift"

// MaxRepairAttempts bounds how often one drift is re-published by repairs
// that themselves left the pointer stale.
const MaxRepairAttempts = 10

// PointerDriftEvent names a pointer that no longer matches its aggregate.
type PointerDriftEvent struct {
	HangoutID  string `json:"hangout_id"`
	GroupID    string `json:"group_id"`
	Reason     string `json:"reason"`
	Attempt    int    `json:"attempt"`
	DetectedAt string `json:"detected_at"`
}

type attemptKey struct{}

// WithAttempt marks ctx as running repair attempt n.  Drift recorded under
// this context is published with the same attempt number.
func WithAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey{}, n)
}

func attemptFrom(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey{}).(int); ok && n > 0 {
		return n
	}
	return 1
}
