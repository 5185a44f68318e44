// Package txn runs conditional multi-item writes with bounded optimistic
// retry.  Only failed conditions are retried; infrastructure errors are
// returned at once as transient failures.
package txn

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/iliyamo/hangout-reservations/internal/apperr"
	"github.com/iliyamo/hangout-reservations/internal/logger"
	"github.com/iliyamo/hangout-reservations/internal/repository"
)

const (
	DefaultMaxRetries = 5
	// DefaultBatchSize leaves headroom below repository.MaxTransactItems.
	DefaultBatchSize = 90
)

// Writer is the atomic write primitive of the store.
type Writer interface {
	TransactWrite(ctx context.Context, ops []repository.WriteOp) error
}

// Config tunes the engine.  Zero values fall back to the defaults; Jitter 0
// means attempts follow each other without delay.
type Config struct {
	MaxRetries int
	BatchSize  int
	Jitter     time.Duration
}

// Engine executes planned writes against a Writer.
type Engine struct {
	w     Writer
	cfg   Config
	log   *logger.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

func New(w Writer, cfg Config, log *logger.Logger) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > repository.MaxTransactItems {
		cfg.BatchSize = repository.MaxTransactItems
	}
	return &Engine{w: w, cfg: cfg, log: logger.OrNop(log), sleep: sleepCtx}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Plan reads current state and returns the operations of one attempt.
// Attempts are numbered from 1.  Returning no operations ends the loop
// successfully without writing.
type Plan func(ctx context.Context, attempt int) ([]repository.WriteOp, error)

// OnConflict inspects a failed condition.  Returning nil retries; any error
// aborts the loop and is returned to the caller.
type OnConflict func(ctx context.Context, cf *repository.ConditionFailedError) error

// Execute runs plan until its writes commit, a terminal error occurs or the
// retry budget is spent.  It returns the number of attempts made.
func (e *Engine) Execute(ctx context.Context, op string, plan Plan, onConflict OnConflict) (int, error) {
	var lastConflict error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 1 && e.cfg.Jitter > 0 {
			if err := e.sleep(ctx, rand.N(e.cfg.Jitter)); err != nil {
				return attempt - 1, apperr.Transient(op, err)
			}
		}
		ops, err := plan(ctx, attempt)
		if err != nil {
			return attempt, apperr.FromStore(op, err)
		}
		if len(ops) == 0 {
			return attempt, nil
		}
		err = e.w.TransactWrite(ctx, ops)
		if err == nil {
			return attempt, nil
		}
		var cf *repository.ConditionFailedError
		if !errors.As(err, &cf) {
			return attempt, apperr.FromStore(op, err)
		}
		lastConflict = err
		e.log.Debug("conditional write lost", "op", op, "attempt", attempt, "pk", cf.PK, "sk", cf.SK)
		if onConflict != nil {
			if err := onConflict(ctx, cf); err != nil {
				return attempt, apperr.FromStore(op, err)
			}
		}
	}
	e.log.Warn("retries exhausted", "op", op, "attempts", e.cfg.MaxRetries)
	return e.cfg.MaxRetries, apperr.Exhausted(op, e.cfg.MaxRetries, lastConflict)
}

// BatchResult describes one committed (or failed) batch.
type BatchResult struct {
	Size     int `json:"size"`     // keys in the batch
	Written  int `json:"written"`  // operations in the committing attempt
	Attempts int `json:"attempts"`
}

// BatchReport lists the batches in execution order.
type BatchReport struct {
	Batches []BatchResult `json:"batches"`
}

// Sizes returns the key count of each batch.
func (r BatchReport) Sizes() []int {
	out := make([]int, len(r.Batches))
	for i, b := range r.Batches {
		out[i] = b.Size
	}
	return out
}

// Written sums the operations committed over all batches.
func (r BatchReport) Written() int {
	n := 0
	for _, b := range r.Batches {
		n += b.Written
	}
	return n
}

// BatchPlan builds the operations for one batch of keys.  It is called again
// with the same keys after a failed condition and must re-read state, so
// keys already in their target state can be skipped.
type BatchPlan func(ctx context.Context, keys []string, attempt int) ([]repository.WriteOp, error)

// ExecuteBatches splits keys into sequential batches of Config.BatchSize and
// runs each as its own atomic write with the usual retry budget.  Batches
// are independent: when one fails, earlier batches stay committed and the
// report lists them alongside the error.
func (e *Engine) ExecuteBatches(ctx context.Context, op string, keys []string, plan BatchPlan) (BatchReport, error) {
	var report BatchReport
	for start := 0; start < len(keys); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]
		written := 0
		attempts, err := e.Execute(ctx, op, func(ctx context.Context, attempt int) ([]repository.WriteOp, error) {
			ops, err := plan(ctx, batch, attempt)
			written = len(ops)
			return ops, err
		}, nil)
		if err != nil {
			e.log.Warn("batch failed", "op", op, "batch", len(report.Batches)+1, "committed_batches", len(report.Batches))
			return report, err
		}
		report.Batches = append(report.Batches, BatchResult{Size: len(batch), Written: written, Attempts: attempts})
	}
	return report, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
