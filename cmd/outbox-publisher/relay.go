package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/metrics"
	"github.com/seramic/shop-backend/pkg/outbox/registry"
	"github.com/seramic/shop-backend/pkg/pubsub"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	maxErrorDelay       = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

// Why a row was parked instead of retried.
const (
	parkUndecodable = "undecodable"
	parkRejected    = "rejected"
	parkExhausted   = "max_attempts"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRows interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type messageSink interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

type RelayParams struct {
	Logger   *logger.Logger
	Tx       txRunner
	Rows     outboxRows
	Events   eventResolver
	Sink     messageSink
	Metrics  *metrics.OutboxMetrics
	Settings config.OutboxConfig
}

// Relay moves committed outbox rows onto Pub/Sub. Each batch is claimed and
// marked inside one transaction so concurrent relays never double-publish.
type Relay struct {
	logg        *logger.Logger
	tx          txRunner
	rows        outboxRows
	events      eventResolver
	sink        messageSink
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("relay: logger is required")
	case p.Tx == nil:
		return nil, errors.New("relay: transaction runner is required")
	case p.Rows == nil:
		return nil, errors.New("relay: outbox repository is required")
	case p.Events == nil:
		return nil, errors.New("relay: event registry is required")
	case p.Sink == nil:
		return nil, errors.New("relay: message sink is required")
	}

	r := &Relay{
		logg:        p.Logger,
		tx:          p.Tx,
		rows:        p.Rows,
		events:      p.Events,
		sink:        p.Sink,
		metrics:     p.Metrics,
		batchSize:   p.Settings.BatchSize,
		maxAttempts: p.Settings.MaxAttempts,
		poll:        time.Duration(p.Settings.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = fallbackBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = fallbackMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = fallbackPoll
	}
	return r, nil
}

// Run drains the outbox until ctx is cancelled. A full batch is followed
// immediately by the next one; an idle or failed batch waits, with the wait
// doubling on consecutive failures.
func (r *Relay) Run(ctx context.Context) error {
	delay := r.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.drainOnce(ctx)
		if err != nil {
			r.logg.Error(ctx, "outbox batch failed", err)
			delay = min(2*delay, maxErrorDelay)
		} else {
			delay = r.poll
			if n >= r.batchSize {
				continue
			}
		}

		if err := sleep(ctx, delay+rand.N(maxJitter)); err != nil {
			return err
		}
	}
}

// drainOnce claims up to one batch and settles every row in it. Only
// bookkeeping failures abort the transaction; publish failures are recorded
// on the row.
func (r *Relay) drainOnce(ctx context.Context) (int, error) {
	var n int
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.rows.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		n = len(rows)
		for _, row := range rows {
			if err := r.deliver(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return n, err
}

func (r *Relay) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	eventType := string(row.EventType)
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    eventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := r.events.Resolve(row)
	if err != nil {
		return r.park(ctx, tx, row, parkUndecodable, err)
	}
	topic := resolved.Descriptor.Topic
	ctx = r.logg.WithFields(ctx, map[string]any{"topic": topic, "event_id": resolved.Envelope.EventID})

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	_, err = r.sink.Publish(pubCtx, topic, row.Payload, messageAttributes(row, resolved))
	cancel()

	switch {
	case err == nil:
		if err := r.rows.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.metrics.Published(eventType)
		r.logg.Info(ctx, "outbox event published")
	case permanent(err):
		return r.park(ctx, tx, row, parkRejected, err)
	case row.AttemptCount+1 >= r.maxAttempts:
		return r.park(ctx, tx, row, parkExhausted, fmt.Errorf("gave up after %d attempts: %w", r.maxAttempts, err))
	default:
		if err := r.rows.MarkFailedTx(tx, row.ID, err); err != nil {
			return fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
		r.metrics.Failed(eventType)
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox publish failed, will retry")
	}
	return nil
}

// park leaves the row in outbox_events with attempt_count at the ceiling so
// the claim query skips it and an operator can inspect it.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason string, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"park_reason": reason,
		"error":       cause.Error(),
	}), "outbox event parked")
	if err := r.rows.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", row.ID, err)
	}
	r.metrics.Terminal(string(row.EventType))
	return nil
}

func messageAttributes(row models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	return map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// permanent reports publish errors that no retry will fix.
func permanent(err error) bool {
	var nonRetryable registry.NonRetryableError
	if errors.As(err, &nonRetryable) || errors.Is(err, pubsub.ErrUnknownTopic) {
		return true
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied:
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
