package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/metrics"
	"github.com/seramic/shop-backend/pkg/outbox"
	"github.com/seramic/shop-backend/pkg/outbox/registry"
	"github.com/seramic/shop-backend/pkg/pubsub"
)

type memoryRows struct {
	pending   []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	parked    map[uuid.UUID]int
	claimErr  error
}

func (m *memoryRows) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	n := min(limit, len(m.pending))
	out := m.pending[:n]
	m.pending = m.pending[n:]
	return out, nil
}

func (m *memoryRows) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memoryRows) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memoryRows) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, attempts int) error {
	if m.parked == nil {
		m.parked = map[uuid.UUID]int{}
	}
	m.parked[id] = attempts
	return nil
}

type inlineTx struct{}

func (inlineTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type sentMessage struct {
	topic string
	attrs map[string]string
}

// scriptedSink fails the nth publish with the matching error, if any.
type scriptedSink struct {
	errs []error
	sent []sentMessage
}

func (s *scriptedSink) Publish(_ context.Context, topic string, _ []byte, attrs map[string]string) (string, error) {
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	if err == nil {
		s.sent = append(s.sent, sentMessage{topic: topic, attrs: attrs})
	}
	return "server-id", err
}

func newTestRelay(t *testing.T, rows *memoryRows, sink *scriptedSink, settings config.OutboxConfig) *Relay {
	t.Helper()
	events, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders", AccountsTopic: "accounts"})
	require.NoError(t, err)
	relay, err := NewRelay(RelayParams{
		Logger:   logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}),
		Tx:       inlineTx{},
		Rows:     rows,
		Events:   events,
		Sink:     sink,
		Metrics:  metrics.NewOutboxMetrics(prometheus.NewRegistry()),
		Settings: settings,
	})
	require.NoError(t, err)
	return relay
}

func orderCreatedRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	orderID := uuid.New()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{"order_id":"` + orderID.String() + `","order_number":"ORD-2026-000001"}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now(),
	}
}

func TestDrainSettlesEachRowIndependently(t *testing.T) {
	first, second := orderCreatedRow(t, 0), orderCreatedRow(t, 0)
	rows := &memoryRows{pending: []models.OutboxEvent{first, second}}
	sink := &scriptedSink{errs: []error{errors.New("unavailable"), nil}}
	relay := newTestRelay(t, rows, sink, config.OutboxConfig{BatchSize: 10, MaxAttempts: 5})

	n, err := relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{first.ID}, rows.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, rows.published)

	require.Len(t, sink.sent, 1)
	msg := sink.sent[0]
	assert.Equal(t, "orders", msg.topic)
	assert.Equal(t, string(enums.EventOrderCreated), msg.attrs["event_type"])
	assert.Equal(t, second.AggregateID.String(), msg.attrs["aggregate_id"])
	assert.NotEmpty(t, msg.attrs["event_id"])
}

func TestDrainIdleBatch(t *testing.T) {
	relay := newTestRelay(t, &memoryRows{}, &scriptedSink{}, config.OutboxConfig{})
	n, err := relay.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDrainParksRows(t *testing.T) {
	undecodable := orderCreatedRow(t, 0)
	undecodable.AggregateType = enums.AggregateAccount

	tests := []struct {
		name    string
		row     models.OutboxEvent
		sinkErr error
	}{
		{name: "registry rejects row", row: undecodable},
		{name: "topic missing", row: orderCreatedRow(t, 0), sinkErr: pubsub.ErrUnknownTopic},
		{name: "invalid message", row: orderCreatedRow(t, 0), sinkErr: status.Error(codes.InvalidArgument, "too large")},
		{name: "last attempt", row: orderCreatedRow(t, 2), sinkErr: errors.New("deadline exceeded")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := &memoryRows{pending: []models.OutboxEvent{tt.row}}
			relay := newTestRelay(t, rows, &scriptedSink{errs: []error{tt.sinkErr}}, config.OutboxConfig{MaxAttempts: 3})

			_, err := relay.drainOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, map[uuid.UUID]int{tt.row.ID: 3}, rows.parked)
			assert.Empty(t, rows.failed)
			assert.Empty(t, rows.published)
		})
	}
}

func TestDrainAbortsWhenClaimFails(t *testing.T) {
	rows := &memoryRows{claimErr: errors.New("connection reset")}
	relay := newTestRelay(t, rows, &scriptedSink{}, config.OutboxConfig{})
	_, err := relay.drainOnce(context.Background())
	assert.ErrorContains(t, err, "claim outbox rows")
}

func TestRunStopsOnCancel(t *testing.T) {
	rows := &memoryRows{pending: []models.OutboxEvent{orderCreatedRow(t, 0)}}
	relay := newTestRelay(t, rows, &scriptedSink{}, config.OutboxConfig{PollIntervalMS: 10})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := relay.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, rows.published, 1)
}

func TestNewRelayDefaults(t *testing.T) {
	relay := newTestRelay(t, &memoryRows{}, &scriptedSink{}, config.OutboxConfig{})
	assert.Equal(t, fallbackBatchSize, relay.batchSize)
	assert.Equal(t, fallbackMaxAttempts, relay.maxAttempts)
	assert.Equal(t, fallbackPoll, relay.poll)

	_, err := NewRelay(RelayParams{})
	assert.Error(t, err)
}
