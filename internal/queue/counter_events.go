package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"hotelpos-billing-services/internal/counter"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	EventsExchange       = "pos.events"
	DeadLetterExchange   = "pos.events.dlx"
	CounterEventsQueue   = "pos.counter-events"
	CounterEventsDLQ     = "pos.counter-events.dlq"
	CounterEventsBinding = "counter.#"
	KOTFeedBinding       = "counter.kot.#"
	counterEventsDeadRK  = "counter-events.dead"
)

// EnsureCounterEventsTopology declares the events exchange and the counter
// events queue with its dead-letter queue.
func EnsureCounterEventsTopology(ctx context.Context, qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(EventsExchange); err != nil {
		return err
	}
	if err := qc.EnsureExchangeKind(DeadLetterExchange, "direct"); err != nil {
		return err
	}

	if _, err := qc.EnsureQueue(CounterEventsDLQ); err != nil {
		return err
	}
	if err := qc.BindQueue(CounterEventsDLQ, DeadLetterExchange, counterEventsDeadRK); err != nil {
		return err
	}

	_, err := qc.EnsureQueueWithArgs(CounterEventsQueue, amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": counterEventsDeadRK,
	})
	if err != nil {
		return err
	}
	// '#' so multi-segment keys like counter.kot.issued are included.
	return qc.BindQueue(CounterEventsQueue, EventsExchange, CounterEventsBinding)
}

// EnsureKOTFeed declares this replica's private queue of KOT events. Every
// replica gets its own copy of each KOT issued anywhere in the deployment.
func EnsureKOTFeed(qc *Client) (string, error) {
	name, err := qc.DeclareReplicaQueue()
	if err != nil {
		return "", err
	}
	if err := qc.BindQueue(name, EventsExchange, KOTFeedBinding); err != nil {
		return "", err
	}
	return name, nil
}

// ForwardKOTEvent decodes a message from the KOT feed and hands KOT events to
// the local publisher, usually the kitchen display hub.
func ForwardKOTEvent(ctx context.Context, local counter.Publisher, logger *zap.Logger, body []byte) error {
	var event counter.Event
	if err := json.Unmarshal(body, &event); err != nil {
		logger.Warn("dropping malformed kot event", zap.Error(err))
		return nil
	}
	if event.Type != counter.EventKOTIssued {
		return nil
	}
	return local.Publish(ctx, event)
}

// CounterPublisher sends counter events to the events exchange.
type CounterPublisher struct {
	client *Client
}

func NewCounterPublisher(client *Client) *CounterPublisher {
	return &CounterPublisher{client: client}
}

func (p *CounterPublisher) Publish(ctx context.Context, event counter.Event) error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.PublishJSON(ctx, EventsExchange, event.RoutingKey(), event)
}

// ResetArchiver stores the pre-reset report of a reset event and returns
// the key it was stored under.
type ResetArchiver interface {
	ArchiveReset(ctx context.Context, event counter.Event) (string, error)
}

// ProcessCounterEvent handles one message from the counter events queue.
// Issue events need no work here; reset events are archived.
func ProcessCounterEvent(ctx context.Context, archiver ResetArchiver, logger *zap.Logger, body []byte) error {
	var event counter.Event
	if err := json.Unmarshal(body, &event); err != nil {
		// A malformed message will never succeed; drop it.
		logger.Warn("dropping malformed counter event", zap.Error(err))
		return nil
	}

	if event.Type != counter.EventReset {
		return nil
	}
	if archiver == nil {
		logger.Info("counter reset not archived, object store disabled",
			zap.String("date", event.Date),
			zap.String("branchId", event.BranchID),
		)
		return nil
	}

	key, err := archiver.ArchiveReset(ctx, event)
	if err != nil {
		return fmt.Errorf("archive counter reset: %w", err)
	}
	logger.Info("counter reset archived",
		zap.String("date", event.Date),
		zap.String("branchId", event.BranchID),
		zap.String("key", key),
	)
	return nil
}
