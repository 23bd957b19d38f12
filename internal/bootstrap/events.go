package bootstrap

import (
	"context"
	"fmt"

	"hotelpos-billing-services/internal/config"
	"hotelpos-billing-services/internal/queue"
)

// OpenEventClient connects to RabbitMQ and declares the counter events
// topology. It returns a nil client when RABBITMQ_URL is empty.
func OpenEventClient(ctx context.Context, cfg config.Config) (*queue.Client, error) {
	if cfg.RabbitMQURL == "" {
		return nil, nil
	}
	qc, err := queue.New(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connection: %w", err)
	}
	if err := queue.EnsureCounterEventsTopology(ctx, qc); err != nil {
		_ = qc.Close()
		return nil, fmt.Errorf("rabbitmq counter events topology: %w", err)
	}
	return qc, nil
}
