package bootstrap

import (
	"context"
	"fmt"

	"hotelpos-billing-services/internal/config"
	"hotelpos-billing-services/internal/counter"
	"hotelpos-billing-services/internal/db"

	"go.uber.org/zap"
)

// OpenCounterStore connects the store selected by COUNTER_STORE. The returned
// close function releases its connections.
func OpenCounterStore(ctx context.Context, cfg config.Config, log *zap.Logger) (counter.Store, func(), error) {
	switch cfg.CounterStore {
	case config.StoreMemory:
		log.Warn("using in-memory counter store; numbers are lost on restart")
		return counter.NewMemoryStore(), func() {}, nil

	case config.StoreMongo:
		client, err := db.NewMongoClient(ctx, cfg.MongoURL)
		if err != nil {
			return nil, nil, err
		}
		store := counter.NewMongoStore(client.Database(cfg.MongoDatabase))
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure counter indexes: %w", err)
		}
		log.Info("counter store ready", zap.String("store", "mongo"), zap.String("database", cfg.MongoDatabase))
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("counter store ready", zap.String("store", "postgres"))
		return counter.NewPostgresStore(pool), pool.Close, nil
	}
}

// CounterConfig maps the environment onto the service settings.
func CounterConfig(cfg config.Config, publisher counter.Publisher) counter.Config {
	return counter.Config{
		Timezone:       cfg.ReportingTimezone,
		MaxAttempts:    cfg.CounterMaxAttempts,
		OpTimeout:      cfg.CounterOpTimeout,
		Publisher:      publisher,
		EventBuffer:    cfg.EventBuffer,
		PublishTimeout: cfg.EventTimeout,
	}
}
