package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hotelpos-billing-services/internal/bootstrap"
	"hotelpos-billing-services/internal/config"
	"hotelpos-billing-services/internal/counter"
	httpapi "hotelpos-billing-services/internal/http"
	"hotelpos-billing-services/internal/http/handlers"
	"hotelpos-billing-services/internal/logger"
	"hotelpos-billing-services/internal/queue"
	"hotelpos-billing-services/internal/report"
	"hotelpos-billing-services/internal/storage"
	"hotelpos-billing-services/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	store, closeStore, err := bootstrap.OpenCounterStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("counter store connection failed", zap.String("store", cfg.CounterStore), zap.Error(err))
	}
	defer closeStore()

	var objects *storage.ObjectStore
	if cfg.ObjectStoreEnabled() {
		objects, err = storage.NewObjectStore(ctx, storage.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			KeyPrefix:       cfg.ObjectStoreKeyPrefix,
			StorageClass:    cfg.ObjectStoreStorageClass,
			LinkTTL:         cfg.ObjectStoreLinkTTL,
		})
		if err != nil {
			log.Warn("object store unavailable; reset reports will not be archived", zap.Error(err))
			objects = nil
		}
	}

	hub := ws.NewHub(log, cfg.JWTSecret, cfg.WSHeartbeatInterval)
	var publishers counter.Publishers
	var broker handlers.Pinger
	// Without a broker feed the hub only sees KOTs issued by this process.
	localKOTFeed := true

	if cfg.RabbitMQURL != "" {
		qc, err := bootstrap.OpenEventClient(ctx, cfg)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq setup failed", zap.Error(err))
			}
			log.Warn("rabbitmq setup failed; continuing without events", zap.Error(err))
			qc = nil
		}

		if qc != nil {
			defer qc.Close()
			broker = qc
			publishers = append(publishers, queue.NewCounterPublisher(qc))
			log.Info("rabbitmq enabled", zap.String("exchange", queue.EventsExchange), zap.String("queue", queue.CounterEventsQueue))

			if feed, err := queue.EnsureKOTFeed(qc); err != nil {
				log.Warn("kot feed queue failed; kitchen displays only see local KOTs", zap.Error(err))
			} else {
				localKOTFeed = false
				log.Info("kot feed enabled", zap.String("queue", feed), zap.String("binding", queue.KOTFeedBinding))
				go func() {
					err := qc.Subscribe(ctx, feed, func(ctx context.Context, body []byte) error {
						return queue.ForwardKOTEvent(ctx, hub, log, body)
					})
					if err != nil && ctx.Err() == nil {
						log.Error("kot feed stopped", zap.Error(err))
					}
				}()
			}

			if cfg.RabbitMQWorkerMode == "daemon" {
				var archiver queue.ResetArchiver
				if objects != nil {
					archiver = &report.Archiver{Store: objects}
				}
				log.Info("reset archive worker enabled", zap.Bool("archive", archiver != nil))
				go func() {
					err := qc.ConsumeWithRetry(ctx, queue.CounterEventsQueue, func(ctx context.Context, body []byte) error {
						return queue.ProcessCounterEvent(ctx, archiver, log, body)
					}, 5, 5*time.Second)
					if err != nil && ctx.Err() == nil {
						log.Error("consumer stopped", zap.Error(err))
					}
				}()
			} else {
				log.Info("reset archive worker disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
			}
		}
	} else {
		log.Info("counter events disabled (RABBITMQ_URL is empty)")
	}

	if localKOTFeed {
		publishers = append(publishers, hub)
	}
	svc := counter.NewService(store, log, bootstrap.CounterConfig(cfg, publishers))

	h := &handlers.Handler{Logger: log, Config: cfg, Counters: svc, Broker: broker}
	if objects != nil {
		h.Archives = objects
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(log, cfg, h, hub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("counter api ready", zap.String("base", "/api"))
		log.Info("kitchen ws ready", zap.String("base", "/ws"))
		log.Info("billing counter service listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("timezone", cfg.ReportingTimezone),
		)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	if err := svc.Close(ctxShutdown); err != nil {
		log.Warn("counter events not flushed", zap.Error(err))
	}
	cancelWorkers()
}
