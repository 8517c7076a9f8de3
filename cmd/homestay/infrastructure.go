package main

import (
	"context"
	"fmt"
	"log/slog"

	"homestay/internal/app/middleware"
	appoutbox "homestay/internal/app/outbox"
	"homestay/internal/app/policies"
	"homestay/internal/app/uow"
	"homestay/internal/infra/broker/kafka"
	"homestay/internal/infra/cache"
	"homestay/internal/infra/config"
	mongodb "homestay/internal/infra/db/mongo"
	"homestay/internal/infra/inbox"
	"homestay/internal/infra/obs"
	infraoutbox "homestay/internal/infra/outbox"
	"homestay/internal/infra/storage/memory"
	"homestay/internal/infra/storage/s3"
)

// infrastructure holds the adapters selected by configuration.
type infrastructure struct {
	Factory     uow.UoWFactory
	Outbox      appoutbox.Outbox
	Idempotency middleware.IdempotencyStore
	Cache       middleware.Cache
	Photos      policies.PhotoStorage
	Worker      *infraoutbox.Worker
	Consumer    *kafka.Consumer

	checks  []obs.Check
	closers []func() error
}

func (i *infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		_ = i.closers[n]()
	}
}

func openInfrastructure(ctx context.Context, cfg config.Config, logger *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}
	var (
		source   infraoutbox.Source
		wake     <-chan struct{}
		inboxSrc cache.Inbox
	)

	switch cfg.StorageMode {
	case config.StorageMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		infra.closers = append(infra.closers, func() error { return client.Close(context.Background()) })
		infra.checks = append(infra.checks, obs.Check{Name: "mongo", Run: client.Ping})
		if err := mongodb.EnsureIndexes(ctx, client.DB); err != nil {
			infra.Close()
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		box, err := infraoutbox.NewStore(ctx, client.DB)
		if err != nil {
			infra.Close()
			return nil, err
		}
		idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			infra.Close()
			return nil, err
		}
		seen, err := inbox.NewStore(ctx, client.DB, cfg.KafkaConsumerGroup)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.Factory = mongodb.Factory{DB: client.DB}
		infra.Outbox, infra.Idempotency, source, inboxSrc = box, idem, box, seen
	default:
		box := memory.NewOutbox()
		infra.Factory = memory.Factory{Store: memory.NewStore(), Outbox: box}
		infra.Outbox, infra.Idempotency, source, inboxSrc = box, memory.NewIdempotencyStore(cfg.IdempotencyTTL), box, inbox.NewMemory()
		wake = box.Ready()
	}

	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		infra.closers = append(infra.closers, client.Close)
		infra.checks = append(infra.checks, obs.Check{Name: "redis", Run: func(ctx context.Context) error { return client.Ping(ctx).Err() }})
		infra.Cache = cache.NewRedis(client, "homestay")
	} else {
		infra.Cache = cache.NewMemory()
	}

	if cfg.S3Endpoint != "" {
		store, err := s3.NewClient(s3.Options{
			Endpoint:      cfg.S3Endpoint,
			UseSSL:        cfg.S3UseSSL,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicEndpoint,
		}, logger)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("configure s3: %w", err)
		}
		infra.checks = append(infra.checks, obs.Check{Name: "s3", Run: store.Ping})
		infra.Photos = store
	} else {
		infra.Photos = &memory.PhotoStorage{}
	}

	invalidator := &cache.Invalidator{
		Cache:   infra.Cache,
		Inbox:   inboxSrc,
		Resolve: cache.ListingSlugs(infra.Factory),
		Logger:  logger,
	}
	var producer infraoutbox.Producer
	if len(cfg.KafkaBrokers) > 0 {
		p, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		infra.closers = append(infra.closers, p.Close)
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, nil, invalidator, logger)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		producer, infra.Consumer = p, consumer
	} else {
		logger.Info("no kafka brokers configured, delivering events in process")
		producer = &kafka.Loopback{Handler: invalidator}
	}

	infra.Worker = &infraoutbox.Worker{
		Source:      source,
		Producer:    producer,
		Logger:      logger,
		Wake:        wake,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
	}
	return infra, nil
}
