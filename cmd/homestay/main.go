package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"homestay/internal/app/bootstrap"
	"homestay/internal/infra/config"
	ginserver "homestay/internal/infra/http/gin"
	"homestay/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("homestay stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("homestay stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	infra, err := openInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	buses, err := bootstrap.Build(bootstrap.Deps{
		Logger:         logger,
		UoWFactory:     infra.Factory,
		Outbox:         infra.Outbox,
		Idempotency:    infra.Idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Cache:          infra.Cache,
		CacheTTL:       cfg.CacheTTL,
		Photos:         infra.Photos,
		ImageSizes:     cfg.ImageSizes,
		ImageFormat:    cfg.ImageFormat,
		BaseCurrency:   cfg.BaseCurrency,
	})
	if err != nil {
		return err
	}
	logger.Info("buses ready", "commands", buses.CommandKeys, "queries", buses.QueryKeys)

	if err := loadReferences(ctx, buses.Commands, cfg.ReferencesFixtures, logger); err != nil {
		return err
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Checks: infra.checks,
	}, ginserver.Handlers{
		Listing:      ginserver.ListingHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Pricing:      ginserver.PricingHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Reservation:  ginserver.ReservationHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Availability: ginserver.AvailabilityHandler{Queries: buses.Queries, Logger: logger},
		Reference:    ginserver.ReferenceHandler{Queries: buses.Queries, Logger: logger},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := infra.Worker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if infra.Consumer != nil {
		g.Go(func() error {
			return infra.Consumer.Run(gctx, infra.Worker.Topics(eventNames...))
		})
	}
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		if infra.Consumer != nil {
			_ = infra.Consumer.Close()
		}
		return nil
	})
	return g.Wait()
}

// eventNames are the events whose topics the cache invalidator follows.
var eventNames = []string{
	"listing.updated",
	"photo.uploaded",
	"pricing.tag_saved",
	"reservation.created",
}
