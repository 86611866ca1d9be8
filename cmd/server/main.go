package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quickbite/api/internal/config"
	"github.com/quickbite/api/internal/database"
	"github.com/quickbite/api/internal/event"
	"github.com/quickbite/api/internal/messaging"
	"github.com/quickbite/api/internal/migrate"
	"github.com/quickbite/api/internal/router"
	"github.com/quickbite/api/internal/service"
	"github.com/quickbite/api/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := migrate.Apply(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
		log.Info("migrations applied")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to db: %v", err)
	}
	defer pool.Close()

	hub := ws.NewHub()
	go hub.Run(ctx)

	notifiers := event.Fanout{hub}
	if cfg.AMQPURL != "" {
		publisher, err := messaging.NewPublisher(cfg.AMQPURL)
		if err != nil {
			log.WithError(err).Warn("order events will not be published to the broker")
		} else {
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
		}
	}

	policy, _ := cfg.Policy()
	newStore := func(db database.DBTX) service.OrderStore { return database.New(db) }
	svc := service.NewOrderService(pool, newStore, policy, notifiers)

	if !cfg.IdentityEnabled() {
		log.Warn("JWT_SECRET not set: login and realtime subscriptions are disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, database.New(pool), pool, hub, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErr:
		log.WithError(err).Error("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		return
	}
	log.Info("server stopped")
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
