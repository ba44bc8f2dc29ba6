package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/brisaerp/order-engine/internal/config"
	kafkax "github.com/brisaerp/order-engine/internal/kafka"
	"github.com/brisaerp/order-engine/internal/notify"
	"github.com/brisaerp/order-engine/internal/orders"
	"github.com/brisaerp/order-engine/internal/postgres"
	"github.com/brisaerp/order-engine/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	store := notify.NewPgStore(db)
	svc := &notify.Service{
		Resolver: &notify.Resolver{Dir: store, Redis: rdb, Log: logger},
		Sink:     store,
		Redis:    rdb,
		Log:      logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifyGroup, orders.TopicNotifications, cfg.NotifyWorkers, logger)

	go func() {
		logger.Info("notifier consumer started",
			zap.String("group", cfg.NotifyGroup),
			zap.String("topic", orders.TopicNotifications),
			zap.Int("workers", cfg.NotifyWorkers))
		if err := cons.Start(ctx, svc.HandleEvent); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down notifier")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
