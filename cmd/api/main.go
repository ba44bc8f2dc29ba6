package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/brisaerp/order-engine/internal/config"
	"github.com/brisaerp/order-engine/internal/credit"
	"github.com/brisaerp/order-engine/internal/fiscal"
	"github.com/brisaerp/order-engine/internal/httpx"
	kafkax "github.com/brisaerp/order-engine/internal/kafka"
	"github.com/brisaerp/order-engine/internal/notify"
	"github.com/brisaerp/order-engine/internal/orders"
	"github.com/brisaerp/order-engine/internal/pipeline"
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

	// One producer per topic, flushed on shutdown.
	pNotif := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicNotifications, 1024, logger)
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
	pStock := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicLowStock, 1024, logger)
	for _, p := range []*kafkax.Producer{pNotif, pCreated, pStock} {
		p.Start(ctx)
	}

	store := orders.NewPgStore(db)

	var evaluator credit.Evaluator
	if cfg.CreditURL != "" {
		evaluator = credit.NewHTTPEvaluator(cfg.CreditURL, cfg.CreditTimeout)
	} else {
		evaluator = &credit.LimitEvaluator{Clients: store}
	}

	issuer := fiscal.NewIssuer(fiscal.NewPgStore(db), logger)
	disp := &notify.KafkaDispatcher{
		Producer: pNotif,
		Created:  pCreated,
		Stock:    pStock,
		Redis:    rdb,
		Service:  cfg.ServiceName,
		Log:      logger,
	}

	engine := orders.NewEngine(store, evaluator, orders.IssuerFunc(func(ctx context.Context, o *orders.Order) error {
		_, err := issuer.IssueForOrder(ctx, o)
		return err
	}), disp, logger)

	pipe := &pipeline.Service{Orders: engine, Redis: rdb, TopN: cfg.PipelineTopN, Log: logger}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Engine:   engine,
		Fiscal:   issuer,
		Pipeline: pipe,
		Log:      logger,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// Drain in-flight post-commit side effects before flushing producers.
	engine.Wait()
	for _, p := range []*kafkax.Producer{pNotif, pCreated, pStock} {
		p.Close()
	}
	for _, p := range []*kafkax.Producer{pNotif, pCreated, pStock} {
		p.WaitClosed()
	}
}
