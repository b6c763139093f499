package main

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/playdata/microshop/pkg/config"
	"github.com/playdata/microshop/pkg/idempotency"
	"github.com/playdata/microshop/pkg/logging"
	"github.com/playdata/microshop/pkg/metrics"
	"github.com/playdata/microshop/pkg/outbox"
	"github.com/playdata/microshop/pkg/shutdown"
	"github.com/playdata/microshop/pkg/tracing"

	"github.com/playdata/microshop/internal/ordering/application"
	"github.com/playdata/microshop/internal/ordering/infrastructure/directory"
	orderhttp "github.com/playdata/microshop/internal/ordering/infrastructure/http"
	orderkafka "github.com/playdata/microshop/internal/ordering/infrastructure/kafka"
	orderpg "github.com/playdata/microshop/internal/ordering/infrastructure/postgres"
)

func main() {
	log := logging.New("ordering-service")
	cfg := config.LoadOrdering()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "ordering-service", cfg.JaegerURL, log)
	if err != nil {
		log.Error("tracing init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := orderpg.EnsureSchema(ctx, pool); err != nil {
		log.Error("schema setup failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	orders := orderpg.NewRepository(log, pool)
	pending := orderpg.NewPendingRepository(log, pool)
	outboxStore := orderpg.NewOutboxStore(log, pool)
	dispatch := outbox.NewKafkaDispatcher(log, writer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, outboxStore, dispatch, "ordering-relay")

	users := directory.NewUserClient(log, cfg.UserServiceURL, cfg.DirectoryTimeout)
	products := directory.NewProductClient(log, cfg.ProductSvcURL, cfg.DirectoryTimeout)

	m := metrics.NewOrdering(nil)
	svc := application.NewService(log, orders, pending, users, products)
	processor := application.NewProcessor(log, svc, pending, orders, cfg.SweepInterval, cfg.MaxAttempts, m)

	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	handler := orderhttp.NewHandler(log, svc, idem, m)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	r.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("outbox relay stopped", "err", err)
		}
	}()
	go func() {
		if err := processor.Run(ctx); err != nil {
			log.Error("pending processor stopped", "err", err)
		}
	}()
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("ordering-service shutdown complete")
}
