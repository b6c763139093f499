package main

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/playdata/microshop/pkg/config"
	"github.com/playdata/microshop/pkg/logging"
	"github.com/playdata/microshop/pkg/metrics"
	"github.com/playdata/microshop/pkg/shutdown"
	"github.com/playdata/microshop/pkg/tracing"

	"github.com/playdata/microshop/internal/user/application"
	"github.com/playdata/microshop/internal/user/infrastructure/crypto"
	userhttp "github.com/playdata/microshop/internal/user/infrastructure/http"
	"github.com/playdata/microshop/internal/user/infrastructure/mail"
	userpg "github.com/playdata/microshop/internal/user/infrastructure/postgres"
	"github.com/playdata/microshop/internal/user/infrastructure/redisverify"
)

func main() {
	log := logging.New("user-service")
	cfg := config.LoadUser()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "user-service", cfg.JaegerURL, log)
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

	if err := userpg.EnsureSchema(ctx, pool); err != nil {
		log.Error("schema setup failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	svc := application.NewService(log,
		userpg.NewRepository(log, pool),
		crypto.NewBcryptHasher(),
		mail.NewLogSender(log),
		redisverify.NewStore(rdb),
		application.Options{
			CodeTTL:         cfg.CodeTTL,
			AttemptTTL:      cfg.AttemptTTL,
			BlockTTL:        cfg.BlockTTL,
			MaxCodeAttempts: cfg.MaxCodeAttempts,
		},
	)
	handler := userhttp.NewHandler(log, svc)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	r.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

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
	log.Info("user-service shutdown complete")
}
