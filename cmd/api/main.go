package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "customer_reviews/internal/adapters/http_server"
	"customer_reviews/internal/adapters/observability"
	redisad "customer_reviews/internal/adapters/redis"
	"customer_reviews/internal/app"
	"customer_reviews/internal/domain"
	"customer_reviews/internal/shared"
	"customer_reviews/internal/storage/sqlstore"
)

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	observability.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	dialect, err := sqlstore.ParseDialect(cfg.DBDialect)
	if err != nil {
		log.Fatal().Err(err).Msg("bad DB_DIALECT")
	}
	store, err := sqlstore.Open(ctx, dialect, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	defer store.Close()

	// cache is optional; a nil interface disables it
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed, continuing; reads fall through to the database")
		}
		defer rc.Close()
		cache = rc
	}

	// deps
	q := app.NewQueryService(store, cache, cfg.CacheTTL)
	c := app.NewCommandService(store, cache)

	// http
	srv := server.New(cfg.RateLimitRPS)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, C: c})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
