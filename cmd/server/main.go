package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"confess.share/config"
	"confess.share/internal/api"
	"confess.share/internal/cache"
	"confess.share/internal/logger"
	"confess.share/internal/service"
	"confess.share/internal/store"
	"confess.share/internal/sweeper"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	log := logger.New(level, cfg.Log.Format == "json")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := initStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := initCache(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.Server.BaseURL == "" {
		log.Warn("base url is not set, secret message creation will fail")
	}

	deps := api.Dependencies{
		Confessions: service.NewConfessionService(st.Confessions(), cfg.Secrets.MaxMessageLength, log),
		Secrets: service.NewSecretService(st.Secrets(), c, service.SecretConfig{
			BaseURL:          cfg.Server.BaseURL,
			TTL:              cfg.Secrets.TTL,
			BcryptCost:       cfg.Secrets.BcryptCost,
			MaxMessageLength: cfg.Secrets.MaxMessageLength,
		}, log),
		Store: st,
		Cache: c,
	}

	sweepDone := sweeper.New(st.Secrets(), c, cfg.Secrets.SweepInterval, log).Background(ctx)
	// Runs before the deferred closes of the store and cache.
	defer func() {
		stop()
		<-sweepDone
	}()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.SetupRouter(deps, cfg, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		"addr", cfg.Addr(),
		"base_url", cfg.Server.BaseURL,
		"store", cfg.Store.Type,
		"cache", cfg.Cache.Type,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func initStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, error) {
	storeLog := log.WithComponent("store").Logger

	switch cfg.Store.Type {
	case config.StoreMongo:
		st, err := store.NewMongoStore(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database, storeLog)
		if err != nil {
			return nil, fmt.Errorf("mongo connection failed: %w", err)
		}
		return st, nil
	case config.StorePostgres:
		st, err := store.NewPostgresStore(ctx, store.PostgresConfig{
			DSN:             cfg.Store.Postgres.DSN,
			MaxOpenConns:    cfg.Store.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Store.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.Postgres.ConnMaxLifetime,
		}, storeLog)
		if err != nil {
			return nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		return st, nil
	default:
		log.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	}
}

func initCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Type {
	case config.CacheRedis:
		c, err := cache.NewRedisCache(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return c, nil
	default:
		return cache.NewMemoryCache(time.Minute), nil
	}
}
