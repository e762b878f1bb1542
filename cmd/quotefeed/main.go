package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/quotefeed/internal/api"
	"github.com/rickgao/quotefeed/internal/cache"
	"github.com/rickgao/quotefeed/internal/config"
	"github.com/rickgao/quotefeed/internal/database"
	"github.com/rickgao/quotefeed/internal/history"
	"github.com/rickgao/quotefeed/internal/hub"
	"github.com/rickgao/quotefeed/internal/logging"
	"github.com/rickgao/quotefeed/internal/model"
	"github.com/rickgao/quotefeed/internal/poller"
	"github.com/rickgao/quotefeed/internal/server"
	"github.com/rickgao/quotefeed/internal/source"
	"github.com/rickgao/quotefeed/internal/store"
	"github.com/rickgao/quotefeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/quotefeed.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := run(*configPath, *envPath); err != nil {
		slog.Error("quotefeed exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	if err := config.LoadDotEnv(envPath); err != nil {
		return err
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	if cfg.Instance.ID != "" {
		logger = logger.With("instance_id", cfg.Instance.ID)
	}
	slog.SetDefault(logger)

	logger.Info("starting quotefeed",
		"version", version.String(),
		"config", configPath,
		"symbols", cfg.Symbols,
		"store", cfg.Store.Backend,
	)

	symbols, err := cfg.SymbolSet()
	if err != nil {
		return fmt.Errorf("build symbol set: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, symbols, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	client := api.NewClient(
		cfg.Source.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Source.Timeout),
		api.WithRetries(cfg.Source.MaxRetries, cfg.Source.RetryBackoff),
		api.WithUserAgent(cfg.Source.UserAgent),
	)
	fetcher := source.New(client, cfg.Source.BarInterval).WithTierTimeout(cfg.Poller.FetchTimeout)

	broadcast := hub.New(logger)
	sinks := []poller.Sink{broadcast}

	latest := openCache(ctx, cfg.Redis, logger)
	if latest != nil {
		defer latest.Close()
		sinks = append(sinks, latest)
	}

	worker := poller.New(poller.Config{
		Interval:     cfg.Poller.Interval,
		InitialDelay: cfg.Poller.InitialDelay,
	}, symbols, fetcher, st, logger, sinks...)

	srv := server.New(cfg.Server, server.Deps{
		History:   history.New(st, symbols, logger),
		Hub:       broadcast,
		Store:     st,
		Cache:     latest,
		Worker:    worker,
		Symbols:   symbols,
		OnConnect: func() { worker.Start(ctx) },
	}, logger)

	worker.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return worker.Stop(stopCtx)
	})

	logger.Info("quotefeed running",
		"port", cfg.Server.Port,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port),
	)

	err = g.Wait()
	logger.Info("quotefeed stopped")
	return err
}

// openCache connects the optional latest-price cache. Any failure leaves the
// service running without it; a nil result disables /api/latest.
func openCache(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) *cache.Cache {
	c, err := cache.New(ctx, cfg, logger)
	switch {
	case errors.Is(err, cache.ErrDisabled):
		logger.Info("latest-price cache disabled")
		return nil
	case err != nil:
		logger.Warn("latest-price cache unavailable, continuing without it",
			"addr", cfg.Addr,
			"error", err,
		)
		return nil
	}
	logger.Info("latest-price cache connected", "addr", cfg.Addr, "ttl", cfg.TTL)
	return c
}

// openStore builds the configured observation store and returns its cleanup.
func openStore(ctx context.Context, cfg *config.Config, symbols model.SymbolSet, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory store, observations are lost on restart")
		return store.NewMemory(store.WithSymbols(symbols)), func() {}, nil

	default:
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}

		pg := store.NewPostgres(pool, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}

		logger.Info("database connected")
		return pg, pool.Close, nil
	}
}
