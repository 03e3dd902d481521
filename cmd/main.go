package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shardpool/shardpool/config"
	"github.com/shardpool/shardpool/internal/conn"
	"github.com/shardpool/shardpool/internal/handler"
	"github.com/shardpool/shardpool/internal/httpserver"
	"github.com/shardpool/shardpool/internal/penaltybox"
	"github.com/shardpool/shardpool/internal/pool"
	"github.com/shardpool/shardpool/internal/redisconn"
	"github.com/shardpool/shardpool/internal/status"
	"github.com/shardpool/shardpool/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := status.NewCollector(1000, log)
	collector.Start(ctx)

	p, err := buildPool(cfg, log, collector.EventChannel())
	if err != nil {
		log.Error("Failed to build pool", slog.Any("err", err))
		os.Exit(1)
	}
	defer p.Close()

	log.Info("Pool ready", slog.Int("nodes", len(p.Nodes())))

	kvHandler := handler.NewKVHandler(log, p)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(kvHandler, collector))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildPool(cfg *config.Config, log *slog.Logger, events chan<- status.Event) (*pool.Pool, error) {
	boxOpts, err := penaltyBoxOptions(cfg.PenaltyBox)
	if err != nil {
		return nil, err
	}

	dial := func(addr string) conn.Conn {
		log.Info("Adding backend", slog.String("addr", addr))
		return redisconn.Dial(addr)
	}

	return pool.FromAddrs(cfg.BackendAddrs(), dial, pool.Options{
		PenaltyBox: boxOpts,
		Logger:     log,
		Events:     events,
	})
}

func penaltyBoxOptions(cfg config.PenaltyBoxConfig) (penaltybox.Options, error) {
	minWait, err := time.ParseDuration(cfg.MinWait)
	if err != nil {
		return penaltybox.Options{}, err
	}

	maxWait, err := time.ParseDuration(cfg.MaxWait)
	if err != nil {
		return penaltybox.Options{}, err
	}

	return penaltybox.Options{
		MinWait:    minWait,
		MaxWait:    maxWait,
		Multiplier: cfg.Multiplier,
	}, nil
}
