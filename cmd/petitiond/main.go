package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/legalaid-petitions/internal/app"
	"github.com/joseph-ayodele/legalaid-petitions/internal/async"
	"github.com/joseph-ayodele/legalaid-petitions/internal/common"
	"github.com/joseph-ayodele/legalaid-petitions/internal/ingest"
	"github.com/joseph-ayodele/legalaid-petitions/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	if err := server.PingDB(ctx, comps.DB, logger, 5*time.Second); err != nil {
		os.Exit(1)
	}

	var wg sync.WaitGroup

	// gRPC health
	health := server.NewHealthServer(comps.DB, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := health.Serve(lis); err != nil {
			logger.Error("grpc serve failed", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		health.Watch(ctx, 15*time.Second)
	}()
	logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)

	// Redis job consumer
	if cfg.Queue.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", "addr", cfg.Queue.RedisAddr, "error", err)
			os.Exit(1)
		}
		q := async.NewRedisQueue(rdb, cfg.Queue.Key, logger)
		if n, err := q.Recover(ctx); err != nil {
			logger.Warn("redis.recover.failed", "error", err)
		} else if n > 0 {
			logger.Info("redis.recovered", "jobs", n)
		}
		workers := cfg.Queue.Workers
		if workers <= 0 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := q.Consume(ctx, comps.Orchestrator.HandleJob); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("redis consumer stopped", "error", err)
				}
			}()
		}
		logger.Info("redis consumers started", "key", cfg.Queue.Key, "workers", workers)
	}

	// Drop-folder intake
	if cfg.Intake.Dir != "" && cfg.Intake.Watch {
		ing := ingest.NewFSIngestor(comps.Cases, comps.Blobs, cfg.Storage.Timeout, logger)
		dirs, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Root:        cfg.Intake.Dir,
			InitialScan: true,
			Debounce:    cfg.Intake.Debounce,
		}, logger)
		if err != nil {
			logger.Error("intake watcher failed", "dir", cfg.Intake.Dir, "error", err)
			os.Exit(1)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dir := range dirs {
				res, err := ing.IngestCase(ctx, dir)
				if err != nil {
					logger.Warn("intake.failed", "path", dir, "error", err)
					continue
				}
				if res.Existing {
					continue
				}
				if err := comps.Orchestrator.Enqueue(ctx, res.Protocol, "intake"); err != nil {
					logger.Warn("intake.enqueue.failed", "protocol", res.Protocol, "error", err)
				}
			}
		}()
		logger.Info("intake watcher started", "dir", cfg.Intake.Dir)
	}

	// HTTP
	srv := server.New(comps.Orchestrator, comps.Exporter, server.Config{
		WebhookSecret: cfg.Server.WebhookSecret,
		RunTimeout:    cfg.Server.RunTimeout,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Server.WebhookSecret == "" {
		logger.Warn("webhook signature verification disabled", "reason", "WEBHOOK_SECRET not set")
	}
	go func() {
		logger.Info("petitiond listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	health.Stop()
	wg.Wait()
	comps.Close(shutdownCtx)
	logger.Info("stopped")
}
