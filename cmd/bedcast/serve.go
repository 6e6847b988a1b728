package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wardops/bedcast/internal/aggregate"
	"github.com/wardops/bedcast/internal/api"
	"github.com/wardops/bedcast/internal/cache"
	"github.com/wardops/bedcast/internal/config"
	"github.com/wardops/bedcast/internal/ingest"
	"github.com/wardops/bedcast/internal/metrics"
	"github.com/wardops/bedcast/internal/services"
	"github.com/wardops/bedcast/internal/storage"
	"github.com/wardops/bedcast/internal/utils"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the prediction HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting bedcast", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	store, err := storage.NewStore(storage.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN})
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return err
	}

	snapshots := aggregate.NewStoreProvider(logger, store, cacheProvider,
		cfg.Aggregate.Window, cfg.Aggregate.Timeout, cfg.Aggregate.TTL)

	contracts, err := services.LoadContracts(logger, cfg.Models.Dir)
	if err != nil {
		return err
	}
	service := services.NewPredictionService(logger, contracts, snapshots)

	handler := api.NewHandler(logger, service)
	server, err := api.NewServer(cfg.Server, handler.Routes())
	if err != nil {
		return err
	}

	var consumer *ingest.Consumer
	if cfg.Ingest.Enabled && len(cfg.Ingest.Brokers) > 0 {
		consumer = ingest.NewConsumer(logger, ingest.Config{
			Brokers: cfg.Ingest.Brokers,
			Topic:   cfg.Ingest.Topic,
			GroupID: cfg.Ingest.GroupID,
		}, store)
		go func() {
			logger.Info("event ingest running", slog.String("topic", cfg.Ingest.Topic))
			if err := consumer.Run(ctx); err != nil {
				logger.Error("event ingest exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Warn("ingest close", slog.Any("error", err))
		}
	}
	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("bedcast stopped")
	return nil
}
