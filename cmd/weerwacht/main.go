// Package main wires together the weerwacht service binary.
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

	"go.uber.org/zap"

	"github.com/weerwacht/weerwacht/internal/api"
	"github.com/weerwacht/weerwacht/internal/clock/system"
	"github.com/weerwacht/weerwacht/internal/config"
	"github.com/weerwacht/weerwacht/internal/extractor"
	collyfetcher "github.com/weerwacht/weerwacht/internal/fetcher/colly"
	"github.com/weerwacht/weerwacht/internal/hash/sha256"
	"github.com/weerwacht/weerwacht/internal/id/uuid"
	"github.com/weerwacht/weerwacht/internal/logging"
	"github.com/weerwacht/weerwacht/internal/manager"
	"github.com/weerwacht/weerwacht/internal/metrics"
	memorypublisher "github.com/weerwacht/weerwacht/internal/publisher/memory"
	mqttpublisher "github.com/weerwacht/weerwacht/internal/publisher/mqtt"
	"github.com/weerwacht/weerwacht/internal/weather"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := collyfetcher.New(collyfetcher.Config{
		BaseURL:            cfg.Scrape.BaseURL,
		UserAgent:          cfg.Scrape.UserAgent,
		Timeout:            time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		BreakerMinRequests: uint32(cfg.HTTP.BreakerMinRequests),
		BreakerCooldown:    time.Duration(cfg.HTTP.BreakerCooldownSec) * time.Second,
		BreakerFailureRate: float64(cfg.HTTP.BreakerFailureRatePct) / 100,
	}, logger.Named("fetcher"))
	extract := extractor.New(extractor.Config{BaseURL: cfg.Scrape.BaseURL}, logger.Named("extractor"))
	hasher := sha256.New()
	clock := system.New()
	ids := uuid.NewUUIDGenerator()

	var publisher weather.Publisher
	if cfg.MQTT.Enabled {
		mq := mqttpublisher.New(mqttpublisher.Config{
			Broker:          cfg.MQTT.Broker,
			ClientID:        cfg.MQTT.ClientID,
			Username:        cfg.MQTT.Username,
			Password:        cfg.MQTT.Password,
			TopicPrefix:     cfg.MQTT.TopicPrefix,
			DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		}, logger.Named("mqtt"))
		if err := mq.Connect(ctx); err != nil {
			logger.Fatal("mqtt connect failed", zap.Error(err))
		}
		publisher = mq
	} else {
		logger.Info("mqtt disabled, recording entities in memory")
		publisher = memorypublisher.New()
	}
	defer publisher.Close()

	mgr := manager.New(cfg, fetcher, extract, hasher, clock, ids, publisher, logger)
	if err := mgr.Announce(ctx); err != nil {
		logger.Warn("entity announcement failed", zap.Error(err))
	}

	apiServer := api.NewServer(mgr, cfg, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("manager started", zap.Int("locations", len(cfg.Locations)))
		mgr.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
